package ppo

import (
	"math"
	"testing"
)

func TestVFCoefUpdate(t *testing.T) {
	tests := []struct {
		name                  string
		init                  float64
		policyLoss, valueLoss float64
		want                  float64
	}{
		{"PolicyLossDominates", 1.0, 20, 1, 1.1},
		{"ValueLossDominates", 1.0, 1, 20, 0.9},
		{"Balanced", 1.0, 1, 1, 1.0},
		{"ClipAtMaximum", 9.5, 20, 1, MaxVFCoef},
		{"ClipAtMinimum", 0.105, 1, 20, MinVFCoef},
		{"NegativePolicyLoss", 1.0, -5, 1, 0.9},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			coef := NewVFCoef(test.init)
			ratio := coef.Update(test.policyLoss, test.valueLoss)

			wantRatio := test.policyLoss / (test.valueLoss + 1e-10)
			if math.Abs(ratio-wantRatio) > 1e-9 {
				t.Errorf("illegal ratio\n\twant(%v)\n\thave(%v)", wantRatio,
					ratio)
			}
			if have := coef.Value(); math.Abs(have-test.want) > 1e-12 {
				t.Errorf("illegal coefficient\n\twant(%v)\n\thave(%v)",
					test.want, have)
			}
		})
	}
}

func TestVFCoefPersists(t *testing.T) {
	coef := NewVFCoef(1.0)
	for i := 0; i < 3; i++ {
		coef.Update(20, 1)
	}

	if want, have := 1.331, coef.Value(); math.Abs(want-have) > 1e-12 {
		t.Errorf("illegal coefficient after repeated updates\n\twant(%v)"+
			"\n\thave(%v)", want, have)
	}
}
