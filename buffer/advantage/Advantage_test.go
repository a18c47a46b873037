package advantage

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

const tolerance = 1e-9

func TestGAEFixture(t *testing.T) {
	rewards := []float64{1, 1, 1}
	dones := []bool{false, false, false}
	values := []float64{0.5, 0.5, 0.5}
	gamma, tau := 0.99, 0.97

	returns, adv, err := GAE(rewards, dones, values, 0.5, gamma, tau)
	if err != nil {
		t.Fatal(err)
	}

	// δ = 1 + 0.99*0.5 - 0.5 = 0.995 on every step, so that
	// returns[i] = v + δ * Σ_{t=0}^{n-1-i} (γτ)^t
	wantReturns := []float64{3.368063709550, 2.450498500000, 1.495}
	for i := range wantReturns {
		if math.Abs(returns[i]-wantReturns[i]) > tolerance {
			t.Errorf("return %v\n\twant(%v)\n\thave(%v)", i, wantReturns[i],
				returns[i])
		}

		closedForm := 0.0
		for k := 0; k <= len(rewards)-1-i; k++ {
			closedForm += math.Pow(gamma*tau, float64(k)) * 0.995
		}
		if math.Abs(adv[i]-closedForm) > tolerance {
			t.Errorf("advantage %v\n\twant(%v)\n\thave(%v)", i, closedForm,
				adv[i])
		}
	}
}

func TestGAEMasksAtDone(t *testing.T) {
	rewards := []float64{1, 2}
	dones := []bool{true, false}
	values := []float64{0, 0}

	returns, _, err := GAE(rewards, dones, values, 10, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	// A done element neither bootstraps nor accumulates later elements
	if returns[0] != 1 {
		t.Errorf("unexpected masked return\n\twant(%v)\n\thave(%v)", 1,
			returns[0])
	}
	if returns[1] != 12 {
		t.Errorf("unexpected bootstrapped return\n\twant(%v)\n\thave(%v)", 12,
			returns[1])
	}
}

func TestGAEZeroTauIsOneStep(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	gamma := 0.95

	for trial := 0; trial < 20; trial++ {
		n := 1 + rng.Intn(30)

		// Build a contiguous trajectory so that the value of each next
		// state is the value of the following state
		rewards := make([]float64, n)
		dones := make([]bool, n)
		values := make([]float64, n+1)
		for i := range rewards {
			rewards[i] = rng.NormFloat64()
			dones[i] = rng.Float64() < 0.2
		}
		for i := range values {
			values[i] = rng.NormFloat64()
		}
		nextValues := values[1:]

		_, gaeAdv, err := GAE(rewards, dones, values[:n], values[n], gamma, 0)
		if err != nil {
			t.Fatal(err)
		}
		_, tdAdv, err := OneStep(rewards, dones, values[:n], nextValues, gamma)
		if err != nil {
			t.Fatal(err)
		}

		for i := range gaeAdv {
			if math.Abs(gaeAdv[i]-tdAdv[i]) > tolerance {
				t.Fatalf("trial %v, element %v: GAE(0) differs from one-step"+
					" TD\n\twant(%v)\n\thave(%v)", trial, i, tdAdv[i], gaeAdv[i])
			}
		}
	}
}

func TestOneStepReturnOrdering(t *testing.T) {
	rewards := []float64{1, 2, 3}
	dones := []bool{false, false, true}
	values := []float64{0.1, 0.2, 0.3}
	nextValues := []float64{1, 2, 3}
	gamma := 0.5

	returns, adv, err := OneStep(rewards, dones, values, nextValues, gamma)
	if err != nil {
		t.Fatal(err)
	}

	// Returns hold the accumulator from the element after them
	wantReturns := []float64{
		2 + 0.5*2, // g after element 1
		3,         // g after element 2, which is done
		0,         // initial g
	}
	wantAdv := []float64{
		1 + 0.5*1 - 0.1,
		2 + 0.5*2 - 0.2,
		3 - 0.3,
	}

	for i := range rewards {
		if math.Abs(returns[i]-wantReturns[i]) > tolerance {
			t.Errorf("return %v\n\twant(%v)\n\thave(%v)", i, wantReturns[i],
				returns[i])
		}
		if math.Abs(adv[i]-wantAdv[i]) > tolerance {
			t.Errorf("advantage %v\n\twant(%v)\n\thave(%v)", i, wantAdv[i],
				adv[i])
		}
	}
}

func TestMismatchedLengths(t *testing.T) {
	if _, _, err := OneStep([]float64{1}, []bool{false, true}, []float64{1},
		[]float64{1}, 0.9); err == nil {
		t.Error("onestep: expected error for mismatched lengths")
	}
	if _, _, err := GAE([]float64{1}, []bool{false}, []float64{1, 2}, 0, 0.9,
		0.9); err == nil {
		t.Error("gae: expected error for mismatched lengths")
	}
}

func TestStandardize(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, n := range []int{2, 3, 64, 1000} {
		adv := make([]float64, n)
		for i := range adv {
			adv[i] = 5 + 3*rng.NormFloat64()
		}

		std := Standardize(adv)
		mean, sd := stat.MeanStdDev(std, nil)
		if math.Abs(mean) > 1e-9 {
			t.Errorf("n=%v: standardized mean\n\twant(%v)\n\thave(%v)", n, 0.0,
				mean)
		}
		if math.Abs(sd-1) > 1e-6 {
			t.Errorf("n=%v: standardized std\n\twant(%v)\n\thave(%v)", n, 1.0,
				sd)
		}
	}
}

func TestStandardizeDegenerate(t *testing.T) {
	for _, adv := range [][]float64{{3, 3, 3, 3}, {7}} {
		for i, v := range Standardize(adv) {
			if v != 0 || math.IsNaN(v) {
				t.Errorf("constant advantages should standardize to 0, "+
					"element %v is %v", i, v)
			}
		}
	}
}
