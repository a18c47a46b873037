package solver

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// valueGradPair is a learnable with a fixed value and gradient
type valueGradPair struct {
	value *tensor.Dense
	grad  *tensor.Dense
}

func newValueGradPair(value, grad []float64) *valueGradPair {
	return &valueGradPair{
		value: tensor.New(tensor.WithBacking(value),
			tensor.WithShape(1, len(value))),
		grad: tensor.New(tensor.WithBacking(grad),
			tensor.WithShape(1, len(grad))),
	}
}

func (v *valueGradPair) Value() G.Value {
	return v.value
}

func (v *valueGradPair) Grad() (G.Value, error) {
	return v.grad, nil
}

func TestAdamFirstStep(t *testing.T) {
	s, err := NewAdam(0.1, 1e-8, 0.9, 0.999, 0)
	if err != nil {
		t.Fatalf("could not construct adam: %v", err)
	}

	learnable := newValueGradPair([]float64{1, -2}, []float64{2, -4})
	if err := s.Step([]G.ValueGrad{learnable}); err != nil {
		t.Fatalf("could not step: %v", err)
	}

	// After bias correction, the first step moves each weight by the
	// learning rate in the direction opposite its gradient
	want := []float64{0.9, -1.9}
	have := learnable.value.Data().([]float64)
	for i := range want {
		if math.Abs(want[i]-have[i]) > 1e-6 {
			t.Errorf("illegal weight %v\n\twant(%v)\n\thave(%v)", i, want[i],
				have[i])
		}
	}

	for i, g := range learnable.grad.Data().([]float64) {
		if g != 0 {
			t.Errorf("gradient %v not zeroed after step: %v", i, g)
		}
	}
}

func TestAdamWeightDecay(t *testing.T) {
	s, err := NewAdam(0.1, 1e-8, 0.9, 0.999, 1.0)
	if err != nil {
		t.Fatalf("could not construct adam: %v", err)
	}

	// With a zero gradient, only the L2 penalty moves the weight
	learnable := newValueGradPair([]float64{3}, []float64{0})
	if err := s.Step([]G.ValueGrad{learnable}); err != nil {
		t.Fatalf("could not step: %v", err)
	}

	if have := learnable.value.Data().([]float64)[0]; math.Abs(have-2.9) > 1e-6 {
		t.Errorf("illegal weight\n\twant(%v)\n\thave(%v)", 2.9, have)
	}
}

func TestAdamStateRoundTrip(t *testing.T) {
	s, _ := NewAdam(0.1, 1e-8, 0.9, 0.999, 0)
	learnable := newValueGradPair([]float64{1, 1}, []float64{1, 1})
	if err := s.Step([]G.ValueGrad{learnable}); err != nil {
		t.Fatalf("could not step: %v", err)
	}

	encoded, err := s.GobEncode()
	if err != nil {
		t.Fatalf("could not encode: %v", err)
	}

	restored, _ := NewAdam(0.1, 1e-8, 0.9, 0.999, 0)
	if err := restored.GobDecode(encoded); err != nil {
		t.Fatalf("could not decode: %v", err)
	}

	want := s.Interface.(*AdamSolver).State()
	have := restored.Interface.(*AdamSolver).State()
	if want.T != have.T {
		t.Errorf("illegal step count\n\twant(%v)\n\thave(%v)", want.T, have.T)
	}
	for i := range want.M[0] {
		if want.M[0][i] != have.M[0][i] || want.V[0][i] != have.V[0][i] {
			t.Errorf("illegal moments\n\twant(%v, %v)\n\thave(%v, %v)",
				want.M, want.V, have.M, have.V)
		}
	}
}

func TestVanillaStep(t *testing.T) {
	s, err := NewVanilla(0.5, 0)
	if err != nil {
		t.Fatalf("could not construct vanilla solver: %v", err)
	}

	learnable := newValueGradPair([]float64{1, 1}, []float64{1, -1})
	if err := s.Step([]G.ValueGrad{learnable}); err != nil {
		t.Fatalf("could not step: %v", err)
	}

	want := []float64{0.5, 1.5}
	have := learnable.value.Data().([]float64)
	for i := range want {
		if want[i] != have[i] {
			t.Errorf("illegal weight %v\n\twant(%v)\n\thave(%v)", i, want[i],
				have[i])
		}
	}
}

func TestClipGradNorm(t *testing.T) {
	tests := []struct {
		name     string
		grads    [][]float64
		maxNorm  float64
		wantNorm float64
		clipped  bool
	}{
		{"AboveMax", [][]float64{{3}, {4}}, 1.0, 5.0, true},
		{"BelowMax", [][]float64{{0.3}, {0.4}}, 1.0, 0.5, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			model := make([]G.ValueGrad, len(test.grads))
			for i := range test.grads {
				model[i] = newValueGradPair(make([]float64, len(test.grads[i])),
					append([]float64{}, test.grads[i]...))
			}

			norm, err := ClipGradNorm(model, test.maxNorm)
			if err != nil {
				t.Fatalf("could not clip: %v", err)
			}
			if math.Abs(norm-test.wantNorm) > 1e-12 {
				t.Errorf("illegal norm\n\twant(%v)\n\thave(%v)", test.wantNorm,
					norm)
			}

			after, _ := GradNorm(model)
			if test.clipped && math.Abs(after-test.maxNorm) > 1e-5 {
				t.Errorf("illegal clipped norm\n\twant(%v)\n\thave(%v)",
					test.maxNorm, after)
			} else if !test.clipped && after != norm {
				t.Errorf("gradients below the maximum norm should not change"+
					"\n\twant(%v)\n\thave(%v)", norm, after)
			}
		})
	}
}

func TestSchedulers(t *testing.T) {
	tests := []struct {
		name  SchedulerType
		steps int
		want  float64
	}{
		{Exponential, 2, 1.0 * 0.5 * 0.5},
		{Cosine, 5, 0.5},
		{Cosine, 10, 0.0},
		{NoSchedule, 7, 1.0},
		{"", 3, 1.0},
	}

	for _, test := range tests {
		s, _ := NewVanilla(1.0, 0)
		sched, err := NewScheduler(test.name, s, 0.5, 10)
		if err != nil {
			t.Fatalf("could not construct %q scheduler: %v", test.name, err)
		}

		var lr float64
		for i := 0; i < test.steps; i++ {
			lr = sched.Step()
		}

		if math.Abs(lr-test.want) > 1e-12 {
			t.Errorf("%q scheduler after %v steps\n\twant(%v)\n\thave(%v)",
				test.name, test.steps, test.want, lr)
		}
		if s.LearningRate() != lr {
			t.Errorf("%q scheduler did not set learning rate\n\twant(%v)"+
				"\n\thave(%v)", test.name, lr, s.LearningRate())
		}
	}
}

func TestSchedulerSetSteps(t *testing.T) {
	s, _ := NewVanilla(1.0, 0)
	sched, _ := NewScheduler(Exponential, s, 0.5, 0)
	sched.SetSteps(3)

	if have := s.LearningRate(); have != 0.125 {
		t.Errorf("illegal restored learning rate\n\twant(%v)\n\thave(%v)",
			0.125, have)
	}
}

func TestUnknownScheduler(t *testing.T) {
	s, _ := NewVanilla(1.0, 0)
	_, err := NewScheduler("linear_warmup", s, 0.5, 10)
	if !errors.Is(err, ErrUnknownScheduler) {
		t.Errorf("illegal error\n\twant(%v)\n\thave(%v)", ErrUnknownScheduler,
			err)
	}

	if _, err := NewScheduler(Cosine, s, 0, 0); err == nil {
		t.Error("expected error constructing cosine schedule without period")
	}
}

func TestSolverJSON(t *testing.T) {
	s, _ := NewAdam(3e-4, 1e-8, 0.9, 0.98, 1e-4)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(s); err != nil {
		t.Fatalf("could not marshal: %v", err)
	}

	var decoded Solver
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("could not unmarshal %s: %v", buf.String(), err)
	}

	if decoded.Type != Adam {
		t.Errorf("illegal type\n\twant(%v)\n\thave(%v)", Adam, decoded.Type)
	}
	if have := decoded.LearningRate(); have != 3e-4 {
		t.Errorf("illegal learning rate\n\twant(%v)\n\thave(%v)", 3e-4, have)
	}
}
