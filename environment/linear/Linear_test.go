package linear

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// fixedStarter always starts episodes in the same state
type fixedStarter []float64

func (f fixedStarter) Start() *mat.VecDense {
	return mat.NewVecDense(len(f), append([]float64(nil), f...))
}

func newTestEnv(t *testing.T, steps int) *Linear {
	l, first, err := New(fixedStarter{1.0}, steps, 0.99)
	if err != nil {
		t.Fatalf("could not create environment: %v", err)
	}
	if !first.First() {
		t.Fatalf("first timestep has type %v", first.StepType)
	}
	return l
}

func TestOptimalActionReachesOrigin(t *testing.T) {
	l := newTestEnv(t, 10)

	step, _, err := l.Step(mat.NewVecDense(1, []float64{OptimalAction(1.0)}))
	if err != nil {
		t.Fatal(err)
	}

	if x := step.Observation.AtVec(0); math.Abs(x-0.5) > 1e-12 {
		t.Errorf("unexpected state\n\twant(%v)\n\thave(%v)", 0.5, x)
	}
	if r := step.Reward; math.Abs(r+0.25) > 1e-12 {
		t.Errorf("unexpected reward\n\twant(%v)\n\thave(%v)", -0.25, r)
	}

	step, _, _ = l.Step(mat.NewVecDense(1, []float64{OptimalAction(0.5)}))
	if x := step.Observation.AtVec(0); math.Abs(x) > 1e-12 {
		t.Errorf("optimal actions should reach the origin\n\twant(%v)"+
			"\n\thave(%v)", 0.0, x)
	}
}

func TestStepLimitTruncates(t *testing.T) {
	steps := 3
	l := newTestEnv(t, steps)

	action := mat.NewVecDense(1, []float64{0})
	for i := 1; i <= steps; i++ {
		step, last, err := l.Step(action)
		if err != nil {
			t.Fatal(err)
		}
		if last != (i == steps) {
			t.Fatalf("step %v: unexpected episode end %v", i, last)
		}
		if last && (!step.Truncated() || step.Terminal()) {
			t.Errorf("step limit should truncate episodes, got end type %v",
				step.EndType)
		}
	}
}

func TestActionsAreClipped(t *testing.T) {
	l := newTestEnv(t, 10)

	step, _, err := l.Step(mat.NewVecDense(1, []float64{100}))
	if err != nil {
		t.Fatal(err)
	}
	if x := step.Observation.AtVec(0); x != 1.0+Gain*MaxAction {
		t.Errorf("unexpected state\n\twant(%v)\n\thave(%v)",
			1.0+Gain*MaxAction, x)
	}

	if _, _, err := l.Step(mat.NewVecDense(2, nil)); err == nil {
		t.Error("expected error for 2-dimensional action")
	}
}
