// Package linear implements a deterministic, 1-dimensional environment
// with linear dynamics. It is small enough to train on in seconds and
// its optimal policy is known, which makes it useful for verifying
// that a learning algorithm improves.
package linear

import (
	"fmt"

	env "github.com/samuelfneumann/goppo/environment"
	ts "github.com/samuelfneumann/goppo/timestep"
	"github.com/samuelfneumann/goppo/utils/floatutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	PositionBound float64 = 2.0
	MaxAction     float64 = 1.0
	MinAction     float64 = -MaxAction

	// Gain is the distance moved by a unit action
	Gain float64 = 0.5
)

// Linear is an environment whose state x evolves as
//
//	x' = clip(x + Gain * a, -PositionBound, PositionBound)
//
// and whose reward is -x'². The optimal action is a = -x / Gain,
// clipped to the action bounds, which drives the state to the origin.
// Starting states are drawn from a Starter and episodes are truncated
// after a fixed number of steps.
type Linear struct {
	env.Starter
	ender    env.Ender
	bounds   r1.Interval
	lastStep ts.TimeStep
	discount float64
}

// New returns a new Linear environment with episodes cut off after
// episodeSteps steps
func New(s env.Starter, episodeSteps int, discount float64) (*Linear,
	ts.TimeStep, error) {
	l := &Linear{
		Starter:  s,
		ender:    env.NewStepLimit(episodeSteps),
		bounds:   r1.Interval{Min: -PositionBound, Max: PositionBound},
		discount: discount,
	}

	step, err := l.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}
	return l, step, nil
}

// Reset starts a new episode
func (l *Linear) Reset() (ts.TimeStep, error) {
	state := l.Start()
	if state.Len() != 1 {
		return ts.TimeStep{}, fmt.Errorf("reset: starting states should "+
			"be 1-dimensional but got %v dimensions", state.Len())
	}
	state.SetVec(0, floatutils.ClipInterval(state.AtVec(0), l.bounds))

	l.lastStep = ts.New(ts.First, 0, l.discount, state, 0)
	return l.lastStep, nil
}

// Step takes one environmental step
func (l *Linear) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	if a.Len() != 1 {
		return ts.TimeStep{}, true, fmt.Errorf("step: actions should be " +
			"1-dimensional")
	}
	action := floatutils.Clip(a.AtVec(0), MinAction, MaxAction)

	x := l.lastStep.Observation.AtVec(0) + Gain*action
	x = floatutils.ClipInterval(x, l.bounds)

	next := ts.New(ts.Mid, -x*x, l.discount,
		mat.NewVecDense(1, []float64{x}), l.lastStep.Number+1)
	l.ender.End(&next)

	l.lastStep = next
	return next, next.Last(), nil
}

// CurrentTimeStep returns the current timestep in the environment
func (l *Linear) CurrentTimeStep() ts.TimeStep {
	return l.lastStep
}

// ObservationSpec returns the observation specification of the
// environment
func (l *Linear) ObservationSpec() env.Spec {
	return env.NewSpec(
		mat.NewVecDense(1, nil),
		env.Observation,
		mat.NewVecDense(1, []float64{l.bounds.Min}),
		mat.NewVecDense(1, []float64{l.bounds.Max}),
		env.Continuous,
	)
}

// ActionSpec returns the action specification of the environment
func (l *Linear) ActionSpec() env.Spec {
	return env.NewSpec(
		mat.NewVecDense(1, nil),
		env.Action,
		mat.NewVecDense(1, []float64{MinAction}),
		mat.NewVecDense(1, []float64{MaxAction}),
		env.Continuous,
	)
}

// DiscountSpec returns the discount specification of the environment
func (l *Linear) DiscountSpec() env.Spec {
	bound := mat.NewVecDense(1, []float64{l.discount})
	return env.NewSpec(mat.NewVecDense(1, nil), env.Discount, bound, bound,
		env.Continuous)
}

// Close implements the environment.Environment interface
func (l *Linear) Close() error { return nil }

// OptimalAction returns the action which moves state x closest to
// the origin
func OptimalAction(x float64) float64 {
	return floatutils.Clip(-x/Gain, MinAction, MaxAction)
}
