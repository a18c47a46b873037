// Package gym provides access to OpenAI Gym environments with
// continuous (Box) action spaces.
//
// Environments only work with their default tasks and episode cutoffs.
// GoGym does not report whether an episode was cut off by a time
// limit, so every episode end is reported as a terminal state.
//
// This is made possible through the Go bindings for OpenAI Gym,
// found at https://github.com/samuelfneumann/GoGym.
package gym

import (
	"fmt"

	"github.com/samuelfneumann/gogym"
	env "github.com/samuelfneumann/goppo/environment"
	ts "github.com/samuelfneumann/goppo/timestep"
	"gonum.org/v1/gonum/mat"
)

// GymEnv implements access to an OpenAI Gym environment using GoGym
type GymEnv struct {
	gogym.Environment

	currentStep ts.TimeStep
	discount    float64
}

// New returns a new GymEnv with the given name, which must be a legal
// name from the OpenAI Gym suite with a continuous action space.
func New(name string, discount float64, seed uint64) (*GymEnv,
	ts.TimeStep, error) {
	goGymEnv, err := gogym.Make(name)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not create "+
			"environment: %v", err)
	}

	if _, ok := goGymEnv.ActionSpace().(*gogym.BoxSpace); !ok {
		goGymEnv.Close()
		return nil, ts.TimeStep{}, fmt.Errorf("new: environment %v does "+
			"not have a continuous action space", name)
	}

	goGymEnv.Seed(int(seed))
	gymEnv := &GymEnv{
		Environment: goGymEnv,
		discount:    discount,
	}

	t, err := gymEnv.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}
	return gymEnv, t, nil
}

// Step takes a single environmental step
func (g *GymEnv) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	obs, reward, done, err := g.Environment.Step(a)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: could not step "+
			"GoGym environment: %v", err)
	}

	t := ts.New(ts.Mid, reward, g.discount, obs, g.currentStep.Number+1)
	if done {
		t.StepType = ts.Last
		t.EndType = ts.TerminalStateReached
	}
	g.currentStep = t

	return t, done, nil
}

// Reset resets the environment to some starting state
func (g *GymEnv) Reset() (ts.TimeStep, error) {
	obs, err := g.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: could not reset "+
			"environment: %v", err)
	}

	t := ts.New(ts.First, 0, g.discount, obs, 0)
	g.currentStep = t

	return t, nil
}

// CurrentTimeStep returns the current timestep in the environment
func (g *GymEnv) CurrentTimeStep() ts.TimeStep {
	return g.currentStep
}

// ObservationSpec returns the observation spec of the environment
func (g *GymEnv) ObservationSpec() env.Spec {
	low, high := bounds(g.ObservationSpace())
	shape := mat.NewVecDense(low.Len(), nil)

	return env.NewSpec(shape, env.Observation, low, high, env.Continuous)
}

// ActionSpec returns the action specification of the environment
func (g *GymEnv) ActionSpec() env.Spec {
	low, high := bounds(g.ActionSpace())
	shape := mat.NewVecDense(low.Len(), nil)

	return env.NewSpec(shape, env.Action, low, high, env.Continuous)
}

// DiscountSpec returns the discount specification of the environment
func (g *GymEnv) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	low := mat.NewVecDense(1, []float64{g.discount})

	return env.NewSpec(shape, env.Discount, low, low, env.Continuous)
}

// Close performs resource cleanup after the environment is no longer
// needed
func (g *GymEnv) Close() error {
	g.Environment.Close()
	return nil
}

// bounds returns the lower and upper bounds of a GoGym Box space
func bounds(space interface{}) (*mat.VecDense, *mat.VecDense) {
	box, ok := space.(*gogym.BoxSpace)
	if !ok {
		panic(fmt.Sprintf("bounds: invalid space type %T, package gym "+
			"supports only GoGym's BoxSpace", space))
	}
	return box.Low()[0], box.High()[0]
}
