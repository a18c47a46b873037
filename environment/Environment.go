// Package environment outlines the interfaces and structs needed to
// implement concrete environments that a PPO agent can be trained on.
package environment

import (
	ts "github.com/samuelfneumann/goppo/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when an episode ends. If the argument TimeStep is
// the last in the episode, End sets its StepType to timestep.Last and
// its EndType to the reason the episode ended, returning true.
type Ender interface {
	End(*ts.TimeStep) bool
}

// Task implements the reward scheme and episode boundaries for taking
// actions in some environment
type Task interface {
	Starter
	Ender
	GetReward(state, action, nextState mat.Vector) float64
	AtGoal(state mat.Matrix) bool
	Min() float64 // Minimum attainable reward
	Max() float64 // Maximum attainable reward
}

// Environment implements a simulated environment with continuous
// actions. Environments follow a Gym-like contract: Reset starts a new
// episode and Step advances the current episode, returning whether the
// episode ended. Done and truncated episodes are distinguished by the
// EndType of the returned TimeStep.
type Environment interface {
	Reset() (ts.TimeStep, error)
	Step(action *mat.VecDense) (ts.TimeStep, bool, error)
	CurrentTimeStep() ts.TimeStep
	ObservationSpec() Spec
	ActionSpec() Spec
	DiscountSpec() Spec
	Close() error
}
