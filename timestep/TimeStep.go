// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either a first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// EndType denotes how an episode ended. A terminal state reached by
// the environment dynamics marks the episode as done, while an episode
// cut off by a step limit marks it as truncated.
type EndType int

const (
	Nil EndType = iota
	TerminalStateReached
	Timeout
)

func (e EndType) String() string {
	switch e {
	case TerminalStateReached:
		return "TerminalStateReached"
	case Timeout:
		return "Timeout"
	default:
		return "Nil"
	}
}

// TimeStep packages together a single timestep in an environment
type TimeStep struct {
	StepType
	EndType
	Reward      float64
	Discount    float64
	Observation *mat.VecDense
	Number      int
}

// New returns a new TimeStep. The EndType of the TimeStep is Nil and
// must be set by an Ender if the TimeStep is the last in the episode.
func New(t StepType, r, d float64, o *mat.VecDense, n int) TimeStep {
	return TimeStep{
		StepType:    t,
		EndType:     Nil,
		Reward:      r,
		Discount:    d,
		Observation: o,
		Number:      n,
	}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}

// Terminal returns whether the TimeStep ended the episode by reaching
// a terminal state
func (t *TimeStep) Terminal() bool {
	return t.Last() && t.EndType == TerminalStateReached
}

// Truncated returns whether the TimeStep ended the episode because of
// a cutoff rather than the environment dynamics
func (t *TimeStep) Truncated() bool {
	return t.Last() && t.EndType != TerminalStateReached
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  End: %v  |  Reward:  %.2f  |  " +
		"Discount: %.2f  |  Step Number:  %v"

	return fmt.Sprintf(str, t.StepType, t.EndType, t.Reward, t.Discount,
		t.Number)
}
