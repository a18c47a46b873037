package solver

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownScheduler is returned when a learning rate schedule is
// requested by a name that is not known
var ErrUnknownScheduler = errors.New("unknown learning rate scheduler")

// SchedulerType names a learning rate schedule
type SchedulerType string

// Available learning rate schedules
const (
	NoSchedule  SchedulerType = "none"
	Exponential SchedulerType = "exponential"
	Cosine      SchedulerType = "cosine"
)

// ValidScheduler returns an error wrapping ErrUnknownScheduler if name
// does not name a learning rate schedule. The empty name is valid and
// denotes a constant learning rate.
func ValidScheduler(name SchedulerType) error {
	switch name {
	case "", NoSchedule, Exponential, Cosine:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScheduler, name)
	}
}

// Scheduler adjusts the learning rate of a solver each time it is
// stepped. The learning rate after t steps is:
//
//	exponential: base * γ^t
//	cosine:      base * (1 + cos(πt / T)) / 2
//	none:        base
type Scheduler struct {
	name  SchedulerType
	base  float64
	gamma float64
	tMax  int
	steps int

	solver Interface
}

// NewScheduler returns a new Scheduler that adjusts the learning rate
// of solver, starting from the solver's current learning rate. The
// argument gamma is only used by exponential schedules and tMax only by
// cosine schedules.
func NewScheduler(name SchedulerType, solver Interface, gamma float64,
	tMax int) (*Scheduler, error) {
	if err := ValidScheduler(name); err != nil {
		return nil, fmt.Errorf("newscheduler: %w", err)
	}
	if name == Cosine && tMax <= 0 {
		return nil, fmt.Errorf("newscheduler: cosine schedule requires "+
			"positive period but got %v", tMax)
	}
	if name == "" {
		name = NoSchedule
	}

	return &Scheduler{
		name:   name,
		base:   solver.LearningRate(),
		gamma:  gamma,
		tMax:   tMax,
		solver: solver,
	}, nil
}

// Step advances the schedule by one step, sets the solver's learning
// rate, and returns the new learning rate
func (s *Scheduler) Step() float64 {
	s.steps++
	lr := s.rate(s.steps)
	s.solver.SetLearningRate(lr)
	return lr
}

// Steps returns the number of times the scheduler has been stepped
func (s *Scheduler) Steps() int {
	return s.steps
}

// SetSteps sets the number of steps taken by the scheduler and sets
// the solver's learning rate accordingly. SetSteps is used to restore
// a scheduler from a checkpoint.
func (s *Scheduler) SetSteps(steps int) {
	s.steps = steps
	s.solver.SetLearningRate(s.rate(steps))
}

// rate returns the learning rate after t steps
func (s *Scheduler) rate(t int) float64 {
	switch s.name {
	case Exponential:
		return s.base * math.Pow(s.gamma, float64(t))
	case Cosine:
		return s.base * (1 + math.Cos(math.Pi*float64(t)/float64(s.tMax))) / 2
	default:
		return s.base
	}
}
