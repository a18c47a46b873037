// Package mountaincar implements the classic control Mountain Car
// environment with continuous actions
package mountaincar

import (
	"fmt"
	"math"

	env "github.com/samuelfneumann/goppo/environment"
	ts "github.com/samuelfneumann/goppo/timestep"
	"github.com/samuelfneumann/goppo/utils/floatutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	MinPosition float64 = -1.2
	MaxPosition float64 = 0.6
	MaxSpeed    float64 = 0.07
	Power       float64 = 0.0015 // Engine power
	Gravity     float64 = 0.0025

	MinContinuousAction float64 = -1.0
	MaxContinuousAction float64 = 1.0

	ActionDims      int = 1
	ObservationDims int = 2
)

// Continuous implements the classic control Mountain Car environment.
// In this environment, the agent controls a car in a valley between two
// hills. The car is underpowered and cannot drive up the hill unless
// it rocks back and forth from hill to hill, using its momentum to
// gradually climb higher.
//
// State features consist of the x position of the car and its velocity.
// These features are bounded by the MinPosition, MaxPosition, and
// MaxSpeed constants defined in this package. The sign of the velocity
// feature denotes direction, with negative meaning that the car is
// travelling left and positive meaning that the car is travelling
// right. Upon reaching the minimum position, the velocity of the car
// is set to 0.
//
// Actions are 1-dimensional and continuous. Actions determine the force
// to apply to the car and in which direction to apply this force.
// Actions are bounded between [-1, 1] = [MinContinuousAction,
// MaxContinuousAction], and actions outside of this range are clipped
// to stay within this range.
//
// Continuous implements the environment.Environment interface
type Continuous struct {
	env.Task
	positionBounds r1.Interval
	speedBounds    r1.Interval
	lastStep       ts.TimeStep
	discount       float64
}

// NewContinuous creates a new Continuous action Mountain Car
// environment with the argument task
func NewContinuous(t env.Task, discount float64) (*Continuous,
	ts.TimeStep, error) {
	m := &Continuous{
		Task:           t,
		positionBounds: r1.Interval{Min: MinPosition, Max: MaxPosition},
		speedBounds:    r1.Interval{Min: -MaxSpeed, Max: MaxSpeed},
		discount:       discount,
	}

	firstStep, err := m.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newContinuous: %v", err)
	}
	return m, firstStep, nil
}

// Reset resets the environment and returns a starting state drawn from
// the environment Starter
func (m *Continuous) Reset() (ts.TimeStep, error) {
	state := m.Start()
	if err := validateState(state, m.positionBounds, m.speedBounds); err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %v", err)
	}

	m.lastStep = ts.New(ts.First, 0, m.discount, state, 0)
	return m.lastStep, nil
}

// Step takes one environmental step given action a and returns the next
// timestep and a bool indicating whether or not the episode has ended.
func (m *Continuous) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	if a.Len() != ActionDims {
		return ts.TimeStep{}, true, fmt.Errorf("step: actions should be "+
			"%v-dimensional", ActionDims)
	}

	force := floatutils.Clip(a.AtVec(0), MinContinuousAction,
		MaxContinuousAction)
	newState := m.nextState(force)

	reward := m.GetReward(m.lastStep.Observation, a, newState)
	nextStep := ts.New(ts.Mid, reward, m.discount, newState,
		m.lastStep.Number+1)
	m.End(&nextStep)

	m.lastStep = nextStep
	return nextStep, nextStep.Last(), nil
}

// nextState calculates the next state in the environment given a force
func (m *Continuous) nextState(force float64) *mat.VecDense {
	state := m.lastStep.Observation
	position, velocity := state.AtVec(0), state.AtVec(1)

	velocity += force*Power - Gravity*math.Cos(3*position)
	velocity = floatutils.ClipInterval(velocity, m.speedBounds)

	position += velocity
	position = floatutils.ClipInterval(position, m.positionBounds)

	if position <= m.positionBounds.Min && velocity < 0 {
		velocity = 0
	}

	return mat.NewVecDense(ObservationDims, []float64{position, velocity})
}

// CurrentTimeStep returns the current timestep in the environment
func (m *Continuous) CurrentTimeStep() ts.TimeStep {
	return m.lastStep
}

// ActionSpec returns the action specification of the environment
func (m *Continuous) ActionSpec() env.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims, []float64{MinContinuousAction})
	upperBound := mat.NewVecDense(ActionDims, []float64{MaxContinuousAction})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Continuous)
}

// ObservationSpec returns the observation specification of the
// environment
func (m *Continuous) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)
	lowerBound := mat.NewVecDense(ObservationDims, []float64{
		m.positionBounds.Min, m.speedBounds.Min})
	upperBound := mat.NewVecDense(ObservationDims, []float64{
		m.positionBounds.Max, m.speedBounds.Max})

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Continuous)
}

// DiscountSpec returns the discounting specification of the environment
func (m *Continuous) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, []float64{m.discount})

	return env.NewSpec(shape, env.Discount, bound, bound, env.Continuous)
}

// Close implements the environment.Environment interface
func (m *Continuous) Close() error { return nil }

// String returns a string representation of the environment
func (m *Continuous) String() string {
	str := "Mountain Car  |  Position: %v  |  Speed: %v"
	state := m.lastStep.Observation
	return fmt.Sprintf(str, state.AtVec(0), state.AtVec(1))
}

// validateState validates the state to ensure the position and speed
// are within the environmental limits
func validateState(s mat.Vector, positionBounds,
	speedBounds r1.Interval) error {
	position := s.AtVec(0)
	if position < positionBounds.Min || position > positionBounds.Max {
		return fmt.Errorf("illegal position %v ∉ [%v, %v]", position,
			positionBounds.Min, positionBounds.Max)
	}

	speed := s.AtVec(1)
	if speed < speedBounds.Min || speed > speedBounds.Max {
		return fmt.Errorf("illegal speed %v ∉ [%v, %v]", speed,
			speedBounds.Min, speedBounds.Max)
	}
	return nil
}
