// Package pendulum implements the pendulum classic control environment
// with continuous actions
package pendulum

import (
	"fmt"
	"math"

	env "github.com/samuelfneumann/goppo/environment"
	ts "github.com/samuelfneumann/goppo/timestep"
	"github.com/samuelfneumann/goppo/utils/floatutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// default physical constants
const (
	AngleBound  float64 = math.Pi // +/- Angle bounds
	SpeedBound  float64 = 8.0     // +/- Speed bounds
	TorqueBound float64 = 2.0     // +/- Torque bounds

	MaxContinuousAction float64 = TorqueBound
	MinContinuousAction float64 = -MaxContinuousAction

	dt              float64 = 0.05
	Gravity         float64 = 10.0
	Mass            float64 = 1.0
	Length          float64 = 1.0
	ActionDims      int     = 1
	ObservationDims int     = 2
)

// Continuous implements the classic control environment Pendulum. In
// this environment, a pendulum is attached to a fixed base. An agent
// can swing the pendulum back and forth, but the swinging torque is
// underpowered. In order to be able to swing the pendulum straight up,
// it must first be rocked back and forth, using the momentum to
// gradually climb higher until the pendulum can point straight up.
//
// State features consist of the angle of the pendulum from the positive
// y-axis and the angular velocity of the pendulum. The angular
// velocity is clipped between [-SpeedBound, SpeedBound]. Angles are
// normalized to stay within [-AngleBound, AngleBound] = [-π, π].
//
// Actions are continuous and 1-dimensional. Actions determine the
// torque to apply to the pendulum at its fixed base. Actions are
// bounded by [-2, 2] = [MinContinuousAction, MaxContinuousAction].
// Actions outside of this region are clipped to stay within these
// bounds.
//
// Continuous implements the environment.Environment interface
type Continuous struct {
	env.Task
	angleBounds  r1.Interval
	speedBounds  r1.Interval
	torqueBounds r1.Interval
	lastStep     ts.TimeStep
	discount     float64
}

// NewContinuous creates and returns a new Continuous environment
func NewContinuous(t env.Task, discount float64) (*Continuous,
	ts.TimeStep, error) {
	p := &Continuous{
		Task:         t,
		angleBounds:  r1.Interval{Min: -AngleBound, Max: AngleBound},
		speedBounds:  r1.Interval{Min: -SpeedBound, Max: SpeedBound},
		torqueBounds: r1.Interval{Min: -TorqueBound, Max: TorqueBound},
		discount:     discount,
	}

	firstStep, err := p.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newContinuous: %v", err)
	}
	return p, firstStep, nil
}

// Reset resets the environment and returns a starting state drawn from
// the Starter
func (p *Continuous) Reset() (ts.TimeStep, error) {
	state := p.Start()
	if err := validateState(state, p.angleBounds, p.speedBounds); err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %v", err)
	}

	p.lastStep = ts.New(ts.First, 0, p.discount, state, 0)
	return p.lastStep, nil
}

// Step takes one environmental step given action a and returns the next
// timestep and a bool indicating whether or not the episode has ended.
func (p *Continuous) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	if a.Len() != ActionDims {
		return ts.TimeStep{}, true, fmt.Errorf("step: actions should be "+
			"%v-dimensional", ActionDims)
	}

	torque := floatutils.ClipInterval(a.AtVec(0), p.torqueBounds)
	nextState := p.nextState(torque)

	reward := p.GetReward(p.lastStep.Observation, a, nextState)
	nextStep := ts.New(ts.Mid, reward, p.discount, nextState,
		p.lastStep.Number+1)
	p.End(&nextStep)

	p.lastStep = nextStep
	return nextStep, nextStep.Last(), nil
}

// nextState computes the next state of the environment given an amount
// of torque to apply to the fixed base of the pendulum
func (p *Continuous) nextState(torque float64) *mat.VecDense {
	obs := p.lastStep.Observation
	th, thdot := obs.AtVec(0), obs.AtVec(1)

	newthdot := thdot + (3*Gravity/(2*Length)*math.Sin(th)+
		3.0/(Mass*Length*Length)*torque)*dt
	newthdot = floatutils.ClipInterval(newthdot, p.speedBounds)

	newth := normalizeAngle(th + newthdot*dt)

	return mat.NewVecDense(ObservationDims, []float64{newth, newthdot})
}

// CurrentTimeStep returns the last TimeStep that occurred in the
// environment
func (p *Continuous) CurrentTimeStep() ts.TimeStep {
	return p.lastStep
}

// ActionSpec returns the action specification of the environment
func (p *Continuous) ActionSpec() env.Spec {
	shape := mat.NewVecDense(ActionDims, nil)

	lowerBound := mat.NewVecDense(ActionDims, []float64{p.torqueBounds.Min})
	upperBound := mat.NewVecDense(ActionDims, []float64{p.torqueBounds.Max})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Continuous)
}

// ObservationSpec returns the observation specification of the
// environment
func (p *Continuous) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)

	minObs := []float64{p.angleBounds.Min, p.speedBounds.Min}
	lowerBound := mat.NewVecDense(ObservationDims, minObs)

	maxObs := []float64{p.angleBounds.Max, p.speedBounds.Max}
	upperBound := mat.NewVecDense(ObservationDims, maxObs)

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Continuous)
}

// DiscountSpec returns the discount specification of the environment
func (p *Continuous) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, []float64{p.discount})

	return env.NewSpec(shape, env.Discount, bound, bound, env.Continuous)
}

// Close implements the environment.Environment interface
func (p *Continuous) Close() error { return nil }

// String converts the environment to a string representation
func (p *Continuous) String() string {
	str := "Pendulum  |  theta: %v  |  theta dot: %v"
	theta := p.lastStep.Observation.AtVec(0)
	thetadot := p.lastStep.Observation.AtVec(1)

	return fmt.Sprintf(str, theta, thetadot)
}

// normalizeAngle wraps an angle into [-π, π)
func normalizeAngle(th float64) float64 {
	return math.Mod(math.Mod(th+math.Pi, 2*math.Pi)+2*math.Pi,
		2*math.Pi) - math.Pi
}

// validateState validates the state to ensure that the angle and
// angular velocity are within the environmental limits
func validateState(obs mat.Vector, angleBounds, speedBounds r1.Interval) error {
	if th := obs.AtVec(0); th > angleBounds.Max || th < angleBounds.Min {
		return fmt.Errorf("theta %v ∉ [%v, %v]", th, angleBounds.Min,
			angleBounds.Max)
	}

	if thdot := obs.AtVec(1); thdot > speedBounds.Max ||
		thdot < speedBounds.Min {
		return fmt.Errorf("theta dot %v ∉ [%v, %v]", thdot,
			speedBounds.Min, speedBounds.Max)
	}
	return nil
}
