package pendulum

import (
	"math"

	env "github.com/samuelfneumann/goppo/environment"
	"gonum.org/v1/gonum/mat"
)

// SwingUp implements a task where the agent must swing the pendulum up
// and hold it in a vertical position. Rewards are the negative cost
//
//	θ² + 0.1θ̇² + 0.001u²
//
// where θ is the angle from the positive y-axis, θ̇ the angular
// velocity and u the applied torque. Episodes are truncated after a
// step limit.
type SwingUp struct {
	env.Starter
	env.Ender
}

// NewSwingUp creates and returns a new SwingUp task
func NewSwingUp(s env.Starter, maxSteps int) *SwingUp {
	ender := env.NewStepLimit(maxSteps)
	return &SwingUp{s, ender}
}

// GetReward returns the reward for taking action in state
func (s *SwingUp) GetReward(state, action, _ mat.Vector) float64 {
	th, thdot := state.AtVec(0), state.AtVec(1)
	u := math.Max(-TorqueBound, math.Min(TorqueBound, action.AtVec(0)))

	return -(th*th + 0.1*thdot*thdot + 0.001*u*u)
}

// AtGoal determines whether or not the current state is the goal state
func (s *SwingUp) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) == 0
}

// Min returns the minimum possible reward
func (s *SwingUp) Min() float64 {
	return -(AngleBound*AngleBound + 0.1*SpeedBound*SpeedBound +
		0.001*TorqueBound*TorqueBound)
}

// Max returns the maximum possible reward
func (s *SwingUp) Max() float64 {
	return 0.0
}
