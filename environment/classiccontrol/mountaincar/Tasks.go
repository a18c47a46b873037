package mountaincar

import (
	"math"

	env "github.com/samuelfneumann/goppo/environment"
	ts "github.com/samuelfneumann/goppo/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	// Commonly used goal position
	GoalPosition float64 = 0.45

	// GoalReward is the reward for the transition into the goal
	GoalReward float64 = 100.0

	actionCost float64 = 0.1
)

// Goal implements the classic control task of reaching a goal on
// Mountain Car with continuous actions. Since the car is underpowered,
// it must rock back and forth from hill to hill until it reaches the
// goal.
//
// Each step costs 0.1a², where a is the applied force. The transition
// into the goal is rewarded with GoalReward.
//
// Episodes end as done when the car reaches the goal and are truncated
// after a step limit.
type Goal struct {
	env.Starter
	goalEnder *env.IntervalLimit
	stepEnder *env.StepLimit
	goalX     float64
}

// NewGoal creates and returns a new Goal struct given a Starter, which
// determines the starting states; the maximum number of episode
// steps; and the goal x position.
func NewGoal(s env.Starter, episodeSteps int, goalX float64) *Goal {
	stepEnder := env.NewStepLimit(episodeSteps)

	interval := []r1.Interval{{Min: math.Inf(-1), Max: goalX}}
	goalEnder := env.NewIntervalLimit(interval, []int{0},
		ts.TerminalStateReached)
	return &Goal{s, goalEnder, stepEnder, goalX}
}

// AtGoal returns a boolean indicating whether or not the argument state
// is the goal state
func (g *Goal) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) >= g.goalX
}

// GetReward returns the reward for a given state and action, resulting
// in a given next state
func (g *Goal) GetReward(_, action, nextState mat.Vector) float64 {
	force := math.Max(MinContinuousAction, math.Min(MaxContinuousAction,
		action.AtVec(0)))
	reward := -actionCost * force * force

	if nextState.AtVec(0) >= g.goalX {
		reward += GoalReward
	}
	return reward
}

// Min returns the minimum attainable reward over all timesteps
func (g *Goal) Min() float64 { return -actionCost }

// Max returns the maximum attainable reward over all timesteps
func (g *Goal) Max() float64 { return GoalReward }

// End determines if a timestep is the last timestep in the episode,
// either because the goal was reached or because the step limit was
// reached. Reaching the goal takes precedence.
func (g *Goal) End(t *ts.TimeStep) bool {
	if end := g.goalEnder.End(t); end {
		return true
	}
	return g.stepEnder.End(t)
}
