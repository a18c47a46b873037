package transform

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/goppo/agent"
	"gonum.org/v1/gonum/mat"
)

// ShaperType names a RewardShaper
type ShaperType string

// Available reward shapers
const (
	NoShaping              ShaperType = "none"
	MountainCarDirectional ShaperType = "mountaincar_directional"
	TemporalDifference     ShaperType = "td"
)

// DirectionalBonus scales the bonus given by the mountain car
// directional shaper for each unit of speed gained
const DirectionalBonus = 100.0

// RewardShaper transforms environmental rewards using the states of
// each transition. Rewards are shaped before they are scaled.
type RewardShaper interface {
	Reshape(rewards []float64, states, nextStates [][]float64) ([]float64,
		error)
}

// NewRewardShaper returns the RewardShaper of the given type. The value
// function is used only by the TD shaper. The empty name and "none"
// return a nil RewardShaper, which denotes no shaping.
func NewRewardShaper(t ShaperType, v agent.ValueFunction,
	gamma float64) (RewardShaper, error) {
	switch t {
	case "", NoShaping:
		return nil, nil
	case MountainCarDirectional:
		return Directional{}, nil
	case TemporalDifference:
		if v == nil {
			return nil, fmt.Errorf("newrewardshaper: td shaper requires a " +
				"value function")
		}
		return NewTD(v, gamma), nil
	default:
		return nil, fmt.Errorf("newrewardshaper: unknown shaper %q", t)
	}
}

// ValidShaper returns an error if t does not name a RewardShaper
func ValidShaper(t ShaperType) error {
	switch t {
	case "", NoShaping, MountainCarDirectional, TemporalDifference:
		return nil
	default:
		return fmt.Errorf("unknown reward shaper %q", t)
	}
}

// Directional shapes the rewards of mountain car by rewarding speed
// gained in the direction of travel. States are (position, velocity)
// and the shaped reward is
//
//	r + DirectionalBonus * (|v'| - |v|)
type Directional struct{}

// Reshape implements the RewardShaper interface
func (Directional) Reshape(rewards []float64, states,
	nextStates [][]float64) ([]float64, error) {
	if err := checkLengths(rewards, states, nextStates); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}

	shaped := make([]float64, len(rewards))
	for i := range rewards {
		if len(states[i]) < 2 || len(nextStates[i]) < 2 {
			return nil, fmt.Errorf("reshape: mountain car states must have "+
				"a velocity but got %v dimensions", len(states[i]))
		}
		gained := math.Abs(nextStates[i][1]) - math.Abs(states[i][1])
		shaped[i] = rewards[i] + DirectionalBonus*gained
	}
	return shaped, nil
}

// TD shapes rewards into temporal difference errors of a value
// function, r + γV(s') - V(s)
type TD struct {
	v     agent.ValueFunction
	gamma float64
}

// NewTD returns a new TD shaper using value function v
func NewTD(v agent.ValueFunction, gamma float64) *TD {
	return &TD{v: v, gamma: gamma}
}

// Reshape implements the RewardShaper interface
func (t *TD) Reshape(rewards []float64, states,
	nextStates [][]float64) ([]float64, error) {
	if err := checkLengths(rewards, states, nextStates); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}

	shaped := make([]float64, len(rewards))
	for i := range rewards {
		value, err := t.v.Value(mat.NewVecDense(len(states[i]), states[i]))
		if err != nil {
			return nil, fmt.Errorf("reshape: %w", err)
		}
		nextValue, err := t.v.Value(mat.NewVecDense(len(nextStates[i]),
			nextStates[i]))
		if err != nil {
			return nil, fmt.Errorf("reshape: %w", err)
		}

		shaped[i] = rewards[i] + t.gamma*nextValue - value
	}
	return shaped, nil
}

func checkLengths(rewards []float64, states, nextStates [][]float64) error {
	if len(states) != len(rewards) || len(nextStates) != len(rewards) {
		return fmt.Errorf("mismatched lengths: rewards (%v), states (%v), "+
			"next states (%v)", len(rewards), len(states), len(nextStates))
	}
	return nil
}
