package solver

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

// AdamConfig describes a configuration of the Adam solver
type AdamConfig struct {
	StepSize    float64
	Epsilon     float64 // Smoothing factor
	Beta1       float64
	Beta2       float64
	WeightDecay float64 // L2 penalty added to the gradient
}

// NewDefaultAdam returns a new Adam Solver with default hyperparameters
func NewDefaultAdam(stepSize float64) (*Solver, error) {
	return NewAdam(stepSize, 1e-8, 0.9, 0.999, 0)
}

// NewAdam returns a new Adam Solver
func NewAdam(stepSize, epsilon, beta1, beta2, weightDecay float64) (*Solver,
	error) {
	adam := AdamConfig{
		StepSize:    stepSize,
		Epsilon:     epsilon,
		Beta1:       beta1,
		Beta2:       beta2,
		WeightDecay: weightDecay,
	}

	return newSolver(Adam, adam)
}

// Create returns a new Adam solver as described by the AdamConfig
func (a AdamConfig) Create() Interface {
	return &AdamSolver{
		learningRate: a.StepSize,
		eps:          a.Epsilon,
		beta1:        a.Beta1,
		beta2:        a.Beta2,
		weightDecay:  a.WeightDecay,
	}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (a AdamConfig) ValidType(t Type) bool {
	return t == Adam
}

// AdamSolver implements the Adam algorithm of
// https://arxiv.org/abs/1412.6980 with an L2 penalty on the weights.
// Unlike the Gorgonia Adam solver, its learning rate can be changed
// between steps and its moment estimates can be saved and restored.
//
// The solver tracks its moments by position in the model, so it must
// be stepped with the same model every time.
type AdamSolver struct {
	learningRate float64
	eps          float64
	beta1        float64
	beta2        float64
	weightDecay  float64

	state AdamState
}

// AdamState is the internal state of an AdamSolver
type AdamState struct {
	T int         // Number of steps taken
	M [][]float64 // First moment estimates
	V [][]float64 // Second moment estimates
}

// Step implements the G.Solver interface
func (a *AdamSolver) Step(model []G.ValueGrad) error {
	if a.state.M == nil {
		a.state.M = make([][]float64, len(model))
		a.state.V = make([][]float64, len(model))
	} else if len(a.state.M) != len(model) {
		return fmt.Errorf("step: model size changed\n\twant(%v)\n\thave(%v)",
			len(a.state.M), len(model))
	}

	a.state.T++
	correction1 := 1 - math.Pow(a.beta1, float64(a.state.T))
	correction2 := 1 - math.Pow(a.beta2, float64(a.state.T))
	stepSize := a.learningRate / correction1

	for i, vg := range model {
		weights, grad, err := valueGrad(vg)
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}

		if a.state.M[i] == nil {
			a.state.M[i] = make([]float64, len(weights))
			a.state.V[i] = make([]float64, len(weights))
		}
		m, v := a.state.M[i], a.state.V[i]

		for j := range weights {
			g := grad[j] + a.weightDecay*weights[j]

			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g

			denom := math.Sqrt(v[j])/math.Sqrt(correction2) + a.eps
			weights[j] -= stepSize * m[j] / denom
			grad[j] = 0
		}
	}

	return nil
}

// LearningRate returns the current learning rate
func (a *AdamSolver) LearningRate() float64 {
	return a.learningRate
}

// SetLearningRate sets the learning rate used for subsequent steps
func (a *AdamSolver) SetLearningRate(lr float64) {
	a.learningRate = lr
}

// State returns a copy of the solver's internal state
func (a *AdamSolver) State() AdamState {
	state := AdamState{T: a.state.T}
	state.M = copy2D(a.state.M)
	state.V = copy2D(a.state.V)
	return state
}

// GobEncode implements the gob.GobEncoder interface. Only the step
// count and moment estimates are encoded, the hyperparameters are
// given by the solver's configuration.
func (a *AdamSolver) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a.state); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode adam state: %w",
			err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (a *AdamSolver) GobDecode(in []byte) error {
	var state AdamState
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&state); err != nil {
		return fmt.Errorf("gobdecode: could not decode adam state: %w", err)
	}
	a.state = state
	return nil
}

func copy2D(in [][]float64) [][]float64 {
	if in == nil {
		return nil
	}
	out := make([][]float64, len(in))
	for i := range in {
		out[i] = append([]float64(nil), in[i]...)
	}
	return out
}
