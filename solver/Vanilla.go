package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// VanillaConfig describes a configuration of the vanilla gradient
// descent solver.
type VanillaConfig struct {
	StepSize    float64
	WeightDecay float64
}

// NewVanilla returns a new Vanilla Solver
func NewVanilla(stepSize, weightDecay float64) (*Solver, error) {
	vanilla := VanillaConfig{
		StepSize:    stepSize,
		WeightDecay: weightDecay,
	}

	return newSolver(Vanilla, vanilla)
}

// Create returns a vanilla gradient descent solver as described by the
// VanillaConfig
func (v VanillaConfig) Create() Interface {
	return &VanillaSolver{
		learningRate: v.StepSize,
		weightDecay:  v.WeightDecay,
	}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}

// VanillaSolver implements stochastic gradient descent with an L2
// penalty on the weights
type VanillaSolver struct {
	learningRate float64
	weightDecay  float64
}

// Step implements the G.Solver interface
func (v *VanillaSolver) Step(model []G.ValueGrad) error {
	for _, vg := range model {
		weights, grad, err := valueGrad(vg)
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}

		for j := range weights {
			weights[j] -= v.learningRate * (grad[j] + v.weightDecay*weights[j])
			grad[j] = 0
		}
	}
	return nil
}

// LearningRate returns the current learning rate
func (v *VanillaSolver) LearningRate() float64 {
	return v.learningRate
}

// SetLearningRate sets the learning rate used for subsequent steps
func (v *VanillaSolver) SetLearningRate(lr float64) {
	v.learningRate = lr
}

// GobEncode implements the gob.GobEncoder interface. The vanilla
// solver has no internal state.
func (v *VanillaSolver) GobEncode() ([]byte, error) {
	return []byte{}, nil
}

// GobDecode implements the gob.GobDecoder interface
func (v *VanillaSolver) GobDecode([]byte) error {
	return nil
}
