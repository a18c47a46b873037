package solver

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
	"gonum.org/v1/gonum/floats"
)

// valueGrad returns the backing data of the value and gradient of a
// learnable. The returned slices alias the learnable.
func valueGrad(vg G.ValueGrad) (value, grad []float64, err error) {
	value, ok := vg.Value().Data().([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("learnable value is not a []float64")
	}

	g, err := vg.Grad()
	if err != nil {
		return nil, nil, fmt.Errorf("could not get gradient: %w", err)
	}
	grad, ok = g.Data().([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("gradient is not a []float64")
	}

	if len(grad) != len(value) {
		return nil, nil, fmt.Errorf("gradient and value sizes differ: %v "+
			"!= %v", len(grad), len(value))
	}
	return value, grad, nil
}

// GradNorm returns the L2 norm of all gradients of the model, taken
// together as a single vector
func GradNorm(model []G.ValueGrad) (float64, error) {
	sumSquares := 0.0
	for _, vg := range model {
		_, grad, err := valueGrad(vg)
		if err != nil {
			return 0, fmt.Errorf("gradnorm: %w", err)
		}
		norm := floats.Norm(grad, 2)
		sumSquares += norm * norm
	}
	return math.Sqrt(sumSquares), nil
}

// ScaleGrads multiplies each gradient of the model by c in place
func ScaleGrads(model []G.ValueGrad, c float64) error {
	for _, vg := range model {
		_, grad, err := valueGrad(vg)
		if err != nil {
			return fmt.Errorf("scalegrads: %w", err)
		}
		floats.Scale(c, grad)
	}
	return nil
}

// ClipGradNorm rescales the gradients of the model so that their total
// L2 norm is at most maxNorm. The norm before clipping is returned.
func ClipGradNorm(model []G.ValueGrad, maxNorm float64) (float64, error) {
	norm, err := GradNorm(model)
	if err != nil {
		return 0, fmt.Errorf("clipgradnorm: %w", err)
	}

	coef := maxNorm / (norm + 1e-6)
	if coef < 1 {
		if err := ScaleGrads(model, coef); err != nil {
			return 0, fmt.Errorf("clipgradnorm: %w", err)
		}
	}
	return norm, nil
}
