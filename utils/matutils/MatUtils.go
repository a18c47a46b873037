// Package matutils implements utility function for working with mat.Matrix
// structs
package matutils

import (
	"fmt"

	"github.com/samuelfneumann/goppo/utils/floatutils"
	"gonum.org/v1/gonum/mat"
)

// Format formats a matrix for printing
func Format(X mat.Matrix) string {
	fa := mat.Formatted(X, mat.Prefix(""), mat.Squeeze())
	return fmt.Sprintf("%v", fa)
}

// VecClip performs an element-wise clipping of a vector's values such
// that each value a[i] is at least min[i] and at most max[i]
func VecClip(a *mat.VecDense, min, max mat.Vector) {
	if a.Len() != min.Len() || a.Len() != max.Len() {
		panic(fmt.Sprintf("vecClip: bounds must match vector length %v, "+
			"got %v and %v", a.Len(), min.Len(), max.Len()))
	}

	for i := 0; i < a.Len(); i++ {
		a.SetVec(i, floatutils.Clip(a.AtVec(i), min.AtVec(i), max.AtVec(i)))
	}
}

// VecRescale maps each element of a from [-1, 1] to [min[i], max[i]]
// in place
func VecRescale(a *mat.VecDense, min, max mat.Vector) {
	for i := 0; i < a.Len(); i++ {
		a.SetVec(i, floatutils.Rescale(a.AtVec(i), min.AtVec(i), max.AtVec(i)))
	}
}
