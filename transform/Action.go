package transform

import (
	"fmt"

	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/utils/matutils"
	"gonum.org/v1/gonum/mat"
)

// RescaleAction maps a policy action from [-1, 1] to the bounds of the
// action spec in place, as min + (a + 1) / 2 * (max - min). Actions
// outside [-1, 1] are mapped outside the bounds.
func RescaleAction(action *mat.VecDense, spec env.Spec) error {
	if action.Len() != spec.Shape.Len() {
		return fmt.Errorf("rescaleaction: illegal action dimension"+
			"\n\twant(%v)\n\thave(%v)", spec.Shape.Len(), action.Len())
	}
	matutils.VecRescale(action, spec.LowerBound, spec.UpperBound)
	return nil
}
