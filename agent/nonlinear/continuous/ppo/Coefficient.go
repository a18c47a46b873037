package ppo

import "github.com/samuelfneumann/goppo/utils/floatutils"

// Bounds and adaptation rates of the value loss coefficient
const (
	MinVFCoef = 0.1
	MaxVFCoef = 10.0

	vfCoefIncrease = 1.1
	vfCoefDecrease = 0.9

	// The coefficient increases when the policy loss exceeds the value
	// loss by more than this factor, and decreases when the value loss
	// exceeds the policy loss by more than this factor
	vfCoefRatio = 10.0

	lossRatioEpsilon = 1e-10
)

// VFCoef is the coefficient on the value loss in the total loss. The
// coefficient adapts to the relative scale of the policy and value
// losses observed on each update.
type VFCoef struct {
	value float64
}

// NewVFCoef returns a new VFCoef with the given initial value
func NewVFCoef(init float64) *VFCoef {
	return &VFCoef{value: init}
}

// Update adapts the coefficient to the argument losses and returns the
// ratio of the policy loss to the value loss. The coefficient is
// increased by 10% if the ratio exceeds 10 and decreased by 10% if the
// ratio is below 0.1, after which it is clipped to
// [MinVFCoef, MaxVFCoef].
func (v *VFCoef) Update(policyLoss, valueLoss float64) float64 {
	ratio := policyLoss / (valueLoss + lossRatioEpsilon)

	if ratio > vfCoefRatio {
		v.value *= vfCoefIncrease
	}
	if ratio < 1/vfCoefRatio {
		v.value *= vfCoefDecrease
	}
	v.value = floatutils.Clip(v.value, MinVFCoef, MaxVFCoef)

	return ratio
}

// Value returns the current value of the coefficient
func (v *VFCoef) Value() float64 {
	return v.value
}

// Set sets the value of the coefficient
func (v *VFCoef) Set(value float64) {
	v.value = value
}
