// Package transform implements transformations of the states and
// rewards observed from an environment before they are used for
// learning
package transform

import (
	"fmt"
	"math"
	"sort"

	env "github.com/samuelfneumann/goppo/environment"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
)

// DefaultFitSteps is the number of environment steps taken with
// uniform random actions to fit a StateScaler
const DefaultFitSteps = 10000

const scaleEpsilon = 1e-8

// ScalerType names a StateScaler
type ScalerType string

// Available state scalers
const (
	NoScaling ScalerType = "none"
	EnvBounds ScalerType = "env"
	Standard  ScalerType = "standard"
	MinMax    ScalerType = "minmax"
	Robust    ScalerType = "robust"
	Quantile  ScalerType = "quantile"
)

// StateScaler transforms each state before it is given to the agent
type StateScaler interface {
	ScaleState(state []float64) []float64
}

// NewStateScaler returns a new StateScaler of the given type. Every
// scaler except the identity and environment bounds scalers is fit to
// the states observed over fitSteps environment steps taken with
// uniform random actions. The seed determines the random actions.
//
// The empty name and "none" denote the identity scaler.
func NewStateScaler(t ScalerType, e env.Environment, fitSteps int,
	seed uint64) (StateScaler, error) {
	switch t {
	case "", NoScaling:
		return Identity{}, nil
	case EnvBounds:
		return NewEnvBoundsScaler(e.ObservationSpec())
	}

	var fit func([][]float64) (StateScaler, error)
	switch t {
	case Standard:
		fit = NewStandardScaler
	case MinMax:
		fit = NewMinMaxScaler
	case Robust:
		fit = NewRobustScaler
	case Quantile:
		fit = NewQuantileScaler
	default:
		return nil, fmt.Errorf("newstatescaler: unknown scaler %q", t)
	}

	states, err := SampleStates(e, fitSteps, seed)
	if err != nil {
		return nil, fmt.Errorf("newstatescaler: %w", err)
	}
	scaler, err := fit(states)
	if err != nil {
		return nil, fmt.Errorf("newstatescaler: %w", err)
	}
	return scaler, nil
}

// ValidScaler returns an error if t does not name a StateScaler
func ValidScaler(t ScalerType) error {
	switch t {
	case "", NoScaling, EnvBounds, Standard, MinMax, Robust, Quantile:
		return nil
	default:
		return fmt.Errorf("unknown state scaler %q", t)
	}
}

// SampleStates returns the states observed over n steps in the
// environment, taking actions uniformly at random within the bounds of
// the environment's action space. The environment is reset whenever an
// episode ends.
func SampleStates(e env.Environment, n int, seed uint64) ([][]float64,
	error) {
	if n <= 0 {
		return nil, fmt.Errorf("samplestates: number of steps must be "+
			"positive but got %v", n)
	}

	uniform := distmv.NewUniform(e.ActionSpec().Bounds(), rand.NewSource(seed))

	step, err := e.Reset()
	if err != nil {
		return nil, fmt.Errorf("samplestates: could not reset: %w", err)
	}

	states := make([][]float64, 0, n)
	for len(states) < n {
		action := mat.NewVecDense(e.ActionSpec().Shape.Len(), uniform.Rand(nil))
		if step, _, err = e.Step(action); err != nil {
			return nil, fmt.Errorf("samplestates: could not step: %w", err)
		}
		states = append(states, vecToSlice(step.Observation))

		if step.Last() {
			if step, err = e.Reset(); err != nil {
				return nil, fmt.Errorf("samplestates: could not reset: %w", err)
			}
		}
	}
	return states, nil
}

// Identity is a StateScaler which does not change states
type Identity struct{}

// ScaleState implements the StateScaler interface
func (Identity) ScaleState(state []float64) []float64 {
	return append([]float64{}, state...)
}

// affine scales each dimension i of a state as
// (state[i] - shift[i]) * scale[i]
type affine struct {
	shift []float64
	scale []float64
}

// ScaleState implements the StateScaler interface
func (a *affine) ScaleState(state []float64) []float64 {
	if len(state) != len(a.shift) {
		panic(fmt.Sprintf("scalestate: illegal state dimension\n\twant(%v)"+
			"\n\thave(%v)", len(a.shift), len(state)))
	}

	scaled := make([]float64, len(state))
	for i := range state {
		scaled[i] = (state[i] - a.shift[i]) * a.scale[i]
	}
	return scaled
}

// NewEnvBoundsScaler returns a StateScaler which maps each dimension of
// a state from the bounds of the observation spec to [-1, 1].
// Dimensions with infinite or empty bounds are not scaled.
func NewEnvBoundsScaler(spec env.Spec) (StateScaler, error) {
	if spec.LowerBound == nil || spec.UpperBound == nil {
		return nil, fmt.Errorf("newenvboundsscaler: observation spec has " +
			"no bounds")
	}

	n := spec.Shape.Len()
	a := &affine{shift: make([]float64, n), scale: make([]float64, n)}
	for i := 0; i < n; i++ {
		low, high := spec.LowerBound.AtVec(i), spec.UpperBound.AtVec(i)
		if math.IsInf(low, 0) || math.IsInf(high, 0) || high <= low {
			a.scale[i] = 1
			continue
		}

		// 2 * (x - low) / (high - low) - 1 = (x - mid) * 2 / (high - low)
		a.shift[i] = (high + low) / 2
		a.scale[i] = 2 / (high - low)
	}
	return a, nil
}

// NewStandardScaler returns a StateScaler which standardizes each
// dimension of a state to have zero mean and unit variance over states
func NewStandardScaler(states [][]float64) (StateScaler, error) {
	columns, err := columnsOf(states)
	if err != nil {
		return nil, fmt.Errorf("newstandardscaler: %w", err)
	}

	a := &affine{
		shift: make([]float64, len(columns)),
		scale: make([]float64, len(columns)),
	}
	for i, col := range columns {
		mean, std := stat.PopMeanStdDev(col, nil)
		a.shift[i] = mean
		a.scale[i] = 1 / (std + scaleEpsilon)
	}
	return a, nil
}

// NewMinMaxScaler returns a StateScaler which maps each dimension of
// a state from its range over states to [0, 1]
func NewMinMaxScaler(states [][]float64) (StateScaler, error) {
	columns, err := columnsOf(states)
	if err != nil {
		return nil, fmt.Errorf("newminmaxscaler: %w", err)
	}

	a := &affine{
		shift: make([]float64, len(columns)),
		scale: make([]float64, len(columns)),
	}
	for i, col := range columns {
		low, high := col[0], col[0]
		for _, x := range col {
			low, high = math.Min(low, x), math.Max(high, x)
		}
		a.shift[i] = low
		a.scale[i] = 1 / (high - low + scaleEpsilon)
	}
	return a, nil
}

// NewRobustScaler returns a StateScaler which centres each dimension
// of a state on its median over states and scales it by its
// interquartile range
func NewRobustScaler(states [][]float64) (StateScaler, error) {
	columns, err := columnsOf(states)
	if err != nil {
		return nil, fmt.Errorf("newrobustscaler: %w", err)
	}

	a := &affine{
		shift: make([]float64, len(columns)),
		scale: make([]float64, len(columns)),
	}
	for i, col := range columns {
		sort.Float64s(col)
		q1 := stat.Quantile(0.25, stat.LinInterp, col, nil)
		median := stat.Quantile(0.5, stat.LinInterp, col, nil)
		q3 := stat.Quantile(0.75, stat.LinInterp, col, nil)

		a.shift[i] = median
		a.scale[i] = 1 / (q3 - q1 + scaleEpsilon)
	}
	return a, nil
}

// QuantileScaler maps each dimension of a state to [0, 1] through the
// empirical cumulative distribution function of that dimension
type QuantileScaler struct {
	sorted [][]float64
}

// NewQuantileScaler returns a new QuantileScaler fit to states
func NewQuantileScaler(states [][]float64) (StateScaler, error) {
	columns, err := columnsOf(states)
	if err != nil {
		return nil, fmt.Errorf("newquantilescaler: %w", err)
	}
	for _, col := range columns {
		sort.Float64s(col)
	}
	return &QuantileScaler{sorted: columns}, nil
}

// ScaleState implements the StateScaler interface
func (q *QuantileScaler) ScaleState(state []float64) []float64 {
	if len(state) != len(q.sorted) {
		panic(fmt.Sprintf("scalestate: illegal state dimension\n\twant(%v)"+
			"\n\thave(%v)", len(q.sorted), len(state)))
	}

	scaled := make([]float64, len(state))
	for i := range state {
		scaled[i] = stat.CDF(state[i], stat.Empirical, q.sorted[i], nil)
	}
	return scaled
}

// columnsOf returns the transpose of states
func columnsOf(states [][]float64) ([][]float64, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("no states to fit")
	}

	dims := len(states[0])
	columns := make([][]float64, dims)
	for i := range columns {
		columns[i] = make([]float64, len(states))
	}
	for j, state := range states {
		if len(state) != dims {
			return nil, fmt.Errorf("state %v has %v dimensions, expected %v",
				j, len(state), dims)
		}
		for i, x := range state {
			columns[i][j] = x
		}
	}
	return columns, nil
}

func vecToSlice(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
