package transform

import (
	"errors"
	"math"
	"testing"

	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/environment/linear"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat"
)

const tolerance = 1e-6

func testStates() [][]float64 {
	return [][]float64{
		{1, 10},
		{2, 20},
		{3, 30},
		{4, 40},
		{5, 50},
	}
}

func TestStandardScaler(t *testing.T) {
	states := testStates()
	scaler, err := NewStandardScaler(states)
	if err != nil {
		t.Fatal(err)
	}

	col := make([]float64, len(states))
	for i, s := range states {
		col[i] = scaler.ScaleState(s)[1]
	}
	mean, std := stat.PopMeanStdDev(col, nil)
	if math.Abs(mean) > tolerance {
		t.Errorf("scaled mean\n\twant(%v)\n\thave(%v)", 0.0, mean)
	}
	if math.Abs(std-1) > tolerance {
		t.Errorf("scaled standard deviation\n\twant(%v)\n\thave(%v)", 1.0, std)
	}
}

func TestMinMaxScaler(t *testing.T) {
	scaler, err := NewMinMaxScaler(testStates())
	if err != nil {
		t.Fatal(err)
	}

	low := scaler.ScaleState([]float64{1, 10})
	high := scaler.ScaleState([]float64{5, 50})
	if !floats.EqualApprox(low, []float64{0, 0}, tolerance) {
		t.Errorf("minimum state\n\twant(%v)\n\thave(%v)", []float64{0, 0}, low)
	}
	if !floats.EqualApprox(high, []float64{1, 1}, tolerance) {
		t.Errorf("maximum state\n\twant(%v)\n\thave(%v)", []float64{1, 1}, high)
	}
}

func TestRobustScaler(t *testing.T) {
	scaler, err := NewRobustScaler(testStates())
	if err != nil {
		t.Fatal(err)
	}

	state := make([]float64, 2)
	for i := range state {
		col := make([]float64, 0, len(testStates()))
		for _, s := range testStates() {
			col = append(col, s[i])
		}
		state[i] = stat.Quantile(0.5, stat.LinInterp, col, nil)
	}

	median := scaler.ScaleState(state)
	if !floats.EqualApprox(median, []float64{0, 0}, tolerance) {
		t.Errorf("median state\n\twant(%v)\n\thave(%v)", []float64{0, 0},
			median)
	}

	// Dimension 1 is dimension 0 scaled by 10, so both have the same
	// robust scaling
	a := scaler.ScaleState([]float64{5, 50})
	if math.Abs(a[0]-a[1]) > tolerance {
		t.Errorf("robust scaling should be scale invariant\n\twant(%v)"+
			"\n\thave(%v)", a[0], a[1])
	}
}

func TestQuantileScaler(t *testing.T) {
	scaler, err := NewQuantileScaler(testStates())
	if err != nil {
		t.Fatal(err)
	}

	scaled := scaler.ScaleState([]float64{0, 100})
	if !floats.Equal(scaled, []float64{0, 1}) {
		t.Errorf("out of range states\n\twant(%v)\n\thave(%v)",
			[]float64{0, 1}, scaled)
	}

	prev := -1.0
	for _, s := range testStates() {
		q := scaler.ScaleState(s)[0]
		if q < prev {
			t.Errorf("quantiles should not decrease: %v after %v", q, prev)
		}
		prev = q
	}
}

func TestScalerFitErrors(t *testing.T) {
	if _, err := NewStandardScaler(nil); err == nil {
		t.Error("expected an error fitting to no states")
	}
	if _, err := NewMinMaxScaler([][]float64{{1, 2}, {3}}); err == nil {
		t.Error("expected an error fitting to ragged states")
	}
}

func TestEnvBoundsScaler(t *testing.T) {
	inf := math.Inf(1)
	spec := env.NewSpec(
		mat.NewVecDense(2, nil),
		env.Observation,
		mat.NewVecDense(2, []float64{-2, -inf}),
		mat.NewVecDense(2, []float64{6, inf}),
		env.Continuous,
	)

	scaler, err := NewEnvBoundsScaler(spec)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		in   []float64
		want []float64
	}{
		{[]float64{-2, 3}, []float64{-1, 3}},
		{[]float64{6, -3}, []float64{1, -3}},
		{[]float64{2, 0}, []float64{0, 0}},
	}
	for _, test := range tests {
		if have := scaler.ScaleState(test.in); !floats.EqualApprox(have,
			test.want, tolerance) {
			t.Errorf("scaling %v\n\twant(%v)\n\thave(%v)", test.in, test.want,
				have)
		}
	}
}

func TestNewStateScaler(t *testing.T) {
	starter := env.NewUniformStarter([]r1.Interval{{Min: -1, Max: 1}}, 1)
	e, _, err := linear.New(starter, 20, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []ScalerType{"", NoScaling, EnvBounds, Standard,
		MinMax, Robust, Quantile} {
		scaler, err := NewStateScaler(name, e, 200, 3)
		if err != nil {
			t.Errorf("creating scaler %q: %v", name, err)
			continue
		}
		if len(scaler.ScaleState([]float64{0.5})) != 1 {
			t.Errorf("scaler %q changed the state dimension", name)
		}
	}

	if _, err := NewStateScaler("bogus", e, 200, 3); err == nil {
		t.Error("expected an error for an unknown scaler")
	}
	if err := ValidScaler("bogus"); err == nil {
		t.Error("expected bogus to be an invalid scaler")
	}
}

func TestSampleStates(t *testing.T) {
	starter := env.NewUniformStarter([]r1.Interval{{Min: -1, Max: 1}}, 1)
	e, _, err := linear.New(starter, 7, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	states, err := SampleStates(e, 50, 11)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 50 {
		t.Fatalf("number of states\n\twant(%v)\n\thave(%v)", 50, len(states))
	}
	for _, s := range states {
		if math.Abs(s[0]) > linear.PositionBound {
			t.Errorf("state %v is outside the environment bounds", s)
		}
	}

	if _, err := SampleStates(e, 0, 11); err == nil {
		t.Error("expected an error sampling no states")
	}
}

func TestDirectionalShaper(t *testing.T) {
	shaper, err := NewRewardShaper(MountainCarDirectional, nil, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	rewards := []float64{-1, -1}
	states := [][]float64{{-0.5, 0.01}, {-0.5, -0.02}}
	next := [][]float64{{-0.49, 0.02}, {-0.52, -0.01}}

	shaped, err := shaper.Reshape(rewards, states, next)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{-1 + DirectionalBonus*0.01, -1 - DirectionalBonus*0.01}
	if !floats.EqualApprox(shaped, want, tolerance) {
		t.Errorf("shaped rewards\n\twant(%v)\n\thave(%v)", want, shaped)
	}

	if _, err := shaper.Reshape(rewards, states[:1], next); err == nil {
		t.Error("expected an error for mismatched lengths")
	}
}

// linearValue is a value function v(s) = Σ s
type linearValue struct{}

func (linearValue) Value(obs mat.Vector) (float64, error) {
	return mat.Sum(obs), nil
}

type failingValue struct{}

var errValue = errors.New("no value")

func (failingValue) Value(mat.Vector) (float64, error) {
	return 0, errValue
}

func TestTDShaper(t *testing.T) {
	shaper, err := NewRewardShaper(TemporalDifference, linearValue{}, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	shaped, err := shaper.Reshape([]float64{1}, [][]float64{{2}},
		[][]float64{{4}})
	if err != nil {
		t.Fatal(err)
	}
	if want := 1 + 0.5*4 - 2.0; math.Abs(shaped[0]-want) > tolerance {
		t.Errorf("td reward\n\twant(%v)\n\thave(%v)", want, shaped[0])
	}

	_, err = NewTD(failingValue{}, 0.5).Reshape([]float64{1},
		[][]float64{{2}}, [][]float64{{4}})
	if !errors.Is(err, errValue) {
		t.Errorf("expected value function error but got %v", err)
	}

	if _, err := NewRewardShaper(TemporalDifference, nil, 0.5); err == nil {
		t.Error("expected an error creating a td shaper without a value " +
			"function")
	}
}

func TestNoShaping(t *testing.T) {
	for _, name := range []ShaperType{"", NoShaping} {
		shaper, err := NewRewardShaper(name, nil, 0.99)
		if err != nil || shaper != nil {
			t.Errorf("shaper %q\n\twant(<nil>, <nil>)\n\thave(%v, %v)", name,
				shaper, err)
		}
	}
	if _, err := NewRewardShaper("bogus", nil, 0.99); err == nil {
		t.Error("expected an error for an unknown shaper")
	}
}

func TestRewardScaler(t *testing.T) {
	scaler := NewRewardScaler()

	first := scaler.ScaleRewards([]float64{3})
	if math.Abs(first[0]-3/(1+scaleEpsilon)) > tolerance {
		t.Errorf("single reward should be unscaled\n\twant(%v)\n\thave(%v)",
			3.0, first[0])
	}

	rewards := []float64{1, 5, -2, 8}
	scaled := scaler.ScaleRewards(rewards)

	all := append([]float64{3}, rewards...)
	std := stat.StdDev(all, nil)
	if math.Abs(scaler.StdDev()-std) > tolerance {
		t.Errorf("running standard deviation\n\twant(%v)\n\thave(%v)", std,
			scaler.StdDev())
	}
	for i := range rewards {
		want := rewards[i] / (std + scaleEpsilon)
		if math.Abs(scaled[i]-want) > tolerance {
			t.Errorf("scaled reward %v\n\twant(%v)\n\thave(%v)", i, want,
				scaled[i])
		}
	}
	if scaler.Count() != len(all) {
		t.Errorf("count\n\twant(%v)\n\thave(%v)", len(all), scaler.Count())
	}
}

func TestRescaleAction(t *testing.T) {
	spec := env.NewSpec(
		mat.NewVecDense(2, nil),
		env.Action,
		mat.NewVecDense(2, []float64{-2, 0}),
		mat.NewVecDense(2, []float64{2, 10}),
		env.Continuous,
	)

	action := mat.NewVecDense(2, []float64{0.5, -1})
	if err := RescaleAction(action, spec); err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 0}
	if have := action.RawVector().Data; !floats.EqualApprox(have, want,
		tolerance) {
		t.Errorf("rescaled action\n\twant(%v)\n\thave(%v)", want, have)
	}

	if err := RescaleAction(mat.NewVecDense(1, nil), spec); err == nil {
		t.Error("expected an error for an illegal action dimension")
	}
}
