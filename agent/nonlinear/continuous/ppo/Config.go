package ppo

import (
	"fmt"

	"github.com/samuelfneumann/goppo/buffer/advantage"
	"github.com/samuelfneumann/goppo/initwfn"
	"github.com/samuelfneumann/goppo/network"
	"github.com/samuelfneumann/goppo/solver"
)

// Config implements a configuration of a PPO agent
type Config struct {
	// Policy neural net
	PolicyLayers      []int
	PolicyBiases      []bool
	PolicyActivations []*network.Activation
	InitLogStd        float64

	// State value function neural net
	ValueFnLayers      []int
	ValueFnBiases      []bool
	ValueFnActivations []*network.Activation

	// Weight init function for all neural nets
	InitWFn *initwfn.InitWFn

	PolicySolver *solver.Solver
	VSolver      *solver.Solver

	// Learning rate schedule applied to both solvers. ExponentialGamma
	// is only used by exponential schedules and CosineTMax only by
	// cosine schedules.
	Scheduler        solver.SchedulerType
	ExponentialGamma float64
	CosineTMax       int

	BatchSize   int
	SGDIters    int
	Gamma       float64
	Tau         float64 // GAE(τ) parameter
	ClipEpsilon float64
	VFCoef      float64 // Initial value loss coefficient
	EntropyCoef float64
	MaxGradNorm float64
	UseGAE      bool
	L1Loss      bool

	Seed uint64
}

// DefaultConfig returns the default PPO configuration with two hidden
// layers of 64 units in each network. The cosine learning rate schedule
// decays over 30 epochs of updates.
func DefaultConfig() Config {
	const (
		epochs   = 30
		sgdIters = 20
		hidden   = 64
	)

	init, err := initwfn.New(initwfn.He, 1.0)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: %v", err))
	}
	policySolver, err := solver.NewAdam(3e-4, 1e-8, 0.9, 0.98, 1e-4)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: %v", err))
	}
	vSolver, err := solver.NewAdam(3e-5, 1e-8, 0.9, 0.98, 1e-4)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: %v", err))
	}

	return Config{
		PolicyLayers:      []int{hidden, hidden},
		PolicyBiases:      []bool{true, true},
		PolicyActivations: []*network.Activation{network.TanH(), network.TanH()},
		InitLogStd:        0.0,

		ValueFnLayers:      []int{hidden, hidden},
		ValueFnBiases:      []bool{true, true},
		ValueFnActivations: []*network.Activation{network.TanH(), network.TanH()},

		InitWFn: init,

		PolicySolver:     policySolver,
		VSolver:          vSolver,
		Scheduler:        solver.Cosine,
		ExponentialGamma: 0.9995,
		CosineTMax:       epochs * sgdIters,

		BatchSize:   64,
		SGDIters:    sgdIters,
		Gamma:       0.99,
		Tau:         0.97,
		ClipEpsilon: 0.2,
		VFCoef:      1.0,
		EntropyCoef: 1e-4,
		MaxGradNorm: 0.9,
		UseGAE:      false,
		L1Loss:      false,
	}
}

// Estimator returns the advantage estimator described by the config
func (c Config) Estimator() advantage.Estimator {
	if c.UseGAE {
		return advantage.GeneralizedAdvantage
	}
	return advantage.OneStepTD
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if err := validateNet("policy", c.PolicyLayers, c.PolicyBiases,
		c.PolicyActivations); err != nil {
		return err
	}
	if err := validateNet("value function", c.ValueFnLayers,
		c.ValueFnBiases, c.ValueFnActivations); err != nil {
		return err
	}

	if c.InitWFn == nil {
		return fmt.Errorf("validate: no weight initializer specified")
	}
	if c.PolicySolver == nil || c.VSolver == nil {
		return fmt.Errorf("validate: policy and value function solvers " +
			"must be specified")
	}

	if err := solver.ValidScheduler(c.Scheduler); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if c.Scheduler == solver.Cosine && c.CosineTMax <= 0 {
		return fmt.Errorf("validate: cosine schedule requires positive "+
			"period but got %v", c.CosineTMax)
	}
	if c.Scheduler == solver.Exponential && c.ExponentialGamma <= 0 {
		return fmt.Errorf("validate: exponential schedule requires "+
			"positive decay but got %v", c.ExponentialGamma)
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("validate: batch size must be positive but got %v",
			c.BatchSize)
	}
	if c.SGDIters <= 0 {
		return fmt.Errorf("validate: number of gradient steps must be "+
			"positive but got %v", c.SGDIters)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1] but got %v",
			c.Gamma)
	}
	if c.Tau < 0 || c.Tau > 1 {
		return fmt.Errorf("validate: τ must be in [0, 1] but got %v", c.Tau)
	}
	if c.ClipEpsilon <= 0 {
		return fmt.Errorf("validate: clipping parameter must be positive "+
			"but got %v", c.ClipEpsilon)
	}
	if c.VFCoef <= 0 {
		return fmt.Errorf("validate: value loss coefficient must be "+
			"positive but got %v", c.VFCoef)
	}
	if c.EntropyCoef < 0 {
		return fmt.Errorf("validate: entropy coefficient must be "+
			"non-negative but got %v", c.EntropyCoef)
	}
	if c.MaxGradNorm <= 0 {
		return fmt.Errorf("validate: maximum gradient norm must be positive "+
			"but got %v", c.MaxGradNorm)
	}

	return nil
}

func validateNet(name string, layers []int, biases []bool,
	activations []*network.Activation) error {
	if len(layers) != len(biases) {
		return fmt.Errorf("validate: %v must have one bias per layer but "+
			"got %v layers and %v biases", name, len(layers), len(biases))
	}
	if len(layers) != len(activations) {
		return fmt.Errorf("validate: %v must have one activation per "+
			"layer but got %v layers and %v activations", name, len(layers),
			len(activations))
	}
	for i, size := range layers {
		if size <= 0 {
			return fmt.Errorf("validate: %v layer %v must have positive "+
				"size but got %v", name, i, size)
		}
		if activations[i] == nil {
			return fmt.Errorf("validate: %v layer %v has no activation", name,
				i)
		}
	}
	return nil
}
