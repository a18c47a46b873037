// Package experiment implements on-policy training of an agent: the
// rollout of a policy in an environment and the epochs of collection
// and update which make up a training run
package experiment

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/samuelfneumann/goppo/agent/nonlinear/continuous/ppo"
	"github.com/samuelfneumann/goppo/environment/envconfig"
	"github.com/samuelfneumann/goppo/transform"
)

// RewardWindow is the number of most recent episodes over which the
// rolling average reward is computed
const RewardWindow = 20

// Config describes a complete training run
type Config struct {
	Env   envconfig.Config
	Agent ppo.Config

	Epochs             int // Epochs per run, counted after any resumed checkpoint
	RolloutBufferSize  int // Environment steps collected each epoch
	CheckpointInterval int // Epochs between checkpoints, 0 disables them

	StateScaler    transform.ScalerType
	ScalerFitSteps int
	RewardShaper   transform.ShaperType
	RescaleRewards bool

	// RescaleActions maps policy actions from [-1, 1] to the bounds of
	// the action space. Otherwise actions are clipped to the bounds.
	RescaleActions bool

	// Seed seeds the environment, state scaler fitting, and buffer
	// sampling. The policy is seeded by Agent.Seed.
	Seed uint64

	OutputDir string
	Verbose   bool // Show a progress bar over epochs
	Debug     bool // Record the policy's action distribution each step
}

// DefaultConfig returns the default training configuration on
// continuous mountain car
func DefaultConfig() Config {
	return Config{
		Env:   envconfig.NewConfig(envconfig.MountainCar, 999, 0.99),
		Agent: ppo.DefaultConfig(),

		Epochs:             30,
		RolloutBufferSize:  4096,
		CheckpointInterval: 100,

		StateScaler:    transform.Standard,
		ScalerFitSteps: transform.DefaultFitSteps,
		RescaleRewards: true,

		OutputDir: "runs",
	}
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if err := c.Env.Validate(); err != nil {
		return fmt.Errorf("validate: environment: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("validate: agent: %w", err)
	}

	if c.Epochs <= 0 {
		return fmt.Errorf("validate: epochs must be positive but got %v",
			c.Epochs)
	}
	if c.RolloutBufferSize < c.Agent.BatchSize {
		return fmt.Errorf("validate: rollout buffer size (%v) must be at "+
			"least the batch size (%v)", c.RolloutBufferSize, c.Agent.BatchSize)
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("validate: checkpoint interval must be "+
			"non-negative but got %v", c.CheckpointInterval)
	}

	if err := transform.ValidScaler(c.StateScaler); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if c.ScalerFitSteps <= 0 && fitted(c.StateScaler) {
		return fmt.Errorf("validate: state scaler %q requires positive fit "+
			"steps but got %v", c.StateScaler, c.ScalerFitSteps)
	}
	if err := transform.ValidShaper(c.RewardShaper); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	return nil
}

// fitted returns whether a scaler is fit to sampled states
func fitted(t transform.ScalerType) bool {
	switch t {
	case "", transform.NoScaling, transform.EnvBounds:
		return false
	default:
		return true
	}
}

// LoadConfig reads a JSON Config from a file. Fields missing from the
// file keep their values from DefaultConfig.
func LoadConfig(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("loadconfig: %w", err)
	}

	c := DefaultConfig()
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("loadconfig: could not parse %v: %w",
			filename, err)
	}
	return c, nil
}
