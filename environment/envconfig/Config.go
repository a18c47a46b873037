// Package envconfig provides configuration structs for configuring
// environments with default physical parameters and tasks. Environment
// configurations in this package are JSON serializable.
package envconfig

import (
	"fmt"

	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/environment/classiccontrol/mountaincar"
	"github.com/samuelfneumann/goppo/environment/classiccontrol/pendulum"
	"github.com/samuelfneumann/goppo/environment/gym"
	"github.com/samuelfneumann/goppo/environment/linear"
	ts "github.com/samuelfneumann/goppo/timestep"
	"gonum.org/v1/gonum/spatial/r1"
)

// EnvName stores the name of environments that can be configured with
// this package
type EnvName string

// Environments available for configuration
const (
	MountainCar EnvName = "MountainCar"
	Pendulum    EnvName = "Pendulum"
	Linear      EnvName = "Linear"
	Gym         EnvName = "Gym"
)

// Config implements a specific configuration of a specific environment.
// MountainCar uses the Goal task and Pendulum uses the SwingUp task.
// When Environment is Gym, GymName selects the OpenAI Gym environment
// and EpisodeCutoff is ignored.
type Config struct {
	Environment   EnvName
	GymName       string `json:",omitempty"`
	EpisodeCutoff int
	Discount      float64
}

// NewConfig returns a new environment Config
func NewConfig(envName EnvName, episodeCutoff int, discount float64) Config {
	return Config{
		Environment:   envName,
		EpisodeCutoff: episodeCutoff,
		Discount:      discount,
	}
}

// NewGymConfig returns a new Config for an OpenAI Gym environment
func NewGymConfig(name string, discount float64) Config {
	return Config{
		Environment: Gym,
		GymName:     name,
		Discount:    discount,
	}
}

// Validate returns an error if the Config is invalid
func (c Config) Validate() error {
	switch c.Environment {
	case MountainCar, Pendulum, Linear:
		if c.EpisodeCutoff <= 0 {
			return fmt.Errorf("validate: episode cutoff must be positive "+
				"but got %v", c.EpisodeCutoff)
		}
	case Gym:
		if c.GymName == "" {
			return fmt.Errorf("validate: gym environments require a name")
		}
	default:
		return fmt.Errorf("validate: no such environment %v", c.Environment)
	}

	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount %v ∉ [0, 1]", c.Discount)
	}
	return nil
}

// Create returns the environment described by the Config as well as
// the first timestep of the environment.
func (c Config) Create(seed uint64) (env.Environment, ts.TimeStep, error) {
	if err := c.Validate(); err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	switch c.Environment {
	case MountainCar:
		bounds := []r1.Interval{{Min: -0.6, Max: -0.4}, {Min: -1e-3, Max: 1e-3}}
		s := env.NewUniformStarter(bounds, seed)
		task := mountaincar.NewGoal(s, c.EpisodeCutoff,
			mountaincar.GoalPosition)
		e, step, err := mountaincar.NewContinuous(task, c.Discount)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
		}
		return e, step, nil

	case Pendulum:
		bounds := []r1.Interval{
			{Min: -pendulum.AngleBound, Max: pendulum.AngleBound},
			{Min: -1, Max: 1},
		}
		s := env.NewUniformStarter(bounds, seed)
		task := pendulum.NewSwingUp(s, c.EpisodeCutoff)
		e, step, err := pendulum.NewContinuous(task, c.Discount)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
		}
		return e, step, nil

	case Linear:
		bounds := []r1.Interval{{Min: -linear.PositionBound,
			Max: linear.PositionBound}}
		s := env.NewUniformStarter(bounds, seed)
		e, step, err := linear.New(s, c.EpisodeCutoff, c.Discount)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
		}
		return e, step, nil

	default:
		e, step, err := gym.New(c.GymName, c.Discount, seed)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
		}
		return e, step, nil
	}
}
