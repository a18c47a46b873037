// Package solver implements gradient descent solvers over Gorgonia
// models, learning rate schedules, and functionality to JSON serialize
// solvers into configuration files.
package solver

import (
	"encoding/json"
	"fmt"
	"reflect"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	Vanilla Type = "Vanilla"
)

// Interface is a Gorgonia solver whose learning rate can be changed
// between steps and whose internal state can be gobbed. Step zeroes the
// gradients of the model after updating it.
type Interface interface {
	G.Solver
	LearningRate() float64
	SetLearningRate(float64)
	GobEncode() ([]byte, error)
	GobDecode([]byte) error
}

// Solver wraps solvers so that they can be JSON marshalled and
// unmarshalled.
type Solver struct {
	Interface `json:"-"`
	Type
	Config
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, fmt.Errorf("newsolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	solver := Solver{Type: t, Config: c}
	solver.Interface = solver.Config.Create()

	return &solver, nil
}

// MarshalJSON implements the json.Marshaler interface
func (s *Solver) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   Type
		Config Config
	}{s.Type, s.Config})
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (s *Solver) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(
		data,
		"Type",
		"Config",
		map[Type]reflect.Type{
			Vanilla: reflect.TypeOf(VanillaConfig{}),
			Adam:    reflect.TypeOf(AdamConfig{}),
		})
	if err != nil {
		return fmt.Errorf("unmarshaljson: %w", err)
	}

	s.Type = typeName
	s.Config = config
	s.Interface = s.Config.Create()

	return nil
}

// unmarshalConfig uses reflection to unmarshall a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJSONField, valueJSONField string,
	customTypes map[Type]reflect.Type) (Config, Type, error) {
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	var typeName Type
	if err := json.Unmarshal(m[typeJSONField], &typeName); err != nil {
		return nil, "", fmt.Errorf("could not read solver type: %w", err)
	}

	ty, found := customTypes[typeName]
	if !found {
		return nil, "", fmt.Errorf("unknown solver type %q", typeName)
	}
	value := reflect.New(ty).Interface()

	if err := json.Unmarshal(m[valueJSONField], value); err != nil {
		return nil, "", err
	}

	return reflect.ValueOf(value).Elem().Interface().(Config), typeName, nil
}

// Config implements a solver configuration and can be used to create
// the solvers they describe.
type Config interface {
	Create() Interface

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool
}
