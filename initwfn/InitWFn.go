// Package initwfn implements the weight initialization schemes that
// can be selected by name in a configuration file. Each scheme wraps a
// Gorgonia InitWFn so that it can be JSON serialized.
package initwfn

import (
	"encoding/json"
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Type names a weight initialization scheme
type Type string

// Available weight initialization schemes. He draws weights as in
// Kaiming He et al. (2015) and Xavier as in Glorot and Bengio (2010).
const (
	He           Type = "he"
	HeNormal     Type = "he_normal"
	Xavier       Type = "xavier"
	XavierNormal Type = "xavier_normal"
)

// aliases maps alternative scheme names onto their Type
var aliases = map[string]Type{
	"kaiming":        He,
	"he_uniform":     He,
	"kaiming_normal": HeNormal,
	"glorot":         Xavier,
	"xavier_uniform": Xavier,
	"glorot_normal":  XavierNormal,
}

// ParseType returns the Type named by name
func ParseType(name string) (Type, error) {
	switch t := Type(name); t {
	case He, HeNormal, Xavier, XavierNormal:
		return t, nil
	}
	if t, ok := aliases[name]; ok {
		return t, nil
	}
	return "", fmt.Errorf("parsetype: unknown initializer type %q", name)
}

// InitWFn wraps a Gorgonia InitWFn so that it can be JSON marshalled
// and unmarshalled.
type InitWFn struct {
	Type
	Gain float64

	initWFn G.InitWFn
}

// New returns a new InitWFn of type t scaled by gain
func New(t Type, gain float64) (*InitWFn, error) {
	t, err := ParseType(string(t))
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if gain <= 0 {
		return nil, fmt.Errorf("new: gain must be positive\n\twant(>0)"+
			"\n\thave(%v)", gain)
	}

	return &InitWFn{Type: t, Gain: gain, initWFn: create(t, gain)}, nil
}

// InitWFn returns the wrapped Gorgonia InitWFn
func (i *InitWFn) InitWFn() G.InitWFn {
	return i.initWFn
}

// String implements the fmt.Stringer interface
func (i *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: gain %v}", i.Type, i.Gain)
}

// MarshalJSON implements the json.Marshaler interface
func (i *InitWFn) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Type
		Gain float64
	}{i.Type, i.Gain})
}

// UnmarshalJSON implements the json.Unmarshaler interface. A missing
// gain defaults to 1.
func (i *InitWFn) UnmarshalJSON(data []byte) error {
	in := struct {
		Type string
		Gain *float64
	}{}
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("unmarshaljson: %w", err)
	}

	gain := 1.0
	if in.Gain != nil {
		gain = *in.Gain
	}

	init, err := New(Type(in.Type), gain)
	if err != nil {
		return fmt.Errorf("unmarshaljson: %w", err)
	}
	*i = *init

	return nil
}

// create returns the Gorgonia InitWFn for a parsed Type
func create(t Type, gain float64) G.InitWFn {
	switch t {
	case HeNormal:
		return G.HeN(gain)
	case Xavier:
		return G.GlorotU(gain)
	case XavierNormal:
		return G.GlorotN(gain)
	default:
		return G.HeU(gain)
	}
}
