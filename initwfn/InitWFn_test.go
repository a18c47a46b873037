package initwfn

import (
	"encoding/json"
	"testing"

	"gorgonia.org/tensor"
)

func TestParseType(t *testing.T) {
	tests := map[string]Type{
		"he":             He,
		"kaiming":        He,
		"he_normal":      HeNormal,
		"xavier":         Xavier,
		"xavier_uniform": Xavier,
		"xavier_normal":  XavierNormal,
	}

	for name, want := range tests {
		have, err := ParseType(name)
		if err != nil {
			t.Errorf("could not parse %q: %v", name, err)
			continue
		}
		if have != want {
			t.Errorf("illegal type for %q\n\twant(%v)\n\thave(%v)", name,
				want, have)
		}
	}

	if _, err := ParseType("orthogonal"); err == nil {
		t.Error("expected error parsing unknown initializer type")
	}
}

func TestNew(t *testing.T) {
	for _, ty := range []Type{He, HeNormal, Xavier, XavierNormal} {
		init, err := New(ty, 1.0)
		if err != nil {
			t.Fatalf("could not construct %v initializer: %v", ty, err)
		}
		if init.InitWFn() == nil {
			t.Errorf("%v initializer should wrap a gorgonia InitWFn", ty)
		}

		w, ok := init.InitWFn()(tensor.Float64, 4, 8).([]float64)
		if !ok {
			t.Fatalf("%v initializer should return []float64", ty)
		}
		if len(w) != 32 {
			t.Errorf("illegal number of weights\n\twant(%v)\n\thave(%v)",
				32, len(w))
		}
	}

	if _, err := New(He, 0); err == nil {
		t.Error("expected error constructing initializer with zero gain")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	init, err := New(Xavier, 2.0)
	if err != nil {
		t.Fatalf("could not construct initializer: %v", err)
	}

	data, err := json.Marshal(init)
	if err != nil {
		t.Fatalf("could not marshal: %v", err)
	}

	var decoded InitWFn
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("could not unmarshal %s: %v", data, err)
	}

	if decoded.Type != Xavier {
		t.Errorf("illegal type\n\twant(%v)\n\thave(%v)", Xavier, decoded.Type)
	}
	if decoded.Gain != 2.0 {
		t.Errorf("illegal gain\n\twant(%v)\n\thave(%v)", 2.0, decoded.Gain)
	}
	if decoded.InitWFn() == nil {
		t.Error("decoded initializer should wrap a gorgonia InitWFn")
	}
}

func TestUnmarshalDefaultGain(t *testing.T) {
	var decoded InitWFn
	if err := json.Unmarshal([]byte(`{"Type": "kaiming"}`), &decoded); err != nil {
		t.Fatalf("could not unmarshal: %v", err)
	}
	if decoded.Type != He {
		t.Errorf("illegal type\n\twant(%v)\n\thave(%v)", He, decoded.Type)
	}
	if decoded.Gain != 1.0 {
		t.Errorf("illegal gain\n\twant(%v)\n\thave(%v)", 1.0, decoded.Gain)
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	var decoded InitWFn
	err := json.Unmarshal([]byte(`{"Type": "Orthogonal"}`), &decoded)
	if err == nil {
		t.Error("expected error unmarshalling unknown initializer type")
	}
}
