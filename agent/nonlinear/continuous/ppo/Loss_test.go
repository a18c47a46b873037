package ppo

import (
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// runNodes binds the argument inputs, runs the graph, and returns the
// values of outputs
func runNodes(t *testing.T, g *G.ExprGraph, inputs map[*G.Node][]float64,
	outputs ...*G.Node) [][]float64 {
	vals := make([]G.Value, len(outputs))
	for i := range outputs {
		G.Read(outputs[i], &vals[i])
	}

	for node, data := range inputs {
		err := G.Let(node, tensor.New(tensor.WithBacking(data),
			tensor.WithShape(node.Shape()...)))
		if err != nil {
			t.Fatalf("could not bind input: %v", err)
		}
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("could not run graph: %v", err)
	}

	out := make([][]float64, len(vals))
	for i := range vals {
		out[i] = append([]float64{}, vals[i].Data().([]float64)...)
	}
	return out
}

func TestClippedSurrogate(t *testing.T) {
	const eps = 0.2
	ratios := []float64{0.5, 0.9, 1.0, 1.1, 1.5, 0.5, 1.5, 1.0}
	advs := []float64{1, 1, 1, 1, 1, -1, -1, -2}

	g := G.NewGraph()
	ratio := G.NewVector(g, tensor.Float64, G.WithShape(len(ratios)),
		G.WithName("ratio"), G.WithInit(G.Zeroes()))
	adv := G.NewVector(g, tensor.Float64, G.WithShape(len(advs)),
		G.WithName("adv"), G.WithInit(G.Zeroes()))

	surr1, surr2, obj, err := ClippedSurrogate(ratio, adv, eps)
	if err != nil {
		t.Fatalf("could not construct surrogate: %v", err)
	}

	out := runNodes(t, g, map[*G.Node][]float64{ratio: ratios, adv: advs},
		surr1, surr2, obj)

	for i := range ratios {
		clipped := math.Max(1-eps, math.Min(ratios[i], 1+eps))
		want1 := ratios[i] * advs[i]
		want2 := clipped * advs[i]
		wantObj := math.Min(want1, want2)

		if math.Abs(out[0][i]-want1) > 1e-12 {
			t.Errorf("illegal surr1 at %v\n\twant(%v)\n\thave(%v)", i, want1,
				out[0][i])
		}
		if math.Abs(out[1][i]-want2) > 1e-12 {
			t.Errorf("illegal surr2 at %v\n\twant(%v)\n\thave(%v)", i, want2,
				out[1][i])
		}
		if math.Abs(out[2][i]-wantObj) > 1e-12 {
			t.Errorf("illegal objective at %v\n\twant(%v)\n\thave(%v)", i,
				wantObj, out[2][i])
		}

		// The objective never exceeds the unclipped surrogate
		if out[2][i] > want1+1e-12 {
			t.Errorf("objective %v exceeds unclipped surrogate %v", out[2][i],
				want1)
		}
	}
}

func TestSmoothL1(t *testing.T) {
	diffs := []float64{0, 0.5, -0.5, 1, 2, -3}

	g := G.NewGraph()
	diff := G.NewVector(g, tensor.Float64, G.WithShape(len(diffs)),
		G.WithName("diff"), G.WithInit(G.Zeroes()))
	loss, err := smoothL1(diff)
	if err != nil {
		t.Fatalf("could not construct loss: %v", err)
	}

	out := runNodes(t, g, map[*G.Node][]float64{diff: diffs}, loss)
	for i, d := range diffs {
		want := math.Abs(d) - 0.5
		if math.Abs(d) < 1 {
			want = 0.5 * d * d
		}
		if math.Abs(out[0][i]-want) > 1e-12 {
			t.Errorf("illegal loss for %v\n\twant(%v)\n\thave(%v)", d, want,
				out[0][i])
		}
	}
}
