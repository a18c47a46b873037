package network

import (
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
)

func newTestMLP(t *testing.T, batch int) *MLP {
	g := G.NewGraph()
	net, err := NewMLP(g, "test_", 3, batch, 2, []int{4, 4},
		[]bool{true, true}, G.GlorotU(1.0), []*Activation{TanH(), ReLU()})
	if err != nil {
		t.Fatalf("could not construct mlp: %v", err)
	}
	return net
}

func run(t *testing.T, net NeuralNet, input []float64) []float64 {
	if err := net.SetInput(input); err != nil {
		t.Fatalf("could not set input: %v", err)
	}

	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("could not run forward pass: %v", err)
	}

	out := append([]float64{}, net.Output().Data().([]float64)...)
	return out
}

func TestShapes(t *testing.T) {
	net := newTestMLP(t, 5)

	if have := net.Prediction().Shape(); have[0] != 5 || have[1] != 2 {
		t.Errorf("illegal prediction shape\n\twant(%v)\n\thave(%v)",
			[]int{5, 2}, have)
	}

	// Two hidden layers and one output layer, each with a bias
	if have := len(net.Learnables()); have != 6 {
		t.Errorf("illegal number of learnables\n\twant(%v)\n\thave(%v)", 6,
			have)
	}

	if err := net.SetInput(make([]float64, 4)); err == nil {
		t.Error("expected error setting input of illegal size")
	}
}

func TestCloneWithBatchPredictsEqually(t *testing.T) {
	net := newTestMLP(t, 1)
	clone, err := net.CloneWithBatch(2)
	if err != nil {
		t.Fatalf("could not clone: %v", err)
	}

	input := []float64{0.1, -0.5, 2.0}
	want := run(t, net, input)
	have := run(t, clone, append(append([]float64{}, input...), input...))

	for i := range have {
		if math.Abs(have[i]-want[i%2]) > 1e-12 {
			t.Errorf("illegal clone prediction at %v\n\twant(%v)\n\thave(%v)",
				i, want[i%2], have[i])
		}
	}
}

func TestCloneToSharesInput(t *testing.T) {
	net := newTestMLP(t, 2)

	g := G.NewGraph()
	input := G.NewMatrix(g, G.Float64, G.WithShape(2, 3), G.WithName("x"),
		G.WithInit(G.Zeroes()))
	first, err := net.CloneTo(input, "first_")
	if err != nil {
		t.Fatalf("could not clone: %v", err)
	}
	second, err := net.CloneTo(input, "second_")
	if err != nil {
		t.Fatalf("could not clone: %v", err)
	}

	if first.Input() != second.Input() {
		t.Error("clones should share the same input node")
	}
	if first.Graph() != g || second.Graph() != g {
		t.Error("clones should be added to the graph of the input node")
	}
}

func TestSetCopiesInPlace(t *testing.T) {
	source := newTestMLP(t, 1)
	dest := newTestMLP(t, 1)

	before := Data(dest.Learnables()[0])
	if err := dest.Set(source); err != nil {
		t.Fatalf("could not set weights: %v", err)
	}

	after := Data(dest.Learnables()[0])
	if &before[0] != &after[0] {
		t.Error("set should not replace the backing data of the weights")
	}

	want := Weights(source.Learnables())
	have := Weights(dest.Learnables())
	for i := range want {
		for j := range want[i] {
			if want[i][j] != have[i][j] {
				t.Fatalf("illegal weight at (%v, %v)\n\twant(%v)\n\thave(%v)",
					i, j, want[i][j], have[i][j])
			}
		}
	}
}

func TestSetWeightsValidatesSize(t *testing.T) {
	net := newTestMLP(t, 1)
	weights := Weights(net.Learnables())
	weights[0] = weights[0][1:]

	if err := SetWeights(net.Learnables(), weights); err == nil {
		t.Error("expected error setting weights of illegal size")
	}
	if err := SetWeights(net.Learnables(), weights[1:]); err == nil {
		t.Error("expected error setting illegal number of weights")
	}
}
