package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MLP implements a multi-layered perceptron. Every node the MLP adds to
// its graph is named with the MLP's prefix, so that more than one MLP
// can share a single graph and a single input node.
type MLP struct {
	g          *G.ExprGraph
	layers     []*fcLayer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int
	prefix     string

	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMLP creates and returns a new multi-layered perceptron with
// outputs output nodes. The graph g is populated with the MLP and a
// new input node of shape (batch, features).
//
// The MLP has len(hiddenSizes) + 1 layers. For index i,
// hiddenSizes[i] is the number of nodes in hidden layer i, biases[i]
// is true if hidden layer i has a bias unit, and activations[i] is the
// activation function of hidden layer i. A final linear layer with a
// bias unit is always added so that the MLP predicts outputs values
// per sample. The parameter init determines the weight initialization
// scheme.
func NewMLP(g *G.ExprGraph, prefix string, features, batch, outputs int,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (*MLP, error) {
	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName(prefix+"input"),
		G.WithInit(G.Zeroes()),
	)

	return NewMLPFromInput(input, prefix, outputs, hiddenSizes, biases, init,
		activations)
}

// NewMLPFromInput returns a new MLP that uses input as its input node.
// The MLP is added to the graph of the input node. See NewMLP for a
// description of the remaining arguments.
func NewMLPFromInput(input *G.Node, prefix string, outputs int,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (*MLP, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newmlp: invalid number of activations\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newmlp: invalid number of biases\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}
	if !input.IsMatrix() {
		return nil, fmt.Errorf("newmlp: input must be a matrix")
	}

	batch := input.Shape()[0]
	features := input.Shape()[1]

	// Add a final linear layer so that the network always predicts
	// outputs values
	sizes := append(append([]int{}, hiddenSizes...), outputs)
	layerBiases := append(append([]bool{}, biases...), true)
	layerActs := append(append([]*Activation{}, activations...), Identity())

	net := &MLP{
		g:           input.Graph(),
		layers:      addfcLayers(input.Graph(), features, sizes, layerBiases, layerActs, init, prefix),
		input:       input,
		numOutputs:  outputs,
		numInputs:   features,
		batchSize:   batch,
		prefix:      prefix,
		hiddenSizes: hiddenSizes,
		biases:      biases,
		activations: activations,
	}

	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("newmlp: could not compute forward pass: %w",
			err)
	}

	return net, nil
}

// CloneWithBatch clones the MLP to a new graph with a new input batch
// size. The clone's weights are equal to the MLP's weights.
func (m *MLP) CloneWithBatch(batch int) (NeuralNet, error) {
	g := G.NewGraph()
	clone, err := NewMLP(g, m.prefix, m.numInputs, batch, m.numOutputs,
		m.hiddenSizes, m.biases, G.Zeroes(), m.activations)
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: %w", err)
	}

	if err := clone.Set(m); err != nil {
		return nil, fmt.Errorf("clonewithbatch: %w", err)
	}
	return clone, nil
}

// CloneTo clones the MLP onto the graph of input, using input as the
// clone's input node. The clone's weights are equal to the MLP's
// weights.
func (m *MLP) CloneTo(input *G.Node, prefix string) (NeuralNet, error) {
	clone, err := NewMLPFromInput(input, prefix, m.numOutputs,
		m.hiddenSizes, m.biases, G.Zeroes(), m.activations)
	if err != nil {
		return nil, fmt.Errorf("cloneto: %w", err)
	}

	if err := clone.Set(m); err != nil {
		return nil, fmt.Errorf("cloneto: %w", err)
	}
	return clone, nil
}

// Graph returns the computational graph of the MLP
func (m *MLP) Graph() *G.ExprGraph {
	return m.g
}

// BatchSize returns the batch size of inputs to the MLP
func (m *MLP) BatchSize() int {
	return m.batchSize
}

// Features returns the number of features in a single input vector
func (m *MLP) Features() int {
	return m.numInputs
}

// Outputs returns the number of outputs per input vector
func (m *MLP) Outputs() int {
	return m.numOutputs
}

// Input returns the input node of the MLP
func (m *MLP) Input() *G.Node {
	return m.input
}

// SetInput sets the value of the input node before running the forward
// pass. The input is a row-major (batch, features) matrix.
func (m *MLP) SetInput(input []float64) error {
	if len(input) != m.numInputs*m.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", m.numInputs*m.batchSize, len(input))
	}

	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(m.input.Shape()...),
	)
	return G.Let(m.input, inputTensor)
}

// Set sets the weights of the MLP to be equal to the weights of
// another network with the same architecture
func (m *MLP) Set(source NeuralNet) error {
	if err := Copy(m.Learnables(), source.Learnables()); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

// Learnables returns the learnable nodes of the MLP
func (m *MLP) Learnables() G.Nodes {
	if m.learnables == nil {
		learnables := make(G.Nodes, 0, 2*len(m.layers))
		for _, layer := range m.layers {
			learnables = append(learnables, layer.learnables()...)
		}
		m.learnables = learnables
	}
	return m.learnables
}

// Model returns the learnable nodes with their gradients
func (m *MLP) Model() []G.ValueGrad {
	if m.model == nil {
		model := make([]G.ValueGrad, 0, len(m.Learnables()))
		for _, node := range m.Learnables() {
			model = append(model, node)
		}
		m.model = model
	}
	return m.model
}

// fwd performs the forward pass of the MLP on the input node
func (m *MLP) fwd(input *G.Node) (*G.Node, error) {
	if features := input.Shape()[1]; features != m.numInputs {
		return nil, fmt.Errorf("fwd: invalid shape for input to neural net:"+
			"\n\twant(%v)\n\thave(%v)", m.numInputs, features)
	}

	pred := input
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %w"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	m.prediction = pred
	G.Read(m.prediction, &m.predVal)

	return pred, nil
}

// Output returns the value of the MLP's prediction from the last
// forward pass
func (m *MLP) Output() G.Value {
	return m.predVal
}

// Prediction returns the node of the computational graph that stores
// the output of the MLP
func (m *MLP) Prediction() *G.Node {
	return m.prediction
}
