// Package network implements feed forward neural networks as
// Gorgonia expression graphs
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet is a function approximator built on a Gorgonia expression
// graph. The network's prediction node is added to the graph at
// construction, so running any tape machine over the graph computes
// the network's output.
type NeuralNet interface {
	Graph() *G.ExprGraph
	CloneWithBatch(int) (NeuralNet, error)
	CloneTo(input *G.Node, prefix string) (NeuralNet, error)
	BatchSize() int
	Features() int
	Outputs() int
	Input() *G.Node
	SetInput([]float64) error
	Set(NeuralNet) error
	Learnables() G.Nodes
	Model() []G.ValueGrad
	Output() G.Value
	Prediction() *G.Node
}
