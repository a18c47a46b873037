package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Copy copies the values of the source nodes into the destination
// nodes in place. Copying in place keeps any tape machine or solver
// that references the destination values valid.
func Copy(dest, source G.Nodes) error {
	if len(dest) != len(source) {
		return fmt.Errorf("copy: invalid number of nodes\n\twant(%v)"+
			"\n\thave(%v)", len(dest), len(source))
	}

	for i := range dest {
		if err := copyData(dest[i], Data(source[i])); err != nil {
			return fmt.Errorf("copy: node %v: %w", dest[i].Name(), err)
		}
	}
	return nil
}

// Weights returns a copy of the values of each node
func Weights(nodes G.Nodes) [][]float64 {
	weights := make([][]float64, len(nodes))
	for i, node := range nodes {
		weights[i] = append([]float64{}, Data(node)...)
	}
	return weights
}

// SetWeights copies weights into the values of nodes in place
func SetWeights(nodes G.Nodes, weights [][]float64) error {
	if len(nodes) != len(weights) {
		return fmt.Errorf("setweights: invalid number of weights\n\twant(%v)"+
			"\n\thave(%v)", len(nodes), len(weights))
	}

	for i := range nodes {
		if err := copyData(nodes[i], weights[i]); err != nil {
			return fmt.Errorf("setweights: node %v: %w", nodes[i].Name(), err)
		}
	}
	return nil
}

// Data returns the backing data of a node's value. The returned slice
// aliases the node's value.
func Data(node *G.Node) []float64 {
	switch data := node.Value().Data().(type) {
	case []float64:
		return data
	case float64:
		return []float64{data}
	default:
		panic(fmt.Sprintf("data: node %v has unsupported data type %T",
			node.Name(), data))
	}
}

func copyData(node *G.Node, data []float64) error {
	dest, ok := node.Value().Data().([]float64)
	if !ok {
		return fmt.Errorf("node value is not a []float64")
	}
	if len(dest) != len(data) {
		return fmt.Errorf("invalid size\n\twant(%v)\n\thave(%v)", len(dest),
			len(data))
	}

	copy(dest, data)
	return nil
}

// Scalar returns the float64 stored in a scalar or single-element
// value
func Scalar(v G.Value) float64 {
	switch data := v.Data().(type) {
	case float64:
		return data
	case []float64:
		return data[0]
	default:
		panic(fmt.Sprintf("scalar: unsupported data type %T", data))
	}
}
