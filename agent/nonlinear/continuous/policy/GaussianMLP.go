// Package policy implements policies using nonlinear function
// approximation over continuous actions
package policy

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/network"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Prefix is prepended to the names of all nodes a GaussianMLP adds to
// its graph
const Prefix = "policy_"

// GaussianMLP implements a Gaussian policy with a diagonal covariance.
// The mean of the policy is predicted by an MLP, and the log standard
// deviation of each action dimension is a learnable parameter that
// does not depend on the state.
//
// A GaussianMLP with a batch size of 1 can be used for action
// selection through Distribution(). A GaussianMLP of any batch size
// provides nodes for computing the log probability of a batch of
// actions and the policy's entropy, which can be used to construct
// policy gradient objectives on the policy's graph.
type GaussianMLP struct {
	net        *network.MLP
	logStd     *G.Node // (1, actionDims)
	batchStd   *G.Node // log standard deviation per batch element
	actionDims int

	meanVal   G.Value
	logStdVal G.Value

	vm     G.VM
	source rand.Source
	eval   bool
}

// NewGaussianMLP returns a new GaussianMLP which takes input as its
// input node. The policy is added to the graph of the input node, and
// its batch size is the number of rows of input. The mean network is
// defined by hiddenSizes, biases, activations, and init, see
// network.NewMLP for details. Each dimension of the log standard
// deviation starts at initLogStd. The seed determines the randomness
// of actions sampled from distributions returned by Distribution().
func NewGaussianMLP(input *G.Node, actionDims int, hiddenSizes []int,
	biases []bool, activations []*network.Activation, init G.InitWFn,
	initLogStd float64, seed uint64) (*GaussianMLP, error) {
	net, err := network.NewMLPFromInput(input, Prefix, actionDims,
		hiddenSizes, biases, init, activations)
	if err != nil {
		return nil, fmt.Errorf("newgaussianmlp: could not create mean "+
			"network: %w", err)
	}

	g := input.Graph()
	logStd := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(1, actionDims),
		G.WithName(Prefix+"logstd"),
		G.WithInit(G.ValuesOf(initLogStd)),
	)

	// Broadcast the log standard deviation to each element of the
	// batch through a product with a column of ones
	ones := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(net.BatchSize(), 1),
		G.WithName(Prefix+"ones"),
		G.WithInit(G.Ones()),
	)
	batchStd, err := G.Mul(ones, logStd)
	if err != nil {
		return nil, fmt.Errorf("newgaussianmlp: could not broadcast log "+
			"standard deviation: %w", err)
	}

	pol := &GaussianMLP{
		net:        net,
		logStd:     logStd,
		batchStd:   batchStd,
		actionDims: actionDims,
		source:     rand.NewSource(seed),
	}

	G.Read(net.Prediction(), &pol.meanVal)
	G.Read(logStd, &pol.logStdVal)

	return pol, nil
}

// NewGaussianMLPWithBatch returns a new GaussianMLP on a new graph with
// a new input node of shape (batch, features). See NewGaussianMLP for
// details on the remaining arguments.
func NewGaussianMLPWithBatch(features, batch, actionDims int,
	hiddenSizes []int, biases []bool, activations []*network.Activation,
	init G.InitWFn, initLogStd float64, seed uint64) (*GaussianMLP, error) {
	input := G.NewMatrix(
		G.NewGraph(),
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName(Prefix+"input"),
		G.WithInit(G.Zeroes()),
	)

	return NewGaussianMLP(input, actionDims, hiddenSizes, biases,
		activations, init, initLogStd, seed)
}

// Mean returns the node that computes the mean of the policy in each
// input state
func (g *GaussianMLP) Mean() *G.Node {
	return g.net.Prediction()
}

// LogStd returns the learnable log standard deviation node
func (g *GaussianMLP) LogStd() *G.Node {
	return g.logStd
}

// LogProb adds nodes to the policy's graph which compute the log
// probability density of actions under the policy, summed across
// action dimensions. The actions node should be of shape
// (batch, actionDims). The returned node is a vector of size batch.
func (g *GaussianMLP) LogProb(actions *G.Node) (*G.Node, error) {
	if actions.Graph() != g.net.Graph() {
		return nil, fmt.Errorf("logprob: actions must be on the policy graph")
	}

	// z = (a - μ) / σ
	diff, err := G.Sub(actions, g.Mean())
	if err != nil {
		return nil, fmt.Errorf("logprob: %w", err)
	}
	std, err := G.Exp(g.batchStd)
	if err != nil {
		return nil, fmt.Errorf("logprob: %w", err)
	}
	z, err := G.HadamardDiv(diff, std)
	if err != nil {
		return nil, fmt.Errorf("logprob: %w", err)
	}

	// log N(a; μ, σ) = -z²/2 - log σ - log(2π)/2
	sq, err := G.Square(z)
	if err != nil {
		return nil, fmt.Errorf("logprob: %w", err)
	}
	logProb, err := G.Mul(sq, G.NewConstant(-0.5))
	if err != nil {
		return nil, fmt.Errorf("logprob: %w", err)
	}
	if logProb, err = G.Sub(logProb, g.batchStd); err != nil {
		return nil, fmt.Errorf("logprob: %w", err)
	}
	logNorm := G.NewConstant(0.5 * math.Log(2*math.Pi))
	if logProb, err = G.Sub(logProb, logNorm); err != nil {
		return nil, fmt.Errorf("logprob: %w", err)
	}

	return G.Sum(logProb, 1)
}

// Entropy returns a node which computes the entropy of each action
// dimension of the policy in each input state. The returned node has
// shape (batch, actionDims).
func (g *GaussianMLP) Entropy() (*G.Node, error) {
	// H = 1/2 + log(2π)/2 + log σ
	entropy, err := G.Add(g.batchStd, G.NewConstant(0.5+0.5*math.Log(2*math.Pi)))
	if err != nil {
		return nil, fmt.Errorf("entropy: %w", err)
	}
	return entropy, nil
}

// Distribution returns the distribution over actions in the argument
// observation. Distribution can only be called on policies with a
// batch size of 1.
func (g *GaussianMLP) Distribution(obs mat.Vector) (agent.Distribution,
	error) {
	if g.net.BatchSize() != 1 {
		return nil, fmt.Errorf("distribution: policy batch size must be 1 "+
			"but got %v", g.net.BatchSize())
	}

	input := make([]float64, obs.Len())
	for i := range input {
		input[i] = obs.AtVec(i)
	}
	if err := g.net.SetInput(input); err != nil {
		return nil, fmt.Errorf("distribution: %w", err)
	}

	// Tape machines are only constructed for action selection, so that
	// batch policies used for learning never hold one
	if g.vm == nil {
		g.vm = G.NewTapeMachine(g.net.Graph())
	}
	if err := g.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("distribution: could not run policy: %w", err)
	}
	defer g.vm.Reset()

	mean := append([]float64{}, g.meanVal.Data().([]float64)...)
	std := append([]float64{}, g.logStdVal.Data().([]float64)...)
	for i := range std {
		std[i] = math.Exp(std[i])
	}

	return NewDiagonalGaussian(mean, std, g.source)
}

// Set sets the weights of the policy to the weights of another policy
// with the same architecture
func (g *GaussianMLP) Set(source *GaussianMLP) error {
	if err := network.Copy(g.Learnables(), source.Learnables()); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

// Network returns the network that predicts the policy mean
func (g *GaussianMLP) Network() network.NeuralNet {
	return g.net
}

// Learnables returns the learnable nodes of the policy
func (g *GaussianMLP) Learnables() G.Nodes {
	learnables := append(G.Nodes{}, g.net.Learnables()...)
	return append(learnables, g.logStd)
}

// Model returns the learnable nodes of the policy with their gradients
func (g *GaussianMLP) Model() []G.ValueGrad {
	return append(append([]G.ValueGrad{}, g.net.Model()...), g.logStd)
}

// ActionDims returns the number of action dimensions
func (g *GaussianMLP) ActionDims() int {
	return g.actionDims
}

// Eval sets the policy to evaluation mode. The policy has no layers
// which behave differently in evaluation mode, actions are sampled in
// both modes.
func (g *GaussianMLP) Eval() {
	g.eval = true
}

// Train sets the policy to training mode
func (g *GaussianMLP) Train() {
	g.eval = false
}

// IsEval returns whether the policy is in evaluation mode
func (g *GaussianMLP) IsEval() bool {
	return g.eval
}

// Close releases the resources of the policy's tape machine
func (g *GaussianMLP) Close() error {
	if g.vm == nil {
		return nil
	}
	return g.vm.Close()
}
