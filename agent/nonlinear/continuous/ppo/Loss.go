package ppo

import (
	"fmt"

	"github.com/samuelfneumann/goppo/agent/nonlinear/continuous/policy"
	"github.com/samuelfneumann/goppo/network"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// minNode adds nodes to the graph computing the element-wise minimum
// of a and b as (a + b - |a - b|) / 2. Either argument may be a scalar.
func minNode(a, b *G.Node) (*G.Node, error) {
	return extremum(a, b, G.Sub)
}

// maxNode adds nodes to the graph computing the element-wise maximum
// of a and b as (a + b + |a - b|) / 2. Either argument may be a scalar.
func maxNode(a, b *G.Node) (*G.Node, error) {
	return extremum(a, b, G.Add)
}

func extremum(a, b *G.Node,
	combine func(x, y *G.Node) (*G.Node, error)) (*G.Node, error) {
	sum, err := G.Add(a, b)
	if err != nil {
		return nil, err
	}
	diff, err := G.Sub(a, b)
	if err != nil {
		return nil, err
	}
	abs, err := G.Abs(diff)
	if err != nil {
		return nil, err
	}
	out, err := combine(sum, abs)
	if err != nil {
		return nil, err
	}
	return G.Mul(out, G.NewConstant(0.5))
}

// clamp adds nodes to the graph clipping each element of x to
// [low, high]
func clamp(x *G.Node, low, high float64) (*G.Node, error) {
	lower, err := maxNode(x, G.NewConstant(low))
	if err != nil {
		return nil, err
	}
	return minNode(lower, G.NewConstant(high))
}

// ClippedSurrogate adds the PPO clipped surrogate objective to the
// graph of the ratio and advantage nodes. Given the probability ratio
// r of the new and old policies, the advantages A, and the clipping
// parameter ε:
//
//	surr1     = r * A
//	surr2     = clip(r, 1 - ε, 1 + ε) * A
//	objective = min(surr1, surr2)
//
// All returned nodes have the shape of ratio.
func ClippedSurrogate(ratio, adv *G.Node, eps float64) (surr1, surr2,
	objective *G.Node, err error) {
	if surr1, err = G.HadamardProd(ratio, adv); err != nil {
		return nil, nil, nil, fmt.Errorf("clippedsurrogate: %w", err)
	}

	clipped, err := clamp(ratio, 1-eps, 1+eps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("clippedsurrogate: could not clip "+
			"ratio: %w", err)
	}
	if surr2, err = G.HadamardProd(clipped, adv); err != nil {
		return nil, nil, nil, fmt.Errorf("clippedsurrogate: %w", err)
	}

	if objective, err = minNode(surr1, surr2); err != nil {
		return nil, nil, nil, fmt.Errorf("clippedsurrogate: %w", err)
	}
	return surr1, surr2, objective, nil
}

// smoothL1 adds nodes computing the element-wise smooth L1 loss of diff
// with a threshold of 1:
//
//	0.5 * d²     if |d| < 1
//	|d| - 0.5    otherwise
//
// computed as 0.5 * min(|d|, 1)² + (|d| - min(|d|, 1)).
func smoothL1(diff *G.Node) (*G.Node, error) {
	abs, err := G.Abs(diff)
	if err != nil {
		return nil, err
	}
	quadratic, err := minNode(abs, G.NewConstant(1.0))
	if err != nil {
		return nil, err
	}

	sq, err := G.Square(quadratic)
	if err != nil {
		return nil, err
	}
	sq, err = G.Mul(sq, G.NewConstant(0.5))
	if err != nil {
		return nil, err
	}

	linear, err := G.Sub(abs, quadratic)
	if err != nil {
		return nil, err
	}
	return G.Add(sq, linear)
}

// objective holds the loss nodes of the PPO training graph
type objective struct {
	// Inputs
	actions     *G.Node
	oldLogProbs *G.Node
	advantages  *G.Node
	returns     *G.Node

	policyLoss  *G.Node
	entropyLoss *G.Node
	valueLoss   *G.Node
	cost        *G.Node
}

// newObjective adds the PPO losses to the graph of the argument policy
// and value function, which must share a graph and have equal batch
// sizes:
//
//	policy loss  = -mean(min(surr1, surr2))
//	entropy loss = -entropyCoef * mean(entropy)
//	value loss   = mean(loss(returns - V(s)))
//
// where the value loss is the smooth L1 loss if l1 is true and the
// squared error otherwise. The graph's cost is the unweighted sum of
// the three losses. Since the policy and value function have disjoint
// parameters, weighting the value loss is equivalent to scaling the
// value function gradients after the backward pass.
func newObjective(pol *policy.GaussianMLP, valueFn *network.MLP,
	clipEpsilon, entropyCoef float64, l1 bool) (*objective, error) {
	g := valueFn.Graph()
	if pol.Network().Graph() != g {
		return nil, fmt.Errorf("newobjective: policy and value function " +
			"must share a graph")
	}
	batch := valueFn.BatchSize()

	obj := &objective{
		actions: G.NewMatrix(g, tensor.Float64,
			G.WithShape(batch, pol.ActionDims()), G.WithName("actions"),
			G.WithInit(G.Zeroes())),
		oldLogProbs: G.NewVector(g, tensor.Float64, G.WithShape(batch),
			G.WithName("oldLogProbs"), G.WithInit(G.Zeroes())),
		advantages: G.NewVector(g, tensor.Float64, G.WithShape(batch),
			G.WithName("advantages"), G.WithInit(G.Zeroes())),
		returns: G.NewVector(g, tensor.Float64, G.WithShape(batch),
			G.WithName("returns"), G.WithInit(G.Zeroes())),
	}

	// Policy loss
	logProbs, err := pol.LogProb(obj.actions)
	if err != nil {
		return nil, fmt.Errorf("newobjective: %w", err)
	}
	logRatio := G.Must(G.Sub(logProbs, obj.oldLogProbs))
	ratio := G.Must(G.Exp(logRatio))
	_, _, surrogate, err := ClippedSurrogate(ratio, obj.advantages, clipEpsilon)
	if err != nil {
		return nil, fmt.Errorf("newobjective: %w", err)
	}
	obj.policyLoss = G.Must(G.Neg(G.Must(G.Mean(surrogate))))

	// Entropy loss
	entropy, err := pol.Entropy()
	if err != nil {
		return nil, fmt.Errorf("newobjective: %w", err)
	}
	obj.entropyLoss = G.Must(G.Mul(G.Must(G.Mean(entropy)),
		G.NewConstant(-entropyCoef)))

	// Value loss
	values := G.Must(G.Reshape(valueFn.Prediction(), tensor.Shape{batch}))
	diff := G.Must(G.Sub(obj.returns, values))
	var elementLoss *G.Node
	if l1 {
		elementLoss, err = smoothL1(diff)
	} else {
		elementLoss, err = G.Square(diff)
	}
	if err != nil {
		return nil, fmt.Errorf("newobjective: could not compute value "+
			"loss: %w", err)
	}
	obj.valueLoss = G.Must(G.Mean(elementLoss))

	obj.cost = G.Must(G.Add(obj.policyLoss, obj.entropyLoss))
	obj.cost = G.Must(G.Add(obj.cost, obj.valueLoss))

	return obj, nil
}
