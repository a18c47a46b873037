// Package advantage implements advantage and return estimation over
// batches of transitions.
//
// Both estimators process the batch from its last element to its
// first, treating the batch order as if it were a trajectory. When a
// batch is sampled uniformly from a buffer its order is random, so the
// accumulators carry information across unrelated transitions.
package advantage

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Epsilon is added to the standard deviation when standardizing
// advantages
const Epsilon = 1e-10

// Estimator selects how advantages are estimated
type Estimator string

const (
	OneStepTD            Estimator = "onestep"
	GeneralizedAdvantage Estimator = "gae"
)

// OneStep computes one-step bootstrapped TD advantages. For each
// element i, processed from last to first, with mask = 1 - dones[i]
// and nv = nextValues[i] * mask:
//
//	returns[i]    = g
//	advantages[i] = rewards[i] + gamma*nv - values[i]
//	g             = rewards[i] + gamma*nv*mask
//
// where g starts at 0. Each return is therefore the value of g before
// it is updated for element i.
func OneStep(rewards []float64, dones []bool, values, nextValues []float64,
	gamma float64) (returns, advantages []float64, err error) {
	n := len(rewards)
	if len(dones) != n || len(values) != n || len(nextValues) != n {
		return nil, nil, fmt.Errorf("onestep: mismatched lengths: rewards "+
			"(%v), dones (%v), values (%v), next values (%v)", n, len(dones),
			len(values), len(nextValues))
	}

	returns = make([]float64, n)
	advantages = make([]float64, n)

	g := 0.0
	for i := n - 1; i >= 0; i-- {
		mask := maskOf(dones[i])
		nextValue := nextValues[i] * mask

		returns[i] = g
		advantages[i] = rewards[i] + gamma*nextValue - values[i]
		g = rewards[i] + gamma*nextValue*mask
	}

	return returns, advantages, nil
}

// GAE computes generalized advantage estimates, GAE(τ), following
// https://arxiv.org/abs/1506.02438. The argument nextValue is the
// value of the state following the last element of the batch. For
// each element i, processed from last to first:
//
//	δ          = rewards[i] + gamma*values[i+1]*mask[i] - values[i]
//	gae        = δ + gamma*tau*mask[i]*gae
//	returns[i] = gae + values[i]
//
// where values[n] = nextValue. Advantages are returns - values.
func GAE(rewards []float64, dones []bool, values []float64, nextValue,
	gamma, tau float64) (returns, advantages []float64, err error) {
	n := len(rewards)
	if len(dones) != n || len(values) != n {
		return nil, nil, fmt.Errorf("gae: mismatched lengths: rewards (%v), "+
			"dones (%v), values (%v)", n, len(dones), len(values))
	}

	extended := make([]float64, n+1)
	copy(extended, values)
	extended[n] = nextValue

	returns = make([]float64, n)
	gae := 0.0
	for i := n - 1; i >= 0; i-- {
		mask := maskOf(dones[i])
		delta := rewards[i] + gamma*extended[i+1]*mask - extended[i]
		gae = delta + gamma*tau*mask*gae
		returns[i] = gae + extended[i]
	}

	advantages = make([]float64, n)
	floats.SubTo(advantages, returns, values)

	return returns, advantages, nil
}

// Standardize returns (adv - mean(adv)) / (std(adv) + Epsilon), where
// std is the unbiased sample standard deviation. The standard
// deviation of fewer than two advantages is taken to be 0.
func Standardize(adv []float64) []float64 {
	out := make([]float64, len(adv))
	if len(adv) == 0 {
		return out
	}

	mean, std := stat.MeanStdDev(adv, nil)
	if len(adv) < 2 {
		std = 0
	}

	for i := range adv {
		out[i] = (adv[i] - mean) / (std + Epsilon)
	}
	return out
}

// maskOf returns 0 if done and 1 otherwise
func maskOf(done bool) float64 {
	if done {
		return 0.0
	}
	return 1.0
}
