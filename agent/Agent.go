// Package agent defines an agent interface
package agent

import (
	"github.com/samuelfneumann/goppo/buffer/trajectory"
	"gonum.org/v1/gonum/mat"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights from
// collected trajectories, a Policy which chooses actions in each
// state, and a ValueFunction which predicts the value of states. The
// Policy and ValueFunction used to collect data should be synchronized
// with the weights of the Learner after each update.
type Agent interface {
	Learner
	Policy
	ValueFunction
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Update performs an update of the learner's weights using the
	// transitions stored in the buffer
	Update(buf *trajectory.Buffer) error
}

// Policy represents a stochastic policy over continuous actions.
//
// Agents usually have a behaviour policy, used for collecting data,
// and a policy that is learned. For a given agent, the behaviour
// policy should be updated to the learned weights after the learner
// updates its weights.
type Policy interface {
	// Distribution returns the distribution over actions in the
	// argument observation
	Distribution(obs mat.Vector) (Distribution, error)

	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Distribution is a distribution over continuous actions
type Distribution interface {
	Sample() *mat.VecDense
	LogProb(action mat.Vector) float64
	Mean() *mat.VecDense
	StdDev() *mat.VecDense
	Entropy() float64
}

// ValueFunction predicts the value of an observation
type ValueFunction interface {
	Value(obs mat.Vector) (float64, error)
}
