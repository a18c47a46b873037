// Package ppo implements Proximal Policy Optimization with a clipped
// surrogate objective over continuous actions,
// https://arxiv.org/abs/1707.06347
package ppo

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/agent/nonlinear/continuous/policy"
	"github.com/samuelfneumann/goppo/buffer/advantage"
	"github.com/samuelfneumann/goppo/experiment/tracker"
	"github.com/samuelfneumann/goppo/network"
	"github.com/samuelfneumann/goppo/solver"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ValuePrefix is prepended to the names of all nodes of the value
// function
const ValuePrefix = "value_"

// PPO implements the Proximal Policy Optimization algorithm with a
// Gaussian policy and a state value function, each parameterized by an
// MLP.
//
// PPO keeps three copies of its networks. The behaviour policy and
// value function have a batch size of 1 and are used to act and to
// evaluate single states. The training graph holds batch copies of the
// policy and value function, which share a single states input, along
// with the PPO losses. A separate batch value predictor evaluates
// sampled states before each gradient step. Only the training graph is
// updated by the solvers, the other copies are synchronized from it.
type PPO struct {
	logger zerolog.Logger
	sink   tracker.Sink

	behaviour *policy.GaussianMLP
	valueFn   *network.MLP
	valueVM   G.VM

	trainPolicy  *policy.GaussianMLP
	trainValueFn *network.MLP
	obj          *objective
	trainVM      G.VM

	policyLossVal  G.Value
	entropyLossVal G.Value
	valueLossVal   G.Value

	predictor   *network.MLP
	predictorVM G.VM

	policySolver    solver.Interface
	valueSolver     solver.Interface
	policyScheduler *solver.Scheduler
	valueScheduler  *solver.Scheduler
	vfCoef          *VFCoef

	estimator   advantage.Estimator
	batchSize   int
	sgdIters    int
	gamma       float64
	tau         float64
	maxGradNorm float64

	features   int
	actionDims int
	iterations int
}

// New returns a new PPO agent for observations with features
// dimensions and actions with actionDims dimensions. Metrics of each
// gradient step are recorded to sink, which may be nil.
func New(features, actionDims int, c Config, sink tracker.Sink,
	logger zerolog.Logger) (*PPO, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: invalid config: %w", err)
	}
	if sink == nil {
		sink = tracker.Nop{}
	}
	init := c.InitWFn.InitWFn()

	// Behaviour networks
	behaviour, err := policy.NewGaussianMLPWithBatch(features, 1, actionDims,
		c.PolicyLayers, c.PolicyBiases, c.PolicyActivations, init,
		c.InitLogStd, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour policy: %w",
			err)
	}
	valueFn, err := network.NewMLP(G.NewGraph(), ValuePrefix, features, 1, 1,
		c.ValueFnLayers, c.ValueFnBiases, init, c.ValueFnActivations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create value function: %w",
			err)
	}

	// Training graph
	g := G.NewGraph()
	states := G.NewMatrix(g, tensor.Float64, G.WithShape(c.BatchSize, features),
		G.WithName("states"), G.WithInit(G.Zeroes()))
	trainPolicy, err := policy.NewGaussianMLP(states, actionDims,
		c.PolicyLayers, c.PolicyBiases, c.PolicyActivations, G.Zeroes(),
		c.InitLogStd, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create training policy: %w",
			err)
	}
	if err := trainPolicy.Set(behaviour); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	trainValue, err := valueFn.CloneTo(states, ValuePrefix)
	if err != nil {
		return nil, fmt.Errorf("new: could not create training value "+
			"function: %w", err)
	}

	obj, err := newObjective(trainPolicy, trainValue.(*network.MLP),
		c.ClipEpsilon, c.EntropyCoef, c.L1Loss)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	learnables := append(G.Nodes{}, trainPolicy.Learnables()...)
	learnables = append(learnables, trainValue.Learnables()...)
	if _, err := G.Grad(obj.cost, learnables...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %w", err)
	}

	// Batch value predictor
	predictor, err := valueFn.CloneWithBatch(c.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create value predictor: %w",
			err)
	}

	policySolver := c.PolicySolver.Config.Create()
	valueSolver := c.VSolver.Config.Create()
	policyScheduler, err := solver.NewScheduler(c.Scheduler, policySolver,
		c.ExponentialGamma, c.CosineTMax)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	valueScheduler, err := solver.NewScheduler(c.Scheduler, valueSolver,
		c.ExponentialGamma, c.CosineTMax)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	p := &PPO{
		logger: logger.With().Str("component", "ppo").Logger(),
		sink:   sink,

		behaviour: behaviour,
		valueFn:   valueFn,

		trainPolicy:  trainPolicy,
		trainValueFn: trainValue.(*network.MLP),
		obj:          obj,

		predictor: predictor.(*network.MLP),

		policySolver:    policySolver,
		valueSolver:     valueSolver,
		policyScheduler: policyScheduler,
		valueScheduler:  valueScheduler,
		vfCoef:          NewVFCoef(c.VFCoef),

		estimator:   c.Estimator(),
		batchSize:   c.BatchSize,
		sgdIters:    c.SGDIters,
		gamma:       c.Gamma,
		tau:         c.Tau,
		maxGradNorm: c.MaxGradNorm,

		features:   features,
		actionDims: actionDims,
	}

	G.Read(obj.policyLoss, &p.policyLossVal)
	G.Read(obj.entropyLoss, &p.entropyLossVal)
	G.Read(obj.valueLoss, &p.valueLossVal)

	p.trainVM = G.NewTapeMachine(g, G.BindDualValues(learnables...))
	p.valueVM = G.NewTapeMachine(valueFn.Graph())
	p.predictorVM = G.NewTapeMachine(p.predictor.Graph())

	return p, nil
}

// Distribution returns the distribution of the behaviour policy over
// actions in the argument observation
func (p *PPO) Distribution(obs mat.Vector) (agent.Distribution, error) {
	return p.behaviour.Distribution(obs)
}

// Value returns the value of an observation predicted by the behaviour
// value function
func (p *PPO) Value(obs mat.Vector) (float64, error) {
	input := make([]float64, obs.Len())
	for i := range input {
		input[i] = obs.AtVec(i)
	}
	if err := p.valueFn.SetInput(input); err != nil {
		return 0, fmt.Errorf("value: %w", err)
	}

	if err := p.valueVM.RunAll(); err != nil {
		return 0, fmt.Errorf("value: could not run value function: %w", err)
	}
	defer p.valueVM.Reset()

	return network.Scalar(p.valueFn.Output()), nil
}

// Eval sets the agent to evaluation mode
func (p *PPO) Eval() {
	p.behaviour.Eval()
	p.trainPolicy.Eval()
}

// Train sets the agent to training mode
func (p *PPO) Train() {
	p.behaviour.Train()
	p.trainPolicy.Train()
}

// IsEval returns whether the agent is in evaluation mode
func (p *PPO) IsEval() bool {
	return p.behaviour.IsEval()
}

// VFCoef returns the current value loss coefficient
func (p *PPO) VFCoef() float64 {
	return p.vfCoef.Value()
}

// Iterations returns the total number of gradient steps taken
func (p *PPO) Iterations() int {
	return p.iterations
}

// Close releases the resources of the agent's tape machines
func (p *PPO) Close() error {
	var firstErr error
	for _, closer := range []interface{ Close() error }{
		p.trainVM, p.valueVM, p.predictorVM, p.behaviour,
	} {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sync sets the behaviour policy and value function to the weights of
// the training graph
func (p *PPO) sync() error {
	if err := p.behaviour.Set(p.trainPolicy); err != nil {
		return fmt.Errorf("sync: could not set behaviour policy: %w", err)
	}
	if err := p.valueFn.Set(p.trainValueFn); err != nil {
		return fmt.Errorf("sync: could not set value function: %w", err)
	}
	return nil
}

// checkpoint is the gob representation of a PPO agent's learned state
type checkpoint struct {
	Policy  [][]float64
	ValueFn [][]float64

	PolicySolver []byte
	ValueSolver  []byte

	PolicySchedulerSteps int
	ValueSchedulerSteps  int

	VFCoef     float64
	Iterations int
}

// GobEncode implements the gob.GobEncoder interface. The weights,
// solver states, scheduler steps, and value loss coefficient are
// encoded, the architecture is given by the agent's configuration.
func (p *PPO) GobEncode() ([]byte, error) {
	policySolver, err := p.policySolver.GobEncode()
	if err != nil {
		return nil, fmt.Errorf("gobencode: could not encode policy solver: "+
			"%w", err)
	}
	valueSolver, err := p.valueSolver.GobEncode()
	if err != nil {
		return nil, fmt.Errorf("gobencode: could not encode value solver: "+
			"%w", err)
	}

	c := checkpoint{
		Policy:               network.Weights(p.trainPolicy.Learnables()),
		ValueFn:              network.Weights(p.trainValueFn.Learnables()),
		PolicySolver:         policySolver,
		ValueSolver:          valueSolver,
		PolicySchedulerSteps: p.policyScheduler.Steps(),
		ValueSchedulerSteps:  p.valueScheduler.Steps(),
		VFCoef:               p.vfCoef.Value(),
		Iterations:           p.iterations,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("gobencode: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. GobDecode must be
// called on an agent constructed with the configuration of the encoded
// agent.
func (p *PPO) GobDecode(in []byte) error {
	var c checkpoint
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&c); err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}

	if err := network.SetWeights(p.trainPolicy.Learnables(), c.Policy); err != nil {
		return fmt.Errorf("gobdecode: could not restore policy: %w", err)
	}
	if err := network.SetWeights(p.trainValueFn.Learnables(), c.ValueFn); err != nil {
		return fmt.Errorf("gobdecode: could not restore value function: %w",
			err)
	}

	if err := p.policySolver.GobDecode(c.PolicySolver); err != nil {
		return fmt.Errorf("gobdecode: could not restore policy solver: %w",
			err)
	}
	if err := p.valueSolver.GobDecode(c.ValueSolver); err != nil {
		return fmt.Errorf("gobdecode: could not restore value solver: %w",
			err)
	}
	p.policyScheduler.SetSteps(c.PolicySchedulerSteps)
	p.valueScheduler.SetSteps(c.ValueSchedulerSteps)

	p.vfCoef.Set(c.VFCoef)
	p.iterations = c.Iterations

	if err := p.sync(); err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}
	return nil
}
