package ppo

import (
	"fmt"

	"github.com/samuelfneumann/goppo/buffer/advantage"
	"github.com/samuelfneumann/goppo/buffer/trajectory"
	"github.com/samuelfneumann/goppo/network"
	"github.com/samuelfneumann/goppo/solver"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Update performs SGDIters gradient steps on the policy and value
// function using mini-batches sampled from buf. After all gradient
// steps, the behaviour policy and value function are synchronized with
// the updated weights.
//
// Update returns an error satisfying trajectory.IsInsufficientData if
// buf holds fewer transitions than the batch size.
func (p *PPO) Update(buf *trajectory.Buffer) error {
	if buf.StateDims() != p.features || buf.ActionDims() != p.actionDims {
		return fmt.Errorf("update: buffer dimensions (%v, %v) do not match "+
			"agent dimensions (%v, %v)", buf.StateDims(), buf.ActionDims(),
			p.features, p.actionDims)
	}

	for i := 0; i < p.sgdIters; i++ {
		if err := p.step(buf); err != nil {
			return fmt.Errorf("update: %w", err)
		}
	}

	if err := p.sync(); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// step performs a single gradient step on a mini-batch sampled from buf
func (p *PPO) step(buf *trajectory.Buffer) error {
	batch, err := buf.Sample(p.batchSize)
	if err != nil {
		return fmt.Errorf("could not sample batch: %w", err)
	}

	returns, adv, err := p.estimate(batch)
	if err != nil {
		return err
	}
	adv = advantage.Standardize(adv)

	if err := p.bind(batch, adv, returns); err != nil {
		return fmt.Errorf("could not set inputs: %w", err)
	}
	if err := p.trainVM.RunAll(); err != nil {
		return fmt.Errorf("could not run training graph: %w", err)
	}
	defer p.trainVM.Reset()

	policyLoss := network.Scalar(p.policyLossVal)
	entropyLoss := network.Scalar(p.entropyLossVal)
	valueLoss := network.Scalar(p.valueLossVal)

	// The graph's cost weights the value loss by 1, so the value
	// gradients are scaled by the adapted coefficient
	ratio := p.vfCoef.Update(policyLoss, valueLoss)
	vfCoef := p.vfCoef.Value()
	valueModel := p.trainValueFn.Model()
	if err := solver.ScaleGrads(valueModel, vfCoef); err != nil {
		return err
	}

	policyModel := p.trainPolicy.Model()
	policyNorm, err := solver.ClipGradNorm(policyModel, p.maxGradNorm)
	if err != nil {
		return fmt.Errorf("could not clip policy gradients: %w", err)
	}
	valueNorm, err := solver.ClipGradNorm(valueModel, p.maxGradNorm)
	if err != nil {
		return fmt.Errorf("could not clip value gradients: %w", err)
	}

	policyLR := p.policySolver.LearningRate()
	valueLR := p.valueSolver.LearningRate()
	if err := p.policySolver.Step(policyModel); err != nil {
		return fmt.Errorf("could not step policy solver: %w", err)
	}
	if err := p.valueSolver.Step(valueModel); err != nil {
		return fmt.Errorf("could not step value solver: %w", err)
	}
	p.policyScheduler.Step()
	p.valueScheduler.Step()
	p.iterations++

	total := policyLoss + entropyLoss + vfCoef*valueLoss
	p.sink.Record("Loss/Policy", policyLoss)
	p.sink.Record("Loss/Value", valueLoss)
	p.sink.Record("Loss/Entropy", entropyLoss)
	p.sink.Record("Loss/Total", total)
	p.sink.Record("Loss/VFCoef", vfCoef)
	p.sink.Record("Loss/ValueLossRatio", ratio)
	p.sink.Record("Gradients/PolicyNorm", policyNorm)
	p.sink.Record("Gradients/ValueNorm", valueNorm)
	p.sink.Record("LearningRate/Policy", policyLR)
	p.sink.Record("LearningRate/Value", valueLR)

	p.logger.Trace().
		Int("iteration", p.iterations).
		Float64("policy_loss", policyLoss).
		Float64("value_loss", valueLoss).
		Float64("vf_coef", vfCoef).
		Msg("gradient step")

	return nil
}

// estimate returns the returns and advantages of a batch using the
// batch value predictor, after synchronizing it with the training
// value function
func (p *PPO) estimate(batch trajectory.Batch) (returns, adv []float64,
	err error) {
	if err := p.predictor.Set(p.trainValueFn); err != nil {
		return nil, nil, fmt.Errorf("could not sync value predictor: %w", err)
	}

	values, err := p.predict(batch.States)
	if err != nil {
		return nil, nil, err
	}
	nextValues, err := p.predict(batch.NextStates)
	if err != nil {
		return nil, nil, err
	}

	switch p.estimator {
	case advantage.GeneralizedAdvantage:
		returns, adv, err = advantage.GAE(batch.Rewards, batch.Dones, values,
			nextValues[len(nextValues)-1], p.gamma, p.tau)
	default:
		returns, adv, err = advantage.OneStep(batch.Rewards, batch.Dones,
			values, nextValues, p.gamma)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not estimate advantages: %w", err)
	}
	return returns, adv, nil
}

// predict returns the values of a row-major batch of states
func (p *PPO) predict(states []float64) ([]float64, error) {
	if err := p.predictor.SetInput(states); err != nil {
		return nil, fmt.Errorf("could not predict values: %w", err)
	}
	if err := p.predictorVM.RunAll(); err != nil {
		return nil, fmt.Errorf("could not predict values: %w", err)
	}
	defer p.predictorVM.Reset()

	values, ok := p.predictor.Output().Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("could not predict values: illegal output "+
			"type %T", p.predictor.Output().Data())
	}
	return append([]float64{}, values...), nil
}

// bind sets the inputs of the training graph
func (p *PPO) bind(batch trajectory.Batch, adv, returns []float64) error {
	if err := p.trainValueFn.SetInput(batch.States); err != nil {
		return err
	}

	inputs := []struct {
		node *G.Node
		data []float64
	}{
		{p.obj.actions, batch.Actions},
		{p.obj.oldLogProbs, batch.LogProbs},
		{p.obj.advantages, adv},
		{p.obj.returns, returns},
	}
	for _, input := range inputs {
		t := tensor.New(
			tensor.WithBacking(input.data),
			tensor.WithShape(input.node.Shape()...),
		)
		if err := G.Let(input.node, t); err != nil {
			return fmt.Errorf("node %v: %w", input.node.Name(), err)
		}
	}
	return nil
}
