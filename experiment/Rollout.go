package experiment

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/buffer/trajectory"
	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/experiment/tracker"
	"github.com/samuelfneumann/goppo/transform"
	"github.com/samuelfneumann/goppo/utils/matutils"
	"gonum.org/v1/gonum/mat"
)

// StepOutcome is the result of a single rollout step. EpisodeReward is
// the total environmental reward of the episode and is only set when
// the step ended the episode. Steps is the number of steps taken in
// the current episode and TotalSteps the number taken in all episodes.
type StepOutcome struct {
	EpisodeReward *float64
	Steps         int
	TotalSteps    int
}

// Transforms collects the optional transformations applied to the
// data collected by a Rollout. A nil State scaler leaves states
// unchanged, a nil Shaper or Rewards scaler leaves rewards unchanged.
type Transforms struct {
	State   transform.StateScaler
	Shaper  transform.RewardShaper
	Rewards *transform.RewardScaler

	// RescaleActions maps actions from [-1, 1] to the action bounds
	// instead of clipping them to the bounds
	RescaleActions bool
}

// Rollout runs a policy in an environment one step at a time, pushing
// each transition to a trajectory buffer. A Rollout never ends on its
// own: when an episode ends, the next step starts a new episode.
//
// The buffer receives scaled states, the clipped action, the log
// probability of the action before clipping, the shaped and scaled
// reward, and whether the episode reached a terminal state. Episodes
// cut off by a step limit are not marked as done.
type Rollout struct {
	logger zerolog.Logger
	sink   tracker.Sink
	debug  bool

	env        env.Environment
	policy     agent.Policy
	buf        *trajectory.Buffer
	transforms Transforms

	// Bounds which sampled actions are clipped to
	clipMin *mat.VecDense
	clipMax *mat.VecDense

	// Episode state
	started     bool
	state       []float64 // Unscaled
	scaledState []float64
	accumulated float64
	steps       int
	totalSteps  int
	episodes    int
}

// NewRollout returns a new Rollout of policy in environment e which
// pushes transitions to buf. If debug is true, the mean and standard
// deviation of the policy's action distribution are recorded to sink
// on each step.
func NewRollout(e env.Environment, policy agent.Policy,
	buf *trajectory.Buffer, transforms Transforms, sink tracker.Sink,
	debug bool, logger zerolog.Logger) (*Rollout, error) {
	actionSpec := e.ActionSpec()
	if actionSpec.Cardinality != env.Continuous {
		return nil, fmt.Errorf("newrollout: actions must be continuous")
	}
	if buf.ActionDims() != actionSpec.Shape.Len() {
		return nil, fmt.Errorf("newrollout: buffer action dimensions (%v) "+
			"do not match environment (%v)", buf.ActionDims(),
			actionSpec.Shape.Len())
	}
	if buf.StateDims() != e.ObservationSpec().Shape.Len() {
		return nil, fmt.Errorf("newrollout: buffer state dimensions (%v) "+
			"do not match environment (%v)", buf.StateDims(),
			e.ObservationSpec().Shape.Len())
	}

	if transforms.State == nil {
		transforms.State = transform.Identity{}
	}
	if sink == nil {
		sink = tracker.Nop{}
	}

	r := &Rollout{
		logger:     logger.With().Str("component", "rollout").Logger(),
		sink:       sink,
		debug:      debug,
		env:        e,
		policy:     policy,
		buf:        buf,
		transforms: transforms,
		clipMin:    actionSpec.LowerBound,
		clipMax:    actionSpec.UpperBound,
	}

	if transforms.RescaleActions {
		n := actionSpec.Shape.Len()
		r.clipMin = mat.NewVecDense(n, nil)
		r.clipMax = mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			r.clipMin.SetVec(i, -1)
			r.clipMax.SetVec(i, 1)
		}
	}

	return r, nil
}

// AdvanceOneStep takes a single step in the environment, starting a
// new episode first if the last step ended an episode
func (r *Rollout) AdvanceOneStep() (StepOutcome, error) {
	if !r.started {
		if err := r.startEpisode(); err != nil {
			return StepOutcome{}, fmt.Errorf("advanceonestep: %w", err)
		}
	}

	obs := mat.NewVecDense(len(r.scaledState),
		append([]float64{}, r.scaledState...))
	dist, err := r.policy.Distribution(obs)
	if err != nil {
		return StepOutcome{}, fmt.Errorf("advanceonestep: could not get "+
			"action distribution: %w", err)
	}
	if r.debug {
		r.recordDistribution(dist)
	}

	// The log probability is that of the sampled action, the clipped
	// action is stored and taken
	action := dist.Sample()
	logProb := dist.LogProb(action)
	matutils.VecClip(action, r.clipMin, r.clipMax)
	stored := vecToSlice(action)

	envAction := action
	if r.transforms.RescaleActions {
		envAction = mat.VecDenseCopyOf(action)
		if err := transform.RescaleAction(envAction,
			r.env.ActionSpec()); err != nil {
			return StepOutcome{}, fmt.Errorf("advanceonestep: %w", err)
		}
	}

	step, last, err := r.env.Step(envAction)
	if err != nil {
		return StepOutcome{}, fmt.Errorf("advanceonestep: could not step "+
			"environment: %w", err)
	}
	next := vecToSlice(step.Observation)
	scaledNext := r.transforms.State.ScaleState(next)

	reward, err := r.transformReward(step.Reward, next)
	if err != nil {
		return StepOutcome{}, fmt.Errorf("advanceonestep: %w", err)
	}

	r.buf.Push(trajectory.Transition{
		State:     r.scaledState,
		Action:    stored,
		LogProb:   logProb,
		Reward:    reward,
		NextState: scaledNext,
		Done:      step.Terminal(),
	})

	r.accumulated += step.Reward
	r.steps++
	r.totalSteps++

	outcome := StepOutcome{Steps: r.steps, TotalSteps: r.totalSteps}
	if last || step.Last() {
		total := r.accumulated
		outcome.EpisodeReward = &total
		r.episodes++
		r.started = false

		r.logger.Trace().
			Int("episode", r.episodes).
			Int("steps", r.steps).
			Int("total_steps", r.totalSteps).
			Float64("reward", total).
			Bool("truncated", step.Truncated()).
			Msg("episode finished")
	} else {
		r.state = next
		r.scaledState = scaledNext
	}

	return outcome, nil
}

// Episodes returns the number of episodes completed
func (r *Rollout) Episodes() int {
	return r.episodes
}

// TotalSteps returns the number of steps taken over all episodes
func (r *Rollout) TotalSteps() int {
	return r.totalSteps
}

// startEpisode resets the environment and the episode state
func (r *Rollout) startEpisode() error {
	step, err := r.env.Reset()
	if err != nil {
		return fmt.Errorf("could not reset environment: %w", err)
	}

	r.state = vecToSlice(step.Observation)
	r.scaledState = r.transforms.State.ScaleState(r.state)
	r.accumulated = 0
	r.steps = 0
	r.started = true
	return nil
}

// transformReward shapes and then scales an environmental reward. The
// shaper sees unscaled states.
func (r *Rollout) transformReward(reward float64,
	next []float64) (float64, error) {
	rewards := []float64{reward}

	if r.transforms.Shaper != nil {
		var err error
		rewards, err = r.transforms.Shaper.Reshape(rewards,
			[][]float64{r.state}, [][]float64{next})
		if err != nil {
			return 0, fmt.Errorf("could not shape reward: %w", err)
		}
	}
	if r.transforms.Rewards != nil {
		rewards = r.transforms.Rewards.ScaleRewards(rewards)
	}

	return rewards[0], nil
}

func (r *Rollout) recordDistribution(dist agent.Distribution) {
	mean, std := dist.Mean(), dist.StdDev()
	for i := 0; i < mean.Len(); i++ {
		r.sink.Record(fmt.Sprintf("Policy/Action%d_Mean", i), mean.AtVec(i))
		r.sink.Record(fmt.Sprintf("Policy/Action%d_Std", i), std.AtVec(i))
	}
}

func vecToSlice(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
