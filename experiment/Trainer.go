package experiment

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/agent/nonlinear/continuous/ppo"
	"github.com/samuelfneumann/goppo/buffer/trajectory"
	env "github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/experiment/checkpointer"
	"github.com/samuelfneumann/goppo/experiment/tracker"
	"github.com/samuelfneumann/goppo/transform"
	"github.com/samuelfneumann/goppo/utils/progressbar"
)

// CheckpointDir is the directory under a run's output directory in
// which checkpoints are stored
const CheckpointDir = "checkpoints"

// progressWidth is the width of the progress bar in characters
const progressWidth = 40

// Agent is a learning agent that can be trained and checkpointed by a
// Trainer
type Agent interface {
	agent.Agent
	checkpointer.Serializable
	Iterations() int
	Close() error
}

// Result summarizes a training run. RollingAverage is the average
// reward of the last RewardWindow episodes, or -Inf if no episode
// finished.
type Result struct {
	Epochs         int // Epochs run, excluding those restored by Resume
	RollingAverage float64
	EpisodeRewards []float64
	EpisodeSteps   []int
}

// Trainer trains an agent on-policy. Each epoch the Trainer collects a
// fixed number of environment steps into an emptied buffer with the
// agent in evaluation mode, then updates the agent on the buffer.
type Trainer struct {
	logger zerolog.Logger
	sink   tracker.Sink

	env          env.Environment
	agent        Agent
	buf          *trajectory.Buffer
	rollout      *Rollout
	store        *checkpointer.Store
	checkpointer checkpointer.Checkpointer

	epochs      int
	rolloutSize int
	startEpoch  int
	verbose     bool
	progressOut io.Writer

	window         *tracker.Window
	episodeRewards []float64
	episodeSteps   []int

	// Report is called with the rolling average reward at the end of
	// each epoch once RewardWindow episodes have finished. Training
	// stops early if Report returns true.
	Report func(epoch int, avg float64) bool
}

// New returns a new Trainer for the configuration c. Checkpoints are
// stored under c.OutputDir. Metrics of the agent, the rollout, and the
// episode rewards are recorded to sink, which may be nil.
func New(c Config, sink tracker.Sink, logger zerolog.Logger) (*Trainer,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if sink == nil {
		sink = tracker.Nop{}
	}
	base := logger
	logger = logger.With().Str("component", "trainer").Logger()

	e, _, err := c.Env.Create(c.Seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create environment: %w", err)
	}
	features := e.ObservationSpec().Shape.Len()
	actionDims := e.ActionSpec().Shape.Len()

	stateScaler, err := transform.NewStateScaler(c.StateScaler, e,
		c.ScalerFitSteps, c.Seed)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("new: %w", err)
	}

	a, err := ppo.New(features, actionDims, c.Agent, sink, base)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("new: %w", err)
	}

	shaper, err := transform.NewRewardShaper(c.RewardShaper, a,
		c.Agent.Gamma)
	if err != nil {
		e.Close()
		a.Close()
		return nil, fmt.Errorf("new: %w", err)
	}
	transforms := Transforms{
		State:          stateScaler,
		Shaper:         shaper,
		RescaleActions: c.RescaleActions,
	}
	if c.RescaleRewards {
		transforms.Rewards = transform.NewRewardScaler()
	}

	buf, err := trajectory.New(c.RolloutBufferSize, features, actionDims,
		c.Seed)
	if err != nil {
		e.Close()
		a.Close()
		return nil, fmt.Errorf("new: %w", err)
	}
	rollout, err := NewRollout(e, a, buf, transforms, sink, c.Debug, base)
	if err != nil {
		e.Close()
		a.Close()
		return nil, fmt.Errorf("new: %w", err)
	}

	store := checkpointer.NewStore(filepath.Join(c.OutputDir, CheckpointDir))

	logger.Info().
		Str("environment", string(c.Env.Environment)).
		Int("features", features).
		Int("action_dims", actionDims).
		Str("state_scaler", string(c.StateScaler)).
		Str("reward_shaper", string(c.RewardShaper)).
		Bool("rescale_rewards", c.RescaleRewards).
		Msg("created trainer")

	return &Trainer{
		logger:       logger,
		sink:         sink,
		env:          e,
		agent:        a,
		buf:          buf,
		rollout:      rollout,
		store:        store,
		checkpointer: checkpointer.NewNEpoch(c.CheckpointInterval, a, store),
		epochs:       c.Epochs,
		rolloutSize:  c.RolloutBufferSize,
		verbose:      c.Verbose,
		progressOut:  os.Stderr,
		window:       tracker.NewWindow(RewardWindow),
	}, nil
}

// Agent returns the agent being trained
func (t *Trainer) Agent() Agent {
	return t.agent
}

// Store returns the checkpoint store of the Trainer
func (t *Trainer) Store() *checkpointer.Store {
	return t.store
}

// Resume restores the agent from a checkpoint. The next Run numbers
// its epochs from the epoch after the checkpoint and still runs the
// configured number of epochs. If epoch is nil, the latest checkpoint
// is restored.
func (t *Trainer) Resume(epoch *int) error {
	which := checkpointer.Latest
	if epoch != nil {
		which = *epoch
	}

	loaded, err := t.store.Load(which, t.agent)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	t.startEpoch = loaded + 1

	t.logger.Info().
		Int("epoch", loaded).
		Int("iterations", t.agent.Iterations()).
		Msg("resumed from checkpoint")
	return nil
}

// Run trains the agent for the configured number of epochs, starting
// at the epoch after any resumed checkpoint, until Report requests an
// early stop or ctx is cancelled. Cancellation is only checked
// between epochs.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	result := Result{RollingAverage: math.Inf(-1)}

	var bar *progressbar.ManualProgressBar
	if t.verbose {
		bar = progressbar.NewManualProgressBar(t.progressOut, progressWidth,
			t.epochs)
		bar.Display()
		defer bar.Close()
	}

	last := t.startEpoch + t.epochs
	for epoch := t.startEpoch; epoch < last; epoch++ {
		if err := ctx.Err(); err != nil {
			return t.result(result), fmt.Errorf("run: %w", err)
		}

		t.agent.Eval()
		t.buf.Clear()
		if err := t.collect(); err != nil {
			return t.result(result), fmt.Errorf("run: epoch %v: %w", epoch, err)
		}

		t.agent.Train()
		if err := t.agent.Update(t.buf); err != nil {
			return t.result(result), fmt.Errorf("run: epoch %v: %w", epoch, err)
		}

		if err := t.checkpointer.Checkpoint(epoch); err != nil {
			return t.result(result), fmt.Errorf("run: epoch %v: %w", epoch, err)
		}
		result.Epochs++

		stop := t.endEpoch(epoch, &result)
		if bar != nil {
			bar.SetSuffix(fmt.Sprintf("avg reward: %.2f", result.RollingAverage))
			bar.Increment()
		}
		if stop {
			t.logger.Info().Int("epoch", epoch).Msg("stopped early by report")
			break
		}
	}

	return t.result(result), nil
}

// Close closes the environment and agent
func (t *Trainer) Close() error {
	envErr := t.env.Close()
	if err := t.agent.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if envErr != nil {
		return fmt.Errorf("close: %w", envErr)
	}
	return nil
}

// collect fills the buffer with exactly rolloutSize steps
func (t *Trainer) collect() error {
	for i := 0; i < t.rolloutSize; i++ {
		outcome, err := t.rollout.AdvanceOneStep()
		if err != nil {
			return err
		}

		if outcome.EpisodeReward != nil {
			t.episodeRewards = append(t.episodeRewards, *outcome.EpisodeReward)
			t.episodeSteps = append(t.episodeSteps, outcome.Steps)
			t.window.Add(*outcome.EpisodeReward)
		}
	}
	return nil
}

// endEpoch logs and records the episode rewards at the end of an epoch
// and returns whether training should stop
func (t *Trainer) endEpoch(epoch int, result *Result) bool {
	if t.window.Len() > 0 {
		result.RollingAverage = t.window.Mean()
	}

	t.logger.Info().
		Int("epoch", epoch+1).
		Float64("average_reward", result.RollingAverage).
		Int("iterations", t.agent.Iterations()).
		Int("episodes", len(t.episodeRewards)).
		Int("rollout_steps", t.rollout.TotalSteps()).
		Msg("finished epoch")

	if !t.window.Full() {
		return false
	}

	t.logger.Info().
		Float64("min", t.window.Min()).
		Float64("mean", t.window.Mean()).
		Float64("max", t.window.Max()).
		Msgf("rewards over last %v episodes", RewardWindow)
	t.sink.Record("Reward/Min", t.window.Min())
	t.sink.Record("Reward/Mean", t.window.Mean())
	t.sink.Record("Reward/Max", t.window.Max())
	t.sink.Record("Reward/RollingAverage", result.RollingAverage)

	return t.Report != nil && t.Report(epoch, result.RollingAverage)
}

func (t *Trainer) result(r Result) Result {
	r.EpisodeRewards = append([]float64{}, t.episodeRewards...)
	r.EpisodeSteps = append([]int{}, t.episodeSteps...)
	return r
}
