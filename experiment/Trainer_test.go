package experiment

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/goppo/environment/envconfig"
	"github.com/samuelfneumann/goppo/experiment/checkpointer"
	"github.com/samuelfneumann/goppo/experiment/tracker"
	"github.com/samuelfneumann/goppo/network"
	"github.com/samuelfneumann/goppo/transform"
)

const (
	testEpisodeSteps = 10
	testRolloutSize  = 64
)

// testTrainConfig returns a small configuration on the linear
// environment which completes 6.4 episodes each epoch
func testTrainConfig(t *testing.T, epochs int) Config {
	c := DefaultConfig()
	c.Env = envconfig.NewConfig(envconfig.Linear, testEpisodeSteps, 0.99)

	c.Agent.PolicyLayers = []int{16}
	c.Agent.PolicyBiases = []bool{true}
	c.Agent.PolicyActivations = []*network.Activation{network.TanH()}
	c.Agent.ValueFnLayers = []int{16}
	c.Agent.ValueFnBiases = []bool{true}
	c.Agent.ValueFnActivations = []*network.Activation{network.TanH()}
	c.Agent.BatchSize = 16
	c.Agent.SGDIters = 4
	c.Agent.CosineTMax = epochs * c.Agent.SGDIters
	c.Agent.Seed = 3

	c.Epochs = epochs
	c.RolloutBufferSize = testRolloutSize
	c.CheckpointInterval = 2
	c.ScalerFitSteps = 200
	c.Seed = 5
	c.OutputDir = t.TempDir()
	return c
}

func newTestTrainer(t *testing.T, c Config,
	sink tracker.Sink) *Trainer {
	tr, err := New(c, sink, zerolog.Nop())
	if err != nil {
		t.Fatalf("could not create trainer: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestTrainLinear(t *testing.T) {
	c := testTrainConfig(t, 4)
	c.Verbose = true
	recorder := tracker.NewRecorder()
	tr := newTestTrainer(t, c, recorder)

	var progress bytes.Buffer
	tr.progressOut = &progress

	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if result.Epochs != 4 {
		t.Errorf("epochs\n\twant(%v)\n\thave(%v)", 4, result.Epochs)
	}
	wantEpisodes := 4 * testRolloutSize / testEpisodeSteps
	if len(result.EpisodeRewards) != wantEpisodes {
		t.Errorf("episodes\n\twant(%v)\n\thave(%v)", wantEpisodes,
			len(result.EpisodeRewards))
	}
	for i, r := range result.EpisodeRewards {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			t.Errorf("episode %v has reward %v", i, r)
		}
		if steps := result.EpisodeSteps[i]; steps != testEpisodeSteps {
			t.Errorf("episode %v length\n\twant(%v)\n\thave(%v)", i,
				testEpisodeSteps, steps)
		}
	}
	if math.IsNaN(result.RollingAverage) || math.IsInf(result.RollingAverage,
		0) {
		t.Errorf("rolling average is %v", result.RollingAverage)
	}

	// Every gradient step records its losses
	steps := c.Epochs * c.Agent.SGDIters
	for _, name := range []string{"Loss/Policy", "Loss/Value",
		"Loss/Total", "Loss/VFCoef"} {
		series := recorder.Series(name)
		if len(series) != steps {
			t.Errorf("%v records\n\twant(%v)\n\thave(%v)", name, steps,
				len(series))
		}
		for _, v := range series {
			if math.IsNaN(v) {
				t.Errorf("%v is NaN", name)
				break
			}
		}
	}
	if tr.Agent().Iterations() != steps {
		t.Errorf("iterations\n\twant(%v)\n\thave(%v)", steps,
			tr.Agent().Iterations())
	}

	// Rewards are only recorded once the reward window is full, which
	// happens during the last epoch
	if mean := recorder.Series("Reward/Mean"); len(mean) != 1 {
		t.Errorf("reward records\n\twant(%v)\n\thave(%v)", 1, len(mean))
	}

	epochs, err := tr.Store().Epochs()
	if err != nil {
		t.Fatal(err)
	}
	if len(epochs) != 2 || epochs[0] != 1 || epochs[1] != 3 {
		t.Errorf("checkpoints\n\twant(%v)\n\thave(%v)", []int{1, 3}, epochs)
	}

	if !strings.Contains(progress.String(), "4/4") {
		t.Errorf("progress bar did not finish: %q", progress.String())
	}
}

func TestTrainLinearImproves(t *testing.T) {
	const epochs = 8
	c := testTrainConfig(t, epochs)
	c.CheckpointInterval = 0
	recorder := tracker.NewRecorder()
	tr := newTestTrainer(t, c, recorder)

	if _, err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The reward window first fills in the fourth epoch, after which the
	// rolling average is recorded once per epoch
	averages := recorder.Series("Reward/RollingAverage")
	if want := epochs - 3; len(averages) != want {
		t.Fatalf("rolling average records\n\twant(%v)\n\thave(%v)", want,
			len(averages))
	}
	for i, avg := range averages {
		if math.IsNaN(avg) || math.IsInf(avg, 0) {
			t.Fatalf("rolling average %v is %v", i, avg)
		}
	}

	// Consecutive windows share most of their episodes, so a decrease
	// larger than a quarter of the previous average means training
	// made the policy worse
	prev, last := averages[len(averages)-2], averages[len(averages)-1]
	tol := 0.25 * math.Abs(prev)
	if last < prev-tol {
		t.Errorf("rolling average decreased\n\twant(>= %v)\n\thave(%v)",
			prev-tol, last)
	}
}

func TestReportStopsEarly(t *testing.T) {
	c := testTrainConfig(t, 10)
	tr := newTestTrainer(t, c, nil)

	var reported []int
	tr.Report = func(epoch int, avg float64) bool {
		reported = append(reported, epoch)
		if math.IsNaN(avg) {
			t.Errorf("reported average is NaN")
		}
		return true
	}

	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// RewardWindow episodes finish after 200 steps, in the fourth epoch
	if len(reported) != 1 || reported[0] != 3 {
		t.Errorf("reported epochs\n\twant(%v)\n\thave(%v)", []int{3},
			reported)
	}
	if result.Epochs != 4 {
		t.Errorf("epochs\n\twant(%v)\n\thave(%v)", 4, result.Epochs)
	}
}

func TestResume(t *testing.T) {
	c := testTrainConfig(t, 4)
	first := newTestTrainer(t, c, nil)
	if _, err := first.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	vfCoef := first.Agent().(interface{ VFCoef() float64 }).VFCoef()

	// Resuming with the same config trains for another c.Epochs epochs
	second := newTestTrainer(t, c, nil)
	if err := second.Resume(nil); err != nil {
		t.Fatal(err)
	}

	if iters := second.Agent().Iterations(); iters != 4*c.Agent.SGDIters {
		t.Errorf("restored iterations\n\twant(%v)\n\thave(%v)",
			4*c.Agent.SGDIters, iters)
	}
	restored := second.Agent().(interface{ VFCoef() float64 }).VFCoef()
	if restored != vfCoef {
		t.Errorf("restored value coefficient\n\twant(%v)\n\thave(%v)",
			vfCoef, restored)
	}

	result, err := second.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Epochs != c.Epochs {
		t.Errorf("epochs after resuming\n\twant(%v)\n\thave(%v)", c.Epochs,
			result.Epochs)
	}
	if iters := second.Agent().Iterations(); iters != 8*c.Agent.SGDIters {
		t.Errorf("iterations after resuming\n\twant(%v)\n\thave(%v)",
			8*c.Agent.SGDIters, iters)
	}

	epochs, err := second.Store().Epochs()
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 3, 5, 7}
	if !reflect.DeepEqual(epochs, want) {
		t.Errorf("checkpointed epochs\n\twant(%v)\n\thave(%v)", want, epochs)
	}

	epoch := 1
	third := newTestTrainer(t, c, nil)
	if err := third.Resume(&epoch); err != nil {
		t.Fatal(err)
	}
	if third.startEpoch != 2 {
		t.Errorf("start epoch\n\twant(%v)\n\thave(%v)", 2, third.startEpoch)
	}

	missing := 2
	if err := third.Resume(&missing); !checkpointer.IsNotFound(err) {
		t.Errorf("expected not found resuming from epoch %v but got %v",
			missing, err)
	}
}

func TestRunCancelled(t *testing.T) {
	tr := newTestTrainer(t, testTrainConfig(t, 4), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := tr.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled but got %v", err)
	}
	if result.Epochs != 0 {
		t.Errorf("epochs\n\twant(%v)\n\thave(%v)", 0, result.Epochs)
	}
}

func TestTrainShapedRewards(t *testing.T) {
	c := testTrainConfig(t, 1)
	c.RewardShaper = transform.TemporalDifference
	c.StateScaler = transform.Quantile
	c.Agent.UseGAE = true
	tr := newTestTrainer(t, c, nil)

	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Epochs != 1 {
		t.Errorf("epochs\n\twant(%v)\n\thave(%v)", 1, result.Epochs)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"epochs", func(c *Config) { c.Epochs = 0 }},
		{"rollout", func(c *Config) { c.RolloutBufferSize = c.Agent.BatchSize - 1 }},
		{"checkpoint", func(c *Config) { c.CheckpointInterval = -1 }},
		{"scaler", func(c *Config) { c.StateScaler = "bogus" }},
		{"fit steps", func(c *Config) { c.ScalerFitSteps = 0 }},
		{"shaper", func(c *Config) { c.RewardShaper = "bogus" }},
		{"environment", func(c *Config) { c.Env.Environment = "bogus" }},
		{"agent", func(c *Config) { c.Agent.Scheduler = "bogus" }},
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	for _, test := range tests {
		c := DefaultConfig()
		test.modify(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%v: expected validation error", test.name)
		}
	}

	c := DefaultConfig()
	c.StateScaler = transform.EnvBounds
	c.ScalerFitSteps = 0
	if err := c.Validate(); err != nil {
		t.Errorf("environment bounds scaler should not need fit steps: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.json")
	data := `{"Epochs": 3, "Env": {"Environment": "Linear", ` +
		`"EpisodeCutoff": 50, "Discount": 0.9}}`
	if err := os.WriteFile(filename, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(filename)
	if err != nil {
		t.Fatal(err)
	}
	if c.Epochs != 3 || c.Env.Environment != envconfig.Linear {
		t.Errorf("loaded config\n\twant(%v, %v)\n\thave(%v, %v)", 3,
			envconfig.Linear, c.Epochs, c.Env.Environment)
	}
	if c.RolloutBufferSize != DefaultConfig().RolloutBufferSize {
		t.Errorf("missing fields should keep defaults\n\twant(%v)\n\thave(%v)",
			DefaultConfig().RolloutBufferSize, c.RolloutBufferSize)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("loaded config is invalid: %v", err)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error loading a missing file")
	}
}
