package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/samuelfneumann/goppo/experiment"
	"github.com/samuelfneumann/goppo/experiment/tracker"
	"github.com/spf13/cobra"
)

const (
	configFile  = "config.json"
	metricsFile = "metrics.csv"
	rewardPlot  = "reward.png"
	lossPlot    = "loss.png"
)

// train flags
var (
	trainConfig  string
	trainEpochs  int
	trainSeed    uint64
	trainOut     string
	trainRun     string
	trainResume  string
	trainVerbose bool
	trainDebug   bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train an agent",
	Long: `Train an agent with the configuration read from a JSON file. Fields
missing from the file take their default values, see "goppo defaults".

A run is resumed by passing its ID with --run and the checkpoint to
resume from with --resume, either "latest" or an epoch number. A resumed
run trains for the configured number of epochs after the checkpoint.`,
	RunE: runTrain,
}

func init() {
	flags := trainCmd.Flags()
	flags.StringVarP(&trainConfig, "config", "c", "",
		"JSON configuration file (defaults if empty)")
	flags.IntVar(&trainEpochs, "epochs", 0, "override the number of epochs")
	flags.Uint64Var(&trainSeed, "seed", 0,
		"override the environment and agent seeds")
	flags.StringVarP(&trainOut, "out", "o", "",
		"override the output directory")
	flags.StringVar(&trainRun, "run", "", "ID of the run, new if empty")
	flags.StringVar(&trainResume, "resume", "",
		`checkpoint to resume from, "latest" or an epoch`)
	flags.BoolVarP(&trainVerbose, "verbose", "v", false, "show progress")
	flags.BoolVar(&trainDebug, "debug", false,
		"record the action distribution at each step")
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}

	c, err := trainingConfig(cmd)
	if err != nil {
		return err
	}

	if trainResume != "" && trainRun == "" {
		return fmt.Errorf("resuming requires the ID of a run with --run")
	}
	runID := trainRun
	if runID == "" {
		runID = uuid.New().String()
	}
	c.OutputDir = filepath.Join(c.OutputDir, runID)
	logger = logger.With().Str("run", runID).Logger()

	if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}
	if err := writeConfig(c); err != nil {
		return err
	}

	recorder := tracker.NewRecorder()
	sink := tracker.Multi{recorder, tracker.NewLogSink(logger)}

	trainer, err := experiment.New(c, sink, logger)
	if err != nil {
		return err
	}
	defer trainer.Close()

	if trainResume != "" {
		var epoch *int
		if trainResume != "latest" {
			e, err := strconv.Atoi(trainResume)
			if err != nil {
				return fmt.Errorf("invalid checkpoint %q: %w", trainResume, err)
			}
			epoch = &e
		}
		if err := trainer.Resume(epoch); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	logger.Info().Str("dir", c.OutputDir).Msg("starting training")
	result, runErr := trainer.Run(ctx)

	// Metrics of an interrupted run are still saved
	if err := saveMetrics(recorder, c.OutputDir); err != nil {
		logger.Error().Err(err).Msg("could not save metrics")
	}
	if runErr != nil {
		return runErr
	}

	logger.Info().
		Int("epochs", result.Epochs).
		Int("episodes", len(result.EpisodeRewards)).
		Float64("average_reward", result.RollingAverage).
		Msg("training complete")
	return nil
}

// trainingConfig returns the configuration file overridden by the
// command line flags
func trainingConfig(cmd *cobra.Command) (experiment.Config, error) {
	c := experiment.DefaultConfig()
	if trainConfig != "" {
		var err error
		if c, err = experiment.LoadConfig(trainConfig); err != nil {
			return experiment.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("epochs") {
		c.Epochs = trainEpochs
	}
	if flags.Changed("seed") {
		c.Seed = trainSeed
		c.Agent.Seed = trainSeed
	}
	if flags.Changed("out") {
		c.OutputDir = trainOut
	}
	if flags.Changed("verbose") {
		c.Verbose = trainVerbose
	}
	if flags.Changed("debug") {
		c.Debug = trainDebug
	}

	if err := c.Validate(); err != nil {
		return experiment.Config{}, err
	}
	return c, nil
}

func writeConfig(c experiment.Config) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}
	filename := filepath.Join(c.OutputDir, configFile)
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}
	return nil
}

func saveMetrics(recorder *tracker.Recorder, dir string) error {
	if err := recorder.SaveCSV(filepath.Join(dir, metricsFile)); err != nil {
		return err
	}

	if len(recorder.Series("Reward/Mean")) > 0 {
		err := recorder.Plot(filepath.Join(dir, rewardPlot), "Reward/Min",
			"Reward/Mean", "Reward/Max")
		if err != nil {
			return err
		}
	}
	if len(recorder.Series("Loss/Total")) > 0 {
		err := recorder.Plot(filepath.Join(dir, lossPlot), "Loss/Policy",
			"Loss/Value", "Loss/Total")
		if err != nil {
			return err
		}
	}
	return nil
}
