// Command goppo trains continuous-action PPO agents
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "goppo",
	Short: "Train continuous-action policies with PPO",
	Long: `goppo trains Gaussian policies with Proximal Policy Optimization on
continuous control environments.

Each training run writes its metrics, plots, and checkpoints to its own
directory, named by a run ID, under the configured output directory.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"write logs as JSON instead of human readable text")

	rootCmd.AddCommand(trainCmd, defaultsCmd, plotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger returns the root logger described by the logging flags
func newLogger(out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w",
			logLevel, err)
	}

	if !logJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
