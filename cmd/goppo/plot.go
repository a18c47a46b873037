package main

import (
	"fmt"
	"os"

	"github.com/samuelfneumann/goppo/experiment/tracker"
	"github.com/spf13/cobra"
)

// plot flags
var (
	plotMetrics string
	plotSeries  []string
	plotOut     string
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot series from a metrics CSV file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(plotMetrics)
		if err != nil {
			return fmt.Errorf("could not open metrics: %w", err)
		}
		defer f.Close()

		recorder, err := tracker.ReadCSV(f)
		if err != nil {
			return err
		}

		series := plotSeries
		if len(series) == 0 {
			series = recorder.Names()
		}
		if err := recorder.Plot(plotOut, series...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %v\n", plotOut)
		return nil
	},
}

func init() {
	flags := plotCmd.Flags()
	flags.StringVarP(&plotMetrics, "metrics", "m", "metrics.csv",
		"metrics CSV file written by train")
	flags.StringSliceVarP(&plotSeries, "series", "s", nil,
		"names of the series to plot (all if empty)")
	flags.StringVarP(&plotOut, "out", "o", "metrics.png", "output image")
}
