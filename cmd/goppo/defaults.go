package main

import (
	"encoding/json"
	"fmt"

	"github.com/samuelfneumann/goppo/experiment"
	"github.com/spf13/cobra"
)

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the default configuration as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(experiment.DefaultConfig(), "", "  ")
		if err != nil {
			return fmt.Errorf("could not encode config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}
