// Package cli implements the animsched command line.
package cli

import (
	"github.com/spf13/cobra"
)

var flagConfig string

// NewRootCmd creates the root cobra command for the animsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "animsched",
		Short:        "Animation job scheduler for a processor visualisation",
		Long:         "animsched dispatches per-cycle animation jobs against a simulated processor clock.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "./animsched.yaml", "path to config (json or yaml)")

	root.AddCommand(
		newRunCmd(),
		newReplayCmd(),
		newHistoryCmd(),
	)
	return root
}
