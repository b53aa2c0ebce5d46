package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"animsched/internal/app"
)

func newReplayCmd() *cobra.Command {
	var (
		instruction string
		cycles      int
		freq        float64
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Simulate a few cycles, then replay the latest batch of an instruction",
		RunE: func(cmd *cobra.Command, args []string) error {
			instruction = strings.TrimSpace(instruction)
			if instruction == "" {
				return fmt.Errorf("--instruction is required")
			}
			if cycles <= 0 {
				return fmt.Errorf("--cycles must be > 0")
			}
			opts := app.Options{FrequencyHz: freq, Cycles: cycles, ForceSimulation: true}
			return runApp(cmd.Context(), opts, func(a *app.App) error {
				rec, err := a.ReplayLatest(instruction)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "replaying %s (%s): %d jobs\n", rec.Name, rec.ID, len(rec.Jobs))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&instruction, "instruction", "", "instruction name to replay")
	cmd.Flags().IntVar(&cycles, "cycles", 4, "cycles to simulate before replaying")
	cmd.Flags().Float64Var(&freq, "freq", 0, "override simulation.frequency_hz")
	return cmd
}
