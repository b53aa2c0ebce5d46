package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"animsched/internal/config"
	"animsched/internal/storage"
	logx "animsched/pkg/logx"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List persisted instruction records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigManager(flagConfig).Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Storage == nil || strings.TrimSpace(cfg.Storage.Driver) == "" {
				return fmt.Errorf("storage is not configured")
			}
			busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
			if err != nil {
				return err
			}
			st, err := storage.Open(storage.Config{
				Driver:      cfg.Storage.Driver,
				Path:        cfg.Storage.Path,
				BusyTimeout: busy,
			}, logx.NewConsole("warn"))
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			if st == nil {
				return fmt.Errorf("storage is disabled")
			}
			defer st.Close()

			recs, err := st.RecentInstructions(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No instructions recorded.")
				return nil
			}
			fmt.Fprintf(out, "%-36s  %-10s  %-23s  %s\n", "ID", "NAME", "RECORDED", "OFFSETS (ms)")
			for _, r := range recs {
				fmt.Fprintf(out, "%-36s  %-10s  %-23s  %s\n",
					r.ID, r.Name, r.RecordedAt.Format("2006-01-02 15:04:05.000"), formatOffsets(r.InstructionOffsets))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max records to show (0 = all)")
	return cmd
}

func formatOffsets(ds []time.Duration) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = fmt.Sprint(d.Milliseconds())
	}
	return strings.Join(parts, ",")
}
