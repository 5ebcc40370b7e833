package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/jobq/store"
)

func newPurgeCommand(a *app) *cobra.Command {
	var olderThan time.Duration

	command := &cobra.Command{
		Use:   "purge",
		Short: "Delete completed and failed jobs past the retention period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			retention := a.cfg.Purge.Retention
			if olderThan > 0 {
				retention = olderThan
			}
			if retention <= 0 {
				return fmt.Errorf("retention must be positive, got %s", retention)
			}

			st, closeStore, err := openStore(cmd.Context(), a.cfg.Store, a.logger)
			if err != nil {
				return err
			}
			defer closeStore() //nolint:errcheck // best-effort on exit

			n, err := purge(cmd.Context(), st, retention, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d jobs\n", n)
			return nil
		},
	}
	command.Flags().DurationVar(&olderThan, "older-than", 0, "override purge.retention")
	return command
}

// purge removes terminal jobs that finished more than retention before now.
func purge(ctx context.Context, st store.Store, retention time.Duration, now time.Time) (int64, error) {
	n, err := st.Purge(ctx, now.Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return n, nil
}

// purgeJob adapts purge to a cron job.
func purgeJob(st store.Store, retention time.Duration, logger *slog.Logger) func() {
	return func() {
		n, err := purge(context.Background(), st, retention, time.Now())
		if err != nil {
			logger.Error("scheduled purge failed", slog.String("error", err.Error()))
			return
		}
		logger.Info("scheduled purge", slog.Int64("deleted", n))
	}
}
