package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply store schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, closeStore, err := openStore(cmd.Context(), a.cfg.Store, a.logger)
			if err != nil {
				return err
			}
			defer closeStore() //nolint:errcheck // best-effort on exit

			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("migrations applied", slog.String("driver", a.cfg.Store.Driver))
			return nil
		},
	}
}
