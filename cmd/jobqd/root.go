package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries state shared by subcommands once the root command has loaded
// the configuration.
type app struct {
	configPath string
	cfg        *Config
	logger     *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	command := &cobra.Command{
		Use:           "jobqd",
		Short:         "Asynchronous job queue daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(viper.New(), a.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	command.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the YAML config file")
	command.SuggestionsMinimumDistance = 1

	command.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newPurgeCommand(a),
	)
	return command
}

// newLogger builds the daemon's slog logger.
func newLogger(w io.Writer, cfg LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
}
