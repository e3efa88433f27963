package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the load test command.
func NewRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "authservice-loadtest",
		Short: "Load test session checks and refreshes",
		Long: `Seeds a memory or token realm, logs every user in, then runs a role/permission
check phase and a refresh phase across concurrent workers before logging
everyone out. Flags may also be set through AUTHSERVICE_LOADTEST_* variables
or a config file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfiguration(cmd.Flags(), configFile)
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.logLevel()}))
			report, err := run(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			report.print(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "optional config file (yaml, json or toml)")
	registerFlags(cmd.Flags())

	return cmd
}
