package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"ecoledger/internal/platform/config"
	"ecoledger/internal/platform/logger"
)

// app carries what every subcommand needs once the root has loaded it.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var addr string

	root := &cobra.Command{
		Use:           "ecoledger",
		Short:         "Traceability and green certification services",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			a.cfg = cfg
			a.logger = logger.New(cfg.Logging).With("component", cmd.Name())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&addr, "addr", "", "HTTP listen address (overrides ECOLEDGER_ADDR)")

	root.AddCommand(
		newMovementCommand(a),
		newAuditCommand(a),
		newCertificationCommand(a),
		newMigrateCommand(a),
	)
	return root
}
