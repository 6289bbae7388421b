package cli

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type RootOptions struct {
	ConfigName string
	JSONOutput bool
	LogLevel   string
	Timeout    time.Duration

	connect Connector
	migrate Migrator
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(connectBackend, migrateJournal)
}

func newRootCmdWith(connect Connector, migrate Migrator) *cobra.Command {
	opts := &RootOptions{
		ConfigName: envDefault("LEDGERCTL_CONFIG", "ledgerctl"),
		LogLevel:   envDefault("LEDGERCTL_LOG_LEVEL", "warn"),
		connect:    connect,
		migrate:    migrate,
	}
	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Inspect and repair the ledger copy of inventory records",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigName, "config", opts.ConfigName, "Config file base name, read as <name>.env from ./configs or .")
	cmd.PersistentFlags().BoolVar(&opts.JSONOutput, "json", false, "Emit JSON output")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "Overall deadline for the command")

	cmd.AddCommand(
		newHashCmd(opts),
		newVerifyCmd(opts),
		newInspectCmd(opts),
		newReadCmd(opts),
		newCountCmd(opts),
		newResyncCmd(opts),
		newAttemptsCmd(opts),
		newMigrateCmd(opts),
	)

	return cmd
}

func envDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
