// Package cmd implements the taurimind command line interface.
package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taurimind",
	Short: "Multi-user AI chat server",
	Long: `Taurimind is a multi-user AI chat server. Each conversation is owned by
an actor that streams model completions, persists message history with
version tags, and pushes progress events to the owner's sessions.

Running taurimind without a subcommand starts the HTTP server.`,
	PersistentPreRun: loadDotEnv,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadDotEnv loads a .env file when present. Real environment variables
// keep precedence.
func loadDotEnv(_ *cobra.Command, _ []string) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
}
