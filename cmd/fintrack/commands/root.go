package commands

import (
	"fmt"
	"os"

	"fintrack/internal/cli"

	"github.com/spf13/cobra"
)

var envFile string

// rootCmd runs the server when no subcommand is given
var rootCmd = &cobra.Command{
	Use:   "fintrack",
	Short: "Personal finance tracker API",
	Long: `fintrack records income and expense transactions per user and serves a
sortable list and a month-scoped dashboard over a JSON API.

Configuration is read from the environment (and a .env file when present).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if envFile != "" {
			cli.LoadEnvFile(envFile)
		} else {
			cli.LoadEnvFile()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default ./.env)")
}
