package commands

import (
	"fmt"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/storage"

	"github.com/spf13/cobra"
)

// migrateCmd groups the schema subcommands
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Manage the database schema with the embedded migrations.

Subcommands:
  up       - Apply pending migrations
  down     - Roll back the most recent migration
  version  - Show the applied schema version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(m *storage.Migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			return printVersion(cmd, m)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(m *storage.Migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			return printVersion(cmd, m)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(m *storage.Migrator) error {
			return printVersion(cmd, m)
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withMigrator(cmd *cobra.Command, fn func(*storage.Migrator) error) error {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, cmd.ErrOrStderr()).WithComponent(log.ComponentStorage)

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	if !bc.Type.Persistent() {
		return fmt.Errorf("the %s backend has no schema to migrate", bc.Type)
	}
	dialect, err := storage.ParseDialect(bc.Type.String())
	if err != nil {
		return err
	}

	m, err := storage.NewMigrator(dialect, bc.DSN())
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("Failed to close migrator", log.FieldError, err)
		}
	}()

	logger.Info("Running migration command", log.FieldOperation, log.OpMigrate, "command", cmd.Name(), "dialect", dialect)
	return fn(m)
}

func printVersion(cmd *cobra.Command, m *storage.Migrator) error {
	version, dirty, ok, err := m.Version()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch {
	case !ok:
		fmt.Fprintln(out, "no migrations applied")
	case dirty:
		fmt.Fprintf(out, "version %d (dirty)\n", version)
	default:
		fmt.Fprintf(out, "version %d\n", version)
	}
	return nil
}
