package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vncsmyrnk/livepoll/internal/adapters/repository"
	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/livepoll/internal/config"
	"github.com/vncsmyrnk/livepoll/internal/logging"
)

var flagAll bool

var rootCmd = &cobra.Command{
	Use:   "migrations [name]",
	Short: "Executes a postgres migration file, for example 0001_init.up",
	Args: func(cmd *cobra.Command, args []string) error {
		if flagAll {
			return cobra.NoArgs(cmd, args)
		}
		if len(args) != 1 {
			return fmt.Errorf("a migration name is required")
		}
		return nil
	},
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	config.RegisterDatabaseFlags(rootCmd.Flags())
	rootCmd.Flags().BoolVar(&flagAll, "all", false, "apply every up migration in order")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := postgres.Connect(ctx, repository.PostgresConfig(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	if flagAll {
		if err := postgres.ApplyMigrations(ctx, db); err != nil {
			return err
		}
		log.Info().Msg("migrations executed successfully")
		return nil
	}

	name, content, err := postgres.MigrationFile(args[0])
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute SQL file %s: %w", name, err)
	}

	log.Info().Str("file", name).Msg("migration file executed successfully")
	return nil
}
