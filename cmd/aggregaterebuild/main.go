package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vncsmyrnk/livepoll/internal/adapters/repository"
	"github.com/vncsmyrnk/livepoll/internal/config"
	"github.com/vncsmyrnk/livepoll/internal/core/services"
	"github.com/vncsmyrnk/livepoll/internal/logging"
)

var flagTimeout time.Duration

var rootCmd = &cobra.Command{
	Use:          "aggregaterebuild",
	Short:        "Recomputes every poll's aggregates and scores from its votes",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	config.RegisterDatabaseFlags(rootCmd.Flags())
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 5*time.Minute, "maximum duration of the job")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("aggregate rebuild failed")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summaryService := services.NewSummaryService(store.Polls, store.Aggregates, nil, logger)

	logger.Info().Str("driver", cfg.DatabaseDriver).Msg("starting aggregate rebuild job")
	if err := summaryService.SummarizeAllVotes(ctx); err != nil {
		return err
	}
	logger.Info().Msg("aggregate rebuild completed successfully")
	return nil
}
