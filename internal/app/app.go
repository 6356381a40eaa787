// Package app wires the stores, services, publishers and HTTP handlers of a
// running server.
package app

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	httphandler "github.com/vncsmyrnk/livepoll/internal/adapters/handler/http"
	"github.com/vncsmyrnk/livepoll/internal/adapters/metrics"
	"github.com/vncsmyrnk/livepoll/internal/adapters/pubsub"
	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/sqlrepo"
	"github.com/vncsmyrnk/livepoll/internal/config"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/core/services"
)

type App struct {
	Handler http.Handler

	Tokens       ports.TokenService
	Polls        ports.PollService
	Votes        ports.VoteService
	Results      ports.ResultService
	Leaderboards ports.LeaderboardService
	Reactions    ports.ReactionService
	Sync         ports.SyncService

	pollHub     *pubsub.Hub[uuid.UUID, domain.PollSnapshot]
	boardHub    *pubsub.Hub[uuid.UUID, domain.Leaderboard]
	reactionBus *pubsub.EventBus[uuid.UUID, domain.Reaction]
}

// New builds the engine on top of store. A nil registry disables metrics.
func New(cfg config.Config, store *sqlrepo.Store, reg *prometheus.Registry, log zerolog.Logger) *App {
	var engineMetrics interface {
		ports.EngineMetrics
		pubsub.Observer
	} = metrics.NewNoopCollector()
	var metricsHandler http.Handler
	if reg != nil {
		engineMetrics = metrics.NewEngineCollector(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	presence := services.NewPresenceTracker()
	leaderboards := services.NewLeaderboardService(store.Polls, store.Scores, cfg.LeaderboardSize)
	snapshots := services.NewSnapshotService(store.Polls, store.Aggregates, leaderboards, presence)

	terminal := func(err error) bool { return errors.Is(err, domain.ErrPollNotFound) }
	pollHub := pubsub.NewHub(snapshots.PollSnapshot, pubsub.HubConfig{
		Kind:     httphandler.KindPollState,
		Interval: cfg.SnapshotInterval,
		Buffer:   cfg.SubscriberBuffer,
		Terminal: terminal,
	}, engineMetrics, log)
	boardHub := pubsub.NewHub(snapshots.Leaderboard, pubsub.HubConfig{
		Kind:     httphandler.KindLeaderboard,
		Interval: cfg.LeaderboardInterval,
		Buffer:   cfg.SubscriberBuffer,
		Terminal: terminal,
	}, engineMetrics, log)
	reactionBus := pubsub.NewEventBus[uuid.UUID, domain.Reaction](httphandler.KindReaction, cfg.SubscriberBuffer, engineMetrics)

	syncService := services.NewSyncService(store.Polls, pollHub, boardHub, presence, log)

	tokens := services.NewTokenService(cfg.JWTSecret)
	polls := services.NewPollService(store.Polls, syncService, engineMetrics, log)
	votes := services.NewVoteService(store.Polls, store.Votes, syncService, engineMetrics, services.VoteConfig{
		CorrectAnswerPoints: cfg.CorrectAnswerPoints,
		RetryMax:            cfg.VoteRetryMax,
		RetryBase:           cfg.VoteRetryBase,
	}, log)
	results := services.NewResultService(store.Polls, store.Aggregates)
	reactions := services.NewReactionService(store.Polls, reactionBus, engineMetrics, services.ReactionConfig{
		Retention: cfg.ReactionRetention,
		Window:    cfg.ReactionWindow,
		Rate:      rate.Limit(cfg.ReactionRate),
		Burst:     cfg.ReactionBurst,
	}, log)

	handler := httphandler.NewHandler(httphandler.RouterConfig{
		Tokens:         tokens,
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        metricsHandler,
		Health:         store.DB.PingContext,
		Log:            log,
	}, httphandler.Handlers{
		Polls:        httphandler.NewPollHandler(polls, results),
		Votes:        httphandler.NewVoteHandler(votes),
		Leaderboards: httphandler.NewLeaderboardHandler(leaderboards),
		Reactions:    httphandler.NewReactionHandler(reactions),
		Streams:      httphandler.NewStreamHandler(syncService, reactions, cfg.AllowedOrigins),
	})

	return &App{
		Handler:      handler,
		Tokens:       tokens,
		Polls:        polls,
		Votes:        votes,
		Results:      results,
		Leaderboards: leaderboards,
		Reactions:    reactions,
		Sync:         syncService,
		pollHub:      pollHub,
		boardHub:     boardHub,
		reactionBus:  reactionBus,
	}
}

// Close ends every open subscription. Streams still connected are told the
// server is going away.
func (a *App) Close() {
	a.pollHub.Close()
	a.boardHub.Close()
	a.reactionBus.Close()
}
