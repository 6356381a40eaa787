package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

const healthTimeout = 2 * time.Second

type RouterConfig struct {
	Tokens         ports.TokenService
	AllowedOrigins []string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Health reports whether the store is reachable.
	Health func(ctx context.Context) error
	Log    zerolog.Logger
}

type Handlers struct {
	Polls        *PollHandler
	Votes        *VoteHandler
	Leaderboards *LeaderboardHandler
	Reactions    *ReactionHandler
	Streams      *StreamHandler
}

func NewHandler(cfg RouterConfig, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(cfg.Log))
	r.Use(middleware.Recoverer)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Get("/healthz", healthz(cfg.Health))

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(cfg.Tokens))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("welcome"))
		})
		r.Get("/me", GetMe)

		r.Route("/polls", func(r chi.Router) {
			r.Post("/", h.Polls.CreatePoll)
			r.Get("/", h.Polls.ListPolls)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Polls.GetPoll)
				r.Patch("/", h.Polls.UpdatePoll)
				r.Delete("/", h.Polls.DeletePoll)
				r.Post("/start", h.Polls.StartPoll)
				r.Post("/advance", h.Polls.AdvanceQuestion)
				r.Post("/end", h.Polls.EndPoll)
				r.Get("/results/{question}", h.Polls.GetResults)

				r.Post("/votes", h.Votes.SubmitVote)
				r.Get("/votes/mine", h.Votes.HasVoted)
				r.Get("/audit", h.Votes.GetAuditLog)

				r.Get("/leaderboard", h.Leaderboards.PollLeaderboard)

				r.Post("/reactions", h.Reactions.SendReaction)
				r.Get("/reactions", h.Reactions.RecentReactions)

				r.Get("/stream", h.Streams.PollState)
				r.Get("/reactions/stream", h.Streams.Reactions)
			})
		})

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", h.Leaderboards.GlobalLeaderboard)
			r.Get("/stream", h.Streams.Leaderboard)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodHead},
	})

	return c.Handler(r)
}

func healthz(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
