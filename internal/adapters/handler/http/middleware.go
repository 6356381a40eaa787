package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type contextKey string

const ActorKey contextKey = "actor"

const accessTokenName = "access_token"

// ActorFrom returns the caller attached by Authenticate. Anonymous callers get
// the zero Actor.
func ActorFrom(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(ActorKey).(domain.Actor)
	return actor
}

// Authenticate resolves the caller from a bearer token, the access_token cookie
// or, for websocket upgrades, the access_token query parameter. A request
// without a token continues anonymously; a bad token is refused.
func Authenticate(tokens ports.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			actor, err := tokens.Verify(token)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(accessTokenName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get(accessTokenName)
}

// AccessLog puts a request scoped logger in the context and logs every
// request once it is served.
func AccessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(reqLog.WithContext(r.Context())))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := reqLog.Info()
			if status >= http.StatusInternalServerError {
				event = reqLog.Error()
			}
			event.Str("method", r.Method).
				Str("uri", redactedURI(r.URL)).
				Str("client_ip", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Dur("duration", time.Since(start)).
				Int("response_code", status).
				Int("bytes", ww.BytesWritten()).
				Msg("api")
		})
	}
}

// redactedURI is the request path and query with the access token masked.
func redactedURI(u *url.URL) string {
	query := u.Query()
	if query.Has(accessTokenName) {
		query.Set(accessTokenName, "REDACTED")
		redacted := *u
		redacted.RawQuery = query.Encode()
		return redacted.RequestURI()
	}
	return u.RequestURI()
}
