package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/services"
)

func TestAuthenticate(t *testing.T) {
	tokens := services.NewTokenService("secret")
	token, err := tokens.Issue(domain.Actor{ID: "p1", DisplayName: "Ana"}, time.Hour)
	require.NoError(t, err)

	var seen domain.Actor
	handler := Authenticate(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		prepare    func(r *http.Request)
		wantStatus int
		wantActor  string
	}{
		{
			name:       "anonymous",
			prepare:    func(*http.Request) {},
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "bearer header",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantStatus: http.StatusNoContent,
			wantActor:  "p1",
		},
		{
			name:       "cookie",
			prepare:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: token}) },
			wantStatus: http.StatusNoContent,
			wantActor:  "p1",
		},
		{
			name: "query parameter",
			prepare: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("access_token", token)
				r.URL.RawQuery = q.Encode()
			},
			wantStatus: http.StatusNoContent,
			wantActor:  "p1",
		},
		{
			name:       "invalid token",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = domain.Actor{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantActor, seen.ID)
		})
	}
}

func TestOriginChecker(t *testing.T) {
	request := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	allowAll := originChecker([]string{"*"})
	assert.True(t, allowAll(request("https://evil.example")))

	strict := originChecker([]string{"https://app.example", "admin.example:8443"})
	assert.True(t, strict(request("")))
	assert.True(t, strict(request("https://app.example")))
	assert.True(t, strict(request("https://admin.example:8443")))
	assert.False(t, strict(request("https://evil.example")))
	assert.False(t, strict(request("://bad")))
}

func TestAccessLogRedactsToken(t *testing.T) {
	var buf bytes.Buffer
	handler := AccessLog(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/polls/x/stream?access_token=SECRETJWT&poll=7", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	assert.NotContains(t, line, "SECRETJWT")
	assert.Contains(t, line, "/api/polls/x/stream?")
	assert.Contains(t, line, "poll=7")
	assert.Contains(t, line, `"response_code":204`)
}
