package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/livepoll/internal/config"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/testutil"
)

type testApp struct {
	*App
	Server *httptest.Server
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := config.Config{
		JWTSecret:           "test-secret",
		AllowedOrigins:      []string{"*"},
		SubscriberBuffer:    4,
		CorrectAnswerPoints: 100,
		LeaderboardSize:     10,
		VoteRetryMax:        3,
		VoteRetryBase:       time.Millisecond,
	}
	engine := New(cfg, testutil.NewStore(t), prometheus.NewRegistry(), zerolog.Nop())
	server := httptest.NewServer(engine.Handler)
	t.Cleanup(func() {
		engine.Close()
		server.Close()
	})

	return &testApp{App: engine, Server: server}
}

func (a *testApp) token(t *testing.T, actor domain.Actor) string {
	t.Helper()

	token, err := a.Tokens.Issue(actor, time.Hour)
	require.NoError(t, err)
	return token
}

// call sends body as JSON with an optional bearer token.
func (a *testApp) call(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.Server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.Server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testApp) dial(t *testing.T, path, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	u := "ws" + strings.TrimPrefix(a.Server.URL, "http") + path
	if token != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		u += sep + "access_token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func requireError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()

	require.Equal(t, status, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, code, body["code"])
	assert.NotEmpty(t, body["error"])
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readFrame reads frames until match accepts one.
func readFrame[T any](t *testing.T, conn *websocket.Conn, kind string, match func(T) bool) T {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		require.Equal(t, kind, f.Type)

		var v T
		require.NoError(t, json.Unmarshal(f.Data, &v))
		if match(v) {
			return v
		}
	}
}

// closeCode reads until the server closes the connection and returns the code.
func closeCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeErr, ok := err.(*websocket.CloseError)
			require.True(t, ok, "expected a close frame, got %v", err)
			return closeErr.Code
		}
	}
}

func contestPollBody() map[string]any {
	question := func(text string) map[string]any {
		return map[string]any{
			"text":            text,
			"options":         []map[string]any{{"text": "A"}, {"text": "B"}, {"text": "C"}},
			"correct_options": []int{1},
		}
	}
	return map[string]any{
		"title":     "Friday quiz",
		"type":      "contest",
		"questions": []map[string]any{question("First"), question("Second")},
	}
}

func TestPollLifecycle(t *testing.T) {
	app := setupTestApp(t)
	operator := app.token(t, testutil.Operator())
	player := app.token(t, testutil.Participant(1))

	// 1. Only creators may create polls.
	requireError(t, app.call(t, http.MethodPost, "/api/polls", "", contestPollBody()), http.StatusUnauthorized, "unauthenticated")
	requireError(t, app.call(t, http.MethodPost, "/api/polls", player, contestPollBody()), http.StatusForbidden, "forbidden")

	resp := app.call(t, http.MethodPost, "/api/polls", operator, contestPollBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	poll := decode[domain.Poll](t, resp)
	require.Len(t, poll.Questions, 2)
	assert.Equal(t, domain.StatusWaiting, poll.Status)
	pollPath := "/api/polls/" + poll.ID.String()

	// 2. Participants see the poll without its answer key.
	resp = app.call(t, http.MethodGet, pollPath, player, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_options")

	resp = app.call(t, http.MethodGet, pollPath, operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "correct_options")

	// 3. Votes wait for the poll to start.
	vote := map[string]any{"question_index": 0, "options": []int{1}}
	requireError(t, app.call(t, http.MethodPost, pollPath+"/votes", player, vote), http.StatusConflict, "poll_not_live")

	resp = app.call(t, http.MethodPost, pollPath+"/start", operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decode[ports.AdvanceResult](t, resp)
	assert.True(t, started.Changed)
	assert.Equal(t, domain.StatusLive, started.Poll.Status)

	// 4. A correct vote is acknowledged once.
	resp = app.call(t, http.MethodPost, pollPath+"/votes", player, vote)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	receipt := decode[domain.Receipt](t, resp)
	require.NotNil(t, receipt.Correct)
	assert.True(t, *receipt.Correct)

	requireError(t, app.call(t, http.MethodPost, pollPath+"/votes", player, vote), http.StatusConflict, "duplicate_vote")
	requireError(t, app.call(t, http.MethodPost, pollPath+"/votes", player, map[string]any{"options": []int{1}}), http.StatusBadRequest, "validation")
	requireError(t, app.call(t, http.MethodPost, pollPath+"/votes", player, map[string]any{"question_index": 0, "bogus": true}), http.StatusBadRequest, "validation")

	resp = app.call(t, http.MethodGet, pollPath+"/votes/mine", player, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[map[string]any](t, resp)["voted"].(bool))

	resp = app.call(t, http.MethodGet, pollPath+"/results/0", player, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	agg := decode[domain.Aggregate](t, resp)
	assert.Equal(t, int64(1), agg.Total)
	assert.Equal(t, int64(1), agg.Options[1].VoteCount)

	requireError(t, app.call(t, http.MethodGet, pollPath+"/results/9", player, nil), http.StatusBadRequest, "validation")

	// 5. Advancing makes the old question stale.
	resp = app.call(t, http.MethodPost, pollPath+"/advance", operator, map[string]any{"direction": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	advanced := decode[ports.AdvanceResult](t, resp)
	assert.True(t, advanced.Changed)
	assert.Equal(t, 1, advanced.Poll.CurrentQuestionIndex)

	requireError(t, app.call(t, http.MethodPost, pollPath+"/votes", app.token(t, testutil.Participant(2)), vote), http.StatusConflict, "stale_question")
	requireError(t, app.call(t, http.MethodPost, pollPath+"/advance", operator, map[string]any{"direction": 2}), http.StatusBadRequest, "validation")
	requireError(t, app.call(t, http.MethodPost, pollPath+"/advance", player, map[string]any{"direction": 1}), http.StatusForbidden, "forbidden")

	resp = app.call(t, http.MethodPost, pollPath+"/advance", operator, map[string]any{"direction": 1, "expected_index": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[ports.AdvanceResult](t, resp).Changed)

	// 6. Questions are frozen once live.
	requireError(t, app.call(t, http.MethodPatch, pollPath, operator, map[string]any{
		"questions": contestPollBody()["questions"],
	}), http.StatusConflict, "poll_locked")

	resp = app.call(t, http.MethodPatch, pollPath, operator, map[string]any{"title": "Renamed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Renamed", decode[domain.Poll](t, resp).Title)

	// 7. Boards and the audit log.
	resp = app.call(t, http.MethodGet, pollPath+"/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	board := decode[domain.Leaderboard](t, resp)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, int64(100), board.Entries[0].Points)

	resp = app.call(t, http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[domain.Leaderboard](t, resp).Entries, 1)

	requireError(t, app.call(t, http.MethodGet, pollPath+"/audit", player, nil), http.StatusForbidden, "forbidden")
	resp = app.call(t, http.MethodGet, pollPath+"/audit", operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Vote](t, resp), 1)

	resp = app.call(t, http.MethodGet, "/api/polls", operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Poll](t, resp), 1)

	// 8. End, then delete.
	resp = app.call(t, http.MethodPost, pollPath+"/end", operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.StatusEnded, decode[ports.AdvanceResult](t, resp).Poll.Status)

	resp = app.call(t, http.MethodDelete, pollPath, operator, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	requireError(t, app.call(t, http.MethodGet, pollPath, operator, nil), http.StatusNotFound, "not_found")
}

func TestRequestErrors(t *testing.T) {
	app := setupTestApp(t)
	operator := app.token(t, testutil.Operator())

	requireError(t, app.call(t, http.MethodGet, "/api/polls/not-a-uuid", "", nil), http.StatusBadRequest, "invalid_poll_id")
	requireError(t, app.call(t, http.MethodGet, "/api/polls/"+uuid.NewString(), "", nil), http.StatusNotFound, "not_found")
	requireError(t, app.call(t, http.MethodGet, "/api/me", "bad-token", nil), http.StatusUnauthorized, "unauthenticated")
	requireError(t, app.call(t, http.MethodGet, "/api/me", "", nil), http.StatusUnauthorized, "unauthenticated")
	requireError(t, app.call(t, http.MethodGet, "/api/polls?page=-1", operator, nil), http.StatusBadRequest, "validation")
	requireError(t, app.call(t, http.MethodPost, "/api/polls", operator, map[string]any{"title": "No questions"}), http.StatusBadRequest, "validation")
	requireError(t, app.call(t, http.MethodPost, "/api/polls", operator, map[string]any{
		"title":     "Bad type",
		"type":      "lottery",
		"questions": contestPollBody()["questions"],
	}), http.StatusBadRequest, "validation")
}

func TestMe(t *testing.T) {
	app := setupTestApp(t)

	resp := app.call(t, http.MethodGet, "/api/me", app.token(t, testutil.Admin()), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.Actor{ID: "admin", DisplayName: "Admin", IsAdmin: true, CanCreate: true}, decode[domain.Actor](t, resp))

	req, err := http.NewRequest(http.MethodGet, app.Server.URL+"/api/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: app.token(t, testutil.Participant(3))})
	resp, err = app.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "participant-3", decode[domain.Actor](t, resp).ID)
}

func TestHealthAndMetrics(t *testing.T) {
	app := setupTestApp(t)
	operator := app.token(t, testutil.Operator())

	resp := app.call(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])

	resp = app.call(t, http.MethodPost, "/api/polls", operator, contestPollBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	poll := decode[domain.Poll](t, resp)
	require.Equal(t, http.StatusOK, app.call(t, http.MethodPost, fmt.Sprintf("/api/polls/%s/start", poll.ID), operator, nil).StatusCode)
	require.Equal(t, http.StatusCreated, app.call(t, http.MethodPost, fmt.Sprintf("/api/polls/%s/votes", poll.ID),
		app.token(t, testutil.Participant(1)), map[string]any{"question_index": 0, "options": []int{0}}).StatusCode)

	resp = app.call(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `livepoll_votes_accepted_total{correct="false",poll_type="contest"} 1`)
	assert.Contains(t, string(raw), `livepoll_polls_advances_total{changed="true"} 1`)
}

func TestReactions(t *testing.T) {
	app := setupTestApp(t)
	operator := app.token(t, testutil.Operator())
	player := app.token(t, testutil.Participant(1))

	resp := app.call(t, http.MethodPost, "/api/polls", operator, contestPollBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pollPath := "/api/polls/" + decode[domain.Poll](t, resp).ID.String()

	conn, _, err := app.dial(t, pollPath+"/reactions/stream", "")
	require.NoError(t, err)

	requireError(t, app.call(t, http.MethodPost, pollPath+"/reactions", "", map[string]string{"emoji": "👍"}), http.StatusUnauthorized, "unauthenticated")
	requireError(t, app.call(t, http.MethodPost, pollPath+"/reactions", player, map[string]string{"emoji": "hello"}), http.StatusBadRequest, "validation")

	resp = app.call(t, http.MethodPost, pollPath+"/reactions", player, map[string]string{"emoji": "👍"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	sent := decode[domain.Reaction](t, resp)

	got := readFrame(t, conn, "reaction", func(domain.Reaction) bool { return true })
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, "👍", got.Emoji)

	resp = app.call(t, http.MethodGet, pollPath+"/reactions?limit=10", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recent := decode[[]domain.Reaction](t, resp)
	require.Len(t, recent, 1)
	assert.Equal(t, sent.ID, recent[0].ID)
}

func TestPollStateStream(t *testing.T) {
	app := setupTestApp(t)
	operator := app.token(t, testutil.Operator())
	player := app.token(t, testutil.Participant(1))

	resp := app.call(t, http.MethodPost, "/api/polls", operator, contestPollBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	poll := decode[domain.Poll](t, resp)
	pollPath := "/api/polls/" + poll.ID.String()

	// 1. Unknown polls are refused before the upgrade.
	_, resp, err := app.dial(t, "/api/polls/"+uuid.NewString()+"/stream", player)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// 2. A participant sees itself counted.
	conn, _, err := app.dial(t, pollPath+"/stream", player)
	require.NoError(t, err)
	snap := readFrame(t, conn, "poll_state", func(s domain.PollSnapshot) bool { return s.ParticipantCount == 1 })
	assert.Equal(t, poll.ID, snap.PollID)
	assert.Equal(t, domain.StatusWaiting, snap.Status)
	assert.Nil(t, snap.Question.CorrectOptions)

	// 3. Starting the poll reaches the stream.
	require.Equal(t, http.StatusOK, app.call(t, http.MethodPost, pollPath+"/start", operator, nil).StatusCode)
	readFrame(t, conn, "poll_state", func(s domain.PollSnapshot) bool { return s.Status == domain.StatusLive })

	// 4. Votes update the live aggregate.
	require.Equal(t, http.StatusCreated, app.call(t, http.MethodPost, pollPath+"/votes", player,
		map[string]any{"question_index": 0, "options": []int{2}}).StatusCode)
	snap = readFrame(t, conn, "poll_state", func(s domain.PollSnapshot) bool { return s.Aggregate != nil && s.Aggregate.Total == 1 })
	assert.Equal(t, int64(1), snap.Aggregate.Options[2].VoteCount)

	// 5. Deleting the poll closes the stream with a not found code.
	require.Equal(t, http.StatusNoContent, app.call(t, http.MethodDelete, pollPath, operator, nil).StatusCode)
	assert.Equal(t, 4404, closeCode(t, conn))
}

func TestLeaderboardStream(t *testing.T) {
	app := setupTestApp(t)
	operator := app.token(t, testutil.Operator())

	resp := app.call(t, http.MethodPost, "/api/polls", operator, contestPollBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	poll := decode[domain.Poll](t, resp)
	pollPath := "/api/polls/" + poll.ID.String()
	require.Equal(t, http.StatusOK, app.call(t, http.MethodPost, pollPath+"/start", operator, nil).StatusCode)

	_, resp, err := app.dial(t, "/api/leaderboard/stream?poll=nope", "")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	conn, _, err := app.dial(t, "/api/leaderboard/stream?poll="+poll.ID.String(), "")
	require.NoError(t, err)
	readFrame(t, conn, "leaderboard", func(domain.Leaderboard) bool { return true })

	for i := range 2 {
		require.Equal(t, http.StatusCreated, app.call(t, http.MethodPost, pollPath+"/votes", app.token(t, testutil.Participant(i)),
			map[string]any{"question_index": 0, "options": []int{1}}).StatusCode)
	}

	board := readFrame(t, conn, "leaderboard", func(l domain.Leaderboard) bool { return len(l.Entries) == 2 })
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, 2, board.Entries[1].Rank)
}

func TestCloseEndsStreams(t *testing.T) {
	app := setupTestApp(t)
	operator := app.token(t, testutil.Operator())

	resp := app.call(t, http.MethodPost, "/api/polls", operator, contestPollBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	poll := decode[domain.Poll](t, resp)

	conn, _, err := app.dial(t, "/api/polls/"+poll.ID.String()+"/stream", operator)
	require.NoError(t, err)
	readFrame(t, conn, "poll_state", func(domain.PollSnapshot) bool { return true })

	app.Close()
	assert.Equal(t, websocket.CloseGoingAway, closeCode(t, conn))
}
