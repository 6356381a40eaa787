package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vncsmyrnk/livepoll/internal/adapters/pubsub"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

const (
	// PongWait is how long the server waits for a pong before it considers the
	// client gone.
	PongWait = 30 * time.Second
	// PingPeriod must stay below PongWait.
	PingPeriod = (PongWait * 9) / 10
	WriteWait  = 10 * time.Second

	// CloseNotFound ends a stream whose poll was deleted.
	CloseNotFound = 4404
)

const (
	KindPollState   = "poll_state"
	KindLeaderboard = "leaderboard"
	KindReaction    = "reaction"
)

var (
	errStreamEnded  = errors.New("stream ended")
	errClientClosed = errors.New("client closed the connection")
)

// message is the frame sent for every stream update.
type message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type StreamHandler struct {
	sync      ports.SyncService
	reactions ports.ReactionService
	upgrader  websocket.Upgrader
}

// NewStreamHandler upgrades stream requests to websockets. An origin list
// holding "*" accepts any origin.
func NewStreamHandler(sync ports.SyncService, reactions ports.ReactionService, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		sync:      sync,
		reactions: reactions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.Contains(allowed, origin) || slices.Contains(allowed, u.Host)
	}
}

// PollState streams snapshots of a poll. Participants connected here count
// towards the poll's participant total.
func (h *StreamHandler) PollState(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	actor := ActorFrom(r.Context())
	serveStream(h, w, r, KindPollState, func(ctx context.Context) (ports.Stream[domain.PollSnapshot], error) {
		return h.sync.SubscribePollState(ctx, actor, pollID)
	})
}

// Leaderboard streams the board of the poll given by ?poll=, or the global
// board without it.
func (h *StreamHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	pollID := uuid.Nil
	if raw := r.URL.Query().Get("poll"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, domain.ErrInvalidPollID)
			return
		}
		pollID = id
	}

	serveStream(h, w, r, KindLeaderboard, func(ctx context.Context) (ports.Stream[domain.Leaderboard], error) {
		return h.sync.SubscribeLeaderboard(ctx, pollID)
	})
}

func (h *StreamHandler) Reactions(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	serveStream(h, w, r, KindReaction, func(ctx context.Context) (ports.Stream[domain.Reaction], error) {
		return h.reactions.Subscribe(ctx, pollID)
	})
}

// serveStream opens the subscription before upgrading so that a missing poll
// is still answered with a plain HTTP error.
func serveStream[V any](h *StreamHandler, w http.ResponseWriter, r *http.Request, kind string, open func(ctx context.Context) (ports.Stream[V], error)) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, err := open(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stream.Close()

	log := zerolog.Ctx(r.Context()).With().Str("stream", kind).Logger()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	configureKeepalive(conn)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return guard(log, func() error { return keepalive(gctx, conn) }) })
	g.Go(func() error { return guard(log, func() error { return writeMessages(gctx, conn, kind, stream) }) })
	g.Go(func() error { return guard(log, func() error { return readMessages(conn) }) })
	g.Go(func() error {
		// unblocks readMessages once any other routine is done
		<-gctx.Done()
		return conn.SetReadDeadline(time.Now())
	})

	err = g.Wait()
	if err != nil && !isExpectedClose(err) && ctx.Err() == nil {
		log.Debug().Err(err).Msg("stream connection failed")
	}
}

func configureKeepalive(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PongWait))
	})
}

func keepalive(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteWait)); err != nil {
				return fmt.Errorf("failed to write ping message: %w", err)
			}
		}
	}
}

func writeMessages[V any](ctx context.Context, conn *websocket.Conn, kind string, stream ports.Stream[V]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-stream.Updates():
			if !ok {
				return closeConnection(conn, stream.Err())
			}
			if err := conn.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
				return fmt.Errorf("failed to set the write deadline: %w", err)
			}
			if err := conn.WriteJSON(message{Type: kind, Data: v}); err != nil {
				return fmt.Errorf("failed to write message: %w", err)
			}
		}
	}
}

// readMessages only drains control frames; clients have nothing to send.
func readMessages(conn *websocket.Conn) error {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errClientClosed
			}
			return err
		}
	}
}

// closeConnection tells the client why its stream ended.
func closeConnection(conn *websocket.Conn, cause error) error {
	code, text := websocket.CloseNormalClosure, "stream closed"
	switch {
	case errors.Is(cause, domain.ErrPollNotFound):
		code, text = CloseNotFound, domain.ErrPollNotFound.Error()
	case errors.Is(cause, pubsub.ErrHubClosed):
		code, text = websocket.CloseGoingAway, "server shutting down"
	case cause != nil:
		code, text = websocket.CloseInternalServerErr, domain.ErrInternal.Error()
	}

	err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(WriteWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to write close message: %w", err)
	}
	return errStreamEnded
}

func guard(log zerolog.Logger, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("stream routine panicked")
			err = fmt.Errorf("stream routine panicked: %v", r)
		}
	}()
	return fn()
}

func isExpectedClose(err error) bool {
	return errors.Is(err, errStreamEnded) ||
		errors.Is(err, errClientClosed) ||
		errors.Is(err, websocket.ErrCloseSent)
}
