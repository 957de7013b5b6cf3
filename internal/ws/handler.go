package ws

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/shuttleboard/shuttleboard/internal/board"
	"github.com/shuttleboard/shuttleboard/internal/hub"
	"github.com/shuttleboard/shuttleboard/internal/model"
)

// Options tune per-frame deadlines of the connection loops.
type Options struct {
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

func (o *Options) defaults() {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
}

// Handler upgrades GET /ws?teamId=N and binds the connection to the team's
// board: a writer goroutine drains the session outbox, the reader loop
// forwards raw frames into the board inbox.
func Handler(h *hub.Hub, log *zap.Logger, opts Options) http.HandlerFunc {
	opts.defaults()
	return func(w http.ResponseWriter, r *http.Request) {
		rawTeam := r.URL.Query().Get("teamId")
		teamID, err := strconv.ParseInt(rawTeam, 10, 64)
		if err != nil || teamID <= 0 {
			http.Error(w, "missing or invalid teamId", http.StatusBadRequest)
			return
		}

		b := h.Ensure(model.TeamID(teamID))

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan []byte, 16)
		sessionID := randID(6)
		log.Info("session connected",
			zap.Int64("team_id", teamID),
			zap.String("session_id", sessionID))

		b.Inbox() <- board.Join{SessionID: sessionID, Outbox: out}
		defer func() { b.Inbox() <- board.Leave{SessionID: sessionID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for frame := range out {
				ctx, cancel := context.WithTimeout(writeCtx, opts.WriteTimeout)
				_ = conn.Write(ctx, websocket.MessageText, frame)
				cancel()
			}
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), opts.ReadTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Info("session read ended",
						zap.String("session_id", sessionID),
						zap.Error(err))
				}
				return
			}

			b.Inbox() <- board.FromSession{SessionID: sessionID, Data: data}
		}
	}
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
