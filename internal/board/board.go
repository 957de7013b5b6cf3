package board

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/shuttleboard/shuttleboard/internal/engine"
	"github.com/shuttleboard/shuttleboard/internal/model"
	"github.com/shuttleboard/shuttleboard/internal/queue"
	"github.com/shuttleboard/shuttleboard/internal/store"
	"github.com/shuttleboard/shuttleboard/pkg/types"
)

type Msg interface{ isBoardMsg() }

// Join registers a session and immediately sends it the connect handshake
// (CONNECTED plus GAME_STATE_CHECK).
type Join struct {
	SessionID string
	Outbox    chan []byte // pre-marshaled frames for this session's writer
}

func (Join) isBoardMsg() {}

type Leave struct{ SessionID string }

func (Leave) isBoardMsg() {}

// FromSession carries one raw inbound frame from a session.
type FromSession struct {
	SessionID string
	Data      []byte
}

func (FromSession) isBoardMsg() {}

type Shutdown struct{}

func (Shutdown) isBoardMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isBoardMsg() {}

// View reflects actor internals without data races. Test-only.
type View struct {
	TeamID      model.TeamID
	NumSessions int
}

// Deps are the collaborators a board needs. All boards of a hub share them.
type Deps struct {
	Engine *engine.Engine
	Queue  *queue.Manager
	Store  store.Store
	Dir    store.Directory
	Log    *zap.Logger
}

// Board is the single writer for one team. All court and queue mutations of
// the team funnel through its inbox, so operations are applied one at a time
// and every connected session observes the same order of events.
type Board struct {
	teamID   model.TeamID
	inbox    chan Msg
	sessions map[string]chan []byte
	deps     Deps
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, teamID model.TeamID, deps Deps) *Board {
	ctx, cancel := context.WithCancel(parent)

	b := &Board{
		teamID:   teamID,
		inbox:    make(chan Msg, 64), // Small buffer
		sessions: make(map[string]chan []byte),
		deps:     deps,
		log:      deps.Log.With(zap.Int64("team_id", int64(teamID))),
		ctx:      ctx,
		cancel:   cancel,
	}

	go b.loop()
	return b
}

// Inbox exposes the actor's channel so the WS layer and tests can send
// messages.
func (b *Board) Inbox() chan<- Msg { return b.inbox }

func (b *Board) TeamID() model.TeamID { return b.teamID }

func (b *Board) loop() {
	for {
		select {
		case <-b.ctx.Done():
			b.shutdown()
			return

		case m := <-b.inbox:
			switch msg := m.(type) {
			case Join:
				b.sessions[msg.SessionID] = msg.Outbox
				// Non-blocking like every other delivery; an outbox that
				// cannot take the handshake must not wedge the actor.
				b.sendTo(msg.SessionID, b.marshal(types.Connected{
					Type:   types.TypeConnected,
					TeamID: int64(b.teamID),
				}))
				b.sendGameStateCheck(msg.SessionID)

			case Leave:
				delete(b.sessions, msg.SessionID)

			case FromSession:
				b.dispatch(msg.SessionID, msg.Data)

			case GetState:
				msg.Reply <- View{
					TeamID:      b.teamID,
					NumSessions: len(b.sessions),
				}

			case Shutdown:
				b.shutdown()
				return
			}
		}
	}
}

func (b *Board) shutdown() {
	for id, ch := range b.sessions {
		close(ch) // Tell session's writer no more frames
		delete(b.sessions, id)
	}
	b.cancel()
}

// dispatch decodes one inbound frame and routes it through the operation
// table. Unknown types are logged and dropped.
func (b *Board) dispatch(sessionID string, data []byte) {
	var msg types.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		b.log.Warn("dropping malformed frame", zap.Error(err))
		b.sendError(sessionID, "invalid message format")
		return
	}
	op, ok := ops[msg.Type]
	if !ok {
		b.log.Warn("dropping frame with unknown type", zap.String("type", msg.Type))
		return
	}
	op(b, sessionID, data, msg)
}

func (b *Board) marshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		b.log.Error("marshal outbound frame", zap.Error(err))
		return nil
	}
	return data
}

func (b *Board) broadcast(data []byte) {
	if data == nil {
		return
	}
	for id, ch := range b.sessions {
		select {
		case ch <- data:
			// ok
		default:
			// Session is slow/full - drop it.
			close(ch)
			delete(b.sessions, id)
		}
	}
}

func (b *Board) sendTo(sessionID string, data []byte) {
	ch, ok := b.sessions[sessionID]
	if !ok || data == nil {
		return
	}
	select {
	case ch <- data:
	default:
		close(ch)
		delete(b.sessions, sessionID)
	}
}

func (b *Board) sendError(sessionID, message string) {
	b.sendTo(sessionID, b.marshal(types.ErrorMessage{
		Type:    types.TypeError,
		Message: message,
	}))
}
