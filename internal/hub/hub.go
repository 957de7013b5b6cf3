package hub

import (
	"context"

	"github.com/shuttleboard/shuttleboard/internal/board"
	"github.com/shuttleboard/shuttleboard/internal/model"
)

type HubMsg interface{ isHubMsg() }

type EnsureBoard struct {
	TeamID model.TeamID
	Reply  chan *board.Board
}

type GetBoard struct {
	TeamID model.TeamID
	Reply  chan *board.Board
}

type RemoveBoard struct {
	TeamID model.TeamID
}

type ShutdownHub struct{}

func (EnsureBoard) isHubMsg() {}
func (GetBoard) isHubMsg()    {}
func (RemoveBoard) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the set of live team boards. Boards are created lazily on the
// first connection for a team and share the deps the hub was built with.
type Hub struct {
	inbox  chan HubMsg
	boards map[model.TeamID]*board.Board
	deps   board.Deps
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, deps board.Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		boards: make(map[model.TeamID]*board.Board),
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Ensure returns the board for teamID, creating it if needed. Convenience
// wrapper over the inbox for the HTTP/WS layer.
func (h *Hub) Ensure(teamID model.TeamID) *board.Board {
	reply := make(chan *board.Board, 1)
	h.inbox <- EnsureBoard{TeamID: teamID, Reply: reply}
	return <-reply
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureBoard:
				if b := h.boards[msg.TeamID]; b != nil {
					msg.Reply <- b
					break
				}
				b := board.New(h.ctx, msg.TeamID, h.deps)
				h.boards[msg.TeamID] = b
				msg.Reply <- b

			case GetBoard:
				msg.Reply <- h.boards[msg.TeamID] // May be nil

			case RemoveBoard:
				delete(h.boards, msg.TeamID)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, b := range h.boards {
		b.Inbox() <- board.Shutdown{}
	}
	clear(h.boards)
	h.cancel()
}
