package board

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shuttleboard/shuttleboard/internal/engine"
	"github.com/shuttleboard/shuttleboard/internal/model"
	"github.com/shuttleboard/shuttleboard/internal/queue"
	"github.com/shuttleboard/shuttleboard/internal/store"
	"github.com/shuttleboard/shuttleboard/pkg/types"
)

var validate = validator.New()

type opFunc func(b *Board, sessionID string, raw []byte, msg types.ClientMessage)

// ops is the operation table. Adding a message type means adding a handler
// here; there is no runtime discovery.
var ops = map[string]opFunc{
	types.TypeAssignPlayer:            (*Board).handleAssignPlayer,
	types.TypeAutoAssign:              (*Board).handleAutoAssign,
	types.TypeRemovePlayer:            (*Board).handleRemovePlayer,
	types.TypeConfirmStartMatch:       (*Board).handleConfirmStartMatch,
	types.TypeCancelPendingAssignment: (*Board).handleCancelPending,
	types.TypeFinishMatch:             (*Board).handleFinishMatch,
	types.TypeStartNewGame:            (*Board).handleStartNewGame,
	types.TypeClearQueue:              (*Board).handleClearQueue,
	types.TypeLoadQueue:               (*Board).handleLoadQueue,
	types.TypeRestoreState:            (*Board).handleRestoreState,

	// Client-originated notifications are re-broadcast verbatim so every
	// session converges without the server re-interpreting them.
	types.TypeQueueUpdate:    (*Board).handlePassThrough,
	types.TypeCourtUpdate:    (*Board).handlePassThrough,
	types.TypePlayerAssigned: (*Board).handlePassThrough,
	types.TypePlayerRemoved:  (*Board).handlePassThrough,
}

func (b *Board) handlePassThrough(sessionID string, raw []byte, _ types.ClientMessage) {
	b.broadcast(raw)
}

func (b *Board) handleAssignPlayer(sessionID string, _ []byte, msg types.ClientMessage) {
	params := types.AssignPlayerParams{
		TeamID:   msg.TeamID,
		CourtID:  msg.CourtID,
		UserID:   msg.UserID,
		Position: msg.Position,
	}
	if err := validate.Struct(params); err != nil {
		b.sendError(sessionID, "ASSIGN_PLAYER requires teamId, courtId, userId and position 1-4")
		return
	}
	court, err := b.deps.Engine.AssignSlot(b.ctx, model.CourtID(params.CourtID), params.Position, model.MemberID(params.UserID))
	if err != nil {
		b.opError(sessionID, "ASSIGN_PLAYER", err)
		return
	}
	b.broadcast(b.marshal(types.PlayerAssigned{
		Type:     types.TypePlayerAssigned,
		TeamID:   int64(b.teamID),
		CourtID:  int64(court.ID),
		UserID:   params.UserID,
		Position: params.Position,
	}))
	b.broadcastQueueUpdate()
}

func (b *Board) handleAutoAssign(sessionID string, _ []byte, msg types.ClientMessage) {
	params := types.AutoAssignParams{TeamID: msg.TeamID, CourtID: msg.CourtID}
	if err := validate.Struct(params); err != nil {
		b.sendError(sessionID, "AUTO_ASSIGN requires teamId and courtId")
		return
	}
	courtID := model.CourtID(params.CourtID)
	court, err := b.deps.Store.GetCourt(b.ctx, courtID)
	if errors.Is(err, store.ErrNotFound) {
		b.sendError(sessionID, engine.ErrCourtNotFound.Error())
		return
	}
	if err != nil {
		b.opError(sessionID, "AUTO_ASSIGN", err)
		return
	}
	if court.StartedAt != nil {
		b.sendError(sessionID, engine.ErrMatchAlreadyStarted.Error())
		return
	}
	empty := court.EmptyPositions()
	if len(empty) == 0 {
		b.sendError(sessionID, "court is full")
		return
	}

	picked, err := b.deps.Queue.SelectForAutoAssign(b.ctx, b.teamID, len(empty))
	if err != nil {
		b.opError(sessionID, "AUTO_ASSIGN", err)
		return
	}
	// All-or-nothing: materialize everyone before touching the court so a
	// failed upsert leaves the slots untouched.
	for _, w := range picked {
		if _, err := b.deps.Store.UpsertPlayer(b.ctx, b.teamID, w.Member); err != nil {
			b.opError(sessionID, "AUTO_ASSIGN", err)
			return
		}
	}
	for i, pos := range empty {
		court, err = b.deps.Engine.AssignSlot(b.ctx, courtID, pos, picked[i].Member.ID)
		if err != nil {
			b.opError(sessionID, "AUTO_ASSIGN", err)
			return
		}
	}

	b.broadcast(b.marshal(types.AutoAssignSuccess{
		Type:        types.TypeAutoAssignSuccess,
		TeamID:      int64(b.teamID),
		CourtID:     int64(courtID),
		Assignments: b.assignmentsFor(court),
		IsPending:   true,
	}))
	b.broadcastQueueUpdate()
}

func (b *Board) handleRemovePlayer(sessionID string, _ []byte, msg types.ClientMessage) {
	params := types.RemovePlayerParams{
		TeamID:   msg.TeamID,
		CourtID:  msg.CourtID,
		PlayerID: msg.PlayerID,
		Position: msg.Position,
	}
	if params.PlayerID == 0 {
		params.PlayerID = msg.UserID
	}
	if err := validate.Struct(params); err != nil {
		b.sendError(sessionID, "REMOVE_PLAYER requires teamId, courtId and playerId or position")
		return
	}
	court, position, err := b.deps.Engine.RemoveSlot(b.ctx, model.CourtID(params.CourtID), params.Position, model.MemberID(params.PlayerID))
	if err != nil {
		b.opError(sessionID, "REMOVE_PLAYER", err)
		return
	}
	b.broadcast(b.marshal(types.PlayerRemoved{
		Type:     types.TypePlayerRemoved,
		TeamID:   int64(b.teamID),
		CourtID:  int64(court.ID),
		PlayerID: params.PlayerID,
		Position: position,
	}))
	b.broadcastQueueUpdate()
}

func (b *Board) handleConfirmStartMatch(sessionID string, _ []byte, msg types.ClientMessage) {
	params := types.ConfirmStartParams{
		TeamID:  msg.TeamID,
		CourtID: msg.CourtID,
		Players: msg.Players,
	}
	if err := validate.Struct(params); err != nil {
		b.sendError(sessionID, "CONFIRM_START_MATCH requires teamId and courtId")
		return
	}
	var roster []model.MemberID
	if len(params.Players) > 0 {
		slots := make([]model.MemberID, model.SlotCount)
		for _, rp := range params.Players {
			if rp.Position < 1 || rp.Position > model.SlotCount || rp.UserID == 0 {
				b.sendError(sessionID, "roster entries need userId and position 1-4")
				return
			}
			if slots[rp.Position-1] != 0 {
				b.sendError(sessionID, "roster assigns the same position twice")
				return
			}
			slots[rp.Position-1] = model.MemberID(rp.UserID)
		}
		roster = slots
	}
	court, match, err := b.deps.Engine.ConfirmStart(b.ctx, model.CourtID(params.CourtID), roster)
	if err != nil {
		b.opError(sessionID, "CONFIRM_START_MATCH", err)
		return
	}
	b.broadcast(b.marshal(types.ConfirmStartMatchSuccess{
		Type:        types.TypeConfirmStartMatchSuccess,
		TeamID:      int64(b.teamID),
		CourtID:     int64(court.ID),
		Assignments: b.assignmentsFor(court),
		StartedAt:   match.StartedAt.Format(time.RFC3339),
	}))
	b.broadcastQueueUpdate()
}

func (b *Board) handleCancelPending(sessionID string, _ []byte, msg types.ClientMessage) {
	params := types.CourtOnlyParams{TeamID: msg.TeamID, CourtID: msg.CourtID}
	if err := validate.Struct(params); err != nil {
		b.sendError(sessionID, "CANCEL_PENDING_ASSIGNMENT requires teamId and courtId")
		return
	}
	court, err := b.deps.Engine.CancelPending(b.ctx, model.CourtID(params.CourtID))
	if err != nil {
		b.opError(sessionID, "CANCEL_PENDING_ASSIGNMENT", err)
		return
	}
	b.broadcast(b.marshal(types.CancelPendingSuccess{
		Type:    types.TypeCancelPendingSuccess,
		TeamID:  int64(b.teamID),
		CourtID: int64(court.ID),
	}))
	b.broadcastQueueUpdate()
}

func (b *Board) handleFinishMatch(sessionID string, _ []byte, msg types.ClientMessage) {
	params := types.CourtOnlyParams{TeamID: msg.TeamID, CourtID: msg.CourtID}
	if err := validate.Struct(params); err != nil {
		b.sendError(sessionID, "FINISH_MATCH requires teamId and courtId")
		return
	}
	court, requeued, err := b.deps.Engine.Finish(b.ctx, model.CourtID(params.CourtID))
	if err != nil {
		b.opError(sessionID, "FINISH_MATCH", err)
		return
	}
	b.broadcast(b.marshal(types.MatchFinished{
		Type:          types.TypeMatchFinished,
		TeamID:        int64(b.teamID),
		CourtID:       int64(court.ID),
		ReQueuedCount: requeued,
	}))
	b.broadcastQueueUpdate()
}

// handleStartNewGame resets the whole session: every started court is
// finished and cleared, then the waiting queue is rebuilt from the current
// membership.
func (b *Board) handleStartNewGame(sessionID string, _ []byte, msg types.ClientMessage) {
	params := types.TeamOnlyParams{TeamID: msg.TeamID}
	if err := validate.Struct(params); err != nil {
		b.sendError(sessionID, "START_NEW_GAME requires teamId")
		return
	}
	courts, err := b.deps.Store.GetCourtsByTeam(b.ctx, b.teamID)
	if err != nil {
		b.opError(sessionID, "START_NEW_GAME", err)
		return
	}
	cleared := 0
	for i := range courts {
		c := &courts[i]
		if c.StartedAt == nil && len(c.Occupants()) == 0 {
			continue
		}
		if c.StartedAt != nil {
			if match, err := b.deps.Store.GetOngoingMatchByCourt(b.ctx, c.ID); err == nil {
				if err := b.deps.Store.FinishMatch(b.ctx, match.ID, time.Now()); err != nil {
					b.opError(sessionID, "START_NEW_GAME", err)
					return
				}
			}
		}
		if err := b.deps.Store.ClearCourtSlots(b.ctx, c.ID); err != nil {
			b.opError(sessionID, "START_NEW_GAME", err)
			return
		}
		cleared++
	}
	deleted, _, err := b.deps.Queue.ResetTeamQueue(b.ctx, b.teamID)
	if err != nil {
		b.opError(sessionID, "START_NEW_GAME", err)
		return
	}
	b.broadcast(b.marshal(types.StartNewGameSuccess{
		Type:               types.TypeStartNewGameSuccess,
		TeamID:             int64(b.teamID),
		ClearedCourtsCount: cleared,
		DeletedQueueCount:  deleted,
	}))
	b.broadcastQueueUpdate()
}

func (b *Board) handleClearQueue(sessionID string, _ []byte, msg types.ClientMessage) {
	params := types.TeamOnlyParams{TeamID: msg.TeamID}
	if err := validate.Struct(params); err != nil {
		b.sendError(sessionID, "CLEAR_QUEUE requires teamId")
		return
	}
	deleted, err := b.deps.Store.DeleteWaitingByTeam(b.ctx, b.teamID)
	if err != nil {
		b.opError(sessionID, "CLEAR_QUEUE", err)
		return
	}
	b.broadcast(b.marshal(types.ClearQueueSuccess{
		Type:         types.TypeClearQueueSuccess,
		TeamID:       int64(b.teamID),
		DeletedCount: deleted,
	}))
	b.broadcastQueueUpdate()
}

func (b *Board) handleLoadQueue(sessionID string, _ []byte, msg types.ClientMessage) {
	params := types.TeamOnlyParams{TeamID: msg.TeamID}
	if err := validate.Struct(params); err != nil {
		b.sendError(sessionID, "LOAD_QUEUE requires teamId")
		return
	}
	update, err := b.queueUpdate()
	if err != nil {
		b.opError(sessionID, "LOAD_QUEUE", err)
		return
	}
	b.sendTo(sessionID, b.marshal(update))
}

// handleRestoreState resends everything a reconnecting viewer needs: the
// ongoing-court rosters followed by a private waiting-queue snapshot.
func (b *Board) handleRestoreState(sessionID string, _ []byte, msg types.ClientMessage) {
	params := types.TeamOnlyParams{TeamID: msg.TeamID}
	if err := validate.Struct(params); err != nil {
		b.sendError(sessionID, "RESTORE_STATE requires teamId")
		return
	}
	courts, err := b.deps.Store.GetCourtsByTeam(b.ctx, b.teamID)
	if err != nil {
		b.opError(sessionID, "RESTORE_STATE", err)
		return
	}
	restored := make([]types.RestoredCourt, 0, len(courts))
	for i := range courts {
		c := &courts[i]
		if c.StartedAt == nil {
			continue
		}
		restored = append(restored, types.RestoredCourt{
			CourtID:     int64(c.ID),
			StartedAt:   c.StartedAt.Format(time.RFC3339),
			Assignments: b.assignmentsFor(c),
		})
	}
	b.sendTo(sessionID, b.marshal(types.RestoreOngoingMatches{
		Type:   types.TypeRestoreOngoingMatches,
		TeamID: int64(b.teamID),
		Courts: restored,
	}))

	update, err := b.queueUpdate()
	if err != nil {
		b.opError(sessionID, "RESTORE_STATE", err)
		return
	}
	b.sendTo(sessionID, b.marshal(update))
}

// sendGameStateCheck tells a freshly joined session whether any court is in
// use so the client can decide to pull RESTORE_STATE. Occupancy means any
// slot filled; a PENDING assignment counts the same as a started match.
func (b *Board) sendGameStateCheck(sessionID string) {
	courts, err := b.deps.Store.GetCourtsByTeam(b.ctx, b.teamID)
	if err != nil {
		b.log.Error("game state check", zap.Error(err))
		return
	}
	occupied := 0
	for i := range courts {
		if len(courts[i].Occupants()) > 0 {
			occupied++
		}
	}
	check := types.GameStateCheck{
		Type:               types.TypeGameStateCheck,
		TeamID:             int64(b.teamID),
		HasOngoingMatches:  occupied > 0,
		OngoingCourtsCount: occupied,
		Message:            "no courts in use",
	}
	if occupied > 0 {
		check.Message = "courts in use"
	}
	b.sendTo(sessionID, b.marshal(check))
}

func (b *Board) queueUpdate() (types.QueueUpdate, error) {
	waiting, err := b.deps.Queue.ComputeWaitingQueue(b.ctx, b.teamID)
	if err != nil {
		return types.QueueUpdate{}, err
	}
	members := make([]types.QueueMember, 0, len(waiting))
	for _, w := range waiting {
		qm := types.QueueMember{
			UserID:      int64(w.Member.ID),
			DisplayName: w.Member.DisplayName,
			Contact:     w.Member.Contact,
		}
		if w.Entry != nil {
			qm.QueuedAt = w.Entry.CreatedAt.Format(time.RFC3339)
		}
		members = append(members, qm)
	}
	return types.QueueUpdate{
		Type:   types.TypeQueueUpdate,
		TeamID: int64(b.teamID),
		Queue:  members,
	}, nil
}

// broadcastQueueUpdate recomputes the waiting queue and pushes it to every
// session. Called after every mutation so clients never hold a stale queue.
func (b *Board) broadcastQueueUpdate() {
	update, err := b.queueUpdate()
	if err != nil {
		b.log.Error("compute waiting queue", zap.Error(err))
		return
	}
	b.broadcast(b.marshal(update))
}

// assignmentsFor resolves a court's occupied slots to wire assignments with
// directory display identity.
func (b *Board) assignmentsFor(court *model.Court) []types.Assignment {
	idx := make(map[model.MemberID]model.Member)
	if members, err := b.deps.Dir.GetTeamMembers(b.ctx, b.teamID); err == nil {
		for _, m := range members {
			idx[m.ID] = m
		}
	} else {
		b.log.Warn("resolve member identities", zap.Error(err))
	}
	out := make([]types.Assignment, 0, model.SlotCount)
	for pos := 1; pos <= model.SlotCount; pos++ {
		id := court.PlayerAt(pos)
		if id == nil {
			continue
		}
		a := types.Assignment{UserID: int64(*id), Position: pos}
		if m, ok := idx[*id]; ok {
			a.DisplayName = m.DisplayName
			a.Contact = m.Contact
		}
		out = append(out, a)
	}
	return out
}

// opError maps business errors to an ERROR frame for the sender only; store
// or infrastructure failures also get logged.
func (b *Board) opError(sessionID, op string, err error) {
	switch {
	case errors.Is(err, engine.ErrCourtNotFound),
		errors.Is(err, engine.ErrInvalidPosition),
		errors.Is(err, engine.ErrDuplicateAssignment),
		errors.Is(err, engine.ErrMatchAlreadyStarted),
		errors.Is(err, engine.ErrAlreadyStarted),
		errors.Is(err, engine.ErrIncompleteRoster),
		errors.Is(err, engine.ErrNotOngoing),
		errors.Is(err, engine.ErrPlayerNotOnCourt),
		errors.Is(err, queue.ErrInsufficientMembers):
		b.sendError(sessionID, err.Error())
	default:
		b.log.Error("operation failed", zap.String("op", op), zap.Error(err))
		b.sendError(sessionID, "internal error")
	}
}
