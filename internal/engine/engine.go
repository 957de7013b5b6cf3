package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shuttleboard/shuttleboard/internal/model"
	"github.com/shuttleboard/shuttleboard/internal/store"
)

var (
	ErrCourtNotFound       = errors.New("court not found")
	ErrInvalidPosition     = errors.New("position must be between 1 and 4")
	ErrDuplicateAssignment = errors.New("player already occupies a court of this team")
	ErrMatchAlreadyStarted = errors.New("match already started")
	ErrAlreadyStarted      = errors.New("match already started on this court")
	ErrIncompleteRoster    = errors.New("confirming a match requires 4 distinct players")
	ErrNotOngoing          = errors.New("no ongoing match on this court")
	ErrPlayerNotOnCourt    = errors.New("player is not on this court")
)

// Engine enforces the per-court lifecycle and the cross-court dedup invariant:
// within one team a member occupies at most one court's slots at a time.
// Callers must serialize mutating calls per team; the engine itself performs
// separate read and write round-trips against the store.
type Engine struct {
	store store.Store
	dir   store.Directory
	log   *zap.Logger
	now   func() time.Time
}

func New(st store.Store, dir store.Directory, log *zap.Logger) *Engine {
	return &Engine{store: st, dir: dir, log: log, now: time.Now}
}

// SetClock overrides the timestamp source. Test hook.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

func (e *Engine) court(ctx context.Context, courtID model.CourtID) (*model.Court, error) {
	c, err := e.store.GetCourt(ctx, courtID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCourtNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load court %d: %w", courtID, err)
	}
	return c, nil
}

// occupiedElsewhere reports whether playerID holds a slot on any court of the
// team, optionally excluding one court.
func (e *Engine) occupiedElsewhere(ctx context.Context, teamID model.TeamID, playerID model.MemberID, exclude model.CourtID) (bool, error) {
	courts, err := e.store.GetCourtsByTeam(ctx, teamID)
	if err != nil {
		return false, fmt.Errorf("load courts for team %d: %w", teamID, err)
	}
	for i := range courts {
		if courts[i].ID == exclude {
			continue
		}
		if courts[i].PositionOf(playerID) != 0 {
			return true, nil
		}
	}
	return false, nil
}

// AssignSlot places playerID on the given position of a PENDING or EMPTY
// court. Overwriting an occupied position is allowed before confirmation so an
// operator can correct a pick; no start time is set.
func (e *Engine) AssignSlot(ctx context.Context, courtID model.CourtID, position int, playerID model.MemberID) (*model.Court, error) {
	if position < 1 || position > model.SlotCount {
		return nil, ErrInvalidPosition
	}
	court, err := e.court(ctx, courtID)
	if err != nil {
		return nil, err
	}
	if court.StartedAt != nil {
		return nil, ErrMatchAlreadyStarted
	}
	dup, err := e.occupiedElsewhere(ctx, court.TeamID, playerID, 0)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateAssignment
	}
	court.SetPlayer(position, playerID)
	if err := e.store.UpdateCourt(ctx, court); err != nil {
		return nil, fmt.Errorf("update court %d: %w", courtID, err)
	}
	return court, nil
}

// RemoveSlot clears one slot of a PENDING court, addressed either by position
// (1-4) or, when position is 0, by the occupying player.
func (e *Engine) RemoveSlot(ctx context.Context, courtID model.CourtID, position int, playerID model.MemberID) (*model.Court, int, error) {
	court, err := e.court(ctx, courtID)
	if err != nil {
		return nil, 0, err
	}
	if court.StartedAt != nil {
		return nil, 0, ErrMatchAlreadyStarted
	}
	if position == 0 {
		position = court.PositionOf(playerID)
		if position == 0 {
			return nil, 0, ErrPlayerNotOnCourt
		}
	}
	if position < 1 || position > model.SlotCount {
		return nil, 0, ErrInvalidPosition
	}
	court.ClearSlot(position)
	if err := e.store.UpdateCourt(ctx, court); err != nil {
		return nil, 0, fmt.Errorf("update court %d: %w", courtID, err)
	}
	return court, position, nil
}

// ConfirmStart turns a pending assignment into a started match. The roster, if
// non-empty, overwrites the current slots; either way exactly 4 distinct
// players are required. On success the court goes ONGOING, a Match record is
// created and each player's most relevant WAITING entry flips to SERVED (a
// SERVED entry is created when none exists).
func (e *Engine) ConfirmStart(ctx context.Context, courtID model.CourtID, roster []model.MemberID) (*model.Court, *model.Match, error) {
	court, err := e.court(ctx, courtID)
	if err != nil {
		return nil, nil, err
	}
	if court.StartedAt != nil {
		return nil, nil, ErrAlreadyStarted
	}

	final := court.Slots
	if len(roster) > 0 {
		final = [model.SlotCount]*model.MemberID{}
		for i, id := range roster {
			if i >= model.SlotCount {
				break
			}
			p := id
			final[i] = &p
		}
	}

	var players [model.SlotCount]model.MemberID
	seen := make(map[model.MemberID]bool, model.SlotCount)
	count := 0
	for i, s := range final {
		if s == nil || seen[*s] {
			continue
		}
		seen[*s] = true
		players[i] = *s
		count++
	}
	if count != model.SlotCount {
		return nil, nil, ErrIncompleteRoster
	}
	for _, id := range players {
		dup, err := e.occupiedElsewhere(ctx, court.TeamID, id, court.ID)
		if err != nil {
			return nil, nil, err
		}
		if dup {
			return nil, nil, ErrDuplicateAssignment
		}
	}

	members, err := e.memberIndex(ctx, court.TeamID)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range players {
		member, ok := members[id]
		if !ok {
			member = model.Member{ID: id}
		}
		if _, err := e.store.UpsertPlayer(ctx, court.TeamID, member); err != nil {
			return nil, nil, fmt.Errorf("materialize player %d: %w", id, err)
		}
	}

	now := e.now()
	court.Slots = final
	court.StartedAt = &now
	court.EndedAt = nil
	if err := e.store.UpdateCourt(ctx, court); err != nil {
		return nil, nil, fmt.Errorf("update court %d: %w", courtID, err)
	}

	if err := e.serveWaitingEntries(ctx, court.TeamID, court.ID, players[:]); err != nil {
		return nil, nil, err
	}

	match := &model.Match{
		TeamID:    court.TeamID,
		CourtID:   court.ID,
		Players:   players,
		Status:    model.MatchOngoing,
		StartedAt: now,
	}
	if err := e.store.CreateMatch(ctx, match); err != nil {
		return nil, nil, fmt.Errorf("create match for court %d: %w", courtID, err)
	}
	return court, match, nil
}

// serveWaitingEntries flips each player's longest-waiting WAITING entry to
// SERVED, creating a SERVED entry for players that never queued.
func (e *Engine) serveWaitingEntries(ctx context.Context, teamID model.TeamID, courtID model.CourtID, players []model.MemberID) error {
	waiting, err := e.store.GetWaitingQueueByTeam(ctx, teamID)
	if err != nil {
		return fmt.Errorf("load waiting queue for team %d: %w", teamID, err)
	}
	oldest := make(map[model.MemberID]int64, len(players))
	for _, entry := range waiting {
		if _, ok := oldest[entry.PlayerID]; !ok {
			oldest[entry.PlayerID] = entry.ID
		}
	}
	for _, id := range players {
		if entryID, ok := oldest[id]; ok {
			if err := e.store.UpdateQueueStatus(ctx, entryID, model.QueueServed); err != nil {
				return fmt.Errorf("serve queue entry %d: %w", entryID, err)
			}
			continue
		}
		if _, err := e.store.CreateQueueEntry(ctx, teamID, id, &courtID, model.QueueServed); err != nil {
			return fmt.Errorf("create served entry for player %d: %w", id, err)
		}
	}
	return nil
}

// CancelPending clears every slot of a not-yet-started court. No Match record
// exists yet, so none is touched.
func (e *Engine) CancelPending(ctx context.Context, courtID model.CourtID) (*model.Court, error) {
	court, err := e.court(ctx, courtID)
	if err != nil {
		return nil, err
	}
	if court.StartedAt != nil {
		return nil, ErrMatchAlreadyStarted
	}
	if err := e.store.ClearCourtSlots(ctx, courtID); err != nil {
		return nil, fmt.Errorf("clear court %d: %w", courtID, err)
	}
	court.Slots = [model.SlotCount]*model.MemberID{}
	return court, nil
}

// Finish ends an ongoing match: the Match record flips to FINISHED, the court
// empties and each vacated player gets a fresh WAITING entry at the back of
// the line.
func (e *Engine) Finish(ctx context.Context, courtID model.CourtID) (*model.Court, int, error) {
	court, err := e.court(ctx, courtID)
	if err != nil {
		return nil, 0, err
	}
	if court.StartedAt == nil {
		return nil, 0, ErrNotOngoing
	}
	now := e.now()

	match, err := e.store.GetOngoingMatchByCourt(ctx, courtID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Court was started without an audit record surviving; still finish.
		e.log.Warn("finishing court without ongoing match record",
			zap.Int64("court_id", int64(courtID)))
	case err != nil:
		return nil, 0, fmt.Errorf("load ongoing match for court %d: %w", courtID, err)
	default:
		if err := e.store.FinishMatch(ctx, match.ID, now); err != nil {
			return nil, 0, fmt.Errorf("finish match %d: %w", match.ID, err)
		}
	}

	vacated := court.Occupants()
	court.Slots = [model.SlotCount]*model.MemberID{}
	court.StartedAt = nil
	court.EndedAt = &now
	if err := e.store.UpdateCourt(ctx, court); err != nil {
		return nil, 0, fmt.Errorf("update court %d: %w", courtID, err)
	}

	requeued := 0
	for _, id := range vacated {
		if _, err := e.store.CreateQueueEntry(ctx, court.TeamID, id, nil, model.QueueWaiting); err != nil {
			return nil, requeued, fmt.Errorf("requeue player %d: %w", id, err)
		}
		requeued++
	}
	return court, requeued, nil
}

func (e *Engine) memberIndex(ctx context.Context, teamID model.TeamID) (map[model.MemberID]model.Member, error) {
	members, err := e.dir.GetTeamMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("load members for team %d: %w", teamID, err)
	}
	idx := make(map[model.MemberID]model.Member, len(members))
	for _, m := range members {
		idx[m.ID] = m
	}
	return idx, nil
}
