package queue

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shuttleboard/shuttleboard/internal/model"
	"github.com/shuttleboard/shuttleboard/internal/store"
)

// ErrInsufficientMembers is returned by SelectForAutoAssign when the team has
// fewer waiting members than the number of empty positions to fill.
var ErrInsufficientMembers = errors.New("not enough waiting members to fill the court")

// WaitingMember is one position of the derived waiting queue. Entry is nil for
// members who have no WAITING record yet; those sort after everyone who does.
type WaitingMember struct {
	Member model.Member
	Entry  *model.QueueEntry
}

// Manager derives the team waiting queue. The queue is never stored as a list:
// it is recomputed from directory membership, current court occupancy and
// WAITING entries, so it survives restarts and stays consistent by
// construction.
type Manager struct {
	store store.Store
	dir   store.Directory
	log   *zap.Logger
}

func NewManager(st store.Store, dir store.Directory, log *zap.Logger) *Manager {
	return &Manager{store: st, dir: dir, log: log}
}

// ComputeWaitingQueue returns the team's waiting members in serving order:
// members with a WAITING entry first, ordered by their oldest entry's sequence
// number, then members who never queued, in directory order. Members currently
// occupying any court slot are excluded entirely.
func (m *Manager) ComputeWaitingQueue(ctx context.Context, teamID model.TeamID) ([]WaitingMember, error) {
	members, err := m.dir.GetTeamMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("load members for team %d: %w", teamID, err)
	}
	courts, err := m.store.GetCourtsByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("load courts for team %d: %w", teamID, err)
	}
	onCourt := make(map[model.MemberID]bool)
	for i := range courts {
		for _, id := range courts[i].Occupants() {
			onCourt[id] = true
		}
	}

	waiting, err := m.store.GetWaitingQueueByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("load waiting queue for team %d: %w", teamID, err)
	}
	// Keep only each player's oldest WAITING entry; later duplicates do not
	// improve their place in line.
	oldest := make(map[model.MemberID]*model.QueueEntry, len(waiting))
	for i := range waiting {
		e := &waiting[i]
		if _, ok := oldest[e.PlayerID]; !ok {
			oldest[e.PlayerID] = e
		}
	}

	byID := make(map[model.MemberID]model.Member, len(members))
	for _, member := range members {
		byID[member.ID] = member
	}

	queued := make([]WaitingMember, 0, len(waiting))
	for i := range waiting {
		e := &waiting[i]
		if oldest[e.PlayerID] != e || onCourt[e.PlayerID] {
			continue
		}
		member, ok := byID[e.PlayerID]
		if !ok {
			// Entry for someone who left the team; skip rather than surface a
			// ghost row.
			continue
		}
		queued = append(queued, WaitingMember{Member: member, Entry: e})
	}

	var never []WaitingMember
	for _, member := range members {
		if onCourt[member.ID] {
			continue
		}
		if _, ok := oldest[member.ID]; ok {
			continue
		}
		never = append(never, WaitingMember{Member: member})
	}
	return append(queued, never...), nil
}

// SelectForAutoAssign returns the first needed members of the derived queue.
func (m *Manager) SelectForAutoAssign(ctx context.Context, teamID model.TeamID, needed int) ([]WaitingMember, error) {
	q, err := m.ComputeWaitingQueue(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if len(q) < needed {
		return nil, ErrInsufficientMembers
	}
	return q[:needed], nil
}

// ResetTeamQueue deletes every WAITING entry of the team and enqueues the full
// current membership afresh, in directory order. A member that fails to
// materialize is skipped so one bad row cannot block a session reset.
func (m *Manager) ResetTeamQueue(ctx context.Context, teamID model.TeamID) (deleted, created int, err error) {
	deleted, err = m.store.DeleteWaitingByTeam(ctx, teamID)
	if err != nil {
		return 0, 0, fmt.Errorf("delete waiting entries for team %d: %w", teamID, err)
	}
	members, err := m.dir.GetTeamMembers(ctx, teamID)
	if err != nil {
		return deleted, 0, fmt.Errorf("load members for team %d: %w", teamID, err)
	}
	for _, member := range members {
		if _, err := m.store.UpsertPlayer(ctx, teamID, member); err != nil {
			m.log.Warn("skipping member during queue reset",
				zap.Int64("team_id", int64(teamID)),
				zap.Int64("member_id", int64(member.ID)),
				zap.Error(err))
			continue
		}
		if _, err := m.store.CreateQueueEntry(ctx, teamID, member.ID, nil, model.QueueWaiting); err != nil {
			m.log.Warn("skipping member during queue reset",
				zap.Int64("team_id", int64(teamID)),
				zap.Int64("member_id", int64(member.ID)),
				zap.Error(err))
			continue
		}
		created++
	}
	return deleted, created, nil
}
