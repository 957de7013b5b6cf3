package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shuttleboard/shuttleboard/internal/model"
)

// Memory is an in-process Store and Directory. It backs the server when no
// DB_URL is configured and every test that needs a store.
type Memory struct {
	mu sync.Mutex

	courts  map[model.CourtID]*model.Court
	matches map[int64]*model.Match
	entries map[int64]*model.QueueEntry
	players map[model.TeamID]map[model.MemberID]*model.Player
	members map[model.TeamID][]model.Member

	nextCourtID int64
	nextMatchID int64
	nextEntryID int64
	nextSeq     map[model.TeamID]int64

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		courts:  make(map[model.CourtID]*model.Court),
		matches: make(map[int64]*model.Match),
		entries: make(map[int64]*model.QueueEntry),
		players: make(map[model.TeamID]map[model.MemberID]*model.Player),
		members: make(map[model.TeamID][]model.Member),
		nextSeq: make(map[model.TeamID]int64),
		now:     time.Now,
	}
}

// SetClock overrides the timestamp source. Test hook.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetTeamMembers seeds the directory side.
func (m *Memory) SetTeamMembers(teamID model.TeamID, members []model.Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[teamID] = append([]model.Member(nil), members...)
}

func (m *Memory) GetTeamMembers(_ context.Context, teamID model.TeamID) ([]model.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Member(nil), m.members[teamID]...), nil
}

func (m *Memory) GetCourt(_ context.Context, courtID model.CourtID) (*model.Court, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courts[courtID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) GetCourtsByTeam(_ context.Context, teamID model.TeamID) ([]model.Court, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Court
	for _, c := range m.courts {
		if c.TeamID == teamID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateCourt(_ context.Context, court *model.Court) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCourtID++
	court.ID = model.CourtID(m.nextCourtID)
	cp := *court
	m.courts[court.ID] = &cp
	return nil
}

func (m *Memory) UpdateCourt(_ context.Context, court *model.Court) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courts[court.ID]; !ok {
		return ErrNotFound
	}
	cp := *court
	m.courts[court.ID] = &cp
	return nil
}

func (m *Memory) ClearCourtSlots(_ context.Context, courtID model.CourtID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courts[courtID]
	if !ok {
		return ErrNotFound
	}
	c.Slots = [model.SlotCount]*model.MemberID{}
	c.StartedAt = nil
	c.EndedAt = nil
	return nil
}

func (m *Memory) CreateMatch(_ context.Context, match *model.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMatchID++
	match.ID = m.nextMatchID
	cp := *match
	m.matches[match.ID] = &cp
	return nil
}

func (m *Memory) FinishMatch(_ context.Context, matchID int64, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.matches[matchID]
	if !ok {
		return ErrNotFound
	}
	mt.Status = model.MatchFinished
	mt.EndedAt = &endedAt
	return nil
}

func (m *Memory) GetOngoingMatchByCourt(_ context.Context, courtID model.CourtID) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Match
	for _, mt := range m.matches {
		if mt.CourtID != courtID || mt.Status != model.MatchOngoing {
			continue
		}
		if latest == nil || mt.StartedAt.After(latest.StartedAt) {
			latest = mt
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *Memory) GetWaitingQueueByTeam(_ context.Context, teamID model.TeamID) ([]model.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.QueueEntry
	for _, e := range m.entries {
		if e.TeamID == teamID && e.Status == model.QueueWaiting {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func (m *Memory) CreateQueueEntry(_ context.Context, teamID model.TeamID, playerID model.MemberID, courtID *model.CourtID, status model.QueueStatus) (*model.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEntryID++
	m.nextSeq[teamID]++
	now := m.now()
	e := &model.QueueEntry{
		ID:             m.nextEntryID,
		TeamID:         teamID,
		PlayerID:       playerID,
		CourtID:        courtID,
		Status:         status,
		SequenceNumber: m.nextSeq[teamID],
		CreatedAt:      now,
	}
	if status == model.QueueServed {
		e.ServedAt = &now
	}
	m.entries[e.ID] = e
	cp := *e
	return &cp, nil
}

func (m *Memory) UpdateQueueStatus(_ context.Context, entryID int64, status model.QueueStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	now := m.now()
	switch status {
	case model.QueueCalled:
		e.CalledAt = &now
	case model.QueueServed:
		e.ServedAt = &now
	}
	return nil
}

func (m *Memory) DeleteWaitingByTeam(_ context.Context, teamID model.TeamID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, e := range m.entries {
		if e.TeamID == teamID && e.Status == model.QueueWaiting {
			delete(m.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) UpsertPlayer(_ context.Context, teamID model.TeamID, member model.Member) (*model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byMember, ok := m.players[teamID]
	if !ok {
		byMember = make(map[model.MemberID]*model.Player)
		m.players[teamID] = byMember
	}
	now := m.now()
	p, ok := byMember[member.ID]
	if !ok {
		p = &model.Player{MemberID: member.ID, TeamID: teamID, CreatedAt: now}
		byMember[member.ID] = p
	}
	p.Name = member.DisplayName
	p.Contact = member.Contact
	p.UpdatedAt = now
	cp := *p
	return &cp, nil
}
