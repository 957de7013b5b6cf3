package model

import "time"

// Identifiers come from the directory/store and are opaque to the engine.
type (
	TeamID   int64
	CourtID  int64
	MemberID int64
)

// SlotCount is the number of assignable positions on a court.
const SlotCount = 4

type QueueStatus string

const (
	QueueWaiting QueueStatus = "WAITING"
	// QueueCalled is reserved for a call-out step between WAITING and
	// SERVED; no operation sets it yet.
	QueueCalled    QueueStatus = "CALLED"
	QueueServed    QueueStatus = "SERVED"
	QueueCancelled QueueStatus = "CANCELLED"
)

type MatchStatus string

const (
	MatchOngoing   MatchStatus = "ONGOING"
	MatchFinished  MatchStatus = "FINISHED"
	MatchCancelled MatchStatus = "CANCELLED"
)

type CourtState string

const (
	CourtEmpty   CourtState = "EMPTY"
	CourtPending CourtState = "PENDING"
	CourtOngoing CourtState = "ONGOING"
)

// Court is the live slot assignment for one physical court. Slots are indexed
// by position-1; a nil entry is an empty slot. StartedAt nil means the court
// has not been confirmed as a started match.
type Court struct {
	ID        CourtID
	TeamID    TeamID
	Name      string
	Slots     [SlotCount]*MemberID
	StartedAt *time.Time
	EndedAt   *time.Time
}

func (c *Court) State() CourtState {
	if c.StartedAt != nil {
		return CourtOngoing
	}
	for _, s := range c.Slots {
		if s != nil {
			return CourtPending
		}
	}
	return CourtEmpty
}

// PlayerAt returns the occupant of position (1-based), or nil.
func (c *Court) PlayerAt(position int) *MemberID {
	if position < 1 || position > SlotCount {
		return nil
	}
	return c.Slots[position-1]
}

func (c *Court) SetPlayer(position int, id MemberID) {
	c.Slots[position-1] = &id
}

func (c *Court) ClearSlot(position int) {
	c.Slots[position-1] = nil
}

// PositionOf returns the 1-based position of id on this court, or 0.
func (c *Court) PositionOf(id MemberID) int {
	for i, s := range c.Slots {
		if s != nil && *s == id {
			return i + 1
		}
	}
	return 0
}

// Occupants returns the member ids currently on the court, in position order.
func (c *Court) Occupants() []MemberID {
	out := make([]MemberID, 0, SlotCount)
	for _, s := range c.Slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// EmptyPositions returns the 1-based positions with no occupant, ascending.
func (c *Court) EmptyPositions() []int {
	out := make([]int, 0, SlotCount)
	for i, s := range c.Slots {
		if s == nil {
			out = append(out, i+1)
		}
	}
	return out
}

// Match is the audit record of one confirmed court occupancy. Court state is
// live and mutable; a Match is created only when a court goes ONGOING.
type Match struct {
	ID        int64
	TeamID    TeamID
	CourtID   CourtID
	Players   [SlotCount]MemberID
	Status    MatchStatus
	StartedAt time.Time
	EndedAt   *time.Time
}

// QueueEntry is one waiting-list record. Ordering is ascending SequenceNumber
// with CreatedAt as the tiebreak; lower sorts first (longest waiting).
type QueueEntry struct {
	ID             int64
	TeamID         TeamID
	PlayerID       MemberID
	CourtID        *CourtID
	Status         QueueStatus
	SequenceNumber int64
	CreatedAt      time.Time
	CalledAt       *time.Time
	ServedAt       *time.Time
}

// Less reports whether e should order before other in the waiting queue.
func (e QueueEntry) Less(other QueueEntry) bool {
	if e.SequenceNumber != other.SequenceNumber {
		return e.SequenceNumber < other.SequenceNumber
	}
	return e.CreatedAt.Before(other.CreatedAt)
}

// Player is the queue/match-scoped projection of a directory member, keyed by
// the member id itself. Safe to recreate from directory data if lost.
type Player struct {
	MemberID  MemberID
	TeamID    TeamID
	Name      string
	Contact   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member is a directory record: team membership plus display identity.
type Member struct {
	ID          MemberID
	DisplayName string
	Contact     string
}
