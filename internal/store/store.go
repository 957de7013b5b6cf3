package store

import (
	"context"
	"errors"
	"time"

	"github.com/shuttleboard/shuttleboard/internal/model"
)

// ErrNotFound is returned when a record does not exist. Callers translate it
// into a business error before it reaches the wire.
var ErrNotFound = errors.New("store: record not found")

// Store is the durable persistence collaborator for Court/Match/QueueEntry/
// Player records. It holds no business logic; ordering and invariants live in
// the engine and queue packages.
type Store interface {
	GetCourt(ctx context.Context, courtID model.CourtID) (*model.Court, error)
	GetCourtsByTeam(ctx context.Context, teamID model.TeamID) ([]model.Court, error)
	CreateCourt(ctx context.Context, court *model.Court) error
	UpdateCourt(ctx context.Context, court *model.Court) error
	ClearCourtSlots(ctx context.Context, courtID model.CourtID) error

	CreateMatch(ctx context.Context, match *model.Match) error
	FinishMatch(ctx context.Context, matchID int64, endedAt time.Time) error
	GetOngoingMatchByCourt(ctx context.Context, courtID model.CourtID) (*model.Match, error)

	// GetWaitingQueueByTeam returns WAITING entries ordered by sequence number
	// ascending, created-at as tiebreak.
	GetWaitingQueueByTeam(ctx context.Context, teamID model.TeamID) ([]model.QueueEntry, error)
	// CreateQueueEntry allocates the next sequence number for the team.
	CreateQueueEntry(ctx context.Context, teamID model.TeamID, playerID model.MemberID, courtID *model.CourtID, status model.QueueStatus) (*model.QueueEntry, error)
	UpdateQueueStatus(ctx context.Context, entryID int64, status model.QueueStatus) error
	DeleteWaitingByTeam(ctx context.Context, teamID model.TeamID) (int, error)

	// UpsertPlayer materializes the player projection for a directory member.
	UpsertPlayer(ctx context.Context, teamID model.TeamID, member model.Member) (*model.Player, error)
}

// Directory is the read-only source of team membership and display identity.
type Directory interface {
	GetTeamMembers(ctx context.Context, teamID model.TeamID) ([]model.Member, error)
}
