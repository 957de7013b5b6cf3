package types

// Outbound envelopes. Each struct marshals to a flat object whose Type field
// carries the discriminator; constructors in internal/board fill them in.

// Assignment describes one occupied court position with display identity.
type Assignment struct {
	UserID      int64  `json:"userId"`
	Position    int    `json:"position"`
	DisplayName string `json:"displayName,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

// QueueMember is one row of a waiting-queue snapshot, longest-waiting first.
type QueueMember struct {
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	Contact     string `json:"contact,omitempty"`
	QueuedAt    string `json:"queueCreatedAt,omitempty"`
}

type Connected struct {
	Type   string `json:"type"`
	TeamID int64  `json:"teamId"`
}

type GameStateCheck struct {
	Type               string `json:"type"`
	TeamID             int64  `json:"teamId"`
	HasOngoingMatches  bool   `json:"hasOngoingMatches"`
	OngoingCourtsCount int    `json:"ongoingCourtsCount"`
	Message            string `json:"message,omitempty"`
}

type QueueUpdate struct {
	Type   string        `json:"type"`
	TeamID int64         `json:"teamId"`
	Queue  []QueueMember `json:"queue"`
}

type PlayerAssigned struct {
	Type     string `json:"type"`
	TeamID   int64  `json:"teamId"`
	CourtID  int64  `json:"courtId"`
	UserID   int64  `json:"userId"`
	Position int    `json:"position"`
}

type PlayerRemoved struct {
	Type     string `json:"type"`
	TeamID   int64  `json:"teamId"`
	CourtID  int64  `json:"courtId"`
	PlayerID int64  `json:"playerId,omitempty"`
	Position int    `json:"position"`
}

type AutoAssignSuccess struct {
	Type        string       `json:"type"`
	TeamID      int64        `json:"teamId"`
	CourtID     int64        `json:"courtId"`
	Assignments []Assignment `json:"assignments"`
	IsPending   bool         `json:"isPending"`
}

type ConfirmStartMatchSuccess struct {
	Type        string       `json:"type"`
	TeamID      int64        `json:"teamId"`
	CourtID     int64        `json:"courtId"`
	Assignments []Assignment `json:"assignments"`
	StartedAt   string       `json:"startedAt"`
}

type CancelPendingSuccess struct {
	Type    string `json:"type"`
	TeamID  int64  `json:"teamId"`
	CourtID int64  `json:"courtId"`
}

type MatchFinished struct {
	Type          string `json:"type"`
	TeamID        int64  `json:"teamId"`
	CourtID       int64  `json:"courtId"`
	ReQueuedCount int    `json:"reQueuedCount"`
}

type StartNewGameSuccess struct {
	Type               string `json:"type"`
	TeamID             int64  `json:"teamId"`
	ClearedCourtsCount int    `json:"clearedCourtsCount"`
	DeletedQueueCount  int    `json:"deletedQueueCount"`
}

type ClearQueueSuccess struct {
	Type         string `json:"type"`
	TeamID       int64  `json:"teamId"`
	DeletedCount int    `json:"deletedCount"`
}

// RestoredCourt is one ongoing court in a RESTORE_ONGOING_MATCHES envelope.
type RestoredCourt struct {
	CourtID     int64        `json:"courtId"`
	StartedAt   string       `json:"startedAt,omitempty"`
	Assignments []Assignment `json:"assignments"`
}

type RestoreOngoingMatches struct {
	Type   string          `json:"type"`
	TeamID int64           `json:"teamId"`
	Courts []RestoredCourt `json:"courts"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
