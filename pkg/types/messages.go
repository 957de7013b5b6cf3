package types

// Message type discriminators shared by both directions of the wire. Every
// frame is a flat JSON object with a "type" field plus the payload.
const (
	// Client -> Server operations.
	TypeAssignPlayer            = "ASSIGN_PLAYER"
	TypeAutoAssign              = "AUTO_ASSIGN"
	TypeRemovePlayer            = "REMOVE_PLAYER"
	TypeConfirmStartMatch       = "CONFIRM_START_MATCH"
	TypeCancelPendingAssignment = "CANCEL_PENDING_ASSIGNMENT"
	TypeFinishMatch             = "FINISH_MATCH"
	TypeStartNewGame            = "START_NEW_GAME"
	TypeClearQueue              = "CLEAR_QUEUE"
	TypeLoadQueue               = "LOAD_QUEUE"
	TypeRestoreState            = "RESTORE_STATE"

	// Pass-through broadcast types: re-broadcast to the team unchanged.
	TypeQueueUpdate    = "QUEUE_UPDATE"
	TypeCourtUpdate    = "COURT_UPDATE"
	TypePlayerAssigned = "PLAYER_ASSIGNED"
	TypePlayerRemoved  = "PLAYER_REMOVED"

	// Server -> Client only.
	TypeConnected                = "CONNECTED"
	TypeGameStateCheck           = "GAME_STATE_CHECK"
	TypeAutoAssignSuccess        = "AUTO_ASSIGN_SUCCESS"
	TypeConfirmStartMatchSuccess = "CONFIRM_START_MATCH_SUCCESS"
	TypeCancelPendingSuccess     = "CANCEL_PENDING_ASSIGNMENT_SUCCESS"
	TypeMatchFinished            = "MATCH_FINISHED"
	TypeStartNewGameSuccess      = "START_NEW_GAME_SUCCESS"
	TypeClearQueueSuccess        = "CLEAR_QUEUE_SUCCESS"
	TypeRestoreOngoingMatches    = "RESTORE_ONGOING_MATCHES"
	TypeError                    = "ERROR"
)

// ClientMessage is the decoded inbound envelope. Fields beyond Type are
// optional at the JSON level; per-operation requirements are validated before
// dispatch.
type ClientMessage struct {
	Type     string           `json:"type"`
	TeamID   int64            `json:"teamId,omitempty"`
	CourtID  int64            `json:"courtId,omitempty"`
	UserID   int64            `json:"userId,omitempty"`
	PlayerID int64            `json:"playerId,omitempty"`
	Position int              `json:"position,omitempty"`
	Players  []RosterPosition `json:"players,omitempty"`
}

// RosterPosition pairs a member with a court position in a confirm roster.
type RosterPosition struct {
	UserID   int64 `json:"userId"`
	Position int   `json:"position"`
}

// AssignPlayerParams are the validated inputs of ASSIGN_PLAYER.
type AssignPlayerParams struct {
	TeamID   int64 `validate:"required"`
	CourtID  int64 `validate:"required"`
	UserID   int64 `validate:"required"`
	Position int   `validate:"required,min=1,max=4"`
}

// AutoAssignParams are the validated inputs of AUTO_ASSIGN.
type AutoAssignParams struct {
	TeamID  int64 `validate:"required"`
	CourtID int64 `validate:"required"`
}

// RemovePlayerParams are the validated inputs of REMOVE_PLAYER. One of
// PlayerID or Position identifies the slot to clear.
type RemovePlayerParams struct {
	TeamID   int64 `validate:"required"`
	CourtID  int64 `validate:"required"`
	PlayerID int64 `validate:"required_without=Position"`
	Position int   `validate:"omitempty,min=1,max=4"`
}

// ConfirmStartParams are the validated inputs of CONFIRM_START_MATCH. Players
// is the optional final roster that overrides the current slots.
type ConfirmStartParams struct {
	TeamID  int64            `validate:"required"`
	CourtID int64            `validate:"required"`
	Players []RosterPosition `validate:"omitempty,dive"`
}

// CourtOnlyParams cover CANCEL_PENDING_ASSIGNMENT and FINISH_MATCH.
type CourtOnlyParams struct {
	TeamID  int64 `validate:"required"`
	CourtID int64 `validate:"required"`
}

// TeamOnlyParams cover START_NEW_GAME, CLEAR_QUEUE, LOAD_QUEUE and
// RESTORE_STATE.
type TeamOnlyParams struct {
	TeamID int64 `validate:"required"`
}
