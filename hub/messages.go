package hub

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/courtside/session"
)

// Inbound message types.
const (
	MsgJoin               = "join"
	MsgLeave              = "leave"
	MsgAssignTeams        = "assignTeams"
	MsgSubmitScore        = "submitScore"
	MsgClaimProcessing    = "claimProcessing"
	MsgCompleteProcessing = "completeProcessing"
	MsgCancelMatch        = "cancelMatch"
)

// Reply types sent only to the requesting connection.
const (
	ReplyJoined       = "joined"
	ReplyAck          = "ack"
	ReplyScoreOutcome = "scoreOutcome"
	ReplyClaimOutcome = "claimOutcome"
	ReplyError        = "error"
)

type Inbound struct {
	Type       string          `json:"type"`
	RequestID  string          `json:"request_id,omitempty"`
	MatchToken string          `json:"match_token,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type Outbound struct {
	Type       string      `json:"type"`
	RequestID  string      `json:"request_id,omitempty"`
	MatchToken string      `json:"match_token,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
}

type JoinPayload struct {
	DisplayName  string `json:"display_name"`
	VenueContext string `json:"venue_context"`
}

type AssignTeamsPayload struct {
	TeamA []string `json:"team_a"`
	TeamB []string `json:"team_b"`
}

// SubmitScorePayload keeps the raw numbers so that fractional or out-of-range
// values are rejected instead of truncated.
type SubmitScorePayload struct {
	TeamAScore json.Number `json:"team_a_score"`
	TeamBScore json.Number `json:"team_b_score"`
}

type CompleteProcessingPayload struct {
	Error string `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	errMalformedMessage = errors.New("malformed message")
	errUnknownType      = errors.New("unknown message type")
	errNotJoined        = errors.New("connection has not joined this match")
	errMissingToken     = errors.New("match token is required")
	errInvalidVenue     = errors.New("unknown venue context")
)

// ParseScore converts a submitted number into a non-negative team score.
func ParseScore(n json.Number) (int, error) {
	if n == "" {
		return 0, fmt.Errorf("%w: missing score", session.ErrInvalidScore)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", session.ErrInvalidScore, n.String())
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: scores must be non-negative", session.ErrInvalidScore)
	}
	if v > 1<<16 {
		return 0, fmt.Errorf("%w: %d is out of range", session.ErrInvalidScore, v)
	}
	return int(v), nil
}

func decodePayload(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	return nil
}

// ErrorCode maps an error to the stable code clients switch on.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidAssignment):
		return "invalid_assignment"
	case errors.Is(err, session.ErrInvalidScore):
		return "invalid_score"
	case errors.Is(err, session.ErrTeamsIncomplete):
		return "teams_incomplete"
	case errors.Is(err, session.ErrNotOnTeam):
		return "not_on_team"
	case errors.Is(err, session.ErrScoresLocked):
		return "scores_locked"
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, session.ErrNotParticipant), errors.Is(err, errNotJoined):
		return "not_joined"
	case errors.Is(err, session.ErrNotLeader), errors.Is(err, session.ErrStaleClaim):
		return "not_leader"
	case errors.Is(err, session.ErrProcessingInProgress):
		return "processing_in_progress"
	case errors.Is(err, session.ErrInvalidJoin):
		return "invalid_join"
	case errors.Is(err, errInvalidVenue):
		return "invalid_venue"
	case errors.Is(err, errMissingToken):
		return "missing_token"
	case errors.Is(err, errMalformedMessage):
		return "malformed_message"
	case errors.Is(err, errUnknownType):
		return "unknown_type"
	default:
		return "internal_error"
	}
}
