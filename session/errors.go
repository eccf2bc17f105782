package session

import "errors"

var (
	ErrSessionNotFound = errors.New("match session not found")
	ErrSessionClosed   = errors.New("match session is closed")
	ErrInvalidJoin     = errors.New("match token and participant id are required")
	ErrNotParticipant  = errors.New("participant has not joined this match")

	// RejectedInvalidAssignment
	ErrInvalidAssignment = errors.New("invalid team assignment")

	// RejectedInvalidScore
	ErrInvalidScore    = errors.New("invalid score")
	ErrTeamsIncomplete = errors.New("teams must be assigned before submitting a score")
	ErrNotOnTeam       = errors.New("only players on a team can submit a score")
	ErrScoresLocked    = errors.New("scores are already agreed")

	ErrNotLeader            = errors.New("participant does not hold the processing claim")
	ErrStaleClaim           = errors.New("processing claim has expired")
	ErrProcessingInProgress = errors.New("match processing is already running")

	// errRetired is returned by a session that has been torn down but not yet
	// dropped from the registry.
	errRetired = errors.New("match session retired")
)
