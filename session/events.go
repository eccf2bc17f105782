package session

import "github.com/Dosada05/courtside/models"

type EventType string

const (
	EventSessionSnapshot        EventType = "sessionSnapshot"
	EventParticipantListUpdated EventType = "participantListUpdated"
	EventTeamsAssigned          EventType = "teamsAssigned"
	EventScoreDisagreement      EventType = "scoreDisagreement"
	EventScoreAgreed            EventType = "scoreAgreed"
	EventProcessingGranted      EventType = "processingGranted"
	EventProcessingReleased     EventType = "processingReleased"
	EventMatchCompleted         EventType = "matchCompleted"
	EventMatchFailed            EventType = "matchFailed"
	EventMatchCancelled         EventType = "matchCancelled"
	EventSuperseded             EventType = "superseded"
)

// Event is one outbound message for a participant's connection.
type Event struct {
	Type       EventType   `json:"type"`
	MatchToken string      `json:"match_token"`
	Payload    interface{} `json:"payload,omitempty"`
}

// Notifier delivers events to live connections. Deliver must not block: the
// session calls it while holding its lock so that every connection observes
// transitions in the order they happened.
type Notifier interface {
	Deliver(handle string, ev Event)
	// Supersede tells the notifier that handle no longer represents its participant.
	Supersede(handle string)
}

type ParticipantListPayload struct {
	Participants []models.Participant `json:"participants"`
}

type TeamsPayload struct {
	Teams models.TeamAssignment `json:"teams"`
}

type DisagreementPayload struct {
	Reason      string                   `json:"reason"`
	Submissions []models.ScoreSubmission `json:"submissions"`
}

type AgreedPayload struct {
	TeamAScore int `json:"team_a_score"`
	TeamBScore int `json:"team_b_score"`
}

type GrantedPayload struct {
	Facts models.MatchFacts `json:"match_facts"`
}

type ReleasedPayload struct {
	Reason    string `json:"reason"`
	Attempt   int    `json:"attempt"`
	Remaining int    `json:"remaining"`
}

type CompletedPayload struct {
	Result models.MatchResult `json:"result"`
}

type FailedPayload struct {
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
	Attempt   int    `json:"attempt"`
}

type CancelledPayload struct {
	CancelledBy string `json:"cancelled_by"`
}
