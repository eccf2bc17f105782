package models

import "time"

type ProcessingState string

const (
	StateAwaitingAgreement ProcessingState = "awaiting_agreement"
	StateAgreed            ProcessingState = "agreed"
	StateLeaderClaimed     ProcessingState = "leader_claimed"
	StateCompleted         ProcessingState = "completed"
	StateFailed            ProcessingState = "failed"
	StateCancelled         ProcessingState = "cancelled"
)

// Terminal reports whether no further transitions are valid.
func (s ProcessingState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// AtLeastAgreed reports whether scores are already locked in.
func (s ProcessingState) AtLeastAgreed() bool {
	return s != StateAwaitingAgreement
}

type TeamID string

const (
	TeamA TeamID = "A"
	TeamB TeamID = "B"
)

const TeamSize = 2

type Participant struct {
	ID               string    `json:"participant_id"`
	DisplayName      string    `json:"display_name"`
	ConnectionHandle string    `json:"-"`
	Guest            bool      `json:"guest"`
	JoinedAt         time.Time `json:"joined_at"`
}

// TeamAssignment is either empty (unassigned) or two disjoint teams of TeamSize.
type TeamAssignment struct {
	TeamA []string `json:"team_a"`
	TeamB []string `json:"team_b"`
}

func (t TeamAssignment) Complete() bool {
	return len(t.TeamA) == TeamSize && len(t.TeamB) == TeamSize
}

// TeamOf returns the team a participant plays for, if any.
func (t TeamAssignment) TeamOf(participantID string) (TeamID, bool) {
	for _, id := range t.TeamA {
		if id == participantID {
			return TeamA, true
		}
	}
	for _, id := range t.TeamB {
		if id == participantID {
			return TeamB, true
		}
	}
	return "", false
}

func (t TeamAssignment) Members(team TeamID) []string {
	if team == TeamA {
		return t.TeamA
	}
	return t.TeamB
}

type ScoreSubmission struct {
	SubmitterID string    `json:"submitter_id"`
	Team        TeamID    `json:"team"`
	TeamAScore  int       `json:"team_a_score"`
	TeamBScore  int       `json:"team_b_score"`
	SubmittedAt time.Time `json:"submitted_at"`
	Superseded  bool      `json:"superseded"`
}

type FinalScore struct {
	TeamA int `json:"team_a"`
	TeamB int `json:"team_b"`
}

func (s FinalScore) Winner() TeamID {
	if s.TeamA > s.TeamB {
		return TeamA
	}
	return TeamB
}

// SessionView is a snapshot of session state for clients and diagnostics.
type SessionView struct {
	MatchToken   string          `json:"match_token"`
	VenueContext VenueContext    `json:"venue_context"`
	Participants []Participant   `json:"participants"`
	Teams        TeamAssignment  `json:"teams"`
	State        ProcessingState `json:"state"`
	AgreedScore  *FinalScore     `json:"agreed_score,omitempty"`
	LeaderID     string          `json:"leader_id,omitempty"`
	Attempts     int             `json:"attempts"`
}

// Identity is the resolved identity of a connecting client.
type Identity struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	Guest         bool   `json:"guest"`
}
