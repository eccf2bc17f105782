package models

import "time"

// MatchFacts is everything the elected leader needs to run post-match processing.
type MatchFacts struct {
	MatchToken   string            `json:"match_token"`
	VenueContext VenueContext      `json:"venue_context"`
	Teams        TeamAssignment    `json:"teams"`
	Score        FinalScore        `json:"score"`
	Winners      []string          `json:"winners"`
	Losers       []string          `json:"losers"`
	DisplayNames map[string]string `json:"display_names"`
	AgreedAt     time.Time         `json:"agreed_at"`
}

// PlayerOutcome describes one player's side of a match.
type PlayerOutcome struct {
	Won           bool
	PointsFor     int
	PointsAgainst int
}

// Outcome returns the player's result, or false if they did not play.
func (f MatchFacts) Outcome(playerID string) (PlayerOutcome, bool) {
	team, ok := f.Teams.TeamOf(playerID)
	if !ok {
		return PlayerOutcome{}, false
	}
	out := PlayerOutcome{Won: f.Score.Winner() == team}
	if team == TeamA {
		out.PointsFor, out.PointsAgainst = f.Score.TeamA, f.Score.TeamB
	} else {
		out.PointsFor, out.PointsAgainst = f.Score.TeamB, f.Score.TeamA
	}
	return out, true
}

// Players returns all four player IDs, team A first.
func (f MatchFacts) Players() []string {
	players := make([]string, 0, 2*TeamSize)
	players = append(players, f.Teams.TeamA...)
	return append(players, f.Teams.TeamB...)
}

type MatchResult struct {
	MatchToken  string              `json:"match_token"`
	Earned      []AchievementEarned `json:"earned_achievements"`
	Rewards     []ResolvedReward    `json:"resolved_rewards"`
	ArchiveURL  string              `json:"archive_url,omitempty"`
	CompletedAt time.Time           `json:"completed_at"`
}

// MatchRecord is the durable record written once per agreed match token.
type MatchRecord struct {
	ID           string       `json:"id" db:"id"`
	MatchToken   string       `json:"match_token" db:"match_token"`
	VenueContext VenueContext `json:"venue_context" db:"venue_context"`
	TeamA        []string     `json:"team_a" db:"team_a"`
	TeamB        []string     `json:"team_b" db:"team_b"`
	TeamAScore   int          `json:"team_a_score" db:"team_a_score"`
	TeamBScore   int          `json:"team_b_score" db:"team_b_score"`
	Result       *MatchResult `json:"result,omitempty" db:"result"`
	RecordedAt   time.Time    `json:"recorded_at" db:"recorded_at"`
}
