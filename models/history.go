package models

import "time"

// PlayerHistory is a read snapshot of the durable per-player counters.
type PlayerHistory struct {
	PlayerID         string          `json:"player_id" db:"player_id"`
	VenueContext     VenueContext    `json:"venue_context" db:"venue_context"`
	Wins             int             `json:"wins" db:"wins"`
	Losses           int             `json:"losses" db:"losses"`
	WinStreak        int             `json:"win_streak" db:"win_streak"`
	PointsWon        int             `json:"points_won" db:"points_won"`
	MatchesPlayed    int             `json:"matches_played" db:"matches_played"`
	Earned           map[string]bool `json:"earned" db:"-"`
	RepeatableCounts map[string]int  `json:"repeatable_counts" db:"-"`
	Version          int             `json:"version" db:"version"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

func NewPlayerHistory(playerID string, venue VenueContext) PlayerHistory {
	return PlayerHistory{
		PlayerID:         playerID,
		VenueContext:     venue,
		Earned:           map[string]bool{},
		RepeatableCounts: map[string]int{},
	}
}

func (h PlayerHistory) HasEarned(key string) bool {
	return h.Earned[key]
}

// HistoryDelta is the change one match proposes for one player. It is applied
// atomically against the snapshot version it was computed from.
type HistoryDelta struct {
	PlayerID        string              `json:"player_id"`
	VenueContext    VenueContext        `json:"venue_context"`
	ExpectedVersion int                 `json:"expected_version"`
	Won             bool                `json:"won"`
	PointsWon       int                 `json:"points_won"`
	Earned          []AchievementEarned `json:"earned"`
}
