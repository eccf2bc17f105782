package models

import "time"

// Achievement keys known to the rule engine.
const (
	AchievementFirstWin = "first-win"
	AchievementPickle   = "pickle"
)

type AchievementEarned struct {
	PlayerID   string    `json:"player_id"`
	Key        string    `json:"key"`
	Repeatable bool      `json:"repeatable"`
	Occurrence int       `json:"occurrence"`
	EarnedAt   time.Time `json:"earned_at"`
}
