package achievements

import (
	"fmt"

	"github.com/Dosada05/courtside/models"
)

var (
	WinStreakThresholds     = []int{2, 5, 10}
	MatchesPlayedThresholds = []int{5, 10, 20, 50, 100}
	PointsWonThresholds     = []int{50, 100, 200, 300, 400, 500}
)

const (
	shutoutWinningScore = 11
	pointsWonGroup      = "points-won"
)

func WinStreakKey(n int) string     { return fmt.Sprintf("win-streak-%d", n) }
func MatchesPlayedKey(n int) string { return fmt.Sprintf("matches-played-%d", n) }
func PointsWonKey(n int) string     { return fmt.Sprintf("points-won-%d", n) }

// DefaultDefinitions returns the standard catalog in evaluation order.
func DefaultDefinitions() []Definition {
	defs := []Definition{FirstWin()}
	for _, n := range WinStreakThresholds {
		defs = append(defs, WinStreak(n))
	}
	for _, n := range MatchesPlayedThresholds {
		defs = append(defs, MatchesPlayed(n))
	}
	defs = append(defs, Pickle())
	for _, n := range PointsWonThresholds {
		defs = append(defs, PointsWon(n))
	}
	return defs
}

func FirstWin() Definition {
	return Definition{
		Key: models.AchievementFirstWin,
		Evaluate: func(s Snapshot) bool {
			return s.Outcome.Won && s.Before.Wins == 0
		},
	}
}

// WinStreak fires on the win that takes the streak to n.
func WinStreak(n int) Definition {
	return Definition{
		Key: WinStreakKey(n),
		Evaluate: func(s Snapshot) bool {
			return s.Outcome.Won && crossed(s.Before.WinStreak, s.After.WinStreak, n)
		},
	}
}

// MatchesPlayed compares against the count after this match is appended.
func MatchesPlayed(n int) Definition {
	return Definition{
		Key: MatchesPlayedKey(n),
		Evaluate: func(s Snapshot) bool {
			return crossed(s.Before.MatchesPlayed, s.After.MatchesPlayed, n)
		},
	}
}

// Pickle is an 11-0 win. It can be earned any number of times.
func Pickle() Definition {
	return Definition{
		Key:        models.AchievementPickle,
		Repeatable: true,
		Evaluate: func(s Snapshot) bool {
			return s.Outcome.Won && s.Outcome.PointsFor == shutoutWinningScore && s.Outcome.PointsAgainst == 0
		},
	}
}

// PointsWon fires when this match takes cumulative points from below n to n or
// above. All point milestones share a group, so a match crossing several
// thresholds reports only the lowest of them; the others are not granted.
func PointsWon(n int) Definition {
	return Definition{
		Key:   PointsWonKey(n),
		Group: pointsWonGroup,
		Evaluate: func(s Snapshot) bool {
			return crossed(s.Before.PointsWon, s.After.PointsWon, n)
		},
	}
}

func crossed(before, after, threshold int) bool {
	return before < threshold && after >= threshold
}
