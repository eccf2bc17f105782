package achievements

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/courtside/models"
)

var agreedAt = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func createTestFacts(a, b int) models.MatchFacts {
	facts := models.MatchFacts{
		MatchToken:   "m1",
		VenueContext: models.VenueDefault,
		Teams: models.TeamAssignment{
			TeamA: []string{"p1", "p2"},
			TeamB: []string{"p3", "p4"},
		},
		Score:    models.FinalScore{TeamA: a, TeamB: b},
		AgreedAt: agreedAt,
	}
	if a > b {
		facts.Winners, facts.Losers = facts.Teams.TeamA, facts.Teams.TeamB
	} else {
		facts.Winners, facts.Losers = facts.Teams.TeamB, facts.Teams.TeamA
	}
	return facts
}

func keys(earned []models.AchievementEarned) []string {
	out := make([]string, 0, len(earned))
	for _, a := range earned {
		out = append(out, a.Key)
	}
	return out
}

func TestEvaluate_FirstWin(t *testing.T) {
	engine := Default()
	facts := createTestFacts(11, 4)

	earned := engine.Evaluate(models.NewPlayerHistory("p1", models.VenueDefault), facts)
	assert.Contains(t, keys(earned), models.AchievementFirstWin)
	for _, a := range earned {
		assert.Equal(t, "p1", a.PlayerID)
		assert.Equal(t, agreedAt, a.EarnedAt)
	}

	// Losers get nothing on their first match.
	assert.Empty(t, engine.Evaluate(models.NewPlayerHistory("p3", models.VenueDefault), facts))

	// A player with prior wins never earns first-win again, even without the key recorded.
	veteran := models.NewPlayerHistory("p2", models.VenueDefault)
	veteran.Wins = 3
	veteran.MatchesPlayed = 6
	assert.NotContains(t, keys(engine.Evaluate(veteran, facts)), models.AchievementFirstWin)
}

func TestEvaluate_NotAParticipant(t *testing.T) {
	engine := Default()
	assert.Nil(t, engine.Evaluate(models.NewPlayerHistory("stranger", models.VenueDefault), createTestFacts(11, 0)))

	_, ok := engine.Propose(models.NewPlayerHistory("stranger", models.VenueDefault), createTestFacts(11, 0))
	assert.False(t, ok)
}

func TestEvaluate_Deterministic(t *testing.T) {
	engine := Default()
	h := models.NewPlayerHistory("p1", models.VenueDefault)
	h.PointsWon = 45
	h.MatchesPlayed = 4
	facts := createTestFacts(11, 0)

	assert.Equal(t, engine.Evaluate(h, facts), engine.Evaluate(h, facts))
}

func TestEvaluate_NonRepeatableIdempotent(t *testing.T) {
	engine := Default()
	h := models.NewPlayerHistory("p1", models.VenueDefault)
	h.MatchesPlayed = 4
	h.PointsWon = 40
	facts := createTestFacts(11, 0)

	delta, ok := engine.Propose(h, facts)
	require.True(t, ok)
	first := keys(delta.Earned)
	assert.ElementsMatch(t, []string{models.AchievementFirstWin, MatchesPlayedKey(5), models.AchievementPickle, PointsWonKey(50)}, first)

	after := ApplyDelta(h, delta)
	second := engine.Evaluate(after, facts)
	for _, a := range second {
		if !a.Repeatable {
			assert.NotContains(t, first, a.Key, "non-repeatable key %s earned twice", a.Key)
		}
	}
	// The shutout is repeatable and records its next occurrence.
	require.Contains(t, keys(second), models.AchievementPickle)
	for _, a := range second {
		if a.Key == models.AchievementPickle {
			assert.Equal(t, 2, a.Occurrence)
		}
	}
}

func TestEvaluate_WinStreakMilestones(t *testing.T) {
	engine := Default()
	h := models.NewPlayerHistory("p1", models.VenueDefault)
	facts := createTestFacts(11, 7)

	var seen []string
	for i := 0; i < 10; i++ {
		delta, ok := engine.Propose(h, facts)
		require.True(t, ok)
		for _, a := range delta.Earned {
			if a.Key == WinStreakKey(2) || a.Key == WinStreakKey(5) || a.Key == WinStreakKey(10) {
				seen = append(seen, a.Key)
			}
		}
		h = ApplyDelta(h, delta)
	}
	assert.Equal(t, []string{WinStreakKey(2), WinStreakKey(5), WinStreakKey(10)}, seen)
	assert.Equal(t, 10, h.WinStreak)
}

func TestEvaluate_StreakResetsOnLoss(t *testing.T) {
	engine := Default()
	h := models.NewPlayerHistory("p1", models.VenueDefault)
	h.Wins, h.WinStreak, h.MatchesPlayed = 4, 4, 4
	h.Earned[models.AchievementFirstWin] = true
	h.Earned[WinStreakKey(2)] = true

	loss := createTestFacts(3, 11)
	delta, ok := engine.Propose(h, loss)
	require.True(t, ok)
	h = ApplyDelta(h, delta)
	assert.Equal(t, 0, h.WinStreak)
	assert.Equal(t, 1, h.Losses)

	win := createTestFacts(11, 3)
	for i := 1; i <= 4; i++ {
		delta, _ = engine.Propose(h, win)
		assert.NotContains(t, keys(delta.Earned), WinStreakKey(5), "win %d after reset", i)
		h = ApplyDelta(h, delta)
	}
	assert.Equal(t, 4, h.WinStreak)

	delta, _ = engine.Propose(h, win)
	assert.Contains(t, keys(delta.Earned), WinStreakKey(5))
}

func TestEvaluate_MatchesPlayedCountsThisMatch(t *testing.T) {
	engine := Default()
	h := models.NewPlayerHistory("p3", models.VenueDefault)
	h.MatchesPlayed = 9
	h.Earned[MatchesPlayedKey(5)] = true

	earned := engine.Evaluate(h, createTestFacts(11, 2))
	assert.Equal(t, []string{MatchesPlayedKey(10)}, keys(earned))

	h.MatchesPlayed = 10
	h.Earned[MatchesPlayedKey(10)] = true
	assert.Empty(t, engine.Evaluate(h, createTestFacts(11, 2)))
}

func TestEvaluate_PickleRequiresWin(t *testing.T) {
	engine := Default()
	h := models.NewPlayerHistory("p3", models.VenueDefault)
	h.Wins, h.MatchesPlayed = 1, 1
	h.Earned[models.AchievementFirstWin] = true

	assert.NotContains(t, keys(engine.Evaluate(h, createTestFacts(11, 0))), models.AchievementPickle)
	assert.Contains(t, keys(engine.Evaluate(h, createTestFacts(0, 11))), models.AchievementPickle)
	assert.NotContains(t, keys(engine.Evaluate(h, createTestFacts(1, 11))), models.AchievementPickle)
}

func TestEvaluate_PointsWonSingleNotification(t *testing.T) {
	engine := Default()
	h := models.NewPlayerHistory("p1", models.VenueDefault)
	h.Wins, h.MatchesPlayed, h.PointsWon = 1, 1, 45
	h.Earned[models.AchievementFirstWin] = true

	// 45 -> 105 crosses 50 and 100; only the lowest is reported.
	delta, ok := engine.Propose(h, createTestFacts(60, 58))
	require.True(t, ok)
	assert.Equal(t, []string{PointsWonKey(50)}, keys(delta.Earned))

	// 105 -> 116 crosses nothing, so the skipped 100 is not granted later.
	h = ApplyDelta(h, delta)
	delta, _ = engine.Propose(h, createTestFacts(11, 2))
	assert.Empty(t, pointsKeys(delta.Earned))
}

func TestEvaluate_PointsWonRequiresCrossingInThisMatch(t *testing.T) {
	engine := Default()
	h := models.NewPlayerHistory("p1", models.VenueDefault)
	h.Wins, h.MatchesPlayed, h.PointsWon = 1, 1, 190
	h.Earned[models.AchievementFirstWin] = true

	// Lower milestones never earned do not fire on a match that crosses none.
	delta, _ := engine.Propose(h, createTestFacts(2, 11))
	assert.Empty(t, pointsKeys(delta.Earned))

	// 190 -> 205 crosses only 200.
	delta, _ = engine.Propose(h, createTestFacts(15, 13))
	assert.Equal(t, []string{PointsWonKey(200)}, pointsKeys(delta.Earned))
}

func pointsKeys(earned []models.AchievementEarned) []string {
	var out []string
	for _, k := range keys(earned) {
		if strings.HasPrefix(k, "points-won-") {
			out = append(out, k)
		}
	}
	return out
}

func TestApplyDelta_DoesNotMutateInput(t *testing.T) {
	h := models.NewPlayerHistory("p1", models.VenueDefault)
	delta, _ := Default().Propose(h, createTestFacts(11, 0))
	next := ApplyDelta(h, delta)

	assert.Empty(t, h.Earned)
	assert.Empty(t, h.RepeatableCounts)
	assert.Equal(t, 0, h.Version)
	assert.True(t, next.HasEarned(models.AchievementFirstWin))
	assert.Equal(t, 1, next.RepeatableCounts[models.AchievementPickle])
	assert.Equal(t, 1, next.Version)
	assert.Equal(t, 11, next.PointsWon)
}
