// Package achievements evaluates a player's history against a completed match.
// Everything here is pure: identical inputs always produce identical output.
package achievements

import (
	"github.com/Dosada05/courtside/models"
)

// Snapshot is what a rule sees for one player and one match.
type Snapshot struct {
	Before  models.PlayerHistory
	After   models.PlayerHistory
	Outcome models.PlayerOutcome
	Facts   models.MatchFacts
}

// Definition describes a single achievement key.
// Definitions sharing a Group report at most one key per evaluation, the first
// in catalog order.
type Definition struct {
	Key        string
	Repeatable bool
	Group      string
	Evaluate   func(Snapshot) bool
}

type Engine struct {
	defs []Definition
}

func NewEngine(defs ...Definition) *Engine {
	return &Engine{defs: defs}
}

// Default returns an engine loaded with the standard catalog.
func Default() *Engine {
	return NewEngine(DefaultDefinitions()...)
}

// Evaluate returns the achievements newly earned by history.PlayerID in the match.
// A player who did not play earns nothing.
func (e *Engine) Evaluate(history models.PlayerHistory, facts models.MatchFacts) []models.AchievementEarned {
	outcome, ok := facts.Outcome(history.PlayerID)
	if !ok {
		return nil
	}
	snap := Snapshot{
		Before:  history,
		After:   Advance(history, outcome),
		Outcome: outcome,
		Facts:   facts,
	}

	var earned []models.AchievementEarned
	doneGroups := map[string]bool{}
	for _, def := range e.defs {
		if def.Group != "" && doneGroups[def.Group] {
			continue
		}
		if !def.Repeatable && history.HasEarned(def.Key) {
			continue
		}
		if !def.Evaluate(snap) {
			continue
		}
		occurrence := 1
		if def.Repeatable {
			occurrence = history.RepeatableCounts[def.Key] + 1
		}
		earned = append(earned, models.AchievementEarned{
			PlayerID:   history.PlayerID,
			Key:        def.Key,
			Repeatable: def.Repeatable,
			Occurrence: occurrence,
			EarnedAt:   facts.AgreedAt,
		})
		if def.Group != "" {
			doneGroups[def.Group] = true
		}
	}
	return earned
}

// Propose evaluates the match and packages the result as a delta against the
// snapshot version. It returns false if the player is not part of the match.
func (e *Engine) Propose(history models.PlayerHistory, facts models.MatchFacts) (models.HistoryDelta, bool) {
	outcome, ok := facts.Outcome(history.PlayerID)
	if !ok {
		return models.HistoryDelta{}, false
	}
	return models.HistoryDelta{
		PlayerID:        history.PlayerID,
		VenueContext:    facts.VenueContext,
		ExpectedVersion: history.Version,
		Won:             outcome.Won,
		PointsWon:       outcome.PointsFor,
		Earned:          e.Evaluate(history, facts),
	}, true
}

// Advance returns the counters as they stand after one more match.
// Earned maps are shared with h and must not be mutated.
func Advance(h models.PlayerHistory, outcome models.PlayerOutcome) models.PlayerHistory {
	next := h
	next.MatchesPlayed++
	next.PointsWon += outcome.PointsFor
	if outcome.Won {
		next.Wins++
		next.WinStreak++
	} else {
		next.Losses++
		next.WinStreak = 0
	}
	return next
}

// ApplyDelta is the in-memory equivalent of the store's atomic update.
func ApplyDelta(h models.PlayerHistory, d models.HistoryDelta) models.PlayerHistory {
	next := Advance(h, models.PlayerOutcome{Won: d.Won, PointsFor: d.PointsWon})
	next.Earned = make(map[string]bool, len(h.Earned)+len(d.Earned))
	for k, v := range h.Earned {
		next.Earned[k] = v
	}
	next.RepeatableCounts = make(map[string]int, len(h.RepeatableCounts))
	for k, v := range h.RepeatableCounts {
		next.RepeatableCounts[k] = v
	}
	for _, a := range d.Earned {
		if a.Repeatable {
			next.RepeatableCounts[a.Key]++
			continue
		}
		next.Earned[a.Key] = true
	}
	next.Version++
	return next
}
