package session

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/courtside/models"
)

type OutcomeStatus string

const (
	OutcomePending      OutcomeStatus = "pending"
	OutcomeAgreed       OutcomeStatus = "agreed"
	OutcomeDisagreement OutcomeStatus = "disagreement"
)

type ScoreOutcome struct {
	Status OutcomeStatus      `json:"status"`
	Score  *models.FinalScore `json:"score,omitempty"`
	Reason string             `json:"reason,omitempty"`
}

// ValidateScore rejects anything that cannot be a finished match score.
func ValidateScore(teamA, teamB int) error {
	if teamA < 0 || teamB < 0 {
		return fmt.Errorf("%w: scores must be non-negative", ErrInvalidScore)
	}
	if teamA == teamB {
		return fmt.Errorf("%w: a match cannot end tied", ErrInvalidScore)
	}
	return nil
}

// activeSubmissions returns the latest submission of every submitter in
// submission order.
func activeSubmissions(subs []models.ScoreSubmission) []models.ScoreSubmission {
	active := make([]models.ScoreSubmission, 0, len(subs))
	for _, sub := range subs {
		if !sub.Superseded {
			active = append(active, sub)
		}
	}
	return active
}

// Reconcile compares the latest submission of every submitter. It stays
// pending until both teams have reported.
func Reconcile(subs []models.ScoreSubmission) ScoreOutcome {
	active := activeSubmissions(subs)
	var hasA, hasB bool
	for _, sub := range active {
		switch sub.Team {
		case models.TeamA:
			hasA = true
		case models.TeamB:
			hasB = true
		}
	}
	if !hasA || !hasB {
		return ScoreOutcome{Status: OutcomePending}
	}

	first := active[0]
	agree := true
	for _, sub := range active[1:] {
		if sub.TeamAScore != first.TeamAScore || sub.TeamBScore != first.TeamBScore {
			agree = false
			break
		}
	}
	if agree {
		return ScoreOutcome{
			Status: OutcomeAgreed,
			Score:  &models.FinalScore{TeamA: first.TeamAScore, TeamB: first.TeamBScore},
		}
	}

	reports := make([]string, 0, len(active))
	for _, sub := range active {
		reports = append(reports, fmt.Sprintf("%s reported %d-%d", sub.SubmitterID, sub.TeamAScore, sub.TeamBScore))
	}
	return ScoreOutcome{
		Status: OutcomeDisagreement,
		Reason: "scores do not match: " + strings.Join(reports, ", "),
	}
}

func (s *Session) submitScore(participantID string, teamA, teamB int) (ScoreOutcome, error) {
	if err := ValidateScore(teamA, teamB); err != nil {
		return ScoreOutcome{}, err
	}

	s.mu.Lock()
	defer s.unlock()

	if s.retired || s.state.Terminal() {
		return ScoreOutcome{}, ErrSessionClosed
	}
	if s.indexOf(participantID) < 0 {
		return ScoreOutcome{}, ErrNotParticipant
	}
	if s.state.AtLeastAgreed() {
		// A late duplicate of the agreed score is harmless.
		if s.agreed != nil && s.agreed.TeamA == teamA && s.agreed.TeamB == teamB {
			score := *s.agreed
			return ScoreOutcome{Status: OutcomeAgreed, Score: &score}, nil
		}
		return ScoreOutcome{}, ErrScoresLocked
	}
	if !s.teams.Complete() {
		return ScoreOutcome{}, ErrTeamsIncomplete
	}
	team, ok := s.teams.TeamOf(participantID)
	if !ok {
		return ScoreOutcome{}, ErrNotOnTeam
	}

	for i := range s.submissions {
		if s.submissions[i].SubmitterID == participantID {
			s.submissions[i].Superseded = true
		}
	}
	s.submissions = append(s.submissions, models.ScoreSubmission{
		SubmitterID: participantID,
		Team:        team,
		TeamAScore:  teamA,
		TeamBScore:  teamB,
		SubmittedAt: s.opts.Now(),
	})
	s.touch()

	outcome := Reconcile(s.submissions)
	switch outcome.Status {
	case OutcomeAgreed:
		s.state = models.StateAgreed
		s.agreed = outcome.Score
		s.agreedAt = s.opts.Now()
		s.logger.Info("scores agreed", slog.Int("team_a", teamA), slog.Int("team_b", teamB))
		s.broadcastLocked(EventScoreAgreed, AgreedPayload{TeamAScore: teamA, TeamBScore: teamB})
	case OutcomeDisagreement:
		s.logger.Info("score disagreement", slog.String("reason", outcome.Reason))
		s.broadcastLocked(EventScoreDisagreement, DisagreementPayload{
			Reason:      outcome.Reason,
			Submissions: activeSubmissions(s.submissions),
		})
	}
	return outcome, nil
}
