package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/courtside/models"
)

type ClaimStatus string

const (
	ClaimGranted ClaimStatus = "granted"
	ClaimDenied  ClaimStatus = "denied"
)

// ClaimOutcome is the arbiter's answer to a claim. Facts and Generation are set
// only when granted.
type ClaimOutcome struct {
	Status     ClaimStatus        `json:"status"`
	Reason     string             `json:"reason,omitempty"`
	Facts      *models.MatchFacts `json:"match_facts,omitempty"`
	Generation uint64             `json:"-"`
}

func denied(reason string) ClaimOutcome {
	return ClaimOutcome{Status: ClaimDenied, Reason: reason}
}

// claim grants the processing right to the first caller after agreement.
func (s *Session) claim(participantID string) (ClaimOutcome, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.retired {
		return denied("match session closed"), nil
	}
	if s.indexOf(participantID) < 0 {
		return ClaimOutcome{}, ErrNotParticipant
	}

	switch s.state {
	case models.StateAwaitingAgreement:
		return denied("scores not agreed"), nil
	case models.StateLeaderClaimed:
		// The leader's own repeat claim is denied too: one grant per claim.
		return denied("processing already claimed"), nil
	case models.StateAgreed:
	default:
		return denied(fmt.Sprintf("match is %s", s.state)), nil
	}

	s.attempts++
	s.claimGen++
	s.state = models.StateLeaderClaimed
	s.leaderID = participantID
	s.processing = false
	s.armTimerLocked(s.opts.ClaimTimeout)
	s.touch()

	facts := s.factsLocked()
	s.logger.Info("processing claim granted",
		slog.String("participant_id", participantID), slog.Int("attempt", s.attempts))
	s.notifier.Deliver(s.handleOf(participantID), s.event(EventProcessingGranted, GrantedPayload{Facts: facts}))
	return ClaimOutcome{Status: ClaimGranted, Facts: &facts, Generation: s.claimGen}, nil
}

// beginProcessing marks the leader's run as started and extends its deadline.
func (s *Session) beginProcessing(participantID string) (models.MatchFacts, uint64, error) {
	s.mu.Lock()
	defer s.unlock()

	if err := s.checkLeaderLocked(participantID); err != nil {
		return models.MatchFacts{}, 0, err
	}
	if s.processing {
		return models.MatchFacts{}, 0, ErrProcessingInProgress
	}
	s.processing = true
	s.armTimerLocked(s.opts.ProcessingTimeout)
	s.touch()
	return s.factsLocked(), s.claimGen, nil
}

func (s *Session) complete(participantID string, gen uint64, result models.MatchResult) error {
	s.mu.Lock()
	defer s.unlock()

	if err := s.checkGenerationLocked(participantID, gen); err != nil {
		return err
	}
	s.stopTimerLocked()
	s.processing = false
	s.state = models.StateCompleted
	s.result = &result
	s.logger.Info("match completed",
		slog.String("participant_id", participantID),
		slog.Int("earned", len(result.Earned)), slog.Int("rewards", len(result.Rewards)))
	s.broadcastLocked(EventMatchCompleted, CompletedPayload{Result: result})
	return nil
}

// fail reports a failed processing run. The claim goes back to Agreed while the
// retry budget lasts.
func (s *Session) fail(participantID string, gen uint64, reason string) error {
	s.mu.Lock()
	defer s.unlock()

	if err := s.checkGenerationLocked(participantID, gen); err != nil {
		return err
	}
	s.logger.Error("match processing failed",
		slog.String("participant_id", participantID), slog.String("reason", reason), slog.Int("attempt", s.attempts))
	s.failLocked(reason)
	return nil
}

// abandon is fail for the leader's current claim, used when the client itself
// reports that it could not process.
func (s *Session) abandon(participantID, reason string) error {
	s.mu.Lock()
	defer s.unlock()

	if err := s.checkLeaderLocked(participantID); err != nil {
		return err
	}
	if s.processing {
		return ErrProcessingInProgress
	}
	s.logger.Warn("leader abandoned processing",
		slog.String("participant_id", participantID), slog.String("reason", reason))
	s.failLocked(reason)
	return nil
}

func (s *Session) failLocked(reason string) {
	s.stopTimerLocked()
	s.processing = false
	s.leaderID = ""
	retryable := s.attempts < s.opts.MaxAttempts
	if retryable {
		s.state = models.StateAgreed
	} else {
		s.state = models.StateFailed
	}
	s.broadcastLocked(EventMatchFailed, FailedPayload{Reason: reason, Retryable: retryable, Attempt: s.attempts})
}

// expireClaim runs on the claim timer. A stale generation means the claim was
// already resolved.
func (s *Session) expireClaim(gen uint64) {
	s.mu.Lock()
	defer s.unlock()

	if s.retired || s.state != models.StateLeaderClaimed || s.claimGen != gen {
		return
	}
	s.logger.Warn("processing timeout, releasing claim",
		slog.String("participant_id", s.leaderID), slog.Bool("processing", s.processing), slog.Int("attempt", s.attempts))
	s.claimTimer = nil
	s.releaseLocked("processing timeout")
}

// releaseLocked reverts LeaderClaimed to Agreed so another participant can
// claim, or fails the match once the retry budget is spent.
func (s *Session) releaseLocked(reason string) {
	s.stopTimerLocked()
	s.processing = false
	s.leaderID = ""
	if s.attempts >= s.opts.MaxAttempts {
		s.state = models.StateFailed
		s.broadcastLocked(EventMatchFailed, FailedPayload{
			Reason:    reason + "; retry budget exhausted",
			Retryable: false,
			Attempt:   s.attempts,
		})
		return
	}
	s.state = models.StateAgreed
	s.broadcastLocked(EventProcessingReleased, ReleasedPayload{
		Reason:    reason,
		Attempt:   s.attempts,
		Remaining: s.opts.MaxAttempts - s.attempts,
	})
}

func (s *Session) checkLeaderLocked(participantID string) error {
	if s.retired || s.state.Terminal() {
		return ErrSessionClosed
	}
	if s.state != models.StateLeaderClaimed || s.leaderID != participantID {
		return ErrNotLeader
	}
	return nil
}

func (s *Session) checkGenerationLocked(participantID string, gen uint64) error {
	if err := s.checkLeaderLocked(participantID); err != nil {
		if err == ErrNotLeader {
			return ErrStaleClaim
		}
		return err
	}
	if s.claimGen != gen {
		return ErrStaleClaim
	}
	return nil
}

func (s *Session) armTimerLocked(d time.Duration) {
	s.stopTimerLocked()
	gen := s.claimGen
	s.claimTimer = time.AfterFunc(d, func() { s.expireClaim(gen) })
}

func (s *Session) stopTimerLocked() {
	if s.claimTimer != nil {
		s.claimTimer.Stop()
		s.claimTimer = nil
	}
}

func (s *Session) factsLocked() models.MatchFacts {
	facts := models.MatchFacts{
		MatchToken:   s.token,
		VenueContext: s.venue,
		Teams: models.TeamAssignment{
			TeamA: append([]string(nil), s.teams.TeamA...),
			TeamB: append([]string(nil), s.teams.TeamB...),
		},
		AgreedAt:     s.agreedAt,
		DisplayNames: make(map[string]string, 2*models.TeamSize),
	}
	if s.agreed != nil {
		facts.Score = *s.agreed
		winner := s.agreed.Winner()
		loser := models.TeamA
		if winner == models.TeamA {
			loser = models.TeamB
		}
		facts.Winners = append([]string(nil), s.teams.Members(winner)...)
		facts.Losers = append([]string(nil), s.teams.Members(loser)...)
	}
	for _, id := range facts.Players() {
		facts.DisplayNames[id] = s.names[id]
	}
	return facts
}
