// Package session coordinates live match recording: presence and team
// assignment, score agreement, and election of the single participant allowed
// to run post-match processing.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/courtside/models"
)

// Registry maps match tokens to sessions. Its lock only guards the map; each
// session serialises its own transitions.
type Registry struct {
	notifier Notifier
	opts     Options
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(notifier Notifier, opts Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		notifier: notifier,
		opts:     opts.withDefaults(),
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) get(token string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[token]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) getOrCreate(token string, venue models.VenueContext) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[token]; ok {
		return s
	}
	s := newSession(token, venue, r.notifier, r.opts, r.logger)
	s.onClosed = r.retire
	r.sessions[token] = s
	r.logger.Info("match session created", slog.String("match_token", token), slog.String("venue_context", string(venue)))
	return s
}

// remove drops token only if it still maps to s.
func (r *Registry) remove(token string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[token]; ok && cur == s {
		delete(r.sessions, token)
	}
}

func (r *Registry) retire(s *Session) {
	r.remove(s.token, s)
	r.logger.Info("match session retired", slog.String("match_token", s.token))
}

// Join adds the participant to the session for token, creating it on first
// join. The venue context only applies when the session is created.
func (r *Registry) Join(token string, p models.Participant, venue models.VenueContext) ([]models.Participant, error) {
	if token == "" || p.ID == "" {
		return nil, ErrInvalidJoin
	}
	if venue == "" {
		venue = models.VenueDefault
	}
	for {
		s := r.getOrCreate(token, venue)
		list, err := s.join(p)
		if errors.Is(err, errRetired) {
			r.remove(token, s)
			continue
		}
		return list, err
	}
}

// Leave removes a participant. handle may be empty for an explicit leave; a
// disconnect passes its own handle so a superseded connection cannot evict
// the participant's current one.
func (r *Registry) Leave(token, participantID, handle string) error {
	s, err := r.get(token)
	if err != nil {
		return err
	}
	return s.leave(participantID, handle)
}

func (r *Registry) AssignTeams(token, by string, teamA, teamB []string) error {
	s, err := r.get(token)
	if err != nil {
		return err
	}
	return s.assignTeams(by, teamA, teamB)
}

func (r *Registry) SubmitScore(token, participantID string, teamA, teamB int) (ScoreOutcome, error) {
	s, err := r.get(token)
	if err != nil {
		return ScoreOutcome{}, err
	}
	return s.submitScore(participantID, teamA, teamB)
}

func (r *Registry) Claim(token, participantID string) (ClaimOutcome, error) {
	s, err := r.get(token)
	if err != nil {
		return ClaimOutcome{}, err
	}
	return s.claim(participantID)
}

func (r *Registry) BeginProcessing(token, participantID string) (models.MatchFacts, uint64, error) {
	s, err := r.get(token)
	if err != nil {
		return models.MatchFacts{}, 0, err
	}
	return s.beginProcessing(participantID)
}

func (r *Registry) Complete(token, participantID string, gen uint64, result models.MatchResult) error {
	s, err := r.get(token)
	if err != nil {
		return err
	}
	return s.complete(participantID, gen, result)
}

func (r *Registry) Fail(token, participantID string, gen uint64, reason string) error {
	s, err := r.get(token)
	if err != nil {
		return err
	}
	return s.fail(participantID, gen, reason)
}

func (r *Registry) Abandon(token, participantID, reason string) error {
	s, err := r.get(token)
	if err != nil {
		return err
	}
	return s.abandon(participantID, reason)
}

func (r *Registry) Cancel(token, participantID string) error {
	s, err := r.get(token)
	if err != nil {
		return err
	}
	return s.cancel(participantID)
}

func (r *Registry) Snapshot(token string) (models.SessionView, error) {
	s, err := r.get(token)
	if err != nil {
		return models.SessionView{}, err
	}
	return s.view(), nil
}

// Sweep tears down sessions that have had no participants for the idle bound
// and returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	removed := 0
	for _, s := range candidates {
		if s.expireIdle(now) {
			r.remove(s.token, s)
			removed++
			r.logger.Info("idle match session torn down", slog.String("match_token", s.token))
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
