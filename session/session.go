package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/courtside/models"
)

type Options struct {
	// ClaimTimeout bounds how long a granted leader may wait before starting processing.
	ClaimTimeout time.Duration
	// ProcessingTimeout bounds a started processing run.
	ProcessingTimeout time.Duration
	// MaxAttempts is the retry budget for claims that time out or fail.
	MaxAttempts int
	// IdleTimeout is how long a session with no participants is kept.
	IdleTimeout time.Duration
	Now         func() time.Time
}

func DefaultOptions() Options {
	return Options{
		ClaimTimeout:      5 * time.Second,
		ProcessingTimeout: 10 * time.Second,
		MaxAttempts:       3,
		IdleTimeout:       10 * time.Minute,
		Now:               time.Now,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ClaimTimeout <= 0 {
		o.ClaimTimeout = def.ClaimTimeout
	}
	if o.ProcessingTimeout <= 0 {
		o.ProcessingTimeout = def.ProcessingTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = def.IdleTimeout
	}
	if o.Now == nil {
		o.Now = def.Now
	}
	return o
}

// Session is the state of one match token. All transitions happen under mu.
type Session struct {
	token    string
	opts     Options
	notifier Notifier
	logger   *slog.Logger
	onClosed func(*Session)

	mu           sync.Mutex
	venue        models.VenueContext
	participants []models.Participant
	names        map[string]string
	teams        models.TeamAssignment
	submissions  []models.ScoreSubmission
	state        models.ProcessingState
	agreed       *models.FinalScore
	agreedAt     time.Time
	result       *models.MatchResult

	leaderID   string
	claimGen   uint64
	claimTimer *time.Timer
	processing bool
	attempts   int

	lastActivity time.Time
	retired      bool
}

func newSession(token string, venue models.VenueContext, notifier Notifier, opts Options, logger *slog.Logger) *Session {
	return &Session{
		token:        token,
		opts:         opts,
		notifier:     notifier,
		logger:       logger.With(slog.String("match_token", token)),
		venue:        venue,
		names:        make(map[string]string),
		state:        models.StateAwaitingAgreement,
		lastActivity: opts.Now(),
	}
}

// unlock releases mu and, the first time the session is found closed, hands it
// to onClosed outside the lock.
func (s *Session) unlock() {
	retire := s.state.Terminal() && !s.retired
	if retire {
		s.retired = true
		s.stopTimerLocked()
	}
	s.mu.Unlock()
	if retire && s.onClosed != nil {
		s.onClosed(s)
	}
}

func (s *Session) touch() {
	s.lastActivity = s.opts.Now()
}

func (s *Session) indexOf(participantID string) int {
	for i, p := range s.participants {
		if p.ID == participantID {
			return i
		}
	}
	return -1
}

func (s *Session) join(p models.Participant) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.retired {
		return nil, errRetired
	}
	if s.state.Terminal() {
		return nil, ErrSessionClosed
	}

	if p.JoinedAt.IsZero() {
		p.JoinedAt = s.opts.Now()
	}
	if i := s.indexOf(p.ID); i >= 0 {
		prev := s.participants[i]
		p.JoinedAt = prev.JoinedAt
		s.participants[i] = p
		if prev.ConnectionHandle != "" && prev.ConnectionHandle != p.ConnectionHandle {
			s.logger.Info("participant reconnected, superseding previous connection",
				slog.String("participant_id", p.ID))
			s.notifier.Supersede(prev.ConnectionHandle)
		}
	} else {
		s.participants = append(s.participants, p)
	}
	if p.DisplayName != "" {
		s.names[p.ID] = p.DisplayName
	}
	s.touch()

	s.notifier.Deliver(p.ConnectionHandle, s.event(EventSessionSnapshot, s.viewLocked()))
	s.broadcastParticipantsLocked()
	return s.participantsLocked(), nil
}

// leave removes the participant unless handle is stale. An empty handle always matches.
func (s *Session) leave(participantID, handle string) error {
	s.mu.Lock()
	defer s.unlock()

	if s.retired || s.state.Terminal() {
		return nil
	}
	i := s.indexOf(participantID)
	if i < 0 {
		return ErrNotParticipant
	}
	if handle != "" && s.participants[i].ConnectionHandle != handle {
		return nil
	}
	s.participants = append(s.participants[:i], s.participants[i+1:]...)
	s.touch()
	s.broadcastParticipantsLocked()

	if s.state == models.StateLeaderClaimed && s.leaderID == participantID && !s.processing {
		s.logger.Warn("leader disconnected before processing", slog.String("participant_id", participantID))
		s.releaseLocked("leader disconnected")
	}
	return nil
}

func (s *Session) assignTeams(by string, teamA, teamB []string) error {
	s.mu.Lock()
	defer s.unlock()

	if s.retired || s.state.Terminal() {
		return ErrSessionClosed
	}
	if s.indexOf(by) < 0 {
		return ErrNotParticipant
	}
	if s.state.AtLeastAgreed() {
		return fmt.Errorf("%w: scores already agreed", ErrInvalidAssignment)
	}
	if err := s.validateAssignmentLocked(teamA, teamB); err != nil {
		return err
	}

	s.teams = models.TeamAssignment{
		TeamA: append([]string(nil), teamA...),
		TeamB: append([]string(nil), teamB...),
	}
	// Scores reported under a previous lineup no longer apply.
	s.submissions = nil
	s.touch()
	s.broadcastLocked(EventTeamsAssigned, TeamsPayload{Teams: s.teams})
	return nil
}

func (s *Session) validateAssignmentLocked(teamA, teamB []string) error {
	if len(teamA) != models.TeamSize || len(teamB) != models.TeamSize {
		return fmt.Errorf("%w: each team needs exactly %d players", ErrInvalidAssignment, models.TeamSize)
	}
	seen := make(map[string]bool, 2*models.TeamSize)
	for _, id := range append(append([]string(nil), teamA...), teamB...) {
		if id == "" {
			return fmt.Errorf("%w: empty participant id", ErrInvalidAssignment)
		}
		if seen[id] {
			return fmt.Errorf("%w: participant %s assigned twice", ErrInvalidAssignment, id)
		}
		seen[id] = true
		if s.indexOf(id) < 0 {
			return fmt.Errorf("%w: participant %s has not joined", ErrInvalidAssignment, id)
		}
	}
	return nil
}

// cancel ends the match without a result. It is rejected while processing is in
// flight: the running batch decides the outcome and cancel may be retried once
// the claim is released.
func (s *Session) cancel(by string) error {
	s.mu.Lock()
	defer s.unlock()

	if s.retired || s.state.Terminal() {
		return ErrSessionClosed
	}
	if s.indexOf(by) < 0 {
		return ErrNotParticipant
	}
	if s.processing {
		return ErrProcessingInProgress
	}
	s.state = models.StateCancelled
	s.logger.Info("match cancelled", slog.String("participant_id", by))
	s.broadcastLocked(EventMatchCancelled, CancelledPayload{CancelledBy: by})
	return nil
}

// expireIdle retires the session if it has been empty for at least the idle
// bound. Only sessions with no participants are torn down; a joined but silent
// table is kept. Sessions retired by a terminal transition are already gone.
func (s *Session) expireIdle(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retired {
		return false
	}
	if len(s.participants) > 0 || s.processing || now.Sub(s.lastActivity) < s.opts.IdleTimeout {
		return false
	}
	s.retired = true
	s.stopTimerLocked()
	return true
}

func (s *Session) view() models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() models.SessionView {
	v := models.SessionView{
		MatchToken:   s.token,
		VenueContext: s.venue,
		Participants: s.participantsLocked(),
		Teams:        s.teams,
		State:        s.state,
		LeaderID:     s.leaderID,
		Attempts:     s.attempts,
	}
	if s.agreed != nil {
		score := *s.agreed
		v.AgreedScore = &score
	}
	return v
}

func (s *Session) participantsLocked() []models.Participant {
	out := make([]models.Participant, len(s.participants))
	copy(out, s.participants)
	return out
}

func (s *Session) event(t EventType, payload interface{}) Event {
	return Event{Type: t, MatchToken: s.token, Payload: payload}
}

func (s *Session) broadcastLocked(t EventType, payload interface{}) {
	ev := s.event(t, payload)
	for _, p := range s.participants {
		if p.ConnectionHandle != "" {
			s.notifier.Deliver(p.ConnectionHandle, ev)
		}
	}
}

func (s *Session) broadcastParticipantsLocked() {
	s.broadcastLocked(EventParticipantListUpdated, ParticipantListPayload{Participants: s.participantsLocked()})
}

func (s *Session) handleOf(participantID string) string {
	if i := s.indexOf(participantID); i >= 0 {
		return s.participants[i].ConnectionHandle
	}
	return ""
}
