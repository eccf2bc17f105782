package session

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dosada05/courtside/models"
)

type recordingNotifier struct {
	mu         sync.Mutex
	events     map[string][]Event
	superseded []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(map[string][]Event)}
}

func (n *recordingNotifier) Deliver(handle string, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[handle] = append(n.events[handle], ev)
}

func (n *recordingNotifier) Supersede(handle string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.superseded = append(n.superseded, handle)
}

func (n *recordingNotifier) eventsFor(handle string) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, len(n.events[handle]))
	copy(out, n.events[handle])
	return out
}

func (n *recordingNotifier) typesFor(handle string) []EventType {
	var out []EventType
	for _, ev := range n.eventsFor(handle) {
		out = append(out, ev.Type)
	}
	return out
}

func (n *recordingNotifier) count(handle string, t EventType) int {
	c := 0
	for _, ev := range n.eventsFor(handle) {
		if ev.Type == t {
			c++
		}
	}
	return c
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(opts Options) (*Registry, *recordingNotifier) {
	n := newRecordingNotifier()
	return NewRegistry(n, opts, discardLogger()), n
}

func player(id string) models.Participant {
	return models.Participant{ID: id, DisplayName: "Player " + id, ConnectionHandle: "h-" + id}
}

// joinFour joins p1..p4 to token and assigns [p1,p2] vs [p3,p4].
func joinFour(t *testing.T, r *Registry, token string) {
	t.Helper()
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		_, err := r.Join(token, player(id), models.VenueDefault)
		require.NoError(t, err)
	}
	require.NoError(t, r.AssignTeams(token, "p1", []string{"p1", "p2"}, []string{"p3", "p4"}))
}

// agreeScore drives token to Agreed with score a-b.
func agreeScore(t *testing.T, r *Registry, token string, a, b int) {
	t.Helper()
	joinFour(t, r, token)
	out, err := r.SubmitScore(token, "p1", a, b)
	require.NoError(t, err)
	require.Equal(t, OutcomePending, out.Status)
	out, err = r.SubmitScore(token, "p3", a, b)
	require.NoError(t, err)
	require.Equal(t, OutcomeAgreed, out.Status)
}
