package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/courtside/models"
)

func TestRegistry_JoinBroadcastsParticipantList(t *testing.T) {
	r, n := newTestRegistry(Options{})

	list, err := r.Join("m1", player("p1"), models.VenueAlternate)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = r.Join("m1", player("p2"), models.VenueDefault)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// The joiner gets a snapshot first, then the shared list update.
	assert.Equal(t, []EventType{EventSessionSnapshot, EventParticipantListUpdated}, n.typesFor("h-p2"))
	assert.Equal(t, 2, n.count("h-p1", EventParticipantListUpdated))

	view, err := r.Snapshot("m1")
	require.NoError(t, err)
	assert.Equal(t, models.VenueAlternate, view.VenueContext, "venue is fixed by the first join")
	assert.Equal(t, models.StateAwaitingAgreement, view.State)
}

func TestRegistry_JoinValidation(t *testing.T) {
	r, _ := newTestRegistry(Options{})
	_, err := r.Join("", player("p1"), models.VenueDefault)
	assert.ErrorIs(t, err, ErrInvalidJoin)
	_, err = r.Join("m1", models.Participant{}, models.VenueDefault)
	assert.ErrorIs(t, err, ErrInvalidJoin)

	_, err = r.Snapshot("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_ReconnectSupersedesHandle(t *testing.T) {
	r, n := newTestRegistry(Options{})
	_, err := r.Join("m1", player("p1"), models.VenueDefault)
	require.NoError(t, err)

	again := player("p1")
	again.ConnectionHandle = "h-p1-second"
	list, err := r.Join("m1", again, models.VenueDefault)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "h-p1-second", list[0].ConnectionHandle)
	assert.Equal(t, []string{"h-p1"}, n.superseded)

	// The old connection dropping must not evict the participant.
	require.NoError(t, r.Leave("m1", "p1", "h-p1"))
	view, err := r.Snapshot("m1")
	require.NoError(t, err)
	assert.Len(t, view.Participants, 1)

	require.NoError(t, r.Leave("m1", "p1", "h-p1-second"))
	view, err = r.Snapshot("m1")
	require.NoError(t, err)
	assert.Empty(t, view.Participants)

	assert.ErrorIs(t, r.Leave("m1", "p1", ""), ErrNotParticipant)
}

func TestAssignTeams_Rejections(t *testing.T) {
	r, n := newTestRegistry(Options{})
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		_, err := r.Join("m1", player(id), models.VenueDefault)
		require.NoError(t, err)
	}

	cases := []struct {
		name  string
		teamA []string
		teamB []string
	}{
		{"short team", []string{"p1"}, []string{"p3", "p4"}},
		{"large team", []string{"p1", "p2", "p3"}, []string{"p4", "p1"}},
		{"both teams", []string{"p1", "p2"}, []string{"p2", "p4"}},
		{"duplicate in team", []string{"p1", "p1"}, []string{"p3", "p4"}},
		{"not joined", []string{"p1", "p2"}, []string{"p3", "p9"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.AssignTeams("m1", "p1", tc.teamA, tc.teamB)
			assert.ErrorIs(t, err, ErrInvalidAssignment)
		})
	}
	assert.Zero(t, n.count("h-p1", EventTeamsAssigned))

	assert.ErrorIs(t, r.AssignTeams("m1", "p9", []string{"p1", "p2"}, []string{"p3", "p4"}), ErrNotParticipant)

	require.NoError(t, r.AssignTeams("m1", "p2", []string{"p1", "p2"}, []string{"p3", "p4"}))
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		assert.Equal(t, 1, n.count("h-"+id, EventTeamsAssigned))
	}
}

func TestAssignTeams_RejectedAfterAgreement(t *testing.T) {
	r, _ := newTestRegistry(Options{})
	agreeScore(t, r, "m1", 11, 4)

	err := r.AssignTeams("m1", "p1", []string{"p1", "p3"}, []string{"p2", "p4"})
	assert.ErrorIs(t, err, ErrInvalidAssignment)
}

func TestAssignTeams_ReassignmentClearsScores(t *testing.T) {
	r, _ := newTestRegistry(Options{})
	joinFour(t, r, "m1")
	_, err := r.SubmitScore("m1", "p1", 11, 4)
	require.NoError(t, err)

	require.NoError(t, r.AssignTeams("m1", "p1", []string{"p1", "p3"}, []string{"p2", "p4"}))
	out, err := r.SubmitScore("m1", "p2", 11, 4)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, out.Status)
}

func TestCancel(t *testing.T) {
	r, n := newTestRegistry(Options{})
	joinFour(t, r, "m1")

	require.NoError(t, r.Cancel("m1", "p4"))
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		assert.Equal(t, 1, n.count("h-"+id, EventMatchCancelled))
	}

	// The token is retired; further operations see no session.
	_, err := r.SubmitScore("m1", "p1", 11, 4)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Cancel("m1", "p1"), ErrSessionNotFound)
	assert.Zero(t, r.Len())

	// A new attempt can reuse the token.
	list, err := r.Join("m1", player("p1"), models.VenueDefault)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCancel_WaitsForProcessingToRelease(t *testing.T) {
	r, n := newTestRegistry(Options{ClaimTimeout: time.Minute, MaxAttempts: 3})
	agreeScore(t, r, "m1", 11, 4)

	_, err := r.Claim("m1", "p2")
	require.NoError(t, err)
	_, gen, err := r.BeginProcessing("m1", "p2")
	require.NoError(t, err)

	assert.ErrorIs(t, r.Cancel("m1", "p3"), ErrProcessingInProgress)
	assert.Zero(t, n.count("h-p3", EventMatchCancelled))

	require.NoError(t, r.Fail("m1", "p2", gen, "persistence failure"))
	require.NoError(t, r.Cancel("m1", "p3"))
	assert.Equal(t, 1, n.count("h-p1", EventMatchCancelled))
}

func TestSweep_TearsDownIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	r, _ := newTestRegistry(Options{IdleTimeout: time.Minute, Now: clock.Now})

	_, err := r.Join("empty", player("p1"), models.VenueDefault)
	require.NoError(t, err)
	require.NoError(t, r.Leave("empty", "p1", ""))
	_, err = r.Join("busy", player("p2"), models.VenueDefault)
	require.NoError(t, err)

	assert.Zero(t, r.Sweep(clock.Now()))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, r.Sweep(clock.Now()))
	_, err = r.Snapshot("empty")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Snapshot("busy")
	assert.NoError(t, err)
}
