package hub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/courtside/models"
	"github.com/Dosada05/courtside/session"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls []models.MatchFacts
	err   error
}

func (f *fakeProcessor) Process(_ context.Context, facts models.MatchFacts) (models.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, facts)
	if f.err != nil {
		return models.MatchResult{}, f.err
	}
	return models.MatchResult{
		MatchToken: facts.MatchToken,
		Earned: []models.AchievementEarned{
			{PlayerID: "p1", Key: models.AchievementFirstWin, Occurrence: 1, EarnedAt: facts.AgreedAt},
		},
		Rewards:     []models.ResolvedReward{},
		CompletedAt: facts.AgreedAt,
	}, nil
}

type testServer struct {
	srv        *httptest.Server
	hub        *Hub
	registry   *session.Registry
	dispatcher *Dispatcher
}

func newTestServer(t *testing.T, processor Processor) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHub(logger)
	go h.Run()
	opts := session.DefaultOptions()
	opts.ClaimTimeout = time.Second
	registry := session.NewRegistry(h, opts, logger)
	d := NewDispatcher(h, registry, processor, time.Second, logger)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		pid := r.URL.Query().Get("pid")
		c := NewClient(h, d, conn, models.Identity{ParticipantID: pid, DisplayName: "Player " + pid})
		h.Register <- c
		go c.WritePump()
		go c.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, hub: h, registry: registry, dispatcher: d}
}

func (ts *testServer) dial(t *testing.T, pid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/?pid=" + pid
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame struct {
	Type       string          `json:"type"`
	RequestID  string          `json:"request_id"`
	MatchToken string          `json:"match_token"`
	Payload    json.RawMessage `json:"payload"`
}

func send(t *testing.T, conn *websocket.Conn, msgType, token string, payload interface{}) {
	t.Helper()
	msg := map[string]interface{}{"type": msgType, "match_token": token}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(t, conn.WriteJSON(msg))
}

// await reads frames until one of the wanted type arrives.
func await(t *testing.T, conn *websocket.Conn, msgType string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == msgType {
			return f
		}
	}
}

func joinAll(t *testing.T, ts *testServer, token string, pids ...string) map[string]*websocket.Conn {
	t.Helper()
	conns := make(map[string]*websocket.Conn, len(pids))
	for _, pid := range pids {
		conn := ts.dial(t, pid)
		send(t, conn, MsgJoin, token, JoinPayload{DisplayName: "Player " + pid})
		await(t, conn, ReplyJoined)
		conns[pid] = conn
	}
	return conns
}

func TestHub_FullMatchFlow(t *testing.T) {
	proc := &fakeProcessor{}
	ts := newTestServer(t, proc)
	conns := joinAll(t, ts, "m1", "p1", "p2", "p3", "p4")

	send(t, conns["p1"], MsgAssignTeams, "", AssignTeamsPayload{TeamA: []string{"p1", "p2"}, TeamB: []string{"p3", "p4"}})
	for _, conn := range conns {
		await(t, conn, string(session.EventTeamsAssigned))
	}

	send(t, conns["p1"], MsgSubmitScore, "", map[string]interface{}{"team_a_score": 11, "team_b_score": 4})
	pending := await(t, conns["p1"], ReplyScoreOutcome)
	assert.Contains(t, string(pending.Payload), `"pending"`)

	send(t, conns["p3"], MsgSubmitScore, "", map[string]interface{}{"team_a_score": 11, "team_b_score": 4})
	for _, conn := range conns {
		agreed := await(t, conn, string(session.EventScoreAgreed))
		assert.JSONEq(t, `{"team_a_score":11,"team_b_score":4}`, string(agreed.Payload))
	}

	send(t, conns["p2"], MsgClaimProcessing, "", nil)
	granted := await(t, conns["p2"], string(session.EventProcessingGranted))
	assert.Contains(t, string(granted.Payload), `"match_token":"m1"`)

	send(t, conns["p4"], MsgClaimProcessing, "", nil)
	deniedFrame := await(t, conns["p4"], ReplyClaimOutcome)
	assert.Contains(t, string(deniedFrame.Payload), `"denied"`)

	send(t, conns["p2"], MsgCompleteProcessing, "", nil)
	for _, conn := range conns {
		done := await(t, conn, string(session.EventMatchCompleted))
		assert.Contains(t, string(done.Payload), models.AchievementFirstWin)
	}
	ts.dispatcher.Wait()

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Len(t, proc.calls, 1)
	assert.Equal(t, models.FinalScore{TeamA: 11, TeamB: 4}, proc.calls[0].Score)
	assert.Eventually(t, func() bool { return ts.registry.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_ProcessingFailureIsRetryable(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("db down")}
	ts := newTestServer(t, proc)
	conns := joinAll(t, ts, "m2", "p1", "p2", "p3", "p4")

	send(t, conns["p1"], MsgAssignTeams, "", AssignTeamsPayload{TeamA: []string{"p1", "p2"}, TeamB: []string{"p3", "p4"}})
	await(t, conns["p1"], string(session.EventTeamsAssigned))
	send(t, conns["p1"], MsgSubmitScore, "", map[string]interface{}{"team_a_score": 3, "team_b_score": 11})
	send(t, conns["p4"], MsgSubmitScore, "", map[string]interface{}{"team_a_score": 3, "team_b_score": 11})
	await(t, conns["p1"], string(session.EventScoreAgreed))

	send(t, conns["p1"], MsgClaimProcessing, "", nil)
	await(t, conns["p1"], string(session.EventProcessingGranted))
	send(t, conns["p1"], MsgCompleteProcessing, "", nil)

	failed := await(t, conns["p3"], string(session.EventMatchFailed))
	assert.Contains(t, string(failed.Payload), `"retryable":true`)

	// Budget left: another participant can take over.
	send(t, conns["p3"], MsgClaimProcessing, "", nil)
	await(t, conns["p3"], string(session.EventProcessingGranted))
}

func TestHub_RejectsInvalidScoreAtIntake(t *testing.T) {
	ts := newTestServer(t, &fakeProcessor{})
	conns := joinAll(t, ts, "m3", "p1", "p2", "p3", "p4")
	send(t, conns["p1"], MsgAssignTeams, "", AssignTeamsPayload{TeamA: []string{"p1", "p2"}, TeamB: []string{"p3", "p4"}})
	await(t, conns["p1"], string(session.EventTeamsAssigned))

	send(t, conns["p1"], MsgSubmitScore, "", map[string]interface{}{"team_a_score": 10.5, "team_b_score": 4})
	errFrame := await(t, conns["p1"], ReplyError)
	assert.Contains(t, string(errFrame.Payload), `"invalid_score"`)

	send(t, conns["p1"], MsgSubmitScore, "", map[string]interface{}{"team_a_score": -1, "team_b_score": 4})
	errFrame = await(t, conns["p1"], ReplyError)
	assert.Contains(t, string(errFrame.Payload), `"invalid_score"`)
}

func TestHub_MessagesBeforeJoinAreRejected(t *testing.T) {
	ts := newTestServer(t, &fakeProcessor{})
	conn := ts.dial(t, "p1")

	send(t, conn, MsgClaimProcessing, "m4", nil)
	errFrame := await(t, conn, ReplyError)
	assert.Contains(t, string(errFrame.Payload), `"not_joined"`)

	send(t, conn, "dance", "m4", nil)
	errFrame = await(t, conn, ReplyError)
	assert.Contains(t, string(errFrame.Payload), `"unknown_type"`)
}

func TestHub_ReconnectSupersedesOldConnection(t *testing.T) {
	ts := newTestServer(t, &fakeProcessor{})
	conns := joinAll(t, ts, "m5", "p1", "p2")

	fresh := ts.dial(t, "p1")
	send(t, fresh, MsgJoin, "m5", JoinPayload{DisplayName: "Player p1"})
	await(t, fresh, ReplyJoined)
	await(t, conns["p1"], string(session.EventSuperseded))

	// The old connection closing must not remove p1 from the session.
	conns["p1"].Close()
	assert.Never(t, func() bool {
		view, err := ts.registry.Snapshot("m5")
		return err != nil || len(view.Participants) != 2
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestHub_DisconnectIsImplicitLeave(t *testing.T) {
	ts := newTestServer(t, &fakeProcessor{})
	conns := joinAll(t, ts, "m6", "p1", "p2")

	conns["p2"].Close()
	await(t, conns["p1"], string(session.EventParticipantListUpdated))
	assert.Eventually(t, func() bool {
		view, err := ts.registry.Snapshot("m6")
		return err == nil && len(view.Participants) == 1
	}, time.Second, 10*time.Millisecond)
	view, err := ts.registry.Snapshot("m6")
	require.NoError(t, err)
	require.Len(t, view.Participants, 1)
	assert.Equal(t, "p1", view.Participants[0].ID)
}

func TestHub_JoiningAnotherMatchLeavesThePrevious(t *testing.T) {
	ts := newTestServer(t, &fakeProcessor{})
	conns := joinAll(t, ts, "m7", "p1", "p2")

	send(t, conns["p1"], MsgJoin, "m8", JoinPayload{DisplayName: "Player p1"})
	await(t, conns["p1"], ReplyJoined)
	await(t, conns["p2"], string(session.EventParticipantListUpdated))

	view, err := ts.registry.Snapshot("m7")
	require.NoError(t, err)
	require.Len(t, view.Participants, 1)
	assert.Equal(t, "p2", view.Participants[0].ID)

	view, err = ts.registry.Snapshot("m8")
	require.NoError(t, err)
	require.Len(t, view.Participants, 1)
	assert.Equal(t, "p1", view.Participants[0].ID)
}
