package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/courtside/models"
	"github.com/Dosada05/courtside/session"
)

const maxDeadlineMargin = 2 * time.Second

// Processor computes and persists the side effects of an agreed match.
type Processor interface {
	Process(ctx context.Context, facts models.MatchFacts) (models.MatchResult, error)
}

// Dispatcher turns inbound websocket messages into registry operations.
type Dispatcher struct {
	hub            *Hub
	registry       *session.Registry
	processor      Processor
	processTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time

	inflight sync.WaitGroup
}

// NewDispatcher wires the hub to the registry. sessionTimeout is the session's
// processing timeout; the processor gets a shorter deadline derived from it.
func NewDispatcher(h *Hub, registry *session.Registry, processor Processor, sessionTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if sessionTimeout <= 0 {
		sessionTimeout = session.DefaultOptions().ProcessingTimeout
	}
	return &Dispatcher{
		hub:            h,
		registry:       registry,
		processor:      processor,
		processTimeout: processingDeadline(sessionTimeout),
		logger:         logger,
		now:            time.Now,
	}
}

// processingDeadline keeps the processor's deadline below the session timer
// that would otherwise release the claim while the store call is still running.
func processingDeadline(sessionTimeout time.Duration) time.Duration {
	margin := sessionTimeout / 5
	if margin > maxDeadlineMargin {
		margin = maxDeadlineMargin
	}
	if margin <= 0 {
		margin = 1
	}
	return sessionTimeout - margin
}

// Wait blocks until in-flight processing goroutines have reported back.
func (d *Dispatcher) Wait() { d.inflight.Wait() }

func (d *Dispatcher) Handle(c *Client, data []byte) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		d.replyError(c, "", "", fmt.Errorf("%w: %v", errMalformedMessage, err))
		return
	}

	var err error
	switch msg.Type {
	case MsgJoin:
		err = d.join(c, msg)
	case MsgLeave:
		err = d.leave(c, msg)
	case MsgAssignTeams:
		err = d.assignTeams(c, msg)
	case MsgSubmitScore:
		err = d.submitScore(c, msg)
	case MsgClaimProcessing:
		err = d.claim(c, msg)
	case MsgCompleteProcessing:
		err = d.completeProcessing(c, msg)
	case MsgCancelMatch:
		err = d.cancel(c, msg)
	default:
		err = fmt.Errorf("%w: %q", errUnknownType, msg.Type)
	}
	if err != nil {
		d.replyError(c, msg.RequestID, msg.MatchToken, err)
	}
}

// Disconnected is the implicit leave for a closed connection.
func (d *Dispatcher) Disconnected(c *Client) {
	c.Mu.Lock()
	token, superseded := c.token, c.superseded
	c.token = ""
	c.Mu.Unlock()
	if token == "" || superseded {
		return
	}
	d.implicitLeave(c, token)
}

// implicitLeave removes c's participant from token without a client request,
// so failures are logged rather than replied.
func (d *Dispatcher) implicitLeave(c *Client, token string) {
	err := d.registry.Leave(token, c.Identity.ParticipantID, c.Handle)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		d.logger.Warn("implicit leave failed",
			slog.String("match_token", token),
			slog.String("participant_id", c.Identity.ParticipantID),
			slog.Any("error", err))
	}
}

// boundToken resolves the match a non-join message targets.
func (d *Dispatcher) boundToken(c *Client, msg Inbound) (string, error) {
	token := c.joinedToken()
	if token == "" {
		return "", errNotJoined
	}
	if msg.MatchToken != "" && msg.MatchToken != token {
		return "", errNotJoined
	}
	return token, nil
}

func (d *Dispatcher) join(c *Client, msg Inbound) error {
	token := strings.TrimSpace(msg.MatchToken)
	if token == "" {
		return errMissingToken
	}
	var p JoinPayload
	if err := decodePayload(msg.Payload, &p); err != nil {
		return err
	}
	venue, err := models.ParseVenueContext(p.VenueContext)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidVenue, err)
	}

	if prev := c.joinedToken(); prev != "" && prev != token {
		d.implicitLeave(c, prev)
		c.setToken("")
	}

	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = c.Identity.DisplayName
	}
	participant := models.Participant{
		ID:               c.Identity.ParticipantID,
		DisplayName:      name,
		ConnectionHandle: c.Handle,
		Guest:            c.Identity.Guest,
		JoinedAt:         d.now(),
	}
	c.setToken(token)
	list, err := d.registry.Join(token, participant, venue)
	if err != nil {
		c.setToken("")
		return err
	}
	d.hub.reply(c, ReplyJoined, msg.RequestID, token, session.ParticipantListPayload{Participants: list})
	return nil
}

func (d *Dispatcher) leave(c *Client, msg Inbound) error {
	token, err := d.boundToken(c, msg)
	if err != nil {
		return err
	}
	if err := d.registry.Leave(token, c.Identity.ParticipantID, c.Handle); err != nil {
		return err
	}
	c.setToken("")
	d.hub.reply(c, ReplyAck, msg.RequestID, token, nil)
	return nil
}

func (d *Dispatcher) assignTeams(c *Client, msg Inbound) error {
	token, err := d.boundToken(c, msg)
	if err != nil {
		return err
	}
	var p AssignTeamsPayload
	if err := decodePayload(msg.Payload, &p); err != nil {
		return err
	}
	if err := d.registry.AssignTeams(token, c.Identity.ParticipantID, p.TeamA, p.TeamB); err != nil {
		return err
	}
	d.hub.reply(c, ReplyAck, msg.RequestID, token, nil)
	return nil
}

func (d *Dispatcher) submitScore(c *Client, msg Inbound) error {
	token, err := d.boundToken(c, msg)
	if err != nil {
		return err
	}
	var p SubmitScorePayload
	if err := decodePayload(msg.Payload, &p); err != nil {
		return fmt.Errorf("%w: %v", session.ErrInvalidScore, err)
	}
	a, err := ParseScore(p.TeamAScore)
	if err != nil {
		return err
	}
	b, err := ParseScore(p.TeamBScore)
	if err != nil {
		return err
	}
	outcome, err := d.registry.SubmitScore(token, c.Identity.ParticipantID, a, b)
	if err != nil {
		return err
	}
	d.hub.reply(c, ReplyScoreOutcome, msg.RequestID, token, outcome)
	return nil
}

func (d *Dispatcher) claim(c *Client, msg Inbound) error {
	token, err := d.boundToken(c, msg)
	if err != nil {
		return err
	}
	outcome, err := d.registry.Claim(token, c.Identity.ParticipantID)
	if err != nil {
		return err
	}
	d.hub.reply(c, ReplyClaimOutcome, msg.RequestID, token, outcome)
	return nil
}

func (d *Dispatcher) completeProcessing(c *Client, msg Inbound) error {
	token, err := d.boundToken(c, msg)
	if err != nil {
		return err
	}
	var p CompleteProcessingPayload
	if err := decodePayload(msg.Payload, &p); err != nil {
		return err
	}
	pid := c.Identity.ParticipantID
	if p.Error != "" {
		if err := d.registry.Abandon(token, pid, p.Error); err != nil {
			return err
		}
		d.hub.reply(c, ReplyAck, msg.RequestID, token, nil)
		return nil
	}

	facts, gen, err := d.registry.BeginProcessing(token, pid)
	if err != nil {
		return err
	}
	d.hub.reply(c, ReplyAck, msg.RequestID, token, nil)

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.process(token, pid, gen, facts)
	}()
	return nil
}

func (d *Dispatcher) process(token, participantID string, gen uint64, facts models.MatchFacts) {
	ctx, cancel := context.WithTimeout(context.Background(), d.processTimeout)
	defer cancel()

	result, err := d.processor.Process(ctx, facts)
	if err != nil {
		d.logger.Error("match processing failed",
			slog.String("match_token", token),
			slog.String("participant_id", participantID),
			slog.Any("error", err))
		if ferr := d.registry.Fail(token, participantID, gen, "persistence failure"); ferr != nil {
			d.logger.Warn("could not report processing failure", slog.String("match_token", token), slog.Any("error", ferr))
		}
		return
	}
	if cerr := d.registry.Complete(token, participantID, gen, result); cerr != nil {
		// The record is durable; a later attempt will load it instead of reapplying.
		d.logger.Warn("completion rejected",
			slog.String("match_token", token),
			slog.String("participant_id", participantID),
			slog.Any("error", cerr))
	}
}

func (d *Dispatcher) cancel(c *Client, msg Inbound) error {
	token, err := d.boundToken(c, msg)
	if err != nil {
		return err
	}
	if err := d.registry.Cancel(token, c.Identity.ParticipantID); err != nil {
		return err
	}
	c.setToken("")
	d.hub.reply(c, ReplyAck, msg.RequestID, token, nil)
	return nil
}

func (d *Dispatcher) replyError(c *Client, requestID, token string, err error) {
	code := ErrorCode(err)
	message := err.Error()
	if code == "internal_error" {
		d.logger.Error("websocket request failed", slog.String("handle", c.Handle), slog.Any("error", err))
		message = "internal error"
	}
	d.hub.reply(c, ReplyError, requestID, token, ErrorPayload{Code: code, Message: message})
}
