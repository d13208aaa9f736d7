// Package controller drives one conversation turn through the intake state
// machine: gather context while active, present a draft and wait for
// confirmation, file the ticket, archive on completion.
package controller

import (
	"context"
	"strings"
	"time"

	"intakebot/pkg/conversation"
	"intakebot/pkg/logx"
	"intakebot/pkg/metrics"
	"intakebot/pkg/oracle"
	"intakebot/pkg/proposal"
	"intakebot/pkg/ticket"
)

// Archiver persists a finished conversation. persistence.Archive satisfies it.
type Archiver interface {
	ArchiveConversation(ctx context.Context, rec *conversation.Record, prop *proposal.Proposal, receipt *ticket.Receipt) error
}

// Controller processes user turns. One instance serves all conversations;
// per-conversation ordering comes from the registry.
type Controller struct {
	registry conversation.Store
	oracle   *oracle.Oracle
	sink     ticket.Sink
	archiver Archiver
	recorder metrics.Recorder
	logger   *logx.Logger
}

// New creates a controller. archiver and recorder may be nil.
func New(registry conversation.Store, o *oracle.Oracle, sink ticket.Sink, archiver Archiver, recorder metrics.Recorder) *Controller {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Controller{
		registry: registry,
		oracle:   o,
		sink:     sink,
		archiver: archiver,
		recorder: recorder,
		logger:   logx.NewLogger("controller"),
	}
}

// Turn processes one user message and returns the bot's reply. Empty or
// whitespace-only input gets a nudge without touching the record. A panic
// anywhere in the turn is recovered: the record is rolled back to its
// pre-turn state and the user gets an apology instead of silence.
func (c *Controller) Turn(ctx context.Context, conversationID string, participant conversation.Participant, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return replyEmptyInput
	}

	start := time.Now()
	var reply string
	key := conversation.Key(conversationID, participant.UserID)
	_ = c.registry.WithRecord(key, participant, func(rec *conversation.Record) error {
		reply = c.safeTurn(ctx, rec, text)
		c.recorder.ObserveTurn(string(rec.State()), time.Since(start))
		return nil
	})
	return reply
}

// safeTurn wraps the dispatch in panic recovery. The record is restored to
// its pre-turn snapshot so a crashed turn has no lasting effect.
func (c *Controller) safeTurn(ctx context.Context, rec *conversation.Record, text string) (reply string) {
	snapState := rec.State()
	snapProposal := rec.Proposal()
	snapCount := rec.MessageCount()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in turn for %s: %v", rec.ID, r)
			c.restore(rec, snapState, snapProposal, snapCount)
			reply = replyInternalError
		}
	}()

	return c.dispatch(ctx, rec, text)
}

func (c *Controller) restore(rec *conversation.Record, state conversation.State, prop *proposal.Proposal, msgCount int) {
	rec.TruncateMessages(msgCount)
	if prop != nil {
		rec.SetProposal(prop)
	} else {
		rec.SetState(state)
	}
}

func (c *Controller) dispatch(ctx context.Context, rec *conversation.Record, text string) string {
	switch rec.State() {
	case conversation.StateActive:
		return c.handleActive(ctx, rec, text)
	case conversation.StateAwaitingConfirmation:
		return c.handleAwaiting(ctx, rec, text)
	case conversation.StateCompleted:
		return c.handleCompleted(rec, text)
	default:
		c.logger.Error("record %s in unknown state %q, resetting", rec.ID, rec.State())
		rec.SetState(conversation.StateActive)
		return c.handleActive(ctx, rec, text)
	}
}

// handleActive gathers context. A bare "hola"-style opener gets a greeting;
// a substantive first message goes straight into questioning. Once the
// oracle judges the conversation ready, a draft is presented and the record
// moves to awaiting_confirmation.
func (c *Controller) handleActive(ctx context.Context, rec *conversation.Record, text string) string {
	rec.AppendMessage(text, conversation.SenderUser)

	if rec.MessageCount() == 1 && isBareGreeting(text) {
		reply := greeting(rec)
		rec.AppendMessage(reply, conversation.SenderBot)
		return reply
	}

	if c.oracle.IsReady(ctx, rec) {
		return c.presentProposal(ctx, rec)
	}

	question := c.oracle.NextQuestion(ctx, rec)
	rec.AppendMessage(question, conversation.SenderBot)
	return question
}

func (c *Controller) presentProposal(ctx context.Context, rec *conversation.Record) string {
	prop := c.oracle.Generate(ctx, rec)
	rec.SetProposal(prop)
	c.logger.DebugState(rec.ID, string(conversation.StateActive), string(conversation.StateAwaitingConfirmation))

	reply := renderProposal(prop)
	rec.AppendMessage(reply, conversation.SenderBot)
	return reply
}

// handleAwaiting interprets the user's reaction to the pending draft.
func (c *Controller) handleAwaiting(ctx context.Context, rec *conversation.Record, text string) string {
	rec.AppendMessage(text, conversation.SenderUser)

	fb := c.oracle.Classify(ctx, rec, text)
	c.logger.Debug("feedback for %s: %s", rec.ID, fb.Kind)

	switch fb.Kind {
	case oracle.FeedbackConfirm:
		return c.submit(ctx, rec)
	case oracle.FeedbackReject:
		rec.SetState(conversation.StateCompleted)
		c.archive(ctx, rec, nil, nil)
		reply := replyRejected
		rec.AppendMessage(reply, conversation.SenderBot)
		return reply
	case oracle.FeedbackModify:
		// Back to gathering; the modification request is already part of the
		// transcript, so the next draft will incorporate it. Readiness is
		// rechecked immediately rather than waiting for another user turn.
		rec.SetState(conversation.StateActive)
		if c.oracle.IsReady(ctx, rec) {
			return c.presentProposal(ctx, rec)
		}
		question := c.oracle.NextQuestion(ctx, rec)
		rec.AppendMessage(question, conversation.SenderBot)
		return question
	default: // unclear
		reply := replyUnclear
		rec.AppendMessage(reply, conversation.SenderBot)
		return reply
	}
}

// submit files the confirmed proposal. On failure the record stays in
// awaiting_confirmation with the proposal intact so the user can simply
// confirm again.
func (c *Controller) submit(ctx context.Context, rec *conversation.Record) string {
	prop := rec.Proposal()
	receipt, err := c.sink.Submit(ctx, rec, prop)
	if err != nil {
		c.recorder.IncTicketSubmission(c.sink.Name(), false)
		c.logger.Warn("submission failed for %s, keeping proposal pending: %v", rec.ID, err)
		reply := replySubmitFailed
		rec.AppendMessage(reply, conversation.SenderBot)
		return reply
	}

	c.recorder.IncTicketSubmission(c.sink.Name(), true)
	rec.SetState(conversation.StateCompleted)
	c.logger.DebugState(rec.ID, string(conversation.StateAwaitingConfirmation), string(conversation.StateCompleted))
	c.archive(ctx, rec, prop, receipt)

	reply := replySubmitted(receipt)
	rec.AppendMessage(reply, conversation.SenderBot)
	return reply
}

// handleCompleted reminds the user the intake is closed unless they ask to
// start a new topic, which resets the record in place.
func (c *Controller) handleCompleted(rec *conversation.Record, text string) string {
	if isNewTopicRequest(text) {
		rec.ClearForNewTopic()
		rec.AppendMessage(text, conversation.SenderUser)
		reply := greeting(rec)
		rec.AppendMessage(reply, conversation.SenderBot)
		return reply
	}
	// No mutation: a closed conversation never resubmits.
	return replyCompleted
}

func (c *Controller) archive(ctx context.Context, rec *conversation.Record, prop *proposal.Proposal, receipt *ticket.Receipt) {
	if c.archiver == nil {
		return
	}
	if err := c.archiver.ArchiveConversation(ctx, rec, prop, receipt); err != nil {
		c.logger.Error("failed to archive %s: %v", rec.ID, err)
	}
}

var newTopicPhrases = []string{
	"nueva iniciativa", "nueva idea", "otra iniciativa", "otra idea",
	"empezar de nuevo", "new initiative", "new idea", "start over",
}

var greetingPhrases = []string{
	"hola", "buenas", "buenos días", "buenos dias", "buenas tardes",
	"buenas noches", "qué tal", "que tal", "saludos",
	"hi", "hello", "hey", "good morning", "good afternoon",
}

// isBareGreeting reports whether the message is a greeting with no
// substantive content. Anything beyond the greeting itself deserves a real
// follow-up, not a canned welcome.
func isBareGreeting(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.Trim(normalized, ".,;:!¡¿?")
	for _, phrase := range greetingPhrases {
		if normalized == phrase {
			return true
		}
	}
	return false
}

func isNewTopicRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range newTopicPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
