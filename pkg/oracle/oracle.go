// Package oracle wraps the LLM behind the deterministic decision surface the
// turn controller consumes: readiness checks, proposal drafts, feedback
// classification, and follow-up questions. Every operation degrades to a
// deterministic fallback; no oracle failure ever reaches the controller as
// an error the user would see.
package oracle

import (
	"context"
	"time"

	"intakebot/pkg/conversation"
	"intakebot/pkg/llm"
	"intakebot/pkg/llm/llmerrors"
	"intakebot/pkg/logx"
	"intakebot/pkg/metrics"
	"intakebot/pkg/proposal"
	"intakebot/pkg/utils"
)

// Task names used in logs and metrics labels.
const (
	TaskReadiness    = "readiness"
	TaskProposal     = "proposal"
	TaskFeedback     = "feedback"
	TaskNextQuestion = "next_question"
)

// Thresholds control the deterministic sides of the readiness decision.
type Thresholds struct {
	// MinMessages is the floor below which the oracle is never consulted.
	MinMessages int
	// FallbackMessages is the count at which a conversation is considered
	// ready when the oracle itself is unavailable.
	FallbackMessages int
	// MaxTranscriptTokens bounds the transcript sent to the model; oldest
	// messages are dropped first.
	MaxTranscriptTokens int
}

// Oracle is the single consumer-facing entry point for all LLM-backed
// decisions. Safe for concurrent use.
type Oracle struct {
	client     llm.Client
	recorder   metrics.Recorder
	counter    *utils.TokenCounter
	taxonomy   *proposal.Taxonomy
	thresholds Thresholds
	logger     *logx.Logger
}

// New creates an oracle over the given client. recorder may be nil.
func New(client llm.Client, recorder metrics.Recorder, thresholds Thresholds) *Oracle {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	if thresholds.MinMessages <= 0 {
		thresholds.MinMessages = 6
	}
	if thresholds.FallbackMessages < thresholds.MinMessages {
		thresholds.FallbackMessages = thresholds.MinMessages + 2
	}
	if thresholds.MaxTranscriptTokens <= 0 {
		thresholds.MaxTranscriptTokens = 6000
	}
	return &Oracle{
		client:     client,
		recorder:   recorder,
		counter:    utils.NewTokenCounter(),
		taxonomy:   proposal.DefaultTaxonomy(),
		thresholds: thresholds,
		logger:     logx.NewLogger("oracle"),
	}
}

// transcript renders the record's history truncated to the token budget.
func (o *Oracle) transcript(rec *conversation.Record) string {
	return o.counter.TruncateTranscript(rec.History(), o.thresholds.MaxTranscriptTokens)
}

// ask performs a single completion attempt. There are no retries: a failed
// call surfaces immediately so the caller can take its deterministic
// fallback. Token usage is estimated from the texts since providers differ in
// what usage data they report.
func (o *Oracle) ask(ctx context.Context, task string, req llm.CompletionRequest) (string, error) {
	start := time.Now()
	resp, err := o.client.Complete(ctx, req)
	duration := time.Since(start)

	if err != nil {
		errType := llmerrors.TypeOf(err).String()
		o.recorder.ObserveOracleRequest(task, o.client.ModelName(), false, errType, duration)
		o.logger.Warn("%s oracle call failed (%s): %v", task, errType, err)
		return "", err
	}

	o.recorder.ObserveOracleRequest(task, o.client.ModelName(), true, "", duration)
	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += o.counter.CountTokens(m.Content)
	}
	o.recorder.ObserveOracleTokens(task, o.client.ModelName(), promptTokens, o.counter.CountTokens(resp.Content))
	return resp.Content, nil
}
