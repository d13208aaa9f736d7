package oracle

import (
	"context"
	"encoding/json"

	"intakebot/pkg/conversation"
	"intakebot/pkg/llm"
)

type readinessVerdict struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason"`
}

// IsReady decides whether the conversation has enough substance to draft a
// proposal. Guards run before the model is consulted:
//
//   - one message or fewer is never ready, regardless of content
//   - below MinMessages is never ready
//
// When the model call or its output fails, the decision degrades to a pure
// message-count heuristic: ready once the conversation reaches
// FallbackMessages.
func (o *Oracle) IsReady(ctx context.Context, rec *conversation.Record) bool {
	count := rec.MessageCount()
	if count <= 1 {
		return false
	}
	if count < o.thresholds.MinMessages {
		return false
	}

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(readinessSystemPrompt),
		llm.NewUserMessage(readinessUserPrompt(o.transcript(rec))),
	})
	req.Temperature = llm.TemperatureDefault

	raw, err := o.ask(ctx, TaskReadiness, req)
	if err != nil {
		return o.readinessFallback(count, "oracle_error")
	}

	payload, ok := ExtractJSON(raw)
	if !ok {
		return o.readinessFallback(count, "malformed_output")
	}
	var verdict readinessVerdict
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		return o.readinessFallback(count, "malformed_output")
	}

	o.logger.Debug("readiness for %s: %v (%s)", rec.ID, verdict.Ready, verdict.Reason)
	return verdict.Ready
}

func (o *Oracle) readinessFallback(count int, reason string) bool {
	o.recorder.IncFallback(TaskReadiness, reason)
	ready := count >= o.thresholds.FallbackMessages
	o.logger.Warn("readiness fallback (%s): %d messages -> ready=%v", reason, count, ready)
	return ready
}
