package oracle

import (
	"context"
	"encoding/json"
	"strings"

	"intakebot/pkg/conversation"
	"intakebot/pkg/llm"
	"intakebot/pkg/proposal"
)

// FeedbackKind is the classified intent of a user's reply to a pending proposal.
type FeedbackKind string

const (
	FeedbackConfirm FeedbackKind = "confirm"
	FeedbackReject  FeedbackKind = "reject"
	FeedbackModify  FeedbackKind = "modify"
	FeedbackUnclear FeedbackKind = "unclear"
)

// Feedback is the classification result. Guidance is only populated for
// modify, carrying what the user wants changed.
type Feedback struct {
	Kind       FeedbackKind
	Guidance   string
	Confidence proposal.Confidence
}

// Spanish and English affirmations/cancellations for the keyword fallback.
// Mirrors the phrasing the bot's user base actually types.
var (
	confirmKeywords = []string{
		"sí", "si", "ok", "okay", "vale", "dale", "correcto", "confirmo",
		"confirmar", "perfecto", "adelante", "de acuerdo",
		"yes", "confirm", "sure", "sounds good", "lgtm",
	}
	rejectKeywords = []string{
		"no", "cancelar", "cancela", "cancel", "olvídalo", "olvidalo",
		"rechazar", "descartar", "déjalo", "dejalo", "forget it", "nevermind",
		"never mind", "drop it",
	}
)

type feedbackVerdict struct {
	Kind     string `json:"kind"`
	Guidance string `json:"guidance"`
}

// Classify interprets the user's reply to a pending proposal. The model is
// asked first; on failure a keyword scan decides, and anything it cannot
// place becomes a low-confidence modify so the user's words are never
// silently dropped.
func (o *Oracle) Classify(ctx context.Context, rec *conversation.Record, reply string) Feedback {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(feedbackSystemPrompt),
		llm.NewUserMessage(feedbackUserPrompt(o.transcript(rec), reply)),
	})
	req.Temperature = llm.TemperatureDefault

	raw, err := o.ask(ctx, TaskFeedback, req)
	if err != nil {
		return o.classifyFallback(reply, "oracle_error")
	}

	payload, ok := ExtractJSON(raw)
	if !ok {
		return o.classifyFallback(reply, "malformed_output")
	}
	var verdict feedbackVerdict
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		return o.classifyFallback(reply, "malformed_output")
	}

	switch FeedbackKind(verdict.Kind) {
	case FeedbackConfirm:
		return Feedback{Kind: FeedbackConfirm, Confidence: proposal.ConfidenceHigh}
	case FeedbackReject:
		return Feedback{Kind: FeedbackReject, Confidence: proposal.ConfidenceHigh}
	case FeedbackModify:
		return Feedback{Kind: FeedbackModify, Guidance: verdict.Guidance, Confidence: proposal.ConfidenceHigh}
	case FeedbackUnclear:
		return Feedback{Kind: FeedbackUnclear, Confidence: proposal.ConfidenceHigh}
	default:
		// Unknown category from the model: treat the reply as change
		// guidance rather than guessing at intent.
		o.logger.Warn("unknown feedback kind %q, treating as modify", verdict.Kind)
		return Feedback{Kind: FeedbackModify, Guidance: reply, Confidence: proposal.ConfidenceLow}
	}
}

func (o *Oracle) classifyFallback(reply, reason string) Feedback {
	o.recorder.IncFallback(TaskFeedback, reason)
	normalized := strings.ToLower(strings.TrimSpace(reply))
	normalized = strings.Trim(normalized, ".,!¡¿?")

	for _, kw := range confirmKeywords {
		if normalized == kw {
			return Feedback{Kind: FeedbackConfirm, Confidence: proposal.ConfidenceMedium}
		}
	}
	for _, kw := range rejectKeywords {
		if normalized == kw {
			return Feedback{Kind: FeedbackReject, Confidence: proposal.ConfidenceMedium}
		}
	}
	return Feedback{Kind: FeedbackModify, Guidance: reply, Confidence: proposal.ConfidenceLow}
}
