package oracle

import (
	"context"
	"strings"

	"intakebot/pkg/conversation"
	"intakebot/pkg/llm"
)

// fallbackQuestion keeps the conversation moving when the model cannot
// produce a tailored follow-up.
const fallbackQuestion = "Cuéntame más detalles: ¿qué problema quieres resolver y a quién afecta?"

// NextQuestion produces the bot's next follow-up when the conversation is
// not yet ready for a proposal. Never errors; a canned question covers
// oracle failures and empty replies.
func (o *Oracle) NextQuestion(ctx context.Context, rec *conversation.Record) string {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(nextQuestionSystemPrompt),
		llm.NewUserMessage(nextQuestionUserPrompt(o.transcript(rec))),
	})
	req.Temperature = llm.TemperatureDrafting
	req.MaxTokens = 256

	raw, err := o.ask(ctx, TaskNextQuestion, req)
	if err != nil {
		o.recorder.IncFallback(TaskNextQuestion, "oracle_error")
		return fallbackQuestion
	}

	question := strings.TrimSpace(raw)
	if question == "" {
		o.recorder.IncFallback(TaskNextQuestion, "empty_response")
		return fallbackQuestion
	}
	return question
}
