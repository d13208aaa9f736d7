package oracle

import (
	"context"
	"encoding/json"

	"intakebot/pkg/conversation"
	"intakebot/pkg/llm"
	"intakebot/pkg/proposal"
)

// Generate drafts a proposal from the conversation. It never returns an
// error: any failure in the model call or its output yields a generic
// low-confidence draft so the intake flow always moves forward. Scores are
// clamped and the priority recomputed regardless of what the model said.
func (o *Oracle) Generate(ctx context.Context, rec *conversation.Record) *proposal.Proposal {
	transcript := o.transcript(rec)

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(proposalSystemPrompt(o.taxonomy)),
		llm.NewUserMessage(proposalUserPrompt(transcript)),
	})
	req.Temperature = llm.TemperatureDrafting

	raw, err := o.ask(ctx, TaskProposal, req)
	if err != nil {
		return o.generateFallback(rec, transcript, "oracle_error")
	}

	payload, ok := ExtractJSON(raw)
	if !ok {
		return o.generateFallback(rec, transcript, "malformed_output")
	}
	var prop proposal.Proposal
	if err := json.Unmarshal([]byte(payload), &prop); err != nil {
		return o.generateFallback(rec, transcript, "malformed_output")
	}
	if prop.Title == "" || prop.Difficulty == 0 || prop.ImpactScore == 0 {
		// A draft missing its title or scores is malformed output, not a
		// draft worth patching up.
		return o.generateFallback(rec, transcript, "incomplete_draft")
	}

	o.finishProposal(&prop, transcript)
	o.logger.Debug("drafted proposal %q for %s (priority %s)", prop.Title, rec.ID, prop.Priority)
	return &prop
}

// finishProposal applies the deterministic post-processing every draft gets:
// taxonomy inference for missing fields, score clamping, priority derivation.
func (o *Oracle) finishProposal(prop *proposal.Proposal, transcript string) {
	if prop.BusinessUnit == "" {
		prop.BusinessUnit = o.taxonomy.InferBusinessUnit(transcript)
	}
	if prop.Project == "" {
		prop.Project = o.taxonomy.InferProject(transcript, prop.BusinessUnit)
	}
	prop.Origin = "intake-bot"
	prop.Normalize()
}

func (o *Oracle) generateFallback(rec *conversation.Record, transcript, reason string) *proposal.Proposal {
	o.recorder.IncFallback(TaskProposal, reason)
	o.logger.Warn("proposal fallback (%s) for %s", reason, rec.ID)

	prop := &proposal.Proposal{
		Title:            "Iniciativa propuesta por " + displayName(rec),
		ShortDescription: "Iniciativa recogida en conversación; requiere revisión manual.",
		Description:      "No se pudo generar un borrador detallado automáticamente. Transcripción de la conversación:\n\n" + transcript,
		Impact:           "Por determinar",
		Difficulty:       2,
		ImpactScore:      2,
		Confidence:       proposal.ConfidenceLow,
	}
	o.finishProposal(prop, transcript)
	// finishProposal defaults empty confidence to medium; the fallback draft
	// is explicitly low-confidence.
	prop.Confidence = proposal.ConfidenceLow
	return prop
}

func displayName(rec *conversation.Record) string {
	if rec.Participant.DisplayName != "" {
		return rec.Participant.DisplayName
	}
	return rec.Participant.UserID
}
