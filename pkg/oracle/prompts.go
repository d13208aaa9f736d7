package oracle

import (
	"fmt"

	"intakebot/pkg/proposal"
)

const readinessSystemPrompt = `You evaluate whether an intake conversation about a potential digital initiative contains enough substance to draft a structured ticket.

Judge by substance, not message count. The conversation is ready when you can identify:
- a concrete problem or opportunity (not just a greeting or vague intent)
- who is affected or which business area it touches
- some sense of the desired outcome

Respond with ONLY a JSON object, no prose:
{"ready": true or false, "reason": "one short sentence"}`

const proposalSystemPromptFmt = `You draft structured initiative tickets from intake conversations. The conversation may be in Spanish or English; draft the ticket fields in the conversation's language.

Organizational context:
%s

Respond with ONLY a JSON object with exactly these fields:
{
  "title": "short imperative title",
  "short_description": "one sentence",
  "description": "2-4 sentences with the relevant detail from the conversation",
  "impact": "who benefits and how",
  "core_technology": "main technology involved, or empty string",
  "difficulty": 1, 2 or 3 (1 trivial, 3 hard),
  "impact_score": 1, 2 or 3 (1 marginal, 3 transformative),
  "business_unit": "one of the listed business units, or empty string",
  "project": "one of the listed projects, or empty string",
  "suggested_labels": ["up to 4 short labels"],
  "assignee_suggestion": "team or role, or empty string",
  "confidence": "high", "medium" or "low"
}`

const feedbackSystemPrompt = `A user was shown a draft initiative ticket and replied. Classify the reply.

Categories:
- "confirm": the user accepts the draft as-is (sí, ok, dale, looks good, ship it)
- "reject": the user abandons the initiative entirely (no, cancel, olvídalo, forget it)
- "modify": the user wants changes or adds information
- "unclear": the reply is unrelated or impossible to classify

Respond with ONLY a JSON object, no prose:
{"kind": "confirm"|"reject"|"modify"|"unclear", "guidance": "what to change, empty unless modify"}`

const nextQuestionSystemPrompt = `You are a friendly intake assistant gathering details about a potential digital initiative. Given the conversation so far, ask ONE short follow-up question that fills the biggest gap (problem, affected area, desired outcome, or scale). Reply in the conversation's language. Respond with the question only, no preamble.`

func readinessUserPrompt(transcript string) string {
	return fmt.Sprintf("Conversation so far:\n\n%s\n\nIs this ready for a draft ticket?", transcript)
}

func proposalSystemPrompt(tax *proposal.Taxonomy) string {
	return fmt.Sprintf(proposalSystemPromptFmt, tax.PromptContext())
}

func proposalUserPrompt(transcript string) string {
	return fmt.Sprintf("Conversation:\n\n%s\n\nDraft the ticket.", transcript)
}

func feedbackUserPrompt(transcript, reply string) string {
	return fmt.Sprintf("Conversation (the draft was just presented):\n\n%s\n\nUser reply to classify:\n%s", transcript, reply)
}

func nextQuestionUserPrompt(transcript string) string {
	return fmt.Sprintf("Conversation so far:\n\n%s\n\nYour next question:", transcript)
}
