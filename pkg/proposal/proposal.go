// Package proposal defines the structured draft ticket and its derivation rules.
package proposal

import "encoding/json"

// Priority is the derived ticket priority bucket.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Confidence expresses how much the generator trusts its own draft.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Score bounds for difficulty and impact.
const (
	ScoreMin = 1
	ScoreMax = 3
)

// Proposal is a structured draft ticket awaiting user confirmation.
// It is created fresh on every generation pass and superseded wholesale;
// there are no partial in-place edits.
type Proposal struct {
	Title              string     `json:"title"`
	ShortDescription   string     `json:"short_description"`
	Description        string     `json:"description"`
	Impact             string     `json:"impact"`
	CoreTechnology     string     `json:"core_technology"`
	Difficulty         int        `json:"difficulty"`
	ImpactScore        int        `json:"impact_score"`
	Priority           Priority   `json:"priority"`
	Origin             string     `json:"origin"`
	BusinessUnit       string     `json:"business_unit,omitempty"`
	Project            string     `json:"project,omitempty"`
	SuggestedLabels    []string   `json:"suggested_labels"`
	AssigneeSuggestion string     `json:"assignee_suggestion"`
	Confidence         Confidence `json:"confidence"`
}

// PriorityFor maps difficulty + impact score to a priority bucket.
// The mapping is fixed and always overrides any externally supplied priority:
//
//	6   -> P0
//	5   -> P1
//	3-4 -> P2
//	2 or unparsable -> P3
func PriorityFor(difficulty, impactScore int) Priority {
	if difficulty < ScoreMin || difficulty > ScoreMax || impactScore < ScoreMin || impactScore > ScoreMax {
		return PriorityP3
	}

	switch total := difficulty + impactScore; {
	case total == 6:
		return PriorityP0
	case total == 5:
		return PriorityP1
	case total >= 3:
		return PriorityP2
	default:
		return PriorityP3
	}
}

// Normalize clamps scores into range and recomputes the derived priority,
// discarding whatever priority the generator suggested.
func (p *Proposal) Normalize() {
	if p.Difficulty < ScoreMin || p.Difficulty > ScoreMax {
		p.Difficulty = 2
	}
	if p.ImpactScore < ScoreMin || p.ImpactScore > ScoreMax {
		p.ImpactScore = 2
	}
	p.Priority = PriorityFor(p.Difficulty, p.ImpactScore)

	switch p.Confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
	default:
		p.Confidence = ConfidenceMedium
	}
}

// JSON renders the proposal as a JSON string for archival. Marshal cannot
// fail for this type; a failure still yields a valid empty object.
func (p *Proposal) JSON() string {
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(data)
}
