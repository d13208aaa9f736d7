package proposal

import (
	"fmt"
	"sort"
	"strings"
)

// BusinessUnit describes one categorical tag and the keywords that signal it.
type BusinessUnit struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Projects []string `yaml:"projects"`
}

// Project describes a work area within one or more business units.
type Project struct {
	Name          string   `yaml:"name"`
	Keywords      []string `yaml:"keywords"`
	BusinessUnits []string `yaml:"business_units"`
}

// Taxonomy holds the categorical tags used to classify intake proposals.
// The generator consults it both to render prompt context and to fill tags
// the oracle omitted.
type Taxonomy struct {
	BusinessUnits []BusinessUnit `yaml:"business_units"`
	Projects      []Project      `yaml:"projects"`
}

// DefaultTaxonomy returns the built-in taxonomy covering the standard
// corporate intake categories. Deployments with their own org chart replace
// it via configuration.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		BusinessUnits: []BusinessUnit{
			{
				Name:     "Finance",
				Keywords: []string{"pricing", "invoice", "invoicing", "financial", "fraud", "debt", "accounting", "payment", "receivable", "payable", "billing", "consolidation", "finance", "cost", "expense", "factura", "pago", "cobro", "contabilidad", "precio"},
				Projects: []string{"Pricing", "Invoicing", "Accounting"},
			},
			{
				Name:     "Sales",
				Keywords: []string{"offer", "proposal", "bid", "tender", "customer", "negotiation", "sales", "selling", "rfp", "quotation", "cliente", "oferta", "venta", "presupuesto"},
				Projects: []string{"Processing", "Negotiation"},
			},
			{
				Name:     "Legal",
				Keywords: []string{"contract", "legal", "compliance", "advisory", "regulatory", "law", "agreement", "terms", "contrato", "legal", "cumplimiento"},
				Projects: []string{"Advisory", "Compliance"},
			},
			{
				Name:     "HR",
				Keywords: []string{"employee", "talent", "recruitment", "onboarding", "attrition", "career", "upskilling", "sentiment", "nps", "hr", "human resources", "people", "retention", "satisfaction", "training", "empleado", "formación", "contratación"},
				Projects: []string{"NPS", "Upskilling", "Retention", "Reporting"},
			},
			{
				Name:     "Procurement",
				Keywords: []string{"supplier", "procurement", "purchasing", "rfp", "spend", "acquisition", "vendor", "sourcing", "buying", "proveedor", "compra", "aprovisionamiento"},
				Projects: []string{"Negotiation", "Operations", "Outbound", "Reporting"},
			},
		},
		Projects: []Project{
			{Name: "Pricing", Keywords: []string{"pricing", "discount", "margin", "price", "cost", "precio", "descuento"}, BusinessUnits: []string{"Finance"}},
			{Name: "Processing", Keywords: []string{"processing", "automation", "rpa", "workflow", "process", "automatizar", "proceso"}, BusinessUnits: []string{"Sales", "Procurement"}},
			{Name: "Advisory", Keywords: []string{"contract", "legal", "compliance", "advisory", "consulting", "advice"}, BusinessUnits: []string{"Legal"}},
			{Name: "Invoicing", Keywords: []string{"invoice", "billing", "payment", "collection", "receivable", "payable", "factura", "pago", "cobro"}, BusinessUnits: []string{"Finance"}},
			{Name: "Negotiation", Keywords: []string{"negotiation", "supplier", "customer", "deal", "bargain", "negociación", "proveedor"}, BusinessUnits: []string{"Procurement", "Sales"}},
			{Name: "NPS", Keywords: []string{"employee", "sentiment", "satisfaction", "nps", "onboarding", "chatbot", "experience"}, BusinessUnits: []string{"HR"}},
			{Name: "Upskilling", Keywords: []string{"career", "training", "upskilling", "learning", "development", "education"}, BusinessUnits: []string{"HR"}},
			{Name: "Retention", Keywords: []string{"attrition", "retention", "turnover", "quit", "leave"}, BusinessUnits: []string{"HR"}},
			{Name: "Reporting", Keywords: []string{"reporting", "analytics", "insight", "dashboard", "analysis"}, BusinessUnits: []string{"HR", "Procurement", "Finance"}},
			{Name: "Compliance", Keywords: []string{"compliance", "regulatory", "risk", "audit", "regulation"}, BusinessUnits: []string{"Legal"}},
			{Name: "Accounting", Keywords: []string{"accounting", "financial", "consolidation", "ledger", "reconciliation"}, BusinessUnits: []string{"Finance"}},
			{Name: "Operations", Keywords: []string{"operations", "inquiry", "handling", "operational"}, BusinessUnits: []string{"Procurement"}},
			{Name: "Outbound", Keywords: []string{"rfp", "outbound", "request"}, BusinessUnits: []string{"Procurement"}},
		},
	}
}

// InferBusinessUnit returns the business unit whose keywords score highest
// against the text, or "" when nothing matches.
func (t *Taxonomy) InferBusinessUnit(text string) string {
	text = strings.ToLower(text)

	best := ""
	maxScore := 0
	for i := range t.BusinessUnits {
		bu := &t.BusinessUnits[i]
		score := keywordScore(text, bu.Keywords)
		if score > maxScore {
			maxScore = score
			best = bu.Name
		}
	}
	return best
}

// InferProject returns the best-matching project for the text. When a
// business unit is given, only projects belonging to it are considered.
func (t *Taxonomy) InferProject(text, businessUnit string) string {
	text = strings.ToLower(text)

	best := ""
	maxScore := 0
	for i := range t.Projects {
		proj := &t.Projects[i]
		if businessUnit != "" && !containsString(proj.BusinessUnits, businessUnit) {
			continue
		}
		score := keywordScore(text, proj.Keywords)
		if score > maxScore {
			maxScore = score
			best = proj.Name
		}
	}
	return best
}

// PromptContext renders the taxonomy as prompt context for the generator.
func (t *Taxonomy) PromptContext() string {
	var b strings.Builder

	b.WriteString("BUSINESS UNITS and their projects:\n")
	for i := range t.BusinessUnits {
		bu := &t.BusinessUnits[i]
		fmt.Fprintf(&b, "- %s: %s\n", bu.Name, strings.Join(bu.Projects, ", "))
	}

	b.WriteString("\nPROJECTS and where they belong:\n")
	for i := range t.Projects {
		proj := &t.Projects[i]
		units := append([]string{}, proj.BusinessUnits...)
		sort.Strings(units)
		fmt.Fprintf(&b, "- %s: belongs to %s\n", proj.Name, strings.Join(units, " or "))
	}

	return b.String()
}

func keywordScore(text string, keywords []string) int {
	score := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			score++
		}
	}
	return score
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
