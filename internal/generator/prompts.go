package generator

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/retractd/internal/retraction"
)

func reasonList() string {
	var b strings.Builder
	for code := 1; code <= retraction.ReasonNotSpecified; code++ {
		fmt.Fprintf(&b, "%d. %s\n", code, retraction.ReasonLabel(code))
	}
	return b.String()
}

var breakdownSystem = `You break a question about why an academic paper was retracted into smaller,
independently answerable problems. Merge problems that are closely related.
The possible retraction reasons are:
` + reasonList()

var entitySystem = `You extract entities from academic papers that could indicate why the paper
was retracted. Categorize each entity as metadata, content, quality_indicator,
administrative or textual_clue; rate its relevance from 1 to 10; and name the
retraction reason (1-10) it points at. The reasons are:
` + reasonList()

var chainSystem = `You link entities extracted from an academic paper into causal chains that
explain why the paper was retracted. For each chain give the entities in
logical order, the reasoning steps connecting them, a confidence score from
1 to 10, a severity level from 1 to 10 and the retraction reason (1-10).`

func breakdownPrompt(problem string) string {
	return fmt.Sprintf(`Problem to break down:
%s

Reply with a JSON object: {"results": ["problem_1", "problem_2", ...]}`, problem)
}

func entityPrompt(content string) string {
	return fmt.Sprintf(`Paper content:
%s

Reply with a JSON object:
{"entities": [{"text": "...", "category": "content", "relevance_score": 8,
  "potential_retraction_reason": 1, "context": "..."}]}`, content)
}

func chainPrompt(entities []*retraction.Entity) string {
	var b strings.Builder
	b.WriteString("Entities:\n")
	for _, e := range entities {
		fmt.Fprintf(&b, "- id=%s category=%s reason=%d: %s\n", e.ID, e.Category, e.PotentialReason, e.Text)
	}
	b.WriteString(`
Reply with a JSON object:
{"chains": [{"type": "...", "entity_ids": ["<id>", ...], "relationships": ["..."],
  "reasoning_steps": ["..."], "confidence_score": 7, "severity_level": 6,
  "retraction_reason": 1, "overall_explanation": "..."}]}`)
	return b.String()
}
