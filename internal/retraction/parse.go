package retraction

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type problemsPayload struct {
	Results []string `json:"results"`
}

type entityPayload struct {
	Entities []struct {
		Text            string         `json:"text"`
		Category        string         `json:"category"`
		RelevanceScore  json.Number    `json:"relevance_score"`
		PotentialReason json.Number    `json:"potential_retraction_reason"`
		Context         string         `json:"context"`
		Attributes      map[string]any `json:"attributes"`
	} `json:"entities"`
}

type chainPayload struct {
	Chains []struct {
		Type               string         `json:"type"`
		Entities           []string       `json:"entities"`
		EntityIDs          []string       `json:"entity_ids"`
		Relationships      []string       `json:"relationships"`
		ReasoningSteps     []string       `json:"reasoning_steps"`
		ConfidenceScore    json.Number    `json:"confidence_score"`
		SeverityLevel      json.Number    `json:"severity_level"`
		RetractionReason   json.Number    `json:"retraction_reason"`
		ReasonCodes        []int          `json:"reason_codes"`
		OverallExplanation string         `json:"overall_explanation"`
		Attributes         map[string]any `json:"attributes"`
	} `json:"chains"`
}

// extractJSON strips markdown fences and any prose around the outermost
// JSON object.
func extractJSON(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object found", ErrMalformedPayload)
	}
	return content[start : end+1], nil
}

func decodePayload(raw string, v any) error {
	content, err := extractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// ParseProblems parses a {"results": [...]} breakdown of a retraction
// question into sub-problems.
func ParseProblems(raw string) ([]string, error) {
	var p problemsPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	if len(p.Results) == 0 {
		return nil, fmt.Errorf("%w: empty results", ErrMalformedPayload)
	}
	return p.Results, nil
}

// ParseEntities parses an {"entities": [...]} payload. Every entity gets a
// fresh ID and must pass Validate.
func ParseEntities(raw, paperID string) ([]*Entity, error) {
	var p entityPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	if p.Entities == nil {
		return nil, fmt.Errorf("%w: missing entities", ErrMalformedPayload)
	}

	entities := make([]*Entity, 0, len(p.Entities))
	for i, e := range p.Entities {
		cat, err := ParseCategory(e.Category)
		if err != nil {
			return nil, fmt.Errorf("%w: entity %d: %w", ErrMalformedPayload, i, err)
		}
		relevance, err := intScore(e.RelevanceScore)
		if err != nil {
			return nil, fmt.Errorf("%w: entity %d relevance_score: %v", ErrMalformedPayload, i, err)
		}
		reason, err := intScore(e.PotentialReason)
		if err != nil {
			return nil, fmt.Errorf("%w: entity %d potential_retraction_reason: %v", ErrMalformedPayload, i, err)
		}

		ent := &Entity{
			ID:              NewID(),
			PaperID:         paperID,
			Text:            strings.TrimSpace(e.Text),
			Category:        cat,
			RelevanceScore:  relevance,
			PotentialReason: reason,
			Context:         e.Context,
			Attributes:      e.Attributes,
		}
		if err := ent.Validate(); err != nil {
			return nil, fmt.Errorf("%w: entity %d: %w", ErrMalformedPayload, i, err)
		}
		entities = append(entities, ent)
	}
	return entities, nil
}

// ParseChains parses a {"chains": [...]} payload. Entity references are
// resolved against known by ID, then by exact text, then case-insensitively.
// A chain that resolves to no entity is malformed.
func ParseChains(raw, paperID string, known []*Entity) ([]*Chain, error) {
	var p chainPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	if p.Chains == nil {
		return nil, fmt.Errorf("%w: missing chains", ErrMalformedPayload)
	}

	resolve := newEntityResolver(known)
	chains := make([]*Chain, 0, len(p.Chains))
	for i, c := range p.Chains {
		refs := append(append([]string{}, c.EntityIDs...), c.Entities...)
		ids := make([]string, 0, len(refs))
		seen := make(map[string]bool, len(refs))
		for _, ref := range refs {
			if id, ok := resolve(ref); ok && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: chain %d: %w", ErrMalformedPayload, i, ErrEmptyChainEntities)
		}

		confidence, err := floatScore(c.ConfidenceScore)
		if err != nil {
			return nil, fmt.Errorf("%w: chain %d confidence_score: %v", ErrMalformedPayload, i, err)
		}
		severity, err := optionalInt(c.SeverityLevel)
		if err != nil {
			return nil, fmt.Errorf("%w: chain %d severity_level: %v", ErrMalformedPayload, i, err)
		}
		codes := append([]int{}, c.ReasonCodes...)
		if reason, err := optionalInt(c.RetractionReason); err == nil && ValidReasonCode(reason) {
			codes = append(codes, reason)
		}

		chains = append(chains, &Chain{
			ID:                 NewID(),
			PaperID:            paperID,
			Type:               c.Type,
			EntityIDs:          ids,
			RelationshipIDs:    c.Relationships,
			ReasoningSteps:     c.ReasoningSteps,
			ConfidenceScore:    confidence,
			SeverityLevel:      severity,
			OverallExplanation: c.OverallExplanation,
			ReasonCodes:        codes,
			Attributes:         c.Attributes,
		})
	}
	return chains, nil
}

func newEntityResolver(known []*Entity) func(string) (string, bool) {
	byID := make(map[string]string, len(known))
	byText := make(map[string]string, len(known))
	byFold := make(map[string]string, len(known))
	for _, e := range known {
		byID[e.ID] = e.ID
		if _, ok := byText[e.Text]; !ok {
			byText[e.Text] = e.ID
		}
		fold := strings.ToLower(strings.TrimSpace(e.Text))
		if _, ok := byFold[fold]; !ok {
			byFold[fold] = e.ID
		}
	}
	return func(ref string) (string, bool) {
		if id, ok := byID[ref]; ok {
			return id, true
		}
		if id, ok := byText[ref]; ok {
			return id, true
		}
		id, ok := byFold[strings.ToLower(strings.TrimSpace(ref))]
		return id, ok
	}
}

func floatScore(n json.Number) (float64, error) {
	if n == "" {
		return 0, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f < 0 || math.IsNaN(f) {
		return 0, fmt.Errorf("negative or NaN score %v", f)
	}
	return f, nil
}

func intScore(n json.Number) (int, error) {
	if n == "" {
		return 0, fmt.Errorf("missing score")
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}

func optionalInt(n json.Number) (int, error) {
	if n == "" {
		return 0, nil
	}
	return intScore(n)
}
