package retraction

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors for retraction records.
var (
	ErrMalformedPayload   = errors.New("malformed reasoning generator payload")
	ErrInvalidEntity      = errors.New("invalid entity")
	ErrInvalidCategory    = errors.New("invalid entity category")
	ErrScoreOutOfRange    = errors.New("score must be between 1 and 10")
	ErrEmptyEntityText    = errors.New("entity text cannot be empty")
	ErrEmptyChainEntities = errors.New("chain must reference at least one entity")
)

// Category classifies what kind of clue an entity is.
type Category string

const (
	// CategoryMetadata covers publication metadata (dates, venues, authorship).
	CategoryMetadata Category = "metadata"

	// CategoryContent covers claims, methods and results in the paper body.
	CategoryContent Category = "content"

	// CategoryQualityIndicator covers signals about rigor (sample sizes, missing controls).
	CategoryQualityIndicator Category = "quality_indicator"

	// CategoryAdministrative covers editorial or legal notices.
	CategoryAdministrative Category = "administrative"

	// CategoryTextualClue covers wording that hints at a problem.
	CategoryTextualClue Category = "textual_clue"
)

// ValidCategories maps valid category strings to their typed values.
var ValidCategories = map[string]Category{
	"metadata":          CategoryMetadata,
	"content":           CategoryContent,
	"quality_indicator": CategoryQualityIndicator,
	"administrative":    CategoryAdministrative,
	"textual_clue":      CategoryTextualClue,
}

// ParseCategory accepts a category case-insensitively. The generator also
// emits spaced and hyphenated spellings ("Quality Indicator", "textual-clue").
func ParseCategory(s string) (Category, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	if c, ok := ValidCategories[norm]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Entity is an atomic textual clue extracted from a paper.
//
// Entities are produced by the reasoning generator and never mutated once
// stored. Chains reference them by ID.
type Entity struct {
	// ID is the entity identifier (UUID for generated entities).
	ID string `json:"id"`

	// PaperID identifies the paper the entity was extracted from.
	PaperID string `json:"paper_id,omitempty"`

	// Text is the clue as it appears in, or is paraphrased from, the paper.
	Text string `json:"text"`

	// Category classifies the clue.
	Category Category `json:"category"`

	// RelevanceScore rates how relevant the clue is to a retraction (1-10).
	RelevanceScore int `json:"relevance_score"`

	// PotentialReason is the retraction reason code the clue points at (1-10).
	PotentialReason int `json:"potential_retraction_reason"`

	// Context is the surrounding passage.
	Context string `json:"context,omitempty"`

	// Vector is the precomputed embedding of Text. Nil when not yet embedded.
	Vector []float32 `json:"vector,omitempty"`

	// Attributes holds fields outside the fixed schema.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Validate checks ranges and category.
func (e *Entity) Validate() error {
	if strings.TrimSpace(e.Text) == "" {
		return ErrEmptyEntityText
	}
	if _, ok := ValidCategories[string(e.Category)]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	if e.RelevanceScore < 1 || e.RelevanceScore > 10 {
		return fmt.Errorf("%w: relevance_score %d: %w", ErrInvalidEntity, e.RelevanceScore, ErrScoreOutOfRange)
	}
	if e.PotentialReason < 1 || e.PotentialReason > 10 {
		return fmt.Errorf("%w: potential_retraction_reason %d: %w", ErrInvalidEntity, e.PotentialReason, ErrScoreOutOfRange)
	}
	return nil
}

// Paper is a publication in the candidate population.
type Paper struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Authors          []string       `json:"authors,omitempty"`
	DOI              string         `json:"doi,omitempty"`
	Date             string         `json:"date,omitempty"`
	Journal          string         `json:"journal,omitempty"`
	Subjects         []string       `json:"subjects,omitempty"`
	RetractionReason string         `json:"retraction_reason,omitempty"`
	Abstract         string         `json:"abstract,omitempty"`
	Vector           []float32      `json:"vector,omitempty"`
	Attributes       map[string]any `json:"attributes,omitempty"`
}

// EmbeddingText is the text a paper is embedded from.
func (p *Paper) EmbeddingText() string {
	if p.Abstract == "" {
		return p.Title
	}
	return p.Title + "\n\n" + p.Abstract
}

// Chain is an ordered causal linkage of entities with a reasoning narrative.
//
// Chains are created by the reasoning stage and read by scoring and
// clustering. Scoring never mutates a chain; it produces a ScoredChain.
type Chain struct {
	// ID is the chain identifier.
	ID string `json:"id"`

	// PaperID identifies the paper the chain explains.
	PaperID string `json:"paper_id,omitempty"`

	// Type labels the kind of reasoning (e.g. "methodological").
	Type string `json:"type,omitempty"`

	// EntityIDs lists the linked entities in reasoning order.
	EntityIDs []string `json:"entity_ids"`

	// RelationshipIDs lists the discrete relations the chain asserts.
	RelationshipIDs []string `json:"relationship_ids,omitempty"`

	// ReasoningSteps is the narrative, one step per element.
	ReasoningSteps []string `json:"reasoning_steps,omitempty"`

	// ConfidenceScore is the raw confidence: [0,1], or 1-10 as emitted by the generator.
	ConfidenceScore float64 `json:"confidence_score"`

	// Frequency is how often this reasoning appears in the dataset. Nil when unknown.
	Frequency *float64 `json:"frequency,omitempty"`

	// SeverityLevel rates how severe the explained problem is.
	SeverityLevel int `json:"severity_level"`

	// OverallExplanation summarizes the chain.
	OverallExplanation string `json:"overall_explanation,omitempty"`

	// ReasonCodes are the retraction reason codes the chain supports.
	ReasonCodes []int `json:"reason_codes,omitempty"`

	// Attributes holds fields outside the fixed schema.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// NormalizedConfidence maps ConfidenceScore into [0,1].
// Values above 1 are treated as the generator's 1-10 scale.
func (c *Chain) NormalizedConfidence() float64 {
	v := c.ConfidenceScore
	if v > 1 {
		v /= 10
	}
	return clamp01(v)
}

// Signal names one contributor to an overall confidence score.
type Signal string

const (
	SignalFrequency            Signal = "frequency"
	SignalReasoningConsistency Signal = "reasoning_consistency"
	SignalCitationStrength     Signal = "citation_strength"
	SignalTemporalRelevance    Signal = "temporal_relevance"
	SignalSourceCredibility    Signal = "source_credibility"
)

// Signals lists every signal in weighting order.
var Signals = []Signal{
	SignalFrequency,
	SignalReasoningConsistency,
	SignalCitationStrength,
	SignalTemporalRelevance,
	SignalSourceCredibility,
}

// ConfidenceLevel is a discrete bucket of an overall confidence.
type ConfidenceLevel int

const (
	VeryLow ConfidenceLevel = iota
	Low
	Moderate
	High
	VeryHigh
)

// String returns the display label.
func (l ConfidenceLevel) String() string {
	switch l {
	case VeryHigh:
		return "Very High"
	case High:
		return "High"
	case Moderate:
		return "Moderate"
	case Low:
		return "Low"
	default:
		return "Very Low"
	}
}

// MarshalText encodes the level by its display label.
func (l ConfidenceLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a display label.
func (l *ConfidenceLevel) UnmarshalText(text []byte) error {
	for lvl := VeryLow; lvl <= VeryHigh; lvl++ {
		if strings.EqualFold(lvl.String(), string(text)) {
			*l = lvl
			return nil
		}
	}
	return fmt.Errorf("unknown confidence level %q", text)
}

// ScoredChain is a chain plus its aggregated confidence.
// It references the chain; the chain is shared and outlives the score.
type ScoredChain struct {
	Chain               *Chain             `json:"chain,omitempty"`
	OverallConfidence   float64            `json:"overall_confidence"`
	Breakdown           map[Signal]float64 `json:"confidence_breakdown"`
	Level               ConfidenceLevel    `json:"confidence_level"`
	ReasoningStepsCount int                `json:"reasoning_steps_count"`
	Frequency           float64            `json:"chain_frequency"`

	// Found is false when the requested chain was not in the population.
	Found bool `json:"found"`

	// Reason explains a zero score when Found is false.
	Reason string `json:"reasoning,omitempty"`

	ScoredAt time.Time `json:"scored_at"`
}

// Cluster groups chains that share an explanation.
// It references member chains by ID only.
type Cluster struct {
	ID               string         `json:"id"`
	Size             int            `json:"size"`
	MemberChainIDs   []string       `json:"member_chain_ids"`
	EntityIDs        []string       `json:"entity_ids,omitempty"`
	Relations        []string       `json:"relations,omitempty"`
	AvgConfidence    float64        `json:"avg_confidence"`
	AvgSeverity      float64        `json:"avg_severity"`
	CommonReasonCode int            `json:"common_reason_code"`
	CommonReason     string         `json:"common_reason"`
	Attributes       map[string]any `json:"attributes,omitempty"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
