package similarity

import (
	"context"
	"math"
)

// Kind selects which candidate population a source returns.
type Kind string

const (
	KindPaper  Kind = "paper"
	KindEntity Kind = "entity"
)

const (
	// DefaultTopK bounds paper search results.
	DefaultTopK = 10

	// DefaultThreshold is the minimum paper search score.
	DefaultThreshold = 0.5

	// DefaultEntityTopK bounds entity search results.
	DefaultEntityTopK = 5
)

// NoThreshold keeps every scored candidate.
var NoThreshold = math.Inf(-1)

// Candidate is one record that can be ranked against a query.
type Candidate struct {
	ID string `json:"id"`

	// Vector is the precomputed embedding. Candidates without one are skipped.
	// It is not serialized, so cached results carry metadata only.
	Vector []float32 `json:"-"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// CandidateSource supplies the candidate population for a search.
type CandidateSource interface {
	// Candidates returns every record of the given kind.
	Candidates(ctx context.Context, kind Kind) ([]Candidate, error)
}

// CandidateSourceFunc adapts a function to CandidateSource.
type CandidateSourceFunc func(ctx context.Context, kind Kind) ([]Candidate, error)

// Candidates implements CandidateSource.
func (f CandidateSourceFunc) Candidates(ctx context.Context, kind Kind) ([]Candidate, error) {
	return f(ctx, kind)
}

// Result is one ranked candidate.
type Result struct {
	// QueryHash identifies the query that produced the result. Empty for
	// FindSimilar calls made with a raw vector.
	QueryHash   string    `json:"query_hash,omitempty"`
	CandidateID string    `json:"candidate_id"`
	Candidate   Candidate `json:"candidate"`
	Score       float64   `json:"score"`

	// Rank is the 1-based position in the result list.
	Rank int `json:"rank"`
}

// SearchOptions parameterizes Search.
type SearchOptions struct {
	// TopK bounds the result count. Zero uses DefaultTopK; negative disables
	// truncation.
	TopK int

	// Threshold is the minimum score kept.
	Threshold float64

	// Kind selects the candidate population. Defaults to KindPaper.
	Kind Kind
}
