package confidence

import (
	"errors"
	"fmt"
	"math"

	"github.com/fyrsmithlabs/retractd/internal/config"
	"github.com/fyrsmithlabs/retractd/internal/retraction"
)

// ErrInvalidWeights indicates a weight vector that is negative somewhere or
// does not sum to 1.0.
var ErrInvalidWeights = errors.New("invalid confidence weights")

const weightTolerance = 1e-6

// Weights scales each signal's contribution to the overall confidence.
type Weights struct {
	Frequency            float64 `json:"frequency_weight"`
	ReasoningConsistency float64 `json:"reasoning_consistency"`
	CitationStrength     float64 `json:"citation_strength"`
	TemporalRelevance    float64 `json:"temporal_relevance"`
	SourceCredibility    float64 `json:"source_credibility"`
}

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{
		Frequency:            0.30,
		ReasoningConsistency: 0.25,
		CitationStrength:     0.20,
		TemporalRelevance:    0.15,
		SourceCredibility:    0.10,
	}
}

// WeightsFromConfig converts the configuration section.
func WeightsFromConfig(cfg config.ConfidenceConfig) Weights {
	return Weights{
		Frequency:            cfg.FrequencyWeight,
		ReasoningConsistency: cfg.ReasoningConsistencyWeight,
		CitationStrength:     cfg.CitationStrengthWeight,
		TemporalRelevance:    cfg.TemporalRelevanceWeight,
		SourceCredibility:    cfg.SourceCredibilityWeight,
	}
}

// For returns the weight of sig.
func (w Weights) For(sig retraction.Signal) float64 {
	switch sig {
	case retraction.SignalFrequency:
		return w.Frequency
	case retraction.SignalReasoningConsistency:
		return w.ReasoningConsistency
	case retraction.SignalCitationStrength:
		return w.CitationStrength
	case retraction.SignalTemporalRelevance:
		return w.TemporalRelevance
	case retraction.SignalSourceCredibility:
		return w.SourceCredibility
	default:
		return 0
	}
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	var sum float64
	for _, sig := range retraction.Signals {
		sum += w.For(sig)
	}
	return sum
}

// Validate reports ErrInvalidWeights unless every weight is a non-negative
// finite number and the weights sum to 1.0.
func (w Weights) Validate() error {
	for _, sig := range retraction.Signals {
		v := w.For(sig)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s weight is %v", ErrInvalidWeights, sig, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1.0", ErrInvalidWeights, sum)
	}
	return nil
}
