package confidence

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/retractd/internal/logging"
	"github.com/fyrsmithlabs/retractd/internal/retraction"
	"go.uber.org/zap"
)

// DefaultHalfLifeYears is the age at which temporal relevance halves.
const DefaultHalfLifeYears = 5.0

// ReasonNotFound explains a zero score for a missing target chain.
const ReasonNotFound = "no matching chain found"

// Aggregator scores chains against their population. It holds no mutable
// state and is safe for concurrent use.
type Aggregator struct {
	weights  Weights
	halfLife float64
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWeights replaces the default weights.
func WithWeights(w Weights) Option {
	return func(a *Aggregator) { a.weights = w }
}

// WithHalfLife sets the temporal half-life in years.
func WithHalfLife(years float64) Option {
	return func(a *Aggregator) {
		if years > 0 {
			a.halfLife = years
		}
	}
}

// WithClock sets the time source used for temporal relevance.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAggregator returns an aggregator, or ErrInvalidWeights when the
// configured weights are invalid.
func NewAggregator(opts ...Option) (*Aggregator, error) {
	a := &Aggregator{
		weights:  DefaultWeights(),
		halfLife: DefaultHalfLifeYears,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.weights.Validate(); err != nil {
		return nil, err
	}
	a.logger = a.logger.Named("confidence")
	return a, nil
}

// Weights returns the aggregator's default weights.
func (a *Aggregator) Weights() Weights {
	return a.weights
}

// Score finds the chain whose key field equals value and scores it against
// population. UUID values also match their hyphen-stripped form.
//
// A missing chain is not an error: the result has Found false, zero
// confidence and Reason set. Custom weights override the aggregator's for
// this call and must be valid.
func (a *Aggregator) Score(ctx context.Context, population []*retraction.Chain, key, value string, weights *Weights) (retraction.ScoredChain, error) {
	w := a.weights
	if weights != nil {
		if err := weights.Validate(); err != nil {
			return retraction.ScoredChain{}, err
		}
		w = *weights
	}

	target, ok := retraction.ChainByKey(population, key, value)
	if !ok {
		a.logger.Debug("chain not found",
			zap.String("key", key),
			logging.Text("value", value),
			zap.Int("population", len(population)))
		return retraction.ScoredChain{
			Breakdown: map[retraction.Signal]float64{},
			Level:     retraction.VeryLow,
			Reason:    ReasonNotFound,
			ScoredAt:  a.now(),
		}, nil
	}
	return a.score(target, population, w), nil
}

// ScoreChain scores a chain already in hand.
func (a *Aggregator) ScoreChain(chain *retraction.Chain, population []*retraction.Chain) retraction.ScoredChain {
	return a.score(chain, population, a.weights)
}

// ScoreAll scores every chain in population against the whole population,
// preserving order.
func (a *Aggregator) ScoreAll(ctx context.Context, population []*retraction.Chain) ([]retraction.ScoredChain, error) {
	out := make([]retraction.ScoredChain, 0, len(population))
	for _, c := range population {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scoring chains: %w", err)
		}
		out = append(out, a.score(c, population, a.weights))
	}
	return out, nil
}

func (a *Aggregator) score(target *retraction.Chain, population []*retraction.Chain, w Weights) retraction.ScoredChain {
	now := a.now()
	breakdown := map[retraction.Signal]float64{
		retraction.SignalFrequency:            frequencySignal(target, population),
		retraction.SignalReasoningConsistency: scaledAttrSignal(target, retraction.AttrReasoningConsistency),
		retraction.SignalCitationStrength:     citationSignal(target, population),
		retraction.SignalTemporalRelevance:    temporalSignal(target, now, a.halfLife),
		retraction.SignalSourceCredibility:    scaledAttrSignal(target, retraction.AttrSourceCredibility),
	}

	var overall float64
	for _, sig := range retraction.Signals {
		overall += w.For(sig) * breakdown[sig]
	}
	overall = clamp01(overall)

	var freq float64
	if target.Frequency != nil {
		freq = *target.Frequency
	}

	return retraction.ScoredChain{
		Chain:               target,
		OverallConfidence:   overall,
		Breakdown:           breakdown,
		Level:               LevelFor(overall),
		ReasoningStepsCount: len(target.ReasoningSteps),
		Frequency:           freq,
		Found:               true,
		ScoredAt:            now,
	}
}

// LevelFor buckets an overall confidence.
func LevelFor(confidence float64) retraction.ConfidenceLevel {
	switch {
	case confidence >= 0.8:
		return retraction.VeryHigh
	case confidence >= 0.6:
		return retraction.High
	case confidence >= 0.4:
		return retraction.Moderate
	case confidence >= 0.2:
		return retraction.Low
	default:
		return retraction.VeryLow
	}
}
