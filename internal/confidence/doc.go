// Package confidence combines partial evidence about a reasoning chain into
// one confidence score.
//
// Five signals are computed for a chain against its population: frequency
// percentile, reasoning consistency, citation strength, temporal relevance
// and source credibility. A signal that cannot be computed from the
// available data is 0.5, so the weighted sum always uses the full weight
// vector. The sum is clamped to [0,1] and bucketed into a ConfidenceLevel.
//
// Weights must be non-negative and sum to 1.0. Invalid weights are rejected
// with ErrInvalidWeights; they are never renormalized.
package confidence
