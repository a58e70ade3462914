package analysis

import (
	"context"

	"github.com/fyrsmithlabs/retractd/internal/confidence"
	"github.com/fyrsmithlabs/retractd/internal/retraction"
	"github.com/fyrsmithlabs/retractd/internal/similarity"
)

// SimilarPapers ranks stored papers against text. Zero topK and threshold
// use the configured defaults.
func (s *Service) SimilarPapers(ctx context.Context, text string, topK int, threshold float64) ([]similarity.Result, error) {
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	if threshold == 0 {
		threshold = s.cfg.Threshold
	}
	return s.engine.Search(ctx, text, s.store, similarity.SearchOptions{
		TopK:      topK,
		Threshold: threshold,
		Kind:      similarity.KindPaper,
	})
}

// SimilarEntities ranks stored entities against text without a threshold.
func (s *Service) SimilarEntities(ctx context.Context, text string, topK int) ([]similarity.Result, error) {
	if topK <= 0 {
		topK = s.cfg.EntityTopK
	}
	return s.engine.FindSimilarEntities(ctx, text, s.store, topK)
}

// ScoreChain scores the stored chain matching key=value against every
// stored chain. A nil weights uses the aggregator's weights.
func (s *Service) ScoreChain(ctx context.Context, key, value string, weights *confidence.Weights) (retraction.ScoredChain, error) {
	population, err := s.store.ListChains(ctx, "")
	if err != nil {
		return retraction.ScoredChain{}, err
	}
	return s.aggregator.Score(ctx, population, key, value, weights)
}

// Paper returns a stored paper.
func (s *Service) Paper(ctx context.Context, id string) (*retraction.Paper, error) {
	return s.store.GetPaper(ctx, id)
}
