package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/retractd/internal/logging"
	"github.com/fyrsmithlabs/retractd/internal/retraction"
	"github.com/fyrsmithlabs/retractd/internal/store"
	"go.uber.org/zap"
)

// ErrChainNotFound is returned when no stored chain matches a lookup.
var ErrChainNotFound = errors.New("chain not found")

// PaperFilter narrows FindPapers. Zero fields do not filter; set filters
// are applied in field order and combine with AND.
type PaperFilter struct {
	// Key and Value select the first paper whose field equals Value.
	Key   string
	Value string

	Title string

	// Attribute and AttributeValue match papers whose attribute equals
	// AttributeValue.
	Attribute      string
	AttributeValue any

	MinCitations int

	// TrendingPerDay keeps papers cited at least this often per day since
	// publication.
	TrendingPerDay float64

	// SeminalPercentile keeps papers at least SeminalMinAgeYears old whose
	// citation count reaches this percentile of the eligible papers.
	SeminalPercentile  float64
	SeminalMinAgeYears float64
}

// FindPapers returns the stored papers passing every set filter.
func (s *Service) FindPapers(ctx context.Context, f PaperFilter) ([]*retraction.Paper, error) {
	papers, err := s.store.ListPapers(ctx)
	if err != nil {
		return nil, err
	}

	if f.Key != "" {
		p, ok := retraction.PaperByKey(papers, f.Key, f.Value)
		if !ok {
			return nil, nil
		}
		papers = []*retraction.Paper{p}
	}
	if f.Title != "" {
		papers = retraction.PapersByTitle(papers, f.Title)
	}
	if f.Attribute != "" {
		papers = retraction.PapersByAttribute(papers, f.Attribute, f.AttributeValue)
	}
	if f.MinCitations > 0 {
		papers = retraction.PapersByCitations(papers, f.MinCitations)
	}
	now := s.now()
	if f.TrendingPerDay > 0 {
		papers = retraction.TrendingPapers(papers, now, f.TrendingPerDay)
	}
	if f.SeminalPercentile > 0 {
		papers = retraction.SeminalPapers(papers, now, f.SeminalPercentile, f.SeminalMinAgeYears)
	}
	return papers, nil
}

// ReasoningSteps returns the steps of the first stored chain whose key
// field equals value.
func (s *Service) ReasoningSteps(ctx context.Context, key, value string) ([]string, error) {
	chains, err := s.store.ListChains(ctx, "")
	if err != nil {
		return nil, err
	}
	steps, ok := retraction.ReasoningSteps(chains, key, value)
	if !ok {
		return nil, fmt.Errorf("%w: %s=%s", ErrChainNotFound, key, value)
	}
	return steps, nil
}

// ChainsWithAttribute returns the stored chains whose attribute equals value.
func (s *Service) ChainsWithAttribute(ctx context.Context, name string, value any) ([]*retraction.Chain, error) {
	chains, err := s.store.ListChains(ctx, "")
	if err != nil {
		return nil, err
	}
	return retraction.ChainsByAttribute(chains, name, value), nil
}

// BreakDown splits a retraction problem statement into sub-problems.
func (s *Service) BreakDown(ctx context.Context, problem string) ([]string, error) {
	if s.generator == nil {
		return nil, ErrNoGenerator
	}
	return s.generator.BreakDown(ctx, problem)
}

// RemovePaper deletes a paper with its entities and chains and drops its
// cached analysis. Clusters are left as they are until the next Cluster run.
func (s *Service) RemovePaper(ctx context.Context, paperID string) error {
	if _, err := s.store.GetPaper(ctx, paperID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrPaperNotFound, paperID)
		}
		return err
	}
	if err := s.store.DeletePaper(ctx, paperID); err != nil {
		return err
	}
	s.InvalidatePaper(ctx, paperID)
	logging.For(ctx, s.logger).Info("paper removed", zap.String("paper.id", paperID))
	return nil
}
