package store

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/retractd/internal/similarity"
)

var _ similarity.CandidateSource = (*Store)(nil)

// Candidates implements similarity.CandidateSource. Records without a
// vector are included; the engine skips them.
func (s *Store) Candidates(ctx context.Context, kind similarity.Kind) ([]similarity.Candidate, error) {
	switch kind {
	case similarity.KindPaper, "":
		papers, err := s.ListPapers(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]similarity.Candidate, 0, len(papers))
		for _, p := range papers {
			out = append(out, similarity.Candidate{
				ID:     p.ID,
				Vector: p.Vector,
				Metadata: map[string]any{
					"title":             p.Title,
					"doi":               p.DOI,
					"date":              p.Date,
					"journal":           p.Journal,
					"retraction_reason": p.RetractionReason,
				},
			})
		}
		return out, nil

	case similarity.KindEntity:
		entities, err := s.ListEntities(ctx, "")
		if err != nil {
			return nil, err
		}
		out := make([]similarity.Candidate, 0, len(entities))
		for _, e := range entities {
			out = append(out, similarity.Candidate{
				ID:     e.ID,
				Vector: e.Vector,
				Metadata: map[string]any{
					"text":                        e.Text,
					"category":                    string(e.Category),
					"paper_id":                    e.PaperID,
					"potential_retraction_reason": e.PotentialReason,
				},
			})
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown candidate kind %q", kind)
	}
}
