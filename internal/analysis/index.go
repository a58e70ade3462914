package analysis

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/retractd/internal/retraction"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IndexPapers embeds papers that carry no vector and saves every paper.
// IDs are generated for papers that have none.
func (s *Service) IndexPapers(ctx context.Context, papers []*retraction.Paper) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, p := range papers {
		if p == nil {
			continue
		}
		if p.ID == "" {
			p.ID = retraction.NewID()
		}
		if len(p.Vector) > 0 {
			continue
		}
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, p.EmbeddingText())
			if err != nil {
				return fmt.Errorf("embedding paper %s: %w", p.ID, err)
			}
			p.Vector = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range papers {
		if p == nil {
			continue
		}
		if err := s.store.SavePaper(ctx, p); err != nil {
			return err
		}
	}
	s.logger.Info("papers indexed", zap.Int("count", len(papers)))
	return nil
}

// IndexEntities embeds the stored entities of a paper (every paper when
// paperID is empty) that have no vector yet. It returns how many were
// embedded.
func (s *Service) IndexEntities(ctx context.Context, paperID string) (int, error) {
	entities, err := s.store.ListEntities(ctx, paperID)
	if err != nil {
		return 0, err
	}
	var pending []*retraction.Entity
	for _, e := range entities {
		if len(e.Vector) == 0 {
			pending = append(pending, e)
		}
	}
	if err := s.embedEntities(ctx, pending); err != nil {
		return 0, err
	}
	return len(pending), nil
}

// embedEntities fills and persists missing entity vectors.
func (s *Service) embedEntities(ctx context.Context, entities []*retraction.Entity) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, e := range entities {
		if len(e.Vector) > 0 {
			continue
		}
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, e.Text)
			if err != nil {
				return fmt.Errorf("embedding entity %s: %w", e.ID, err)
			}
			if err := s.store.SetEntityVector(gctx, e.ID, vec); err != nil {
				return err
			}
			e.Vector = vec
			return nil
		})
	}
	return g.Wait()
}

// Dataset is a batch of records to load into the store.
type Dataset struct {
	Papers   []*retraction.Paper  `json:"papers"`
	Entities []*retraction.Entity `json:"entities"`
	Chains   []*retraction.Chain  `json:"chains"`
}

// Import indexes the papers, saves and embeds the entities and saves the
// chains of a dataset. Chains are checked for entity references first so a
// rejected dataset leaves no chains behind.
func (s *Service) Import(ctx context.Context, ds Dataset) error {
	for i, c := range ds.Chains {
		if c == nil || len(c.EntityIDs) == 0 {
			return fmt.Errorf("chain %d: %w", i, retraction.ErrEmptyChainEntities)
		}
		if c.ID == "" {
			c.ID = retraction.NewID()
		}
	}
	for i, e := range ds.Entities {
		if e == nil {
			return fmt.Errorf("entity %d: %w", i, retraction.ErrInvalidEntity)
		}
		if e.ID == "" {
			e.ID = retraction.NewID()
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
	}

	if len(ds.Papers) > 0 {
		if err := s.IndexPapers(ctx, ds.Papers); err != nil {
			return err
		}
	}
	if len(ds.Entities) > 0 {
		if err := s.store.SaveEntities(ctx, ds.Entities); err != nil {
			return err
		}
		if err := s.embedEntities(ctx, ds.Entities); err != nil {
			return err
		}
	}
	if len(ds.Chains) > 0 {
		if err := s.store.SaveChains(ctx, ds.Chains); err != nil {
			return err
		}
	}
	s.logger.Info("dataset imported",
		zap.Int("papers", len(ds.Papers)),
		zap.Int("entities", len(ds.Entities)),
		zap.Int("chains", len(ds.Chains)))
	return nil
}
