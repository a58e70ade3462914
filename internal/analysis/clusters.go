package analysis

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/retractd/internal/cluster"
	"github.com/fyrsmithlabs/retractd/internal/retraction"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Grouping selects how chains are clustered.
type Grouping string

const (
	// GroupByEntitySet clusters chains with identical entity-id sets.
	GroupByEntitySet Grouping = cluster.GroupingEntitySet

	// GroupBySimilarEntities clusters chains whose entity centroids are close.
	GroupBySimilarEntities Grouping = cluster.GroupingSimilarEntities
)

// ParseGrouping accepts the grouping names; empty selects GroupByEntitySet.
func ParseGrouping(s string) (Grouping, error) {
	switch Grouping(s) {
	case "", GroupByEntitySet:
		return GroupByEntitySet, nil
	case GroupBySimilarEntities:
		return GroupBySimilarEntities, nil
	default:
		return "", fmt.Errorf("unknown grouping %q", s)
	}
}

// Cluster scores every stored chain, groups the scored chains and replaces
// the stored clusters with the result. minSize <= 0 uses the configured size.
func (s *Service) Cluster(ctx context.Context, grouping Grouping, minSize int) ([]retraction.Cluster, error) {
	if minSize <= 0 {
		minSize = s.cfg.ClusterMinSize
	}
	ctx, span := s.tracer.Start(ctx, "analysis.cluster", trace.WithAttributes(
		attribute.String("grouping", string(grouping)),
		attribute.Int("min_size", minSize)))
	defer span.End()

	clusters, err := s.cluster(ctx, grouping, minSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clustering failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("clusters", len(clusters)))
	return clusters, nil
}

func (s *Service) cluster(ctx context.Context, grouping Grouping, minSize int) ([]retraction.Cluster, error) {
	chains, err := s.store.ListChains(ctx, "")
	if err != nil {
		return nil, err
	}
	scored, err := s.aggregator.ScoreAll(ctx, chains)
	if err != nil {
		return nil, err
	}
	entities, err := s.store.ListEntities(ctx, "")
	if err != nil {
		return nil, err
	}

	asm := cluster.NewAssembler(
		cluster.WithEntityIndex(retraction.NewEntityIndex(entities)),
		cluster.WithLogger(s.logger))

	var clusters []retraction.Cluster
	switch grouping {
	case "", GroupByEntitySet:
		clusters = asm.Assemble(scored, minSize)
	case GroupBySimilarEntities:
		vectors := make(map[string][]float32, len(entities))
		for _, e := range entities {
			if len(e.Vector) > 0 {
				vectors[e.ID] = e.Vector
			}
		}
		clusters, err = asm.AssembleBySimilarEntities(ctx, scored, vectors, s.cfg.ClusterSimilarityThreshold, minSize)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown grouping %q", grouping)
	}

	if err := s.store.ReplaceClusters(ctx, clusters); err != nil {
		return nil, err
	}
	s.logger.Info("clusters assembled",
		zap.String("grouping", string(grouping)),
		zap.Int("chains", len(chains)),
		zap.Int("clusters", len(clusters)))
	return clusters, nil
}

// Clusters returns the stored clusters, largest first.
func (s *Service) Clusters(ctx context.Context) ([]retraction.Cluster, error) {
	return s.store.ListClusters(ctx)
}

// RelatedClusters returns the stored clusters sharing relations with the
// cluster id, most shared first.
func (s *Service) RelatedClusters(ctx context.Context, id string) ([]cluster.Neighbor, error) {
	clusters, err := s.store.ListClusters(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range clusters {
		if retraction.MatchID(c.ID, id) {
			return cluster.MostSimilar(c, clusters), nil
		}
	}
	return nil, fmt.Errorf("cluster %s not found", id)
}
