package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/retractd/internal/retraction"
	"github.com/fyrsmithlabs/retractd/internal/similarity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMinSize is used when Assemble is called with minSize <= 0.
const DefaultMinSize = 3

// Grouping strategies recorded in Cluster.Attributes["grouping"].
const (
	GroupingEntitySet       = "entity_set"
	GroupingSimilarEntities = "similar_entities"
)

var clusterNamespace = uuid.MustParse("9932b1ff-6ed4-4b58-a8ca-1c3119af67fb")

// Assembler builds clusters from scored chains.
type Assembler struct {
	entities retraction.EntityIndex
	logger   *zap.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithEntityIndex supplies entities whose PotentialReason is used when a
// chain carries no reason codes of its own.
func WithEntityIndex(idx retraction.EntityIndex) Option {
	return func(a *Assembler) { a.entities = idx }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAssembler creates an assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("cluster")
	return a
}

// Assemble groups chains with identical entity-id sets. Entity order and
// duplicates do not matter. Groups with fewer than minSize members are
// dropped. Clusters are ordered by size, largest first, with equal sizes
// in order of first appearance.
//
// Unscored entries (nil Chain) and chains without entities are ignored.
func (a *Assembler) Assemble(scored []retraction.ScoredChain, minSize int) []retraction.Cluster {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}

	var order []string
	groups := make(map[string][]retraction.ScoredChain)
	for _, sc := range scored {
		if sc.Chain == nil {
			continue
		}
		ids := sortedSet(sc.Chain.EntityIDs)
		if len(ids) == 0 {
			a.logger.Debug("skipping chain without entities", zap.String("chain_id", sc.Chain.ID))
			continue
		}
		key := strings.Join(ids, "\x1f")
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], sc)
	}

	clusters := make([]retraction.Cluster, 0, len(order))
	for _, key := range order {
		members := groups[key]
		if len(members) < minSize {
			continue
		}
		c := a.summarize(members, GroupingEntitySet)
		c.ID = clusterID(GroupingEntitySet, key)
		clusters = append(clusters, c)
	}
	sortBySize(clusters)

	a.logger.Debug("assembled clusters",
		zap.Int("chains", len(scored)),
		zap.Int("groups", len(order)),
		zap.Int("clusters", len(clusters)),
		zap.Int("min_size", minSize))
	return clusters
}

// AssembleBySimilarEntities groups chains whose entity centroids have
// cosine similarity of at least threshold with a group's seed chain.
// Seeds are taken greedily in input order; each chain joins at most one
// cluster.
//
// vectors maps entity IDs to embeddings; chains with no embedded entity
// are ignored. Vectors of different dimensions fail with
// similarity.ErrDimensionMismatch.
func (a *Assembler) AssembleBySimilarEntities(ctx context.Context, scored []retraction.ScoredChain, vectors map[string][]float32, threshold float64, minSize int) ([]retraction.Cluster, error) {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}

	type withCentroid struct {
		sc       retraction.ScoredChain
		centroid []float32
	}
	items := make([]withCentroid, 0, len(scored))
	for _, sc := range scored {
		if sc.Chain == nil {
			continue
		}
		vecs := make([][]float32, 0, len(sc.Chain.EntityIDs))
		for _, id := range sc.Chain.EntityIDs {
			if v, ok := vectors[id]; ok {
				vecs = append(vecs, v)
			}
		}
		centroid, err := similarity.Centroid(vecs)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", sc.Chain.ID, err)
		}
		if centroid == nil {
			continue
		}
		items = append(items, withCentroid{sc: sc, centroid: centroid})
	}

	grouped := make([]bool, len(items))
	var clusters []retraction.Cluster
	for i := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if grouped[i] {
			continue
		}
		members := []retraction.ScoredChain{items[i].sc}
		picked := []int{i}
		for j := range items {
			if j == i || grouped[j] {
				continue
			}
			sim, err := similarity.Cosine(items[i].centroid, items[j].centroid)
			if err != nil {
				return nil, fmt.Errorf("comparing chains %s and %s: %w", items[i].sc.Chain.ID, items[j].sc.Chain.ID, err)
			}
			if sim >= threshold {
				members = append(members, items[j].sc)
				picked = append(picked, j)
			}
		}
		if len(members) < minSize {
			continue
		}
		for _, k := range picked {
			grouped[k] = true
		}

		c := a.summarize(members, GroupingSimilarEntities)
		c.ID = clusterID(GroupingSimilarEntities, strings.Join(sortedSet(c.MemberChainIDs), "\x1f"))
		clusters = append(clusters, c)
	}
	sortBySize(clusters)
	return clusters, nil
}

// summarize computes the aggregate statistics of a member list.
func (a *Assembler) summarize(members []retraction.ScoredChain, grouping string) retraction.Cluster {
	var confSum, sevSum float64
	var chainIDs, entityIDs, relations []string
	votes := make(map[int]int)
	for _, m := range members {
		confSum += m.OverallConfidence
		sevSum += float64(m.Chain.SeverityLevel)
		chainIDs = append(chainIDs, m.Chain.ID)
		entityIDs = append(entityIDs, m.Chain.EntityIDs...)
		relations = append(relations, m.Chain.RelationshipIDs...)
		if code, ok := a.memberReason(m.Chain); ok {
			votes[code]++
		}
	}

	code := majority(votes)
	n := float64(len(members))
	return retraction.Cluster{
		Size:             len(members),
		MemberChainIDs:   chainIDs,
		EntityIDs:        sortedSet(entityIDs),
		Relations:        sortedSet(relations),
		AvgConfidence:    confSum / n,
		AvgSeverity:      sevSum / n,
		CommonReasonCode: code,
		CommonReason:     retraction.ReasonLabel(code),
		Attributes:       map[string]any{"grouping": grouping},
	}
}

// memberReason is the chain's most frequent reason code, taken from its own
// codes or else from its entities' potential reasons.
func (a *Assembler) memberReason(c *retraction.Chain) (int, bool) {
	counts := make(map[int]int)
	for _, code := range c.ReasonCodes {
		if retraction.ValidReasonCode(code) {
			counts[code]++
		}
	}
	if len(counts) == 0 && a.entities != nil {
		for _, id := range c.EntityIDs {
			if e, ok := a.entities.Get(id); ok && retraction.ValidReasonCode(e.PotentialReason) {
				counts[e.PotentialReason]++
			}
		}
	}
	if len(counts) == 0 {
		return 0, false
	}
	return majority(counts), true
}

// majority returns the most counted code, preferring the lowest on ties,
// or ReasonNotSpecified when there are no votes.
func majority(counts map[int]int) int {
	best, bestCount := retraction.ReasonNotSpecified, 0
	for code, n := range counts {
		if n > bestCount || (n == bestCount && code < best) {
			best, bestCount = code, n
		}
	}
	return best
}

func clusterID(grouping, key string) string {
	return uuid.NewSHA1(clusterNamespace, []byte(grouping+":"+key)).String()
}

func sortBySize(clusters []retraction.Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size > clusters[j].Size
	})
}

func sortedSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
