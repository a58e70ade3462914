package cluster

import (
	"sort"

	"github.com/fyrsmithlabs/retractd/internal/retraction"
)

// RelationOverlap counts the relations two clusters share.
func RelationOverlap(a, b retraction.Cluster) int {
	if len(a.Relations) == 0 || len(b.Relations) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a.Relations))
	for _, r := range a.Relations {
		set[r] = struct{}{}
	}
	var n int
	for _, r := range sortedSet(b.Relations) {
		if _, ok := set[r]; ok {
			n++
		}
	}
	return n
}

// Neighbor is a cluster ranked by its overlap with a target.
type Neighbor struct {
	Cluster retraction.Cluster `json:"cluster"`
	Overlap int                `json:"overlap"`
}

// MostSimilar ranks clusters by RelationOverlap with target, highest first.
// The target itself and clusters sharing nothing are left out; equal
// overlaps keep input order.
func MostSimilar(target retraction.Cluster, clusters []retraction.Cluster) []Neighbor {
	var out []Neighbor
	for _, c := range clusters {
		if c.ID != "" && c.ID == target.ID {
			continue
		}
		if n := RelationOverlap(target, c); n > 0 {
			out = append(out, Neighbor{Cluster: c, Overlap: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Overlap > out[j].Overlap
	})
	return out
}
