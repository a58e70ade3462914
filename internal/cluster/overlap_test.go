package cluster

import (
	"testing"

	"github.com/fyrsmithlabs/retractd/internal/retraction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationOverlap(t *testing.T) {
	a := retraction.Cluster{Relations: []string{"r1", "r2", "r3"}}
	b := retraction.Cluster{Relations: []string{"r2", "r3", "r3", "r4"}}

	assert.Equal(t, 2, RelationOverlap(a, b))
	assert.Equal(t, RelationOverlap(a, b), RelationOverlap(b, a))
	assert.Equal(t, 0, RelationOverlap(a, retraction.Cluster{}))
}

func TestMostSimilar(t *testing.T) {
	target := retraction.Cluster{ID: "t", Relations: []string{"r1", "r2", "r3"}}
	clusters := []retraction.Cluster{
		target,
		{ID: "one", Relations: []string{"r1"}},
		{ID: "none", Relations: []string{"r9"}},
		{ID: "two", Relations: []string{"r2", "r3"}},
		{ID: "one-again", Relations: []string{"r3", "r8"}},
	}

	got := MostSimilar(target, clusters)
	require.Len(t, got, 3)
	assert.Equal(t, "two", got[0].Cluster.ID)
	assert.Equal(t, 2, got[0].Overlap)
	assert.Equal(t, "one", got[1].Cluster.ID)
	assert.Equal(t, "one-again", got[2].Cluster.ID)
}
