package retraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const entitiesJSON = `{
  "entities": [
    {"text": "Figure 3 duplicates Figure 1", "category": "quality_indicator", "relevance_score": 9, "potential_retraction_reason": 1, "context": "western blot panels"},
    {"text": "Withdrawn by the authors", "category": "Administrative", "relevance_score": "7", "potential_retraction_reason": 9}
  ]
}`

func TestParseEntities(t *testing.T) {
	entities, err := ParseEntities(entitiesJSON, "paper-1")
	require.NoError(t, err)
	require.Len(t, entities, 2)

	assert.Equal(t, CategoryQualityIndicator, entities[0].Category)
	assert.Equal(t, 9, entities[0].RelevanceScore)
	assert.Equal(t, 1, entities[0].PotentialReason)
	assert.Equal(t, "paper-1", entities[0].PaperID)
	assert.True(t, IsUUID(entities[0].ID))

	assert.Equal(t, CategoryAdministrative, entities[1].Category)
	assert.Equal(t, 7, entities[1].RelevanceScore)
	assert.NotEqual(t, entities[0].ID, entities[1].ID)
}

func TestParseEntities_Fenced(t *testing.T) {
	raw := "Here are the entities:\n```json\n" + entitiesJSON + "\n```\nLet me know if you need more."
	entities, err := ParseEntities(raw, "")
	require.NoError(t, err)
	assert.Len(t, entities, 2)
}

func TestParseEntities_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no json", "I could not find any entities."},
		{"truncated", `{"entities": [{"text": "x"`},
		{"missing key", `{"results": []}`},
		{"bad category", `{"entities": [{"text": "x", "category": "gossip", "relevance_score": 5, "potential_retraction_reason": 1}]}`},
		{"score out of range", `{"entities": [{"text": "x", "category": "content", "relevance_score": 11, "potential_retraction_reason": 1}]}`},
		{"missing score", `{"entities": [{"text": "x", "category": "content", "potential_retraction_reason": 1}]}`},
		{"empty text", `{"entities": [{"text": " ", "category": "content", "relevance_score": 5, "potential_retraction_reason": 1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEntities(tt.raw, "")
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestParseChains(t *testing.T) {
	known := []*Entity{
		{ID: "e1", Text: "Figure 3 duplicates Figure 1"},
		{ID: "e2", Text: "No raw data available"},
	}
	raw := `{"chains": [{
		"type": "methodological",
		"entities": ["figure 3 duplicates figure 1", "e2", "unknown clue", "e2"],
		"relationships": ["duplicates", "lacks"],
		"reasoning_steps": ["image reuse", "cannot verify"],
		"confidence_score": 8,
		"severity_level": 7,
		"retraction_reason": 1,
		"overall_explanation": "Image manipulation"
	}]}`

	chains, err := ParseChains(raw, "paper-1", known)
	require.NoError(t, err)
	require.Len(t, chains, 1)

	c := chains[0]
	assert.Equal(t, []string{"e1", "e2"}, c.EntityIDs)
	assert.Equal(t, []string{"duplicates", "lacks"}, c.RelationshipIDs)
	assert.Equal(t, 7, c.SeverityLevel)
	assert.Equal(t, []int{1}, c.ReasonCodes)
	assert.InDelta(t, 0.8, c.NormalizedConfidence(), 1e-9)
	assert.Nil(t, c.Frequency)
}

func TestParseChains_UnresolvedEntities(t *testing.T) {
	_, err := ParseChains(`{"chains": [{"entities": ["nothing we know"]}]}`, "", nil)
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.ErrorIs(t, err, ErrEmptyChainEntities)
}

func TestParseProblems(t *testing.T) {
	problems, err := ParseProblems(`Sure! {"results": ["Were the figures altered?", "Was the data fabricated?"]}`)
	require.NoError(t, err)
	assert.Len(t, problems, 2)

	_, err = ParseProblems(`{"results": []}`)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
