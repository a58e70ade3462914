package retraction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"metadata", CategoryMetadata, false},
		{"Quality Indicator", CategoryQualityIndicator, false},
		{"textual-clue", CategoryTextualClue, false},
		{" CONTENT ", CategoryContent, false},
		{"rumour", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCategory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfidenceLevel_String(t *testing.T) {
	assert.Equal(t, "Very Low", VeryLow.String())
	assert.Equal(t, "Low", Low.String())
	assert.Equal(t, "Moderate", Moderate.String())
	assert.Equal(t, "High", High.String())
	assert.Equal(t, "Very High", VeryHigh.String())
}

func TestConfidenceLevel_JSON(t *testing.T) {
	data, err := json.Marshal(ScoredChain{Level: High, Found: true})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"confidence_level":"High"`)

	var sc ScoredChain
	require.NoError(t, json.Unmarshal(data, &sc))
	assert.Equal(t, High, sc.Level)
}

func TestChain_NormalizedConfidence(t *testing.T) {
	assert.InDelta(t, 0.75, (&Chain{ConfidenceScore: 0.75}).NormalizedConfidence(), 1e-9)
	assert.InDelta(t, 0.6, (&Chain{ConfidenceScore: 6}).NormalizedConfidence(), 1e-9)
	assert.Equal(t, 1.0, (&Chain{ConfidenceScore: 42}).NormalizedConfidence())
	assert.Equal(t, 0.0, (&Chain{ConfidenceScore: -1}).NormalizedConfidence())
}

func TestReasonLabel(t *testing.T) {
	assert.Equal(t, "Plagiarism", ReasonLabel(8))
	assert.Equal(t, "Reason not specified", ReasonLabel(ReasonNotSpecified))
	assert.Equal(t, "Reason not specified", ReasonLabel(42))
	assert.False(t, ValidReasonCode(0))
}

func TestMatchID(t *testing.T) {
	id := "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
	assert.True(t, MatchID(id, id))
	assert.True(t, MatchID("3f2504e04f8911d39a0c0305e82c3301", id))
	assert.False(t, MatchID("3f2504e0", id))
	assert.False(t, MatchID("chain1", "chain-1"), "non-UUID values are compared verbatim")
}
