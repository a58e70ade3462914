package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTEIProvider_Embed(t *testing.T) {
	var got teiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode([][]float32{{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL + "/", Model: "sentence-transformers/all-MiniLM-L6-v2"})
	require.NoError(t, err)
	assert.Equal(t, 384, p.Dimension())

	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "hello", got.Inputs)
	assert.True(t, got.Truncate)
	assert.Equal(t, 3, p.Dimension(), "server-reported dimension wins")
}

func TestTEIProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
		}},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"empty", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("[]"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL})
			require.NoError(t, err)
			_, err = p.Embed(context.Background(), "hello")
			assert.ErrorIs(t, err, ErrEmbeddingFailed)
		})
	}
}

func TestTEIProvider_Validation(t *testing.T) {
	_, err := NewTEIProvider(TEIConfig{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err := NewTEIProvider(TEIConfig{BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
