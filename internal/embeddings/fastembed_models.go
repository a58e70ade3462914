package embeddings

import (
	"os"
	"path/filepath"
)

// DefaultFastEmbedModel is small enough to embed a paper population on a laptop.
const DefaultFastEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	// Model defaults to DefaultFastEmbedModel.
	Model string
	// CacheDir holds downloaded model files; defaults to
	// ~/.cache/retractd/models.
	CacheDir string
	// MaxLength is the input sequence length in tokens; defaults to 512.
	// Longer abstracts are truncated by the tokenizer.
	MaxLength int
}

func (c FastEmbedConfig) withDefaults() FastEmbedConfig {
	if c.Model == "" {
		c.Model = DefaultFastEmbedModel
	}
	if c.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.CacheDir = filepath.Join(home, ".cache", "retractd", "models")
	}
	if c.MaxLength == 0 {
		c.MaxLength = 512
	}
	return c
}

// fastEmbedModels lists the supported models by their Hugging Face name and
// the fastembed-go identifier, with output dimensions. Dimensions are known
// without cgo so a nocgo build can still validate stored vectors.
var fastEmbedModels = []struct {
	name, id string
	dim      int
}{
	{DefaultFastEmbedModel, "fast-all-MiniLM-L6-v2", 384},
	{"BAAI/bge-small-en-v1.5", "fast-bge-small-en-v1.5", 384},
	{"BAAI/bge-small-en", "fast-bge-small-en", 384},
	{"BAAI/bge-base-en-v1.5", "fast-bge-base-en-v1.5", 768},
	{"BAAI/bge-base-en", "fast-bge-base-en", 768},
	{"BAAI/bge-small-zh-v1.5", "fast-bge-small-zh-v1.5", 512},
}

// lookupFastEmbedModel accepts either naming and returns the fastembed-go id.
func lookupFastEmbedModel(model string) (id string, dim int, ok bool) {
	for _, m := range fastEmbedModels {
		if model == m.name || model == m.id {
			return m.id, m.dim, true
		}
	}
	return "", 0, false
}

func fastEmbedModelDimension(model string) (int, bool) {
	_, dim, ok := lookupFastEmbedModel(model)
	return dim, ok
}
