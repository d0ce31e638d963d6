package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.Chunker.IsEnabled())
	assert.Equal(t, "window", cfg.Chunker.Type)
	assert.Equal(t, 500, cfg.Chunker.Size)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, 384, cfg.Embedder.Hashing.Dimension)
	assert.Equal(t, "sqlite", cfg.DocumentStore.Type)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, "extractive", cfg.Generator.Type)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.Generator.OpenAI.BaseURL)
	assert.Equal(t, "OPENROUTER_API_KEY", cfg.Generator.OpenAI.APIKeyEnv)
	assert.Equal(t, "x-ai/grok-4-fast:free", cfg.Generator.OpenAI.Model)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.True(t, cfg.CostTracking.Enabled)
	assert.InDelta(t, 0.000002, cfg.CostTracking.CostPerToken, 1e-12)
	assert.Equal(t, 5, cfg.Summarizer.MaxSentences)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_AppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunker:
  enabled: false
  size: 200
embedder:
  type: ollama
vector_store:
  type: qdrant
generator:
  type: gemini
retrieval:
  top_k: 2
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Chunker.IsEnabled())
	assert.Equal(t, 200, cfg.Chunker.Size)
	assert.Zero(t, cfg.Chunker.Overlap)
	require.NotNil(t, cfg.Embedder.Ollama)
	assert.Equal(t, "http://localhost:11434/api", cfg.Embedder.Ollama.BaseURL)
	assert.Equal(t, 5, cfg.Embedder.Ollama.MaxRetries)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "http://localhost:6333", cfg.VectorStore.Qdrant.URL)
	require.NotNil(t, cfg.Generator.Gemini)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Generator.Gemini.APIKeyEnv)
	assert.Equal(t, 2, cfg.Retrieval.TopK)
	assert.Equal(t, "sqlite", cfg.DocumentStore.Type)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.VectorStore.Type = "chroma"
	cfg.Server.Addr = "127.0.0.1:9000"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "chroma", loaded.VectorStore.Type)
	require.NotNil(t, loaded.VectorStore.Chroma)
	assert.Equal(t, "http://localhost:8000", loaded.VectorStore.Chroma.URL)
	assert.Equal(t, "127.0.0.1:9000", loaded.Server.Addr)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "docrag", "config.yaml"), path)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.FileExists(t, path)

	dataPath, err := DefaultDataPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "docrag", "docrag.db"), dataPath)
}
