// Package app assembles the configured components into a ready RAG service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"docrag/internal/chunker"
	"docrag/internal/config"
	docmemory "docrag/internal/docstore/memory"
	docsqlite "docrag/internal/docstore/sqlite"
	"docrag/internal/domain"
	"docrag/internal/embedding/hashing"
	"docrag/internal/embedding/ollama"
	embopenai "docrag/internal/embedding/openai"
	"docrag/internal/generation"
	"docrag/internal/generation/extractive"
	"docrag/internal/generation/gemini"
	genopenai "docrag/internal/generation/openai"
	"docrag/internal/logger"
	"docrag/internal/service"
	"docrag/internal/summarizer"
	"docrag/internal/vectorstore"
	"docrag/internal/vectorstore/chroma"
	vecmemory "docrag/internal/vectorstore/memory"
	"docrag/internal/vectorstore/qdrant"
	vecsqlite "docrag/internal/vectorstore/sqlite"
)

// App owns the assembled service and the resources behind it.
type App struct {
	Config     *config.AppConfig
	Service    *service.RAGService
	Summarizer domain.Summarizer

	closers []io.Closer
}

// Build creates every component named by cfg. Unknown component types and
// missing API keys are configuration errors.
func Build(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	ch, err := newChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	store, err := a.newDocumentStore(cfg.DocumentStore)
	if err != nil {
		return nil, err
	}
	storage, err := a.newVectorStorage(cfg.VectorStore, cfg.DocumentStore)
	if err != nil {
		return nil, err
	}
	index, err := vectorstore.NewIndex(ctx, emb, storage)
	if err != nil {
		return nil, err
	}
	sum, err := newSummarizer(cfg.Summarizer)
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(ctx, cfg.Generator, sum)
	if err != nil {
		return nil, err
	}
	if cfg.CostTracking.Enabled {
		gen = generation.WithCost(gen, cfg.CostTracking.CostPerToken)
	}

	logger.Debug("components: chunker=%s embedder=%s store=%s vectors=%s generator=%s",
		cfg.Chunker.Type, emb.Name(), cfg.DocumentStore.Type, cfg.VectorStore.Type, gen.Name())

	a.Summarizer = sum
	a.Service = service.NewRAGService(ch, store, index, gen, sum, service.Options{
		TopK:                cfg.Retrieval.TopK,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
	})

	// an in-memory index starts empty while a durable store still holds chunks
	if cfg.VectorStore.Type == "memory" && cfg.DocumentStore.Type != "memory" {
		report, err := a.Service.Reindex(ctx)
		if err != nil {
			return nil, fmt.Errorf("rebuild vector index: %w", err)
		}
		if len(report.ChunkIDs) > 0 {
			logger.Info("rebuilt in-memory index: %d of %d chunks", report.Indexed(), len(report.ChunkIDs))
		}
	}
	ok = true
	return a, nil
}

// Close releases stores and clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	if !cfg.IsEnabled() {
		return chunker.Whole{}, nil
	}
	switch cfg.Type {
	case "window", "":
		return chunker.NewWindow(cfg.Size, cfg.Overlap)
	case "recursive":
		return chunker.NewRecursive(cfg.Size, cfg.Overlap)
	case "whole":
		return chunker.Whole{}, nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func newEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		return hashing.NewEmbedder(dim), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		return embopenai.NewEmbedder(embopenai.Config{
			APIKey:     os.Getenv(cfg.OpenAI.APIKeyEnv),
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
			Timeout:    seconds(cfg.OpenAI.TimeoutSecs),
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
	case "ollama":
		if cfg.Ollama == nil {
			return nil, errors.New("ollama embedder config missing")
		}
		var key string
		if cfg.Ollama.APIKeyEnv != "" {
			key = os.Getenv(cfg.Ollama.APIKeyEnv)
		}
		return ollama.NewClient(ollama.Config{
			BaseURL:    cfg.Ollama.BaseURL,
			APIKey:     key,
			Model:      cfg.Ollama.Model,
			Timeout:    seconds(cfg.Ollama.TimeoutSecs),
			MaxRetries: cfg.Ollama.MaxRetries,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func (a *App) newDocumentStore(cfg config.DocumentStoreConfig) (domain.DocumentStore, error) {
	switch cfg.Type {
	case "memory":
		return docmemory.NewStore(), nil
	case "sqlite", "":
		path, err := dataPath(cfg.Path)
		if err != nil {
			return nil, err
		}
		st, err := docsqlite.NewStore(path)
		if err != nil {
			return nil, fmt.Errorf("open document store: %w", err)
		}
		a.closers = append(a.closers, st)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown document store: %s", cfg.Type)
	}
}

func (a *App) newVectorStorage(cfg config.VectorStoreConfig, docs config.DocumentStoreConfig) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "memory":
		return vecmemory.NewStorage(), nil
	case "sqlite", "":
		path := docs.Path
		if cfg.SQLite != nil && cfg.SQLite.Path != "" {
			path = cfg.SQLite.Path
		}
		path, err := dataPath(path)
		if err != nil {
			return nil, err
		}
		st, err := vecsqlite.NewStorage(path)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
		a.closers = append(a.closers, st)
		return st, nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		var key string
		if cfg.Qdrant.APIKeyEnv != "" {
			key = os.Getenv(cfg.Qdrant.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     key,
			Collection: cfg.Qdrant.Collection,
			Timeout:    seconds(cfg.Qdrant.TimeoutSecs),
		}), nil
	case "chroma":
		if cfg.Chroma == nil {
			return nil, errors.New("chroma config missing")
		}
		st, err := chroma.NewStorage(chroma.Config{URL: cfg.Chroma.URL, Collection: cfg.Chroma.Collection})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func newSummarizer(cfg config.SummarizerConfig) (domain.Summarizer, error) {
	switch cfg.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Type)
	}
}

func newGenerator(ctx context.Context, cfg config.GeneratorConfig, sum domain.Summarizer) (domain.Generator, error) {
	switch cfg.Type {
	case "extractive", "":
		return extractive.NewGenerator(sum, 0), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai generator config missing")
		}
		key := os.Getenv(cfg.OpenAI.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("openai generator: %s is not set", cfg.OpenAI.APIKeyEnv)
		}
		return genopenai.NewGenerator(genopenai.Config{
			APIKey:      key,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     seconds(cfg.OpenAI.TimeoutSecs),
			MaxRetries:  cfg.OpenAI.MaxRetries,
		})
	case "gemini":
		if cfg.Gemini == nil {
			return nil, errors.New("gemini generator config missing")
		}
		key := os.Getenv(cfg.Gemini.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("gemini generator: %s is not set", cfg.Gemini.APIKeyEnv)
		}
		return gemini.NewGenerator(ctx, gemini.Config{APIKey: key, Model: cfg.Gemini.Model})
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

func dataPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return config.DefaultDataPath()
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
