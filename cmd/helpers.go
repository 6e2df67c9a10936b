package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ziadkadry99/clinrag/internal/chunker"
	"github.com/ziadkadry99/clinrag/internal/config"
	"github.com/ziadkadry99/clinrag/internal/converter"
	"github.com/ziadkadry99/clinrag/internal/embeddings"
	"github.com/ziadkadry99/clinrag/internal/index"
	"github.com/ziadkadry99/clinrag/internal/ingest"
	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/rag"
	"github.com/ziadkadry99/clinrag/internal/registry"
)

// app bundles the wired components shared by the serve, ingest, query
// and mcp commands.
type app struct {
	cfg      *config.Config
	registry *registry.Registry
	manager  *index.Manager
	// search is the manager bounded by the configured search timeout;
	// read paths go through it, the pipeline writes through manager.
	search   *index.TimedSearcher
	pipeline *ingest.Pipeline
	rag      *rag.Service
}

// loadConfig loads and validates the config, providing a friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `clinrag init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildApp wires the registry, index, pipeline and RAG service.
func buildApp(cfg *config.Config) (*app, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	manager, err := index.NewManager(embedder, cfg.Retrieval.HybridAlpha)
	if err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}

	reg, err := registry.Open(filepath.Join(cfg.DataDir, "registry.db"))
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}

	conv := converter.New(cfg.PandocPath, cfg.ConvertTimeout())
	splitter := chunker.New(cfg.Chunking.MaxChunkSize, cfg.ChunkOverlap())
	pipeline := ingest.NewPipeline(reg, conv, manager, splitter, ingest.Options{
		Anonymize:   cfg.Anonymize,
		Concurrency: cfg.MaxConcurrency,
	})

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("creating provider: %w", err)
	}
	limited := llm.NewLimitedProvider(provider, cfg.Generation.MaxConcurrent)

	search := index.NewTimedSearcher(manager, cfg.SearchTimeout())
	ragSvc := rag.NewService(search, limited, rag.Options{
		Model:       cfg.Model,
		TopK:        cfg.Retrieval.TopK,
		TokenBudget: cfg.Generation.TokenBudget,
		MaxRetries:  cfg.Generation.MaxRetries,
		LLMTimeout:  cfg.LLMTimeout(),
	})

	return &app{
		cfg:      cfg,
		registry: reg,
		manager:  manager,
		search:   search,
		pipeline: pipeline,
		rag:      ragSvc,
	}, nil
}

func (a *app) close() {
	if err := a.registry.Close(); err != nil {
		log.Printf("closing registry: %v", err)
	}
}

// rebuildIndex repopulates the in-memory index from the registry's
// indexed documents. The registry is the source of truth across restarts.
func (a *app) rebuildIndex(ctx context.Context) error {
	docs, err := a.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	rebuilt := 0
	for _, doc := range docs {
		if doc.Status != registry.StatusIndexed {
			continue
		}
		if err := a.pipeline.Reindex(ctx, doc.ID); err != nil {
			return fmt.Errorf("rebuilding %s: %w", doc.ID, err)
		}
		rebuilt++
	}

	if verbose && rebuilt > 0 {
		fmt.Fprintf(os.Stderr, "rebuilt index for %d document(s)\n", rebuilt)
	}
	return nil
}

// buildEmbedder creates an embeddings.Embedder based on config.
func buildEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, cfg.EmbeddingModel), nil
	case config.ProviderOllama:
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return embeddings.NewCompatEmbedder(host+"/v1", cfg.EmbeddingModel), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
