package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.Provider)
	}
	if cfg.Retrieval.TopK != 8 {
		t.Errorf("expected default top_k 8, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Chunking.MaxChunkSize != 1200 {
		t.Errorf("expected default max_chunk_size 1200, got %d", cfg.Chunking.MaxChunkSize)
	}
	if cfg.Generation.MaxConcurrent != 4 {
		t.Errorf("expected default max_concurrent 4, got %d", cfg.Generation.MaxConcurrent)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clinrag.yml")

	original := DefaultConfig()
	original.Provider = ProviderOllama
	original.Model = "llama3"
	original.Port = 9090
	original.Retrieval.TopK = 5
	original.Chunking.Overlap = 100

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.Port != 9090 {
		t.Errorf("port: got %d, want 9090", loaded.Port)
	}
	if loaded.Retrieval.TopK != 5 {
		t.Errorf("top_k: got %d, want 5", loaded.Retrieval.TopK)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CLINRAG_MODEL", "gpt-4o-mini")
	t.Setenv("CLINRAG_RETRIEVAL__TOP_K", "3")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("model: got %q, want env override", cfg.Model)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("top_k: got %d, want env override 3", cfg.Retrieval.TopK)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg.Provider = "mystery"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown provider")
	}

	cfg = DefaultConfig()
	cfg.Retrieval.HybridAlpha = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for hybrid_alpha out of range")
	}

	cfg = DefaultConfig()
	cfg.Chunking.Overlap = cfg.Chunking.MaxChunkSize
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for overlap >= max_chunk_size")
	}
}

func TestValidateMissingCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when OPENAI_API_KEY is unset")
	}

	// Ollama needs no credential.
	cfg.Provider = ProviderOllama
	if err := cfg.Validate(); err != nil {
		t.Errorf("ollama should not require a credential: %v", err)
	}
}

func TestChunkOverlapDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunking.Overlap = 0
	if got := cfg.ChunkOverlap(); got != cfg.Chunking.MaxChunkSize/5 {
		t.Errorf("expected overlap default of max/5, got %d", got)
	}
}
