package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderOpenAI,
		Model:          "gpt-4o",
		EmbeddingModel: "text-embedding-3-small",
		Port:           8080,
		DataDir:        "data",
		PandocPath:     "pandoc",
		Anonymize:      true,
		Chunking: ChunkingConfig{
			MaxChunkSize: 1200,
			Overlap:      240,
		},
		Retrieval: RetrievalConfig{
			TopK:        8,
			HybridAlpha: 0.7,
		},
		Generation: GenerationConfig{
			TokenBudget:   3000,
			MaxRetries:    4,
			MaxConcurrent: 4,
		},
		Timeouts: TimeoutConfig{
			ConvertSeconds: 30,
			SearchSeconds:  10,
			LLMSeconds:     60,
		},
		MaxConcurrency: 4,
	}
}

// ConvertTimeout returns the conversion subprocess timeout as a duration.
func (c *Config) ConvertTimeout() time.Duration {
	return time.Duration(c.Timeouts.ConvertSeconds) * time.Second
}

// SearchTimeout returns the retrieval timeout as a duration.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Timeouts.SearchSeconds) * time.Second
}

// LLMTimeout returns the chat-completion timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.Timeouts.LLMSeconds) * time.Second
}

// ChunkOverlap returns the configured overlap, defaulting to a fifth of
// the chunk size when unset.
func (c *Config) ChunkOverlap() int {
	if c.Chunking.Overlap > 0 {
		return c.Chunking.Overlap
	}
	return c.Chunking.MaxChunkSize / 5
}
