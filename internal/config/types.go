package config

// ProviderType identifies a chat-completion provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level clinrag configuration, corresponding to clinrag.yml.
type Config struct {
	Provider       ProviderType `yaml:"provider" koanf:"provider"`
	Model          string       `yaml:"model" koanf:"model"`
	EmbeddingModel string       `yaml:"embedding_model" koanf:"embedding_model"`

	Port    int    `yaml:"port" koanf:"port"`
	DataDir string `yaml:"data_dir" koanf:"data_dir"`

	// PandocPath is the document conversion binary invoked per document.
	PandocPath string `yaml:"pandoc_path" koanf:"pandoc_path"`
	Anonymize  bool   `yaml:"anonymize" koanf:"anonymize"`

	Chunking   ChunkingConfig   `yaml:"chunking" koanf:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" koanf:"retrieval"`
	Generation GenerationConfig `yaml:"generation" koanf:"generation"`
	Timeouts   TimeoutConfig    `yaml:"timeouts" koanf:"timeouts"`

	MaxConcurrency int `yaml:"max_concurrency" koanf:"max_concurrency"`
}

// ChunkingConfig controls how normalized text is split before indexing.
type ChunkingConfig struct {
	MaxChunkSize int `yaml:"max_chunk_size" koanf:"max_chunk_size"`
	// Overlap is the number of runes shared between consecutive chunks.
	// Zero means MaxChunkSize/5.
	Overlap int `yaml:"overlap" koanf:"overlap"`
}

// RetrievalConfig controls hybrid search behaviour.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" koanf:"top_k"`
	// HybridAlpha weights vector similarity against lexical score.
	// 1.0 is pure vector, 0.0 is pure lexical.
	HybridAlpha float64 `yaml:"hybrid_alpha" koanf:"hybrid_alpha"`
}

// GenerationConfig controls the answer synthesis call.
type GenerationConfig struct {
	// TokenBudget caps the prompt context assembled from retrieved chunks.
	TokenBudget   int `yaml:"token_budget" koanf:"token_budget"`
	MaxRetries    int `yaml:"max_retries" koanf:"max_retries"`
	MaxConcurrent int `yaml:"max_concurrent" koanf:"max_concurrent"`
}

// TimeoutConfig holds per-call timeouts for external dependencies, in seconds.
type TimeoutConfig struct {
	ConvertSeconds int `yaml:"convert_seconds" koanf:"convert_seconds"`
	SearchSeconds  int `yaml:"search_seconds" koanf:"search_seconds"`
	LLMSeconds     int `yaml:"llm_seconds" koanf:"llm_seconds"`
}
