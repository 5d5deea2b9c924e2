// Package embedding provides a pluggable interface for text embedding providers.
package embedding

import (
	"context"
	"fmt"
	"os"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// Provider names accepted by New.
const (
	ProviderNone   = ""
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
	ProviderGemini = "gemini"
)

// Settings selects and configures a provider.
type Settings struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	Dims      int
	CacheSize int64
}

// New builds an embedder from settings. Provider "" returns nil (embeddings
// disabled). A positive CacheSize wraps the provider in a CachedEmbedder.
func New(s Settings) (Embedder, error) {
	var e Embedder
	switch s.Provider {
	case ProviderNone:
		return nil, nil
	case ProviderOllama:
		model := s.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		oe, err := NewOllamaEmbedder(s.BaseURL, model)
		if err != nil {
			return nil, err
		}
		e = oe
	case ProviderOpenAI:
		e = NewOpenAIEmbedder(s.BaseURL, s.APIKey, s.Model, s.Dims)
	case ProviderGemini:
		key := s.APIKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		ge, err := NewGeminiEmbedder(context.Background(), key, s.Model)
		if err != nil {
			return nil, err
		}
		e = ge
	case ProviderHash:
		e = NewHashEmbedder(s.Dims)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
	}
	if s.CacheSize > 0 {
		return NewCachedEmbedder(e, s.CacheSize)
	}
	return e, nil
}

// NewFromEnv creates an embedder from environment variables.
// LAYERED_MEMORY_EMBED_PROVIDER: "ollama" | "openai" | "gemini" | "hash" | "" (disabled)
// LAYERED_MEMORY_EMBED_MODEL: model name
// LAYERED_MEMORY_EMBED_URL: base URL override
// OPENAI_API_KEY, GEMINI_API_KEY: for the hosted providers
func NewFromEnv() (Embedder, error) {
	return New(Settings{
		Provider: os.Getenv("LAYERED_MEMORY_EMBED_PROVIDER"),
		Model:    os.Getenv("LAYERED_MEMORY_EMBED_MODEL"),
		BaseURL:  os.Getenv("LAYERED_MEMORY_EMBED_URL"),
		APIKey:   envKey(os.Getenv("LAYERED_MEMORY_EMBED_PROVIDER")),
	})
}

func envKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}
