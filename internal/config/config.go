// Package config loads layered-memory settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/layered-memory/internal/embedding"
	"github.com/rcliao/layered-memory/internal/llm"
	"github.com/rcliao/layered-memory/internal/memory"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/store"
)

// Backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ProviderNone disables a provider explicitly in a file or the environment.
const ProviderNone = "none"

// Log formats.
const (
	LogConsole = "console"
	LogJSON    = "json"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full set of settings.
type Config struct {
	Backend        string            `yaml:"backend"`
	DBPath         string            `yaml:"db"`
	Metric         string            `yaml:"metric"`
	EmbedTimeout   time.Duration     `yaml:"embed_timeout"`
	UpdateAttempts int               `yaml:"update_attempts"`
	Index          []store.IndexRule `yaml:"index"`
	Embed          Provider          `yaml:"embed"`
	LLM            Provider          `yaml:"llm"`
	Log            Log               `yaml:"log"`
}

// Provider configures an embedding or completion backend.
type Provider struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Dims      int    `yaml:"dims"`
	CacheSize int64  `yaml:"cache_size"`
}

type Log struct {
	Format  string `yaml:"format"`
	Verbose bool   `yaml:"verbose"`
}

// DefaultDBPath returns ~/.layered-memory/memory.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".layered-memory", "memory.db")
}

// Default returns a config that works offline: SQLite at DefaultDBPath and
// the hash embedder behind a small cache.
func Default() *Config {
	return &Config{
		Backend:        BackendSQLite,
		DBPath:         DefaultDBPath(),
		Metric:         string(embedding.Cosine),
		EmbedTimeout:   store.DefaultEmbedTimeout,
		UpdateAttempts: memory.DefaultUpdateAttempts,
		Index:          memory.DefaultIndex(),
		Embed:          Provider{Provider: embedding.ProviderHash, CacheSize: 1000},
		Log:            Log{Format: LogConsole},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment:
//
//	LAYERED_MEMORY_DB               database path
//	LAYERED_MEMORY_EMBED_PROVIDER   ollama | openai | gemini | hash | none
//	LAYERED_MEMORY_EMBED_MODEL      embedding model
//	LAYERED_MEMORY_EMBED_URL        embedding base URL
//	LAYERED_MEMORY_LLM_PROVIDER     openai | ollama | anthropic | gemini | none
//	LAYERED_MEMORY_LLM_MODEL        completion model
//	OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, OLLAMA_HOST
//
// API keys and OLLAMA_HOST only fill settings left empty, and only for the
// provider they belong to.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, name string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	set(&c.DBPath, "LAYERED_MEMORY_DB")
	set(&c.Embed.Provider, "LAYERED_MEMORY_EMBED_PROVIDER")
	set(&c.Embed.Model, "LAYERED_MEMORY_EMBED_MODEL")
	set(&c.Embed.URL, "LAYERED_MEMORY_EMBED_URL")
	set(&c.LLM.Provider, "LAYERED_MEMORY_LLM_PROVIDER")
	set(&c.LLM.Model, "LAYERED_MEMORY_LLM_MODEL")

	fill := func(p *Provider, provider string, dst *string, name string) {
		if p.Provider == provider && *dst == "" {
			set(dst, name)
		}
	}
	fill(&c.Embed, embedding.ProviderOpenAI, &c.Embed.APIKey, "OPENAI_API_KEY")
	fill(&c.Embed, embedding.ProviderGemini, &c.Embed.APIKey, "GEMINI_API_KEY")
	fill(&c.Embed, embedding.ProviderOllama, &c.Embed.URL, "OLLAMA_HOST")
	fill(&c.LLM, llm.ProviderOpenAI, &c.LLM.APIKey, "OPENAI_API_KEY")
	fill(&c.LLM, llm.ProviderAnthropic, &c.LLM.APIKey, "ANTHROPIC_API_KEY")
	fill(&c.LLM, llm.ProviderGemini, &c.LLM.APIKey, "GEMINI_API_KEY")
	fill(&c.LLM, llm.ProviderOllama, &c.LLM.URL, "OLLAMA_HOST")
}

// Validate rejects unknown backends, metrics, providers and log formats.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("%w: sqlite backend needs a db path", ErrInvalid)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}
	if _, err := embedding.ParseMetric(c.Metric); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Embed.Provider {
	case "", ProviderNone, embedding.ProviderHash, embedding.ProviderOllama, embedding.ProviderOpenAI, embedding.ProviderGemini:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalid, c.Embed.Provider)
	}
	switch c.LLM.Provider {
	case "", ProviderNone, llm.ProviderOpenAI, llm.ProviderOllama, llm.ProviderAnthropic, llm.ProviderGemini:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalid, c.LLM.Provider)
	}
	switch c.Log.Format {
	case LogConsole, LogJSON:
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	if c.EmbedTimeout < 0 || c.UpdateAttempts < 0 || c.Embed.CacheSize < 0 {
		return fmt.Errorf("%w: negative timeout, attempts or cache size", ErrInvalid)
	}
	for i, r := range c.Index {
		if r.Field == "" {
			return fmt.Errorf("%w: index rule %d has no field", ErrInvalid, i)
		}
		for _, part := range []namespace.Namespace{r.Prefix, r.Suffix} {
			if len(part) == 0 {
				continue
			}
			if err := part.Validate(); err != nil {
				return fmt.Errorf("%w: index rule %d: %w", ErrInvalid, i, err)
			}
		}
	}
	return nil
}

// EmbedSettings converts the embed section for embedding.New.
func (c *Config) EmbedSettings() embedding.Settings {
	return embedding.Settings{
		Provider:  orNone(c.Embed.Provider),
		Model:     c.Embed.Model,
		BaseURL:   c.Embed.URL,
		APIKey:    c.Embed.APIKey,
		Dims:      c.Embed.Dims,
		CacheSize: c.Embed.CacheSize,
	}
}

// LLMSettings converts the llm section for llm.New.
func (c *Config) LLMSettings() llm.Settings {
	return llm.Settings{
		Provider: orNone(c.LLM.Provider),
		Model:    c.LLM.Model,
		BaseURL:  c.LLM.URL,
		APIKey:   c.LLM.APIKey,
	}
}

// SearchMetric returns the parsed metric. Call after Validate.
func (c *Config) SearchMetric() embedding.Metric {
	m, _ := embedding.ParseMetric(c.Metric)
	return m
}

func orNone(p string) string {
	if p == ProviderNone {
		return ""
	}
	return p
}
