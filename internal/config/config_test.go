package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/layered-memory/internal/embedding"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/store"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.EmbedSettings().Provider != embedding.ProviderHash {
		t.Errorf("expected offline hash embedder by default, got %q", cfg.Embed.Provider)
	}
	if cfg.LLMSettings().Provider != "" {
		t.Errorf("expected no llm by default, got %q", cfg.LLM.Provider)
	}
}

func TestLoad_File(t *testing.T) {
	for _, k := range []string{"LAYERED_MEMORY_EMBED_PROVIDER", "LAYERED_MEMORY_LLM_PROVIDER", "LAYERED_MEMORY_LLM_MODEL"} {
		t.Setenv(k, "")
	}
	path := writeConfig(t, `
backend: memory
metric: manhattan
embed_timeout: 5s
update_attempts: 3
index:
  - field: text
  - prefix: [agent, episodes]
    field: situation
embed:
  provider: none
llm:
  provider: ollama
  model: llama3.2
log:
  format: json
  verbose: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendMemory || cfg.SearchMetric() != embedding.Manhattan {
		t.Errorf("unexpected backend/metric: %s/%s", cfg.Backend, cfg.Metric)
	}
	if cfg.EmbedTimeout != 5*time.Second || cfg.UpdateAttempts != 3 {
		t.Errorf("unexpected timeout/attempts: %v/%d", cfg.EmbedTimeout, cfg.UpdateAttempts)
	}
	if len(cfg.Index) != 2 || !cfg.Index[1].Prefix.Equal(namespace.Episodes) {
		t.Errorf("unexpected index rules: %+v", cfg.Index)
	}
	if cfg.EmbedSettings().Provider != "" {
		t.Errorf("none should disable embeddings, got %q", cfg.EmbedSettings().Provider)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3.2" {
		t.Errorf("unexpected llm: %+v", cfg.LLM)
	}
	if cfg.Log.Format != LogJSON || !cfg.Log.Verbose {
		t.Errorf("unexpected log: %+v", cfg.Log)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, "backend: postgres\n")
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LAYERED_MEMORY_DB":             "/tmp/x.db",
		"LAYERED_MEMORY_EMBED_PROVIDER": "openai",
		"LAYERED_MEMORY_LLM_PROVIDER":   "anthropic",
		"LAYERED_MEMORY_LLM_MODEL":      "claude-3-5-haiku-latest",
		"OPENAI_API_KEY":                "sk-openai",
		"ANTHROPIC_API_KEY":             "sk-anthropic",
		"OLLAMA_HOST":                   "http://ollama:11434",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.ApplyEnv(lookup)

	if cfg.DBPath != "/tmp/x.db" {
		t.Errorf("db = %q", cfg.DBPath)
	}
	if cfg.Embed.Provider != "openai" || cfg.Embed.APIKey != "sk-openai" {
		t.Errorf("embed = %+v", cfg.Embed)
	}
	if cfg.Embed.URL != "" {
		t.Errorf("OLLAMA_HOST should not apply to openai embeddings, got %q", cfg.Embed.URL)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.APIKey != "sk-anthropic" || cfg.LLM.Model != "claude-3-5-haiku-latest" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
}

func TestApplyEnv_KeepsExplicitKeys(t *testing.T) {
	cfg := Default()
	cfg.LLM = Provider{Provider: "openai", APIKey: "from-file"}
	cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "OPENAI_API_KEY" {
			return "from-env", true
		}
		return "", false
	})
	if cfg.LLM.APIKey != "from-file" {
		t.Errorf("env key replaced explicit key: %q", cfg.LLM.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "redis" }},
		{"sqlite without path", func(c *Config) { c.DBPath = "" }},
		{"unknown metric", func(c *Config) { c.Metric = "jaccard" }},
		{"unknown embed provider", func(c *Config) { c.Embed.Provider = "cohere" }},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "gemini" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative attempts", func(c *Config) { c.UpdateAttempts = -1 }},
		{"index rule without field", func(c *Config) { c.Index = append(c.Index, store.IndexRule{}) }},
		{"index rule with empty segment", func(c *Config) { c.Index = append(c.Index, store.IndexRule{Prefix: namespace.Namespace{"a", ""}, Field: "text"}) }},
		{"index rule with empty suffix segment", func(c *Config) { c.Index = append(c.Index, store.IndexRule{Suffix: namespace.Namespace{""}, Field: "text"}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
