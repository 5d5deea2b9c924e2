package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/ollama/ollama/api"
)

type Ollama struct {
	client *api.Client
	model  string
}

func NewOllama(baseURL, model string) (*Ollama, error) {
	if model == "" {
		model = "llama3.2"
	}
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	uri, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	return &Ollama{client: api.NewClient(uri, http.DefaultClient), model: model}, nil
}

func (p *Ollama) Name() string { return "ollama" }

func (p *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   new(bool), // false
	}
	var out strings.Builder
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return out.String(), nil
}
