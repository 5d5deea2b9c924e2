// Package llm adapts chat-completion providers to the summarizer and
// reflector hooks used by the memory layers.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/prompt"
)

// Completer sends one prompt and returns the model's text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Settings selects and configures a provider.
type Settings struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// New builds a Completer. An empty provider returns nil.
func New(s Settings) (Completer, error) {
	var (
		c   Completer
		err error
	)
	switch s.Provider {
	case "":
		return nil, nil
	case ProviderOpenAI:
		key := s.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		var p *OpenAI
		if p, err = NewOpenAI(key, s.BaseURL, s.Model); err == nil {
			c = p
		}
	case ProviderOllama:
		var p *Ollama
		if p, err = NewOllama(s.BaseURL, s.Model); err == nil {
			c = p
		}
	case ProviderAnthropic:
		key := s.APIKey
		if key == "" {
			key = os.Getenv("ANTHROPIC_API_KEY")
		}
		var p *Anthropic
		if p, err = NewAnthropic(key, s.Model); err == nil {
			c = p
		}
	case ProviderGemini:
		key := s.APIKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		var p *Gemini
		if p, err = NewGemini(context.Background(), key, s.Model); err == nil {
			c = p
		}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", s.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Provider, err)
	}
	return c, nil
}

// summaryTruncate bounds each message quoted into the summary prompt.
const summaryTruncate = 300

// SummaryPrompt renders old messages into the summarization request.
func SummaryPrompt(old []model.Message) string {
	lines := make([]string, len(old))
	for i, m := range old {
		content := m.Content
		if len(content) > summaryTruncate {
			cut := summaryTruncate
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut] + "..."
		}
		lines[i] = roleLabel(m.Role) + ": " + content
	}
	return "Summarize this conversation history in 2-3 sentences,\n" +
		"capturing the key topics discussed, any important decisions made, and user preferences revealed:\n\n" +
		strings.Join(lines, "\n")
}

func roleLabel(role string) string {
	switch role {
	case model.RoleUser:
		return "Human"
	case model.RoleAssistant:
		return "AI"
	case model.RoleSystem:
		return "System"
	case model.RoleTool:
		return "Tool"
	}
	return role
}

// ReflectionPrompt asks for revised instructions given feedback.
func ReflectionPrompt(current, feedback string) string {
	return "You are improving an AI assistant's instructions based on user feedback.\n\n" +
		"Current Instructions:\n" + current + "\n\n" +
		"User Feedback:\n" + feedback + "\n\n" +
		"Based on this feedback, provide improved instructions. Keep the same general format but incorporate the feedback.\n" +
		"Only output the new instructions, nothing else."
}

// Summarizer adapts c to condense.SummarizeFunc.
func Summarizer(c Completer) func(ctx context.Context, old []model.Message) (string, error) {
	return func(ctx context.Context, old []model.Message) (string, error) {
		out, err := c.Complete(ctx, SummaryPrompt(old))
		if err != nil {
			return "", fmt.Errorf("%s summarize: %w", c.Name(), err)
		}
		return strings.TrimSpace(out), nil
	}
}

// Topics are the investment areas ExtractTopics recognizes.
var Topics = []string{
	"market_outlook",
	"portfolio_strategy",
	"risk_management",
	"performance",
	"alternative_investments",
	"asset_allocation",
	"general",
}

var topicsPrompt = prompt.Text("Analyze this message and identify which investment topics it relates to.\n" +
	"Return only the topic names from this list, separated by commas:\n{topics}").
	Extend("Message: {message}\n\nTopics:", map[string]any{"topics": strings.Join(Topics, ", ")})

// ExtractTopics asks c which of Topics the message relates to. Unknown names
// in the reply are dropped.
func ExtractTopics(ctx context.Context, c Completer, message string) ([]string, error) {
	p, err := topicsPrompt.Render(map[string]any{"message": message})
	if err != nil {
		return nil, err
	}
	out, err := c.Complete(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s topics: %w", c.Name(), err)
	}
	known := make(map[string]bool, len(Topics))
	for _, t := range Topics {
		known[t] = true
	}
	var topics []string
	for _, part := range strings.Split(out, ",") {
		t := strings.ToLower(strings.TrimSpace(part))
		if known[t] {
			topics = append(topics, t)
		}
	}
	return topics, nil
}

// Reflector adapts c to memory.ReflectFunc.
func Reflector(c Completer) func(ctx context.Context, current, feedback string) (string, error) {
	return func(ctx context.Context, current, feedback string) (string, error) {
		out, err := c.Complete(ctx, ReflectionPrompt(current, feedback))
		if err != nil {
			return "", fmt.Errorf("%s reflect: %w", c.Name(), err)
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", fmt.Errorf("%s reflect: empty reply", c.Name())
		}
		return out, nil
	}
}
