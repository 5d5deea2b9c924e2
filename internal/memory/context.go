package memory

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/prompt"
)

// FallbackInstructions is used when no policy has been stored.
const FallbackInstructions = "You are a helpful investment advisory assistant."

// Defaults for BuildContext.
const (
	DefaultContextBudget = 4000 // tokens
	contextFacts         = 3
	contextEpisodes      = 2
	episodeOutputPreview = 200
	minExcerpt           = 100 // chars
)

// ContextSection is one packed part of the context block.
type ContextSection struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Excerpt bool   `json:"excerpt,omitempty"`
}

// ContextResult is the assembled memory context for one turn.
type ContextResult struct {
	Budget   int              `json:"budget"`
	Used     int              `json:"used"`
	Version  int              `json:"version"`
	Sections []ContextSection `json:"sections"`
	Text     string           `json:"text"`
}

var contextTemplate = []struct {
	name    string
	section prompt.Section
}{
	{"instructions", prompt.Section{Text: "{instructions}"}},
	{"profile", prompt.Section{When: prompt.When("profile"), Text: "\n=== USER PROFILE ===\n{profile}"}},
	{"knowledge", prompt.Section{When: prompt.When("facts"), Text: "\n=== RELEVANT INVESTMENT KNOWLEDGE ===\n{facts}"}},
	{"episodes", prompt.Section{When: prompt.When("episodes"), Text: "\n=== SUCCESSFUL PAST INTERACTIONS ===\n{episodes}"}},
}

// BuildContext gathers instructions, the user's profile and preferences,
// the most relevant knowledge and the most similar past episodes for
// message, and packs them in that order into budget tokens (about four
// characters each). A section that does not fit is cut to an excerpt if at
// least minExcerpt characters remain; packing stops after it.
func (s *Substrate) BuildContext(ctx context.Context, userID, message string, budget int) (*ContextResult, error) {
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	charBudget := budget * 4

	policy, err := s.Procedural.Get(ctx)
	if err != nil {
		return nil, err
	}
	instructions := policy.Instructions
	if instructions == "" {
		instructions = FallbackInstructions
	}

	combined, err := s.combinedProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var facts []model.Fact
	var episodes []model.Episode
	if message != "" {
		if facts, err = s.Knowledge.Search(ctx, message, contextFacts); err != nil {
			return nil, err
		}
		if episodes, err = s.Episodes.FindSimilar(ctx, message, contextEpisodes); err != nil {
			return nil, err
		}
	}

	vars := map[string]any{
		"instructions": instructions,
		"profile":      "",
		"facts":        formatFacts(facts),
		"episodes":     formatEpisodePreviews(episodes),
	}
	if len(combined) > 0 {
		vars["profile"] = FormatProfile(combined)
	}

	result := &ContextResult{Budget: budget, Version: policy.Version, Sections: []ContextSection{}}
	used := 0
	var parts []string
	for _, t := range contextTemplate {
		text, err := prompt.Template{Sections: []prompt.Section{t.section}}.Render(vars)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", t.name, err)
		}
		if text == "" {
			continue
		}
		if used+len(text) <= charBudget {
			result.Sections = append(result.Sections, ContextSection{Name: t.name, Content: text})
			parts = append(parts, text)
			used += len(text)
			continue
		}
		if remaining := charBudget - used; remaining >= minExcerpt {
			excerpt := truncate(text, remaining) + "..."
			result.Sections = append(result.Sections, ContextSection{Name: t.name, Content: excerpt, Excerpt: true})
			parts = append(parts, excerpt)
			used += len(excerpt)
		}
		break
	}

	result.Text = strings.Join(parts, "\n")
	result.Used = used / 4
	return result, nil
}

// combinedProfile merges profile and preferences; preferences win on key
// collisions.
func (s *Substrate) combinedProfile(ctx context.Context, userID string) (map[string]model.Value, error) {
	if userID == "" {
		return nil, nil
	}
	prof, err := s.Profile(userID)
	if err != nil {
		return nil, err
	}
	prefs, err := s.Preferences(userID)
	if err != nil {
		return nil, err
	}
	combined, err := prof.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	more, err := prefs.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range more {
		combined[k] = v
	}
	return combined, nil
}

func formatFacts(facts []model.Fact) string {
	lines := make([]string, len(facts))
	for i, f := range facts {
		lines[i] = "- " + f.Text
	}
	return strings.Join(lines, "\n")
}

func formatEpisodePreviews(episodes []model.Episode) string {
	lines := make([]string, len(episodes))
	for i, ep := range episodes {
		out := truncate(ep.Output, episodeOutputPreview)
		lines[i] = fmt.Sprintf("Example %d:\n  User: %s\n  Assistant: %s...", i+1, ep.Input, out)
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
