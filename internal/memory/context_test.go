package memory

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rcliao/layered-memory/internal/model"
)

func TestBuildContext_FallbackInstructions(t *testing.T) {
	sub := newTestSubstrate(t, Options{})
	res, err := sub.BuildContext(context.Background(), "", "", 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.Text != FallbackInstructions {
		t.Errorf("got %q", res.Text)
	}
	if res.Budget != DefaultContextBudget || res.Version != 0 {
		t.Errorf("unexpected budget/version: %d/%d", res.Budget, res.Version)
	}
	if len(res.Sections) != 1 || res.Sections[0].Name != "instructions" {
		t.Errorf("unexpected sections: %+v", res.Sections)
	}
}

func TestBuildContext_ProfileMergesPreferences(t *testing.T) {
	sub := newTestSubstrate(t, Options{})
	ctx := context.Background()
	if _, err := sub.Seed(ctx); err != nil {
		t.Fatal(err)
	}
	prof, _ := sub.Profile("user-1")
	prefs, _ := sub.Preferences("user-1")
	prof.Set(ctx, "personal_info", model.Value{"name": "Ada", "age": 41})
	prof.Set(ctx, "risk", model.Value{"level": "high"})
	prefs.Set(ctx, "risk", model.Value{"level": "low"})

	res, err := sub.BuildContext(ctx, "user-1", "", 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := DefaultInstructions + "\n" +
		"\n=== USER PROFILE ===\n" +
		"- Personal Info: age: 41, name: Ada\n- Risk: level: low"
	if res.Text != want {
		t.Errorf("got:\n%s\nwant:\n%s", res.Text, want)
	}
	if res.Version != 1 {
		t.Errorf("expected policy version 1, got %d", res.Version)
	}
}

func TestBuildContext_KnowledgeAndEpisodes(t *testing.T) {
	sub := newTestSubstrate(t, Options{})
	ctx := context.Background()
	if _, err := sub.Seed(ctx); err != nil {
		t.Fatal(err)
	}
	sub.Knowledge.Store(ctx, "k1", "Bond ladders reduce interest rate risk for retirement income", nil)
	sub.Knowledge.Store(ctx, "k2", "Index funds diversify stock exposure cheaply", nil)
	sub.Knowledge.Store(ctx, "k3", "Market crashes have historically recovered within years", nil)
	sub.Knowledge.Store(ctx, "k4", "Crypto is volatile", nil)

	res, err := sub.BuildContext(ctx, "user-1", "retirement market crash", 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	names := make([]string, len(res.Sections))
	for i, s := range res.Sections {
		names[i] = s.Name
	}
	if strings.Join(names, ",") != "instructions,knowledge,episodes" {
		t.Fatalf("unexpected sections: %v", names)
	}

	knowledge := res.Sections[1].Content
	want := "\n=== RELEVANT INVESTMENT KNOWLEDGE ===\n" +
		"- Market crashes have historically recovered within years\n" +
		"- Bond ladders reduce interest rate risk for retirement income\n" +
		"- Index funds diversify stock exposure cheaply"
	if knowledge != want {
		t.Errorf("knowledge section:\n%s", knowledge)
	}

	episodes := res.Sections[2].Content
	first := strings.Index(episodes, SampleEpisodes[1].Input)
	second := strings.Index(episodes, SampleEpisodes[0].Input)
	if first < 0 || second < 0 || first > second {
		t.Errorf("expected episode_1 before episode_0:\n%s", episodes)
	}
	preview := "  Assistant: " + SampleEpisodes[1].Output[:episodeOutputPreview] + "..."
	if !strings.Contains(episodes, preview) {
		t.Errorf("expected truncated output preview in:\n%s", episodes)
	}
}

func TestBuildContext_Budget(t *testing.T) {
	sub := newTestSubstrate(t, Options{})
	ctx := context.Background()
	if _, err := sub.Seed(ctx); err != nil {
		t.Fatal(err)
	}

	res, err := sub.BuildContext(ctx, "", "", 30)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(res.Sections) != 1 || !res.Sections[0].Excerpt {
		t.Fatalf("expected one excerpt section, got %+v", res.Sections)
	}
	if want := DefaultInstructions[:120] + "..."; res.Text != want {
		t.Errorf("got %q, want %q", res.Text, want)
	}
	if res.Used != 30 {
		t.Errorf("used = %d, want 30", res.Used)
	}

	// Too little room left for an excerpt.
	res, err = sub.BuildContext(ctx, "", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Sections) != 0 || res.Text != "" || res.Used != 0 {
		t.Errorf("expected empty context, got %+v", res)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"aéb", 2, "a"},
		{"aéb", 3, "aé"},
		{"日本", 4, "日"},
		{"日本", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFormatEpisodePreviews_MultibyteOutput(t *testing.T) {
	out := "a" + strings.Repeat("€", 100)
	got := formatEpisodePreviews([]model.Episode{{Input: "q", Output: out}})
	if !utf8.ValidString(got) {
		t.Fatalf("preview is not valid UTF-8: %q", got)
	}
	want := "Example 1:\n  User: q\n  Assistant: a" + strings.Repeat("€", 66) + "..."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
