package model

import (
	"testing"
)

func TestFact_ToValueTextWins(t *testing.T) {
	f := Fact{Text: "bonds are lower risk", Metadata: Value{"text": "shadowed", "topic": "risk"}}
	v := f.ToValue()
	if v["text"] != "bonds are lower risk" {
		t.Errorf("expected text field to win, got %v", v["text"])
	}
	if v["topic"] != "risk" {
		t.Errorf("expected metadata carried, got %v", v)
	}
	if f.Metadata["text"] != "shadowed" {
		t.Error("ToValue mutated the fact metadata")
	}
}

func TestFactFromResult(t *testing.T) {
	r := Result{Item: Item{Key: "k", Value: Value{"text": "hello", "source": "doc"}}, Score: 0.5, Ranked: true}
	f := FactFromResult(r)
	if f.Text != "hello" || f.Key != "k" || f.Score != 0.5 {
		t.Errorf("unexpected fact %+v", f)
	}
	if _, ok := f.Metadata["text"]; ok {
		t.Error("text should not be duplicated in metadata")
	}
	if f.Metadata["source"] != "doc" {
		t.Errorf("expected source metadata, got %v", f.Metadata)
	}
}

func TestEpisode_RoundTrip(t *testing.T) {
	e := Episode{Key: "e1", Situation: "s", Input: "i", Output: "o"}
	v := e.ToValue()
	if _, ok := v["feedback"]; ok {
		t.Error("empty feedback should be omitted")
	}
	got := EpisodeFromResult(Result{Item: Item{Key: "e1", Value: v}})
	if got.Situation != "s" || got.Input != "i" || got.Output != "o" || got.Feedback != "" {
		t.Errorf("unexpected episode %+v", got)
	}
}

func TestPolicyFromValue(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want int
	}{
		{"int", Value{"version": 3}, 3},
		{"float from json", Value{"version": float64(4)}, 4},
		{"fractional", Value{"version": 1.5}, 0},
		{"missing", Value{}, 0},
		{"string", Value{"version": "2"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PolicyFromValue(tt.v).Version; got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValueClone_Deep(t *testing.T) {
	v := Value{"nested": map[string]any{"a": 1}, "list": []any{"x"}}
	c := v.Clone()
	c["nested"].(map[string]any)["a"] = 2
	c["list"].([]any)[0] = "y"
	if v["nested"].(map[string]any)["a"] != 1 {
		t.Error("nested map aliased")
	}
	if v["list"].([]any)[0] != "x" {
		t.Error("nested slice aliased")
	}
}

func TestEnsureIDs(t *testing.T) {
	msgs := EnsureIDs([]Message{{Role: RoleUser, Content: "hi"}, User("there")})
	if msgs[0].ID == "" {
		t.Error("expected generated id")
	}
	if msgs[0].ID == msgs[1].ID {
		t.Error("expected distinct ids")
	}
}
