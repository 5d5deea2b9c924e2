package model

import "math"

// Kind identifies the shape an adapter expects in an item's value.
type Kind string

const (
	KindProfile Kind = "profile"
	KindFact    Kind = "semantic"
	KindEpisode Kind = "episodic"
	KindPolicy  Kind = "procedural"
)

// ValidKinds are the allowed memory kinds.
var ValidKinds = map[Kind]bool{
	KindProfile: true,
	KindFact:    true,
	KindEpisode: true,
	KindPolicy:  true,
}

// Record is implemented by the typed memory records.
type Record interface {
	Kind() Kind
	ToValue() Value
}

// Field names used in stored values.
const (
	FieldText         = "text"
	FieldSituation    = "situation"
	FieldInput        = "input"
	FieldOutput       = "output"
	FieldFeedback     = "feedback"
	FieldInstructions = "instructions"
	FieldVersion      = "version"
)

// Fact is a semantic memory: a text plus free-form metadata.
type Fact struct {
	Key      string  `json:"key"`
	Text     string  `json:"text"`
	Metadata Value   `json:"metadata,omitempty"`
	Score    float64 `json:"score"`
}

func (Fact) Kind() Kind { return KindFact }

// ToValue merges metadata with the text field; text wins on collision.
func (f Fact) ToValue() Value {
	v := f.Metadata.Clone()
	if v == nil {
		v = Value{}
	}
	v[FieldText] = f.Text
	return v
}

// FactFromResult splits a search result back into text and metadata.
func FactFromResult(r Result) Fact {
	meta := Value{}
	for k, x := range r.Value {
		if k != FieldText {
			meta[k] = cloneAny(x)
		}
	}
	return Fact{Key: r.Key, Text: r.Value.String(FieldText), Metadata: meta, Score: r.Score}
}

// Episode is a past interaction kept for few-shot prompting.
type Episode struct {
	Key       string  `json:"key"`
	Situation string  `json:"situation"`
	Input     string  `json:"input"`
	Output    string  `json:"output"`
	Feedback  string  `json:"feedback,omitempty"`
	Score     float64 `json:"score"`
}

func (Episode) Kind() Kind { return KindEpisode }

func (e Episode) ToValue() Value {
	v := Value{
		FieldSituation: e.Situation,
		FieldInput:     e.Input,
		FieldOutput:    e.Output,
	}
	if e.Feedback != "" {
		v[FieldFeedback] = e.Feedback
	}
	return v
}

// EpisodeFromResult decodes an episode; missing fields become empty strings.
func EpisodeFromResult(r Result) Episode {
	return Episode{
		Key:       r.Key,
		Situation: r.Value.String(FieldSituation),
		Input:     r.Value.String(FieldInput),
		Output:    r.Value.String(FieldOutput),
		Feedback:  r.Value.String(FieldFeedback),
		Score:     r.Score,
	}
}

// Policy is the versioned instruction record revised from feedback.
type Policy struct {
	Instructions string `json:"instructions"`
	Version      int    `json:"version"`
}

func (Policy) Kind() Kind { return KindPolicy }

func (p Policy) ToValue() Value {
	return Value{
		FieldInstructions: p.Instructions,
		FieldVersion:      p.Version,
	}
}

// PolicyFromValue decodes a policy. Versions decoded from JSON arrive as
// float64 and are accepted when integral.
func PolicyFromValue(v Value) Policy {
	return Policy{
		Instructions: v.String(FieldInstructions),
		Version:      intField(v[FieldVersion]),
	}
}

func intField(x any) int {
	switch n := x.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case int32:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
	}
	return 0
}
