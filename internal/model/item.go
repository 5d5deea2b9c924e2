// Package model defines the core memory data types.
package model

import (
	"time"

	"github.com/rcliao/layered-memory/internal/namespace"
)

// Value is the structured payload of an item.
type Value map[string]any

// Item is the unit of storage.
type Item struct {
	ID        string              `json:"id"`
	Namespace namespace.Namespace `json:"namespace"`
	Key       string              `json:"key"`
	Value     Value               `json:"value"`
	Embedding []float32           `json:"embedding,omitempty"`
	Revision  uint64              `json:"revision"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Result is an item returned by a search. Score is only meaningful when Ranked.
type Result struct {
	Item
	Score  float64 `json:"score,omitempty"`
	Ranked bool    `json:"ranked"`
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	c := *it
	c.Namespace = append(namespace.Namespace(nil), it.Namespace...)
	c.Value = it.Value.Clone()
	if it.Embedding != nil {
		c.Embedding = append([]float32(nil), it.Embedding...)
	}
	return &c
}

// Clone deep-copies nested maps and slices.
func (v Value) Clone() Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	for k, x := range v {
		out[k] = cloneAny(x)
	}
	return out
}

// String returns the field as a string, or "" when missing or not a string.
func (v Value) String(field string) string {
	s, _ := v[field].(string)
	return s
}

func cloneAny(x any) any {
	switch t := x.(type) {
	case Value:
		return t.Clone()
	case map[string]any:
		return map[string]any(Value(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneAny(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return x
	}
}
