// Package memory implements the typed memory layers (profile, semantic,
// episodic, procedural) on top of a store.Store, and the Substrate that wires
// them together for one agent.
package memory

import (
	"context"
	"errors"

	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/store"
)

var (
	// ErrVersionConflict means a policy update lost the race too many times.
	// It wraps store.ErrRevisionConflict, so store.IsRetryable reports true.
	ErrVersionConflict = errors.New("policy version conflict")
	// ErrNoReflector is returned by ReflectAndUpdate when no ReflectFunc is set.
	ErrNoReflector = errors.New("no reflector configured")
)

// ReflectFunc proposes revised instructions from the current ones and feedback.
type ReflectFunc func(ctx context.Context, current, feedback string) (string, error)

// DefaultIndex embeds the "text" field of shared knowledge and of every user's
// facts and investment history, and the "situation" field of episodes.
// Profiles, preferences and instructions are never embedded.
func DefaultIndex() []store.IndexRule {
	return []store.IndexRule{
		{Prefix: namespace.Knowledge, Field: model.FieldText},
		{Suffix: namespace.Namespace{"facts"}, Field: model.FieldText},
		{Suffix: namespace.Namespace{"investment_history"}, Field: model.FieldText},
		{Prefix: namespace.Episodes, Field: model.FieldSituation},
	}
}
