// Package store provides the vector-indexed item store: an in-process engine
// and a SQLite-backed one with the same semantics.
package store

import (
	"context"
	"time"

	"github.com/rcliao/layered-memory/internal/embedding"
	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/observe"
)

// DefaultEmbedTimeout bounds a single embedding call.
const DefaultEmbedTimeout = 30 * time.Second

// SearchParams holds parameters for searching a namespace.
type SearchParams struct {
	// Query is the text to rank against. Empty means enumerate.
	Query string
	// Limit caps the result count. For enumeration, <= 0 means no cap.
	// For ranked queries, <= 0 returns nothing.
	Limit int
	// Filter keeps items whose value has every field equal to the given one.
	Filter map[string]any
	// Metric defaults to cosine.
	Metric embedding.Metric
}

// IndexRule declares which value field is embedded for namespaces that start
// with Prefix and end with Suffix. When several rules match, the one with the
// most segments in Prefix and Suffix combined wins.
type IndexRule struct {
	Prefix namespace.Namespace `yaml:"prefix" json:"prefix"`
	Suffix namespace.Namespace `yaml:"suffix" json:"suffix"`
	Field  string              `yaml:"field" json:"field"`
}

func (r IndexRule) matches(ns namespace.Namespace) bool {
	return ns.HasPrefix(r.Prefix) && ns.HasSuffix(r.Suffix)
}

// Options configures either engine.
type Options struct {
	Embedder     embedding.Embedder
	Index        []IndexRule
	EmbedTimeout time.Duration
	Observer     *observe.Observer
}

func (o Options) withDefaults() Options {
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = DefaultEmbedTimeout
	}
	if o.Observer == nil {
		o.Observer = observe.Nop()
	}
	return o
}

// Store defines the item storage interface.
type Store interface {
	// Put creates or fully replaces the item at (ns, key).
	Put(ctx context.Context, ns namespace.Namespace, key string, value model.Value) (*model.Item, error)

	// PutIf is Put guarded by the current revision. Revision 0 means the key
	// must be absent. A mismatch returns ErrRevisionConflict.
	PutIf(ctx context.Context, ns namespace.Namespace, key string, value model.Value, revision uint64) (*model.Item, error)

	// Get returns the item or ErrNotFound.
	Get(ctx context.Context, ns namespace.Namespace, key string) (*model.Item, error)

	// Search ranks or enumerates the items of one namespace.
	Search(ctx context.Context, ns namespace.Namespace, p SearchParams) ([]model.Result, error)

	// Delete removes the item. Deleting a missing key is not an error.
	Delete(ctx context.Context, ns namespace.Namespace, key string) error

	// ListNamespaces returns namespaces holding at least one item, sorted.
	ListNamespaces(ctx context.Context, prefix namespace.Namespace) ([]namespace.Namespace, error)

	// Close closes the store.
	Close() error
}
