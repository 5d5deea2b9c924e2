package store

import (
	"context"
	"fmt"

	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
)

// ExportAll returns every item under prefix (all items for a nil prefix),
// grouped by namespace and in insertion order within each.
func ExportAll(ctx context.Context, s Store, prefix namespace.Namespace) ([]model.Item, error) {
	spaces, err := s.ListNamespaces(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var items []model.Item
	for _, ns := range spaces {
		results, err := s.Search(ctx, ns, SearchParams{})
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", ns, err)
		}
		for _, r := range results {
			r.Item.Embedding = nil
			items = append(items, r.Item)
		}
	}
	return items, nil
}

// Import stores items from an export. Existing keys are replaced and
// embeddings are recomputed by the target store.
func Import(ctx context.Context, s Store, items []model.Item) (int, error) {
	imported := 0
	for _, it := range items {
		if _, err := s.Put(ctx, it.Namespace, it.Key, it.Value); err != nil {
			return imported, fmt.Errorf("import %s/%s: %w", it.Namespace, it.Key, err)
		}
		imported++
	}
	return imported, nil
}

// Keys returns the keys in ns whose values match filter, in insertion order.
func Keys(ctx context.Context, s Store, ns namespace.Namespace, filter map[string]any) ([]string, error) {
	results, err := s.Search(ctx, ns, SearchParams{Filter: filter})
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(results))
	for i, r := range results {
		keys[i] = r.Key
	}
	return keys, nil
}
