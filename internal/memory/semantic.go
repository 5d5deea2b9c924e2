package memory

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/rcliao/layered-memory/internal/chunker"
	"github.com/rcliao/layered-memory/internal/embedding"
	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/store"
)

// Semantic stores facts and retrieves them by similarity to a query.
type Semantic struct {
	store  store.Store
	ns     namespace.Namespace
	metric embedding.Metric
}

// NewSemantic opens a fact layer on an arbitrary namespace.
func NewSemantic(s store.Store, ns namespace.Namespace) *Semantic {
	return &Semantic{store: s, ns: ns}
}

// NewKnowledge opens the shared investment knowledge base.
func NewKnowledge(s store.Store) *Semantic {
	return NewSemantic(s, namespace.Knowledge)
}

// NewFacts opens (userID, "facts").
func NewFacts(s store.Store, userID string) (*Semantic, error) {
	ns, err := namespace.Facts(userID)
	if err != nil {
		return nil, err
	}
	return NewSemantic(s, ns), nil
}

func (m *Semantic) Namespace() namespace.Namespace { return m.ns }

// WithMetric sets the similarity metric used by Search. Empty means cosine.
func (m *Semantic) WithMetric(metric embedding.Metric) *Semantic {
	m.metric = metric
	return m
}

// Store saves text with optional metadata. A "text" key in metadata is
// overwritten by text.
func (m *Semantic) Store(ctx context.Context, key, text string, metadata model.Value) error {
	f := model.Fact{Key: key, Text: text, Metadata: metadata}
	if _, err := m.store.Put(ctx, m.ns, key, f.ToValue()); err != nil {
		return fmt.Errorf("store fact %s: %w", key, err)
	}
	return nil
}

// Search returns up to limit facts ranked by similarity to query.
func (m *Semantic) Search(ctx context.Context, query string, limit int) ([]model.Fact, error) {
	return m.SearchFiltered(ctx, query, limit, nil)
}

// SearchFiltered is Search restricted to facts whose metadata matches filter.
func (m *Semantic) SearchFiltered(ctx context.Context, query string, limit int, filter map[string]any) ([]model.Fact, error) {
	results, err := m.store.Search(ctx, m.ns, store.SearchParams{
		Query:  query,
		Limit:  limit,
		Filter: filter,
		Metric: m.metric,
	})
	if err != nil {
		return nil, fmt.Errorf("search facts: %w", err)
	}
	facts := make([]model.Fact, len(results))
	for i, r := range results {
		facts[i] = model.FactFromResult(r)
	}
	return facts, nil
}

// Ingest splits a markdown document into chunks and stores each one as a
// fact keyed "<key>#<seq>". Chunk position and heading are kept as metadata
// alongside the caller's. Returns the number of chunks stored.
func (m *Semantic) Ingest(ctx context.Context, key, document string, opts chunker.Options, metadata model.Value) (int, error) {
	chunks := chunker.Split(document, opts)
	for _, c := range chunks {
		meta := metadata.Clone()
		if meta == nil {
			meta = model.Value{}
		}
		meta["source"] = key
		meta["chunk"] = c.Seq
		meta["start_line"] = c.StartLine
		meta["end_line"] = c.EndLine
		if c.Heading != "" {
			meta["heading"] = c.Heading
		}
		if err := m.Store(ctx, fmt.Sprintf("%s#%d", key, c.Seq), c.Text, meta); err != nil {
			return c.Seq, err
		}
	}
	return len(chunks), nil
}

// IngestFS ingests every file in fsys matching a doublestar pattern
// ("docs/**/*.md"). Each file is keyed by its path. Returns chunk counts per
// file; on error the counts cover the files ingested so far.
func (m *Semantic) IngestFS(ctx context.Context, fsys fs.FS, pattern string, opts chunker.Options, metadata model.Value) (map[string]int, error) {
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	counts := make(map[string]int, len(matches))
	for _, path := range matches {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return counts, fmt.Errorf("read %s: %w", path, err)
		}
		n, err := m.Ingest(ctx, path, string(data), opts, metadata)
		if err != nil {
			return counts, err
		}
		counts[path] = n
	}
	return counts, nil
}
