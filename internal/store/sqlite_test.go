package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
)

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath, Options{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	emb := newKeywordEmbedder("bonds", "stocks")
	opts := Options{Embedder: emb, Index: textIndex()}
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath, opts)
	if err != nil {
		t.Fatal(err)
	}
	s.Put(ctx, nsA, "first", model.Value{"text": "bonds", "n": 1})
	s.Put(ctx, nsA, "second", model.Value{"text": "stocks"})
	s.Close()

	s, err = NewSQLiteStore(dbPath, opts)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.Get(ctx, nsA, "first")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Embedding) != 2 || got.Embedding[0] != 1 {
		t.Errorf("embedding not persisted: %v", got.Embedding)
	}

	res, err := s.Search(ctx, nsA, SearchParams{Query: "stocks", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Key != "second" {
		t.Errorf("expected 'second', got %v", keys(res))
	}
}

func TestSQLite_NamespaceSegmentsWithSlash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := namespace.Namespace{"a/b", "c"}
	b := namespace.Namespace{"a", "b/c"}

	s.Put(ctx, a, "k", model.Value{"v": "a"})
	s.Put(ctx, b, "k", model.Value{"v": "b"})

	got, _ := s.Get(ctx, a, "k")
	if got.Value.String("v") != "a" {
		t.Errorf("segment boundaries were lost: %v", got.Value)
	}
	spaces, _ := s.ListNamespaces(ctx, nil)
	if len(spaces) != 2 {
		t.Errorf("expected 2 namespaces, got %v", spaces)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, namespace.Namespace{"ns1"}, "a", model.Value{"topic": "tax", "level": 1})
	s.Put(ctx, namespace.Namespace{"ns1"}, "b", model.Value{"topic": "bonds", "tags": []any{"x"}})
	s.Put(ctx, namespace.Namespace{"ns2"}, "c", model.Value{"topic": "tax"})

	stats, err := CollectStats(ctx, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 3 {
		t.Fatalf("expected 3 items, got %d", stats.TotalItems)
	}
	if len(stats.Namespaces) != 2 {
		t.Fatalf("expected 2 namespaces, got %d", len(stats.Namespaces))
	}
	if stats.DBSizeBytes == 0 {
		t.Fatal("expected non-zero db size")
	}
	ns1 := stats.Namespaces[0]
	if ns1.NS != "ns1" || ns1.Count != 2 {
		t.Fatalf("expected ns1 with 2 items first, got %+v", ns1)
	}
	if topics := ns1.Fields["topic"]; len(topics) != 2 || topics[0] != "bonds" {
		t.Errorf("expected sorted distinct topics, got %v", topics)
	}
	if tags, ok := ns1.Fields["tags"]; !ok || len(tags) != 0 {
		t.Errorf("expected non-scalar field listed without values, got %v", tags)
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	s1 := newTestStore(t)

	s1.Put(ctx, namespace.Namespace{"test"}, "a", model.Value{"text": "alpha"})
	s1.Put(ctx, namespace.Namespace{"test"}, "b", model.Value{"text": "beta"})
	s1.Put(ctx, namespace.Namespace{"other"}, "c", model.Value{"text": "gamma"})

	exported, err := ExportAll(ctx, s1, namespace.Namespace{"test"})
	if err != nil {
		t.Fatal(err)
	}
	if len(exported) != 2 {
		t.Fatalf("expected 2 exported, got %d", len(exported))
	}

	s2 := NewMemoryStore(Options{})
	n, err := Import(ctx, s2, exported)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 imported, got %d", n)
	}

	items, _ := s2.Search(ctx, namespace.Namespace{"test"}, SearchParams{})
	if got := keys(items); !equalKeys(got, []string{"a", "b"}) {
		t.Fatalf("expected a, b after import, got %v", got)
	}
}

func TestKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(Options{})
	s.Put(ctx, nsA, "a", model.Value{"topic": "tax"})
	s.Put(ctx, nsA, "b", model.Value{"topic": "bonds"})
	s.Put(ctx, nsA, "c", model.Value{"topic": "tax"})

	got, err := Keys(ctx, s, nsA, map[string]any{"topic": "tax"})
	if err != nil {
		t.Fatal(err)
	}
	if !equalKeys(got, []string{"a", "c"}) {
		t.Errorf("expected [a c], got %v", got)
	}
}
