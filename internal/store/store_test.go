package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rcliao/layered-memory/internal/embedding"
	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
)

// keywordEmbedder maps each vocabulary word to one axis.
type keywordEmbedder struct {
	vocab []string

	mu    sync.Mutex
	calls int
	fail  error
	delay time.Duration
}

func newKeywordEmbedder(words ...string) *keywordEmbedder {
	return &keywordEmbedder{vocab: words}
}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	k.mu.Lock()
	k.calls++
	fail, delay := k.fail, k.delay
	k.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}
	vec := make(embedding.Vector, len(k.vocab))
	lower := strings.ToLower(text)
	for i, w := range k.vocab {
		vec[i] = float32(strings.Count(lower, w))
	}
	return vec, nil
}

func (k *keywordEmbedder) Dims() int { return len(k.vocab) }

func (k *keywordEmbedder) setFail(err error) {
	k.mu.Lock()
	k.fail = err
	k.mu.Unlock()
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), Options{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type engine struct {
	name string
	open func(t *testing.T, opts Options) Store
}

var engines = []engine{
	{"memory", func(t *testing.T, opts Options) Store {
		return NewMemoryStore(opts)
	}},
	{"sqlite", func(t *testing.T, opts Options) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), opts)
		if err != nil {
			t.Fatalf("create store: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

func forEachEngine(t *testing.T, opts Options, fn func(t *testing.T, s Store)) {
	for _, e := range engines {
		t.Run(e.name, func(t *testing.T) {
			fn(t, e.open(t, opts))
		})
	}
}

func textIndex() []IndexRule {
	return []IndexRule{{Field: "text"}}
}

var nsA = namespace.Namespace{"user-1", "facts"}

func TestPutAndGet(t *testing.T) {
	forEachEngine(t, Options{}, func(t *testing.T, s Store) {
		ctx := context.Background()

		it, err := s.Put(ctx, nsA, "hello", model.Value{"text": "world", "n": 3})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if it.Revision != 1 {
			t.Errorf("expected revision 1, got %d", it.Revision)
		}
		if it.ID == "" {
			t.Error("expected non-empty ID")
		}

		got, err := s.Get(ctx, nsA, "hello")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Value.String("text") != "world" {
			t.Errorf("expected 'world', got %v", got.Value)
		}
		if !got.Namespace.Equal(nsA) {
			t.Errorf("expected namespace %v, got %v", nsA, got.Namespace)
		}
	})
}

func TestPutReplaces(t *testing.T) {
	forEachEngine(t, Options{}, func(t *testing.T, s Store) {
		ctx := context.Background()

		first, _ := s.Put(ctx, nsA, "k", model.Value{"a": "1", "b": "2"})
		time.Sleep(2 * time.Millisecond)
		second, err := s.Put(ctx, nsA, "k", model.Value{"a": "3"})
		if err != nil {
			t.Fatal(err)
		}
		if second.Revision != 2 {
			t.Errorf("expected revision 2, got %d", second.Revision)
		}
		if second.ID != first.ID {
			t.Error("replacement should keep the item id")
		}

		got, _ := s.Get(ctx, nsA, "k")
		if _, ok := got.Value["b"]; ok {
			t.Errorf("put must fully replace the value, got %v", got.Value)
		}
		if !got.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("created_at changed: %v -> %v", first.CreatedAt, got.CreatedAt)
		}
		if !got.UpdatedAt.After(first.UpdatedAt) {
			t.Errorf("expected updated_at to advance: %v -> %v", first.UpdatedAt, got.UpdatedAt)
		}
	})
}

func TestGetMissing(t *testing.T) {
	forEachEngine(t, Options{}, func(t *testing.T, s Store) {
		_, err := s.Get(context.Background(), nsA, "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestValidation(t *testing.T) {
	forEachEngine(t, Options{}, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Put(ctx, nil, "k", model.Value{})
		if !errors.Is(err, namespace.ErrInvalidNamespace) {
			t.Errorf("expected ErrInvalidNamespace, got %v", err)
		}
		_, err = s.Put(ctx, namespace.Namespace{"a", ""}, "k", model.Value{})
		if !errors.Is(err, namespace.ErrInvalidNamespace) {
			t.Errorf("expected ErrInvalidNamespace for empty segment, got %v", err)
		}
		_, err = s.Put(ctx, nsA, "", model.Value{})
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey, got %v", err)
		}
		if _, err := s.Search(ctx, namespace.Namespace{}, SearchParams{}); !errors.Is(err, namespace.ErrInvalidNamespace) {
			t.Errorf("expected ErrInvalidNamespace from search, got %v", err)
		}
	})
}

func TestDeleteIdempotent(t *testing.T) {
	forEachEngine(t, Options{}, func(t *testing.T, s Store) {
		ctx := context.Background()

		s.Put(ctx, nsA, "k", model.Value{"x": "y"})
		if err := s.Delete(ctx, nsA, "k"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.Delete(ctx, nsA, "k"); err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if err := s.Delete(ctx, namespace.Namespace{"never"}, "k"); err != nil {
			t.Fatalf("delete in unknown namespace: %v", err)
		}
		if _, err := s.Get(ctx, nsA, "k"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestNamespaceIsolation(t *testing.T) {
	forEachEngine(t, Options{}, func(t *testing.T, s Store) {
		ctx := context.Background()
		u1 := namespace.Namespace{"u1", "profile"}
		u2 := namespace.Namespace{"u2", "profile"}

		s.Put(ctx, u1, "risk", model.Value{"level": "high"})
		s.Put(ctx, u2, "risk", model.Value{"level": "low"})

		a, _ := s.Get(ctx, u1, "risk")
		b, _ := s.Get(ctx, u2, "risk")
		if a.Value.String("level") != "high" || b.Value.String("level") != "low" {
			t.Errorf("namespaces leaked: %v %v", a.Value, b.Value)
		}

		s.Delete(ctx, u1, "risk")
		if _, err := s.Get(ctx, u2, "risk"); err != nil {
			t.Errorf("delete in one namespace affected another: %v", err)
		}

		res, _ := s.Search(ctx, u2, SearchParams{})
		if len(res) != 1 || res[0].Key != "risk" {
			t.Errorf("expected only u2 items, got %v", res)
		}
	})
}

func TestReturnedItemsAreCopies(t *testing.T) {
	forEachEngine(t, Options{}, func(t *testing.T, s Store) {
		ctx := context.Background()
		v := model.Value{"tags": []any{"a"}, "text": "orig"}
		s.Put(ctx, nsA, "k", v)
		v["text"] = "mutated input"

		got, _ := s.Get(ctx, nsA, "k")
		got.Value["text"] = "mutated output"

		again, _ := s.Get(ctx, nsA, "k")
		if again.Value.String("text") != "orig" {
			t.Errorf("store state aliased caller data: %v", again.Value)
		}
	})
}

func TestListNamespaces(t *testing.T) {
	forEachEngine(t, Options{}, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Put(ctx, namespace.Namespace{"u1", "profile"}, "a", model.Value{})
		s.Put(ctx, namespace.Namespace{"u1", "facts"}, "b", model.Value{})
		s.Put(ctx, namespace.Namespace{"agent", "episodes"}, "c", model.Value{})
		s.Put(ctx, namespace.Namespace{"gone"}, "d", model.Value{})
		s.Delete(ctx, namespace.Namespace{"gone"}, "d")

		all, err := s.ListNamespaces(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 namespaces, got %v", all)
		}
		if all[0].String() != "agent/episodes" {
			t.Errorf("expected sorted output, got %v", all)
		}

		u1, _ := s.ListNamespaces(ctx, namespace.Namespace{"u1"})
		if len(u1) != 2 {
			t.Errorf("expected 2 namespaces under u1, got %v", u1)
		}
	})
}

func TestPutIf(t *testing.T) {
	forEachEngine(t, Options{}, func(t *testing.T, s Store) {
		ctx := context.Background()

		it, err := s.PutIf(ctx, nsA, "policy", model.Value{"version": 1}, 0)
		if err != nil {
			t.Fatalf("create with revision 0: %v", err)
		}
		if _, err := s.PutIf(ctx, nsA, "policy", model.Value{"version": 9}, 0); !errors.Is(err, ErrRevisionConflict) {
			t.Errorf("expected conflict when key exists, got %v", err)
		}
		if _, err := s.PutIf(ctx, nsA, "policy", model.Value{"version": 2}, it.Revision+5); !errors.Is(err, ErrRevisionConflict) {
			t.Errorf("expected conflict on stale revision, got %v", err)
		}
		next, err := s.PutIf(ctx, nsA, "policy", model.Value{"version": 2}, it.Revision)
		if err != nil {
			t.Fatalf("cas: %v", err)
		}
		if next.Revision != it.Revision+1 {
			t.Errorf("expected revision %d, got %d", it.Revision+1, next.Revision)
		}
		if !IsRetryable(fmt.Errorf("wrapped: %w", ErrRevisionConflict)) {
			t.Error("revision conflicts should be retryable")
		}
	})
}

func TestConcurrentPutsDistinctKeys(t *testing.T) {
	forEachEngine(t, Options{}, func(t *testing.T, s Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := s.Put(ctx, nsA, fmt.Sprintf("k%02d", i), model.Value{"i": i}); err != nil {
					t.Errorf("put %d: %v", i, err)
				}
			}(i)
		}
		wg.Wait()

		res, err := s.Search(ctx, nsA, SearchParams{})
		if err != nil {
			t.Fatal(err)
		}
		if len(res) != 20 {
			t.Errorf("expected 20 items, got %d", len(res))
		}
	})
}

func TestConcurrentCASNoLostUpdates(t *testing.T) {
	forEachEngine(t, Options{}, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Put(ctx, nsA, "counter", model.Value{"n": 0})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					cur, err := s.Get(ctx, nsA, "counter")
					if err != nil {
						t.Error(err)
						return
					}
					n, _ := toFloat(cur.Value["n"])
					_, err = s.PutIf(ctx, nsA, "counter", model.Value{"n": int(n) + 1}, cur.Revision)
					if err == nil {
						return
					}
					if !errors.Is(err, ErrRevisionConflict) {
						t.Error(err)
						return
					}
				}
			}()
		}
		wg.Wait()

		got, _ := s.Get(ctx, nsA, "counter")
		if n, _ := toFloat(got.Value["n"]); n != 8 {
			t.Errorf("expected counter 8, got %v", got.Value["n"])
		}
		if got.Revision != 9 {
			t.Errorf("expected revision 9, got %d", got.Revision)
		}
	})
}
