package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/observe"
)

// MemoryStore implements Store in process memory. Each namespace has its own
// lock; committed items are never mutated, so readers work on a snapshot of
// pointers taken under a read lock.
type MemoryStore struct {
	opts Options

	mu      sync.RWMutex
	buckets map[string]*bucket
	seq     uint64
}

type bucket struct {
	mu    sync.RWMutex
	items map[string]candidate
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:    opts.withDefaults(),
		buckets: make(map[string]*bucket),
	}
}

func (s *MemoryStore) bucket(ns namespace.Namespace, create bool) *bucket {
	k := ns.Key()
	s.mu.RLock()
	b := s.buckets[k]
	s.mu.RUnlock()
	if b != nil || !create {
		return b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b = s.buckets[k]; b == nil {
		b = &bucket{items: make(map[string]candidate)}
		s.buckets[k] = b
	}
	return b
}

func (s *MemoryStore) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *MemoryStore) Put(ctx context.Context, ns namespace.Namespace, key string, value model.Value) (*model.Item, error) {
	return s.put(ctx, ns, key, value, nil)
}

func (s *MemoryStore) PutIf(ctx context.Context, ns namespace.Namespace, key string, value model.Value, revision uint64) (*model.Item, error) {
	return s.put(ctx, ns, key, value, &revision)
}

func (s *MemoryStore) put(ctx context.Context, ns namespace.Namespace, key string, value model.Value, expect *uint64) (_ *model.Item, err error) {
	ctx, span := s.opts.Observer.StartSpan(ctx, "store.put", "namespace", ns.String(), "key", key)
	defer func() { observe.EndSpan(span, err) }()

	if err := validate(ns, key); err != nil {
		return nil, err
	}
	value = value.Clone()
	if value == nil {
		value = model.Value{}
	}
	vec, err := embedValue(ctx, s.opts, ns, value)
	if err != nil {
		s.opts.Observer.Log().Warn().Str("namespace", ns.String()).Str("key", key).Err(err).Msg("put rejected")
		return nil, fmt.Errorf("put %s/%s: %w", ns, key, err)
	}

	b := s.bucket(ns, true)
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, exists := b.items[key]
	if expect != nil {
		var current uint64
		if exists {
			current = prev.item.Revision
		}
		if current != *expect {
			return nil, fmt.Errorf("put %s/%s: %w: have revision %d, want %d", ns, key, ErrRevisionConflict, current, *expect)
		}
	}

	now := time.Now().UTC()
	item := &model.Item{
		ID:        newID(),
		Namespace: append(namespace.Namespace(nil), ns...),
		Key:       key,
		Value:     value,
		Embedding: vec,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var seq uint64
	if exists {
		item.ID = prev.item.ID
		item.CreatedAt = prev.item.CreatedAt
		item.Revision = prev.item.Revision + 1
		seq = prev.seq
	} else {
		seq = s.nextSeq()
	}
	b.items[key] = candidate{item: item, seq: seq}

	s.opts.Observer.Log().Debug().Str("namespace", ns.String()).Str("key", key).Int("revision", int(item.Revision)).Msg("put")
	return item.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, ns namespace.Namespace, key string) (*model.Item, error) {
	if err := validate(ns, key); err != nil {
		return nil, err
	}
	b := s.bucket(ns, false)
	if b == nil {
		return nil, fmt.Errorf("get %s/%s: %w", ns, key, ErrNotFound)
	}
	b.mu.RLock()
	c, ok := b.items[key]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", ns, key, ErrNotFound)
	}
	return c.item.Clone(), nil
}

func (s *MemoryStore) Search(ctx context.Context, ns namespace.Namespace, p SearchParams) (_ []model.Result, err error) {
	ctx, span := s.opts.Observer.StartSpan(ctx, "store.search", "namespace", ns.String())
	defer func() { observe.EndSpan(span, err) }()

	if err := ns.Validate(); err != nil {
		return nil, err
	}
	var query []float32
	if p.Query != "" {
		if p.Limit <= 0 {
			return []model.Result{}, nil
		}
		query, err = embed(ctx, s.opts, p.Query)
		if err != nil {
			s.opts.Observer.Log().Warn().Str("namespace", ns.String()).Err(err).Msg("query embedding failed")
			return nil, fmt.Errorf("search %s: %w", ns, err)
		}
	}

	b := s.bucket(ns, false)
	if b == nil {
		return []model.Result{}, nil
	}
	b.mu.RLock()
	cands := make([]candidate, 0, len(b.items))
	for _, c := range b.items {
		cands = append(cands, c)
	}
	b.mu.RUnlock()

	results := selectResults(cands, query, p)
	s.opts.Observer.Log().Debug().Str("namespace", ns.String()).Int("results", len(results)).Msg("search")
	return results, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ns namespace.Namespace, key string) error {
	if err := validate(ns, key); err != nil {
		return err
	}
	b := s.bucket(ns, false)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	delete(b.items, key)
	b.mu.Unlock()
	s.opts.Observer.Log().Debug().Str("namespace", ns.String()).Str("key", key).Msg("delete")
	return nil
}

func (s *MemoryStore) ListNamespaces(ctx context.Context, prefix namespace.Namespace) ([]namespace.Namespace, error) {
	s.mu.RLock()
	keys := make(map[string]*bucket, len(s.buckets))
	for k, b := range s.buckets {
		keys[k] = b
	}
	s.mu.RUnlock()

	var out []namespace.Namespace
	for k, b := range keys {
		b.mu.RLock()
		n := len(b.items)
		b.mu.RUnlock()
		ns := namespace.FromKey(k)
		if n > 0 && ns.HasPrefix(prefix) {
			out = append(out, ns)
		}
	}
	sortNamespaces(out)
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
