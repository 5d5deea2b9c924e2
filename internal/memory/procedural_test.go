package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/store"
)

func TestProcedural_GetAbsent(t *testing.T) {
	p := NewProcedural(newTestStore(t), nil)
	pol, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pol != (model.Policy{}) {
		t.Errorf("expected zero policy, got %+v", pol)
	}
}

func TestProcedural_UpdateIncrementsVersion(t *testing.T) {
	p := NewProcedural(newTestStore(t), nil)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		v, err := p.Update(ctx, "rev")
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if v != want {
			t.Errorf("expected version %d, got %d", want, v)
		}
	}
	pol, _ := p.Get(ctx)
	if pol.Version != 3 || pol.Instructions != "rev" {
		t.Errorf("unexpected policy: %+v", pol)
	}
}

func TestProcedural_ConcurrentUpdates(t *testing.T) {
	const writers = 10
	sub := New(store.NewMemoryStore(store.Options{}), Options{UpdateAttempts: writers * 2})
	ctx := context.Background()

	var wg sync.WaitGroup
	versions := make([]int, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			versions[i], errs[i] = sub.Procedural.Update(ctx, "concurrent")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}
	sort.Ints(versions)
	for i, v := range versions {
		if v != i+1 {
			t.Fatalf("versions not 1..%d without gaps or duplicates: %v", writers, versions)
		}
	}
	pol, _ := sub.Procedural.Get(ctx)
	if pol.Version != writers {
		t.Errorf("final version = %d, want %d", pol.Version, writers)
	}
}

// conflictStore fails every conditional write.
type conflictStore struct {
	store.Store
	attempts int
}

func (c *conflictStore) PutIf(context.Context, namespace.Namespace, string, model.Value, uint64) (*model.Item, error) {
	c.attempts++
	return nil, store.ErrRevisionConflict
}

func TestProcedural_UpdateGivesUp(t *testing.T) {
	cs := &conflictStore{Store: store.NewMemoryStore(store.Options{})}
	sub := New(cs, Options{UpdateAttempts: 3})

	_, err := sub.Procedural.Update(context.Background(), "never")
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if !store.IsRetryable(err) {
		t.Error("version conflict should be retryable")
	}
	if cs.attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cs.attempts)
	}
}

func TestProcedural_ReflectAndUpdate(t *testing.T) {
	var gotCurrent, gotFeedback string
	reflect := func(_ context.Context, current, feedback string) (string, error) {
		gotCurrent, gotFeedback = current, feedback
		return current + "\n- Keep answers short", nil
	}
	sub := newTestSubstrate(t, Options{Reflect: reflect})
	ctx := context.Background()
	if _, err := sub.Seed(ctx); err != nil {
		t.Fatal(err)
	}

	revised, version, err := sub.Procedural.ReflectAndUpdate(ctx, "too long")
	if err != nil {
		t.Fatalf("reflect: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
	if gotCurrent != DefaultInstructions || gotFeedback != "too long" {
		t.Errorf("reflector got %q / %q", gotCurrent, gotFeedback)
	}
	pol, _ := sub.Procedural.Get(ctx)
	if pol.Instructions != revised {
		t.Errorf("stored instructions differ from revision")
	}
}

func TestProcedural_ReflectErrors(t *testing.T) {
	ctx := context.Background()

	p := NewProcedural(newTestStore(t), nil)
	if _, _, err := p.ReflectAndUpdate(ctx, "x"); !errors.Is(err, ErrNoReflector) {
		t.Errorf("expected ErrNoReflector, got %v", err)
	}

	boom := errors.New("model unavailable")
	p = NewProcedural(newTestStore(t), func(context.Context, string, string) (string, error) {
		return "", boom
	})
	if _, _, err := p.ReflectAndUpdate(ctx, "x"); !errors.Is(err, boom) {
		t.Errorf("expected reflector error, got %v", err)
	}
	if pol, _ := p.Get(ctx); pol.Version != 0 {
		t.Errorf("failed reflection should not write, got version %d", pol.Version)
	}
}
