package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/observe"
	"github.com/rcliao/layered-memory/internal/store"
)

// PolicyKey is the item key of the instruction record.
const PolicyKey = "investment_assistant"

// DefaultUpdateAttempts bounds compare-and-set retries in Update.
const DefaultUpdateAttempts = 8

// Procedural holds the single self-revising instruction record.
type Procedural struct {
	store    store.Store
	ns       namespace.Namespace
	key      string
	attempts int
	reflect  ReflectFunc
	obs      *observe.Observer
}

// NewProcedural opens the policy at (agent, instructions)/investment_assistant.
// reflect may be nil if ReflectAndUpdate is never called.
func NewProcedural(s store.Store, reflect ReflectFunc) *Procedural {
	return &Procedural{
		store:    s,
		ns:       namespace.Instructions,
		key:      PolicyKey,
		attempts: DefaultUpdateAttempts,
		reflect:  reflect,
		obs:      observe.Nop(),
	}
}

func (p *Procedural) Namespace() namespace.Namespace { return p.ns }

// Get returns the current policy, or the zero policy if none is stored.
func (p *Procedural) Get(ctx context.Context) (model.Policy, error) {
	pol, _, err := p.current(ctx)
	return pol, err
}

func (p *Procedural) current(ctx context.Context) (model.Policy, uint64, error) {
	it, err := p.store.Get(ctx, p.ns, p.key)
	if errors.Is(err, store.ErrNotFound) {
		return model.Policy{}, 0, nil
	}
	if err != nil {
		return model.Policy{}, 0, fmt.Errorf("read policy: %w", err)
	}
	return model.PolicyFromValue(it.Value), it.Revision, nil
}

// Update writes instructions as version current+1 and returns the new
// version. Concurrent updates are serialized by compare-and-set on the item
// revision; each retry re-reads the committed version.
func (p *Procedural) Update(ctx context.Context, instructions string) (_ int, err error) {
	ctx, span := p.obs.StartSpan(ctx, "policy.update")
	defer func() { observe.EndSpan(span, err) }()

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		cur, rev, err := p.current(ctx)
		if err != nil {
			return 0, err
		}
		next := model.Policy{Instructions: instructions, Version: cur.Version + 1}
		_, err = p.store.PutIf(ctx, p.ns, p.key, next.ToValue(), rev)
		if err == nil {
			p.obs.Log().Info().Int("version", next.Version).Msg("policy updated")
			return next.Version, nil
		}
		if !errors.Is(err, store.ErrRevisionConflict) {
			return 0, fmt.Errorf("write policy: %w", err)
		}
		p.obs.Log().Debug().Int("attempt", attempt).Msg("policy update conflict, retrying")
		lastErr = err
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	p.obs.Log().Warn().Int("attempts", p.attempts).Msg("policy update gave up")
	return 0, fmt.Errorf("%w after %d attempts: %w", ErrVersionConflict, p.attempts, lastErr)
}

// ReflectAndUpdate asks the reflector for revised instructions and stores
// them. The reflector runs without holding any store lock.
func (p *Procedural) ReflectAndUpdate(ctx context.Context, feedback string) (string, int, error) {
	if p.reflect == nil {
		return "", 0, ErrNoReflector
	}
	cur, err := p.Get(ctx)
	if err != nil {
		return "", 0, err
	}
	revised, err := p.reflect(ctx, cur.Instructions, feedback)
	if err != nil {
		return "", 0, fmt.Errorf("reflect: %w", err)
	}
	version, err := p.Update(ctx, revised)
	if err != nil {
		return "", 0, err
	}
	return revised, version, nil
}

// Seed stores policy only if no policy exists yet. It reports whether it wrote.
func (p *Procedural) Seed(ctx context.Context, policy model.Policy) (bool, error) {
	_, err := p.store.PutIf(ctx, p.ns, p.key, policy.ToValue(), 0)
	if errors.Is(err, store.ErrRevisionConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seed policy: %w", err)
	}
	return true, nil
}
