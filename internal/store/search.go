package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/layered-memory/internal/embedding"
	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
)

func newID() string {
	return ulid.Make().String()
}

func validate(ns namespace.Namespace, key string) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return nil
}

// indexField returns the field embedded for ns, or "" if none.
func indexField(rules []IndexRule, ns namespace.Namespace) string {
	field, best := "", -1
	for _, r := range rules {
		if n := len(r.Prefix) + len(r.Suffix); r.matches(ns) && n > best {
			field, best = r.Field, n
		}
	}
	return field
}

// embedValue computes the embedding for value under the namespace's index
// rule. It returns nil when the namespace is unindexed, the field is absent,
// or no embedder is configured.
func embedValue(ctx context.Context, o Options, ns namespace.Namespace, value model.Value) ([]float32, error) {
	field := indexField(o.Index, ns)
	if field == "" || o.Embedder == nil {
		return nil, nil
	}
	raw, ok := value[field]
	if !ok {
		return nil, nil
	}
	text, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: index field %q is %T, want string", ErrInvalidValue, field, raw)
	}
	return embed(ctx, o, text)
}

func embed(ctx context.Context, o Options, text string) ([]float32, error) {
	if o.Embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbeddingFailure)
	}
	ctx, cancel := context.WithTimeout(ctx, o.EmbedTimeout)
	defer cancel()
	vec, err := o.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrEmbeddingFailure)
	}
	return vec, nil
}

// candidate is an item plus its insertion sequence.
type candidate struct {
	item *model.Item
	seq  uint64
}

// matchFilter reports whether every filter field is present in value and equal.
func matchFilter(value model.Value, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := value[k]
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	return true
}

// equalValues compares numbers by value regardless of their Go kind, since
// values that went through JSON come back as float64.
func equalValues(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(x any) (float64, bool) {
	switch n := x.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// selectResults applies filter, ranking and limit to a snapshot of one
// namespace. A nil query vector means enumeration in insertion order.
func selectResults(cands []candidate, query []float32, p SearchParams) []model.Result {
	sort.Slice(cands, func(i, j int) bool { return cands[i].seq < cands[j].seq })

	var kept []candidate
	for _, c := range cands {
		if p.Filter != nil && !matchFilter(c.item.Value, p.Filter) {
			continue
		}
		if query != nil && c.item.Embedding == nil {
			continue
		}
		kept = append(kept, c)
	}

	results := make([]model.Result, 0, len(kept))
	if query == nil {
		for _, c := range kept {
			if p.Limit > 0 && len(results) == p.Limit {
				break
			}
			results = append(results, model.Result{Item: *c.item.Clone()})
		}
		return results
	}

	if p.Limit <= 0 {
		return results
	}
	metric := p.Metric
	if metric == "" {
		metric = embedding.Cosine
	}
	for _, c := range kept {
		results = append(results, model.Result{
			Item:   *c.item.Clone(),
			Score:  metric.Score(query, c.item.Embedding),
			Ranked: true,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > p.Limit {
		results = results[:p.Limit]
	}
	return results
}

func sortNamespaces(list []namespace.Namespace) {
	sort.Slice(list, func(i, j int) bool { return list[i].Key() < list[j].Key() })
}
