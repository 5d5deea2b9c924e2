package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/store"
)

// Profile is a per-user key-value layer. Preferences use the same type on a
// sibling namespace.
type Profile struct {
	store store.Store
	ns    namespace.Namespace
}

// NewProfile opens (userID, "profile").
func NewProfile(s store.Store, userID string) (*Profile, error) {
	ns, err := namespace.Profile(userID)
	if err != nil {
		return nil, err
	}
	return &Profile{store: s, ns: ns}, nil
}

// NewPreferences opens (userID, "preferences").
func NewPreferences(s store.Store, userID string) (*Profile, error) {
	ns, err := namespace.Preferences(userID)
	if err != nil {
		return nil, err
	}
	return &Profile{store: s, ns: ns}, nil
}

func (p *Profile) Namespace() namespace.Namespace { return p.ns }

// GetAll returns every entry keyed by item key.
func (p *Profile) GetAll(ctx context.Context) (map[string]model.Value, error) {
	results, err := p.store.Search(ctx, p.ns, store.SearchParams{})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.ns, err)
	}
	out := make(map[string]model.Value, len(results))
	for _, r := range results {
		out[r.Key] = r.Value
	}
	return out, nil
}

// Set replaces the entry at key.
func (p *Profile) Set(ctx context.Context, key string, value model.Value) error {
	if _, err := p.store.Put(ctx, p.ns, key, value); err != nil {
		return fmt.Errorf("set %s/%s: %w", p.ns, key, err)
	}
	return nil
}

// NoProfile is rendered for an empty profile.
const NoProfile = "No profile information available."

// FormatProfile renders a profile as "- Title Case Key: field: value, ..."
// lines, sorted by key.
func FormatProfile(profile map[string]model.Value) string {
	if len(profile) == 0 {
		return NoProfile
	}
	keys := make([]string, 0, len(profile))
	for k := range profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v := profile[k]
		fields := make([]string, 0, len(v))
		for f := range v {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		pairs := make([]string, len(fields))
		for i, f := range fields {
			pairs[i] = f + ": " + formatScalar(v[f])
		}
		lines = append(lines, "- "+titleCase(k)+": "+strings.Join(pairs, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatScalar(x any) string {
	switch t := x.(type) {
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatScalar(e)
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	case nil:
		return ""
	}
	return fmt.Sprint(x)
}

// titleCase turns "risk_tolerance" into "Risk Tolerance".
func titleCase(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		w = strings.ToLower(w)
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
