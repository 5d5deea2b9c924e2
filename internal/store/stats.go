package store

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rcliao/layered-memory/internal/namespace"
)

// Stats holds store statistics.
type Stats struct {
	DBPath      string           `json:"db_path,omitempty"`
	DBSizeBytes int64            `json:"db_size_bytes,omitempty"`
	TotalItems  int              `json:"total_items"`
	Embedded    int              `json:"embedded"`
	Namespaces  []NamespaceStats `json:"namespaces"`
}

// NamespaceStats holds per-namespace counts and the metadata seen there.
type NamespaceStats struct {
	NS       string              `json:"ns"`
	Count    int                 `json:"count"`
	Embedded int                 `json:"embedded"`
	Fields   map[string][]string `json:"fields,omitempty"`
}

// maxFieldValues caps the distinct values reported per field.
const maxFieldValues = 20

// CollectStats walks every namespace under prefix. Fields lists, for each
// value field, its distinct scalar values (up to a small cap); non-scalar
// fields are listed with no values.
func CollectStats(ctx context.Context, s Store, prefix namespace.Namespace) (*Stats, error) {
	st := &Stats{Namespaces: []NamespaceStats{}}
	if p, ok := s.(interface{ Path() string }); ok {
		st.DBPath = p.Path()
		if info, err := os.Stat(st.DBPath); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}

	spaces, err := s.ListNamespaces(ctx, prefix)
	if err != nil {
		return nil, err
	}
	for _, ns := range spaces {
		results, err := s.Search(ctx, ns, SearchParams{})
		if err != nil {
			return nil, fmt.Errorf("stats %s: %w", ns, err)
		}
		nsStats := NamespaceStats{NS: ns.String(), Count: len(results), Fields: map[string][]string{}}
		seen := map[string]map[string]bool{}
		for _, r := range results {
			if r.Embedding != nil {
				nsStats.Embedded++
			}
			for field, v := range r.Value {
				if seen[field] == nil {
					seen[field] = map[string]bool{}
				}
				if text, ok := scalarString(v); ok && len(seen[field]) < maxFieldValues {
					seen[field][text] = true
				}
			}
		}
		for field, values := range seen {
			list := make([]string, 0, len(values))
			for v := range values {
				list = append(list, v)
			}
			sort.Strings(list)
			nsStats.Fields[field] = list
		}
		st.TotalItems += nsStats.Count
		st.Embedded += nsStats.Embedded
		st.Namespaces = append(st.Namespaces, nsStats)
	}

	sort.SliceStable(st.Namespaces, func(i, j int) bool {
		return st.Namespaces[i].Count > st.Namespaces[j].Count
	})
	return st, nil
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if len(t) > 80 {
			return "", false
		}
		return t, true
	case bool:
		return fmt.Sprint(t), true
	}
	if f, ok := toFloat(v); ok {
		return fmt.Sprint(f), true
	}
	return "", false
}
