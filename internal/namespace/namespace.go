// Package namespace canonicalizes the hierarchical paths that partition the memory key space.
package namespace

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidNamespace is returned for empty paths or paths with empty segments.
var ErrInvalidNamespace = errors.New("invalid namespace")

// sep joins segments into map keys. Segments may not contain it.
const sep = "\x00"

// Namespace is an ordered, non-empty sequence of path segments.
type Namespace []string

// Canonicalize validates segments and returns them as a Namespace.
func Canonicalize(segments ...string) (Namespace, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no segments", ErrInvalidNamespace)
	}
	ns := make(Namespace, len(segments))
	for i, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: empty segment at position %d", ErrInvalidNamespace, i)
		}
		if strings.Contains(s, sep) {
			return nil, fmt.Errorf("%w: segment %d contains NUL", ErrInvalidNamespace, i)
		}
		ns[i] = s
	}
	return ns, nil
}

// Parse splits a slash-separated path ("user-1/profile") and canonicalizes it.
func Parse(path string) (Namespace, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidNamespace)
	}
	return Canonicalize(strings.Split(path, "/")...)
}

// Validate reports whether ns is a canonical namespace.
func (ns Namespace) Validate() error {
	_, err := Canonicalize(ns...)
	return err
}

// Key returns a string that is equal for two namespaces iff their segments are equal.
func (ns Namespace) Key() string {
	return strings.Join(ns, sep)
}

// FromKey reverses Key.
func FromKey(key string) Namespace {
	return Namespace(strings.Split(key, sep))
}

func (ns Namespace) String() string {
	return strings.Join(ns, "/")
}

// Equal compares segment by segment.
func (ns Namespace) Equal(other Namespace) bool {
	if len(ns) != len(other) {
		return false
	}
	for i := range ns {
		if ns[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix matches the leading segments of ns.
// An empty prefix matches every namespace.
func (ns Namespace) HasPrefix(prefix Namespace) bool {
	if len(prefix) > len(ns) {
		return false
	}
	return ns[:len(prefix)].Equal(prefix)
}

// HasSuffix reports whether suffix matches the trailing segments of ns.
func (ns Namespace) HasSuffix(suffix Namespace) bool {
	if len(suffix) > len(ns) {
		return false
	}
	return ns[len(ns)-len(suffix):].Equal(suffix)
}

// Child returns a copy of ns with extra segments appended.
func (ns Namespace) Child(segments ...string) (Namespace, error) {
	all := make([]string, 0, len(ns)+len(segments))
	all = append(all, ns...)
	all = append(all, segments...)
	return Canonicalize(all...)
}
