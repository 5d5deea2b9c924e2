package namespace

import (
	"fmt"
	"sort"
)

// Shared namespaces.
var (
	Instructions = Namespace{"agent", "instructions"}
	Episodes     = Namespace{"agent", "episodes"}
	Knowledge    = Namespace{"investment", "knowledge"}
)

// Per-user namespace suffixes.
const (
	profileSegment     = "profile"
	preferencesSegment = "preferences"
	factsSegment       = "facts"
	historySegment     = "investment_history"
)

// Profile returns (userID, "profile").
func Profile(userID string) (Namespace, error) {
	return Canonicalize(userID, profileSegment)
}

// Preferences returns (userID, "preferences").
func Preferences(userID string) (Namespace, error) {
	return Canonicalize(userID, preferencesSegment)
}

// Facts returns (userID, "facts").
func Facts(userID string) (Namespace, error) {
	return Canonicalize(userID, factsSegment)
}

// InvestmentHistory returns (userID, "investment_history").
func InvestmentHistory(userID string) (Namespace, error) {
	return Canonicalize(userID, historySegment)
}

type convention struct {
	perUser bool
	shared  Namespace
	build   func(userID string) (Namespace, error)
}

var conventions = map[string]convention{
	"profile":            {perUser: true, build: Profile},
	"preferences":        {perUser: true, build: Preferences},
	"facts":              {perUser: true, build: Facts},
	"investment_history": {perUser: true, build: InvestmentHistory},
	"knowledge":          {shared: Knowledge},
	"instructions":       {shared: Instructions},
	"episodes":           {shared: Episodes},
}

// Resolve looks up a namespace convention by name. userID is ignored for
// shared namespaces and required for per-user ones.
func Resolve(name, userID string) (Namespace, error) {
	c, ok := conventions[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown convention %q", ErrInvalidNamespace, name)
	}
	if !c.perUser {
		return append(Namespace(nil), c.shared...), nil
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: convention %q needs a user id", ErrInvalidNamespace, name)
	}
	return c.build(userID)
}

// Conventions returns the known convention names, sorted.
func Conventions() []string {
	names := make([]string, 0, len(conventions))
	for name := range conventions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
