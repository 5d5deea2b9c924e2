package prompt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingVariable is returned in strict mode when a placeholder has no value.
var ErrMissingVariable = errors.New("missing template variable")

// Section is a piece of template text, optionally guarded by a condition.
// When the condition is false, Else is rendered instead.
type Section struct {
	When *Condition
	Text string
	Else string
}

// Template is an ordered list of sections rendered with {name} substitution.
type Template struct {
	Sections []Section
	Defaults map[string]any
	Strict   bool
}

// Text returns a template consisting of a single unconditional section.
func Text(s string) Template {
	return Template{Sections: []Section{{Text: s}}}
}

// Compose joins t and others into one template, separated by sep. Defaults
// are merged left to right; t's Strict setting is kept.
func (t Template) Compose(sep string, others ...Template) Template {
	out := Template{Strict: t.Strict, Defaults: map[string]any{}}
	for i, part := range append([]Template{t}, others...) {
		if i > 0 && sep != "" {
			out.Sections = append(out.Sections, Section{Text: sep})
		}
		out.Sections = append(out.Sections, part.Sections...)
		for k, v := range part.Defaults {
			out.Defaults[k] = v
		}
	}
	return out
}

// Extend appends child text after a blank line, with extra defaults layered
// over t's.
func (t Template) Extend(child string, defaults map[string]any) Template {
	c := Text(child)
	c.Defaults = defaults
	return t.Compose("\n\n", c)
}

// Render evaluates section conditions against vars (merged over Defaults)
// and substitutes placeholders in the chosen text.
func (t Template) Render(vars map[string]any) (string, error) {
	merged := make(map[string]any, len(t.Defaults)+len(vars))
	for k, v := range t.Defaults {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}

	var b strings.Builder
	for _, s := range t.Sections {
		text := s.Text
		if s.When != nil && !s.When.Eval(merged) {
			text = s.Else
		}
		out, err := substitute(text, merged, t.Strict)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// Variables lists the placeholder names used anywhere in the template, sorted.
func (t Template) Variables() []string {
	seen := map[string]bool{}
	for _, s := range t.Sections {
		for _, text := range []string{s.Text, s.Else} {
			scan(text, func(name string) { seen[name] = true })
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func substitute(text string, vars map[string]any, strict bool) (string, error) {
	var missing []string
	var b strings.Builder
	last := 0
	scanSpans(text, func(start, end int, name string) {
		b.WriteString(text[last:start])
		v, ok := vars[name]
		switch {
		case !ok:
			missing = append(missing, name)
		case v != nil:
			fmt.Fprint(&b, v)
		}
		last = end
	})
	b.WriteString(text[last:])
	if strict && len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingVariable, strings.Join(missing, ", "))
	}
	return b.String(), nil
}

func scan(text string, fn func(name string)) {
	scanSpans(text, func(_, _ int, name string) { fn(name) })
}

// scanSpans calls fn for every {identifier} in text. Braces around anything
// else (JSON, spaces) are left alone.
func scanSpans(text string, fn func(start, end int, name string)) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		j := i + 1
		for j < len(text) && isIdent(text[j], j == i+1) {
			j++
		}
		if j > i+1 && j < len(text) && text[j] == '}' {
			fn(i, j+1, text[i+1:j])
			i = j
		}
	}
}

func isIdent(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
