// Package prompt renders prompt templates whose sections are switched on by
// typed conditions over a variable map.
package prompt

import (
	"fmt"
	"reflect"
)

// Op is a comparison operator.
type Op int

const (
	Truthy Op = iota
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
)

var opNames = map[Op]string{
	Truthy: "truthy",
	Eq:     "==",
	Ne:     "!=",
	Lt:     "<",
	Le:     "<=",
	Gt:     ">",
	Ge:     ">=",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Condition tests one variable. For Truthy, Value is ignored.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// When is shorthand for a Truthy condition.
func When(field string) *Condition {
	return &Condition{Field: field, Op: Truthy}
}

// Compare builds a comparison condition.
func Compare(field string, op Op, value any) *Condition {
	return &Condition{Field: field, Op: op, Value: value}
}

// Eval evaluates the condition. A missing field only satisfies Ne.
// Ordered operators on values that are neither both numbers nor both
// strings are false.
func (c Condition) Eval(vars map[string]any) bool {
	got, ok := vars[c.Field]
	if !ok {
		return c.Op == Ne
	}
	switch c.Op {
	case Truthy:
		return truthy(got)
	case Eq:
		return equal(got, c.Value)
	case Ne:
		return !equal(got, c.Value)
	}

	cmp, ok := compare(got, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Ge:
		return cmp >= 0
	}
	return false
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func equal(a, b any) bool {
	fa, aNum := number(a)
	fb, bNum := number(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b any) (int, bool) {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case sa < sb:
		return -1, true
	case sa > sb:
		return 1, true
	}
	return 0, true
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
