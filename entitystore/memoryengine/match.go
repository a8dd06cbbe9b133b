package memoryengine

import (
	"strings"

	"github.com/pful/pico/entitystore"
	qb "github.com/pful/pico/querybuilder"
)

// Matches reports whether doc satisfies filter.
//
// Equality on an array field matches when the array equals the operand or contains it. Range operators compare
// numbers with numbers and strings with strings; values of other kinds never match. $ne, $nin and $exists false
// match missing fields.
func Matches(filter entitystore.Filter, doc qb.Document) bool {
	switch f := filter.(type) {
	case entitystore.LogicalFilter:
		return matchLogical(f, doc)
	case entitystore.FieldFilter:
		return matchField(f, doc)
	default:
		return false
	}
}

func matchLogical(f entitystore.LogicalFilter, doc qb.Document) bool {
	switch f.Logical {
	case qb.Or:
		for _, child := range f.Children {
			if Matches(child, doc) {
				return true
			}
		}
		return false
	case qb.Nor:
		for _, child := range f.Children {
			if Matches(child, doc) {
				return false
			}
		}
		return true
	default:
		for _, child := range f.Children {
			if !Matches(child, doc) {
				return false
			}
		}
		return true
	}
}

func matchField(f entitystore.FieldFilter, doc qb.Document) bool {
	value, present := lookup(doc, f.Path)

	switch f.Op {
	case qb.OpNe:
		return !present || !matchesEquality(value, f.Operand)
	case qb.OpGt, qb.OpGte, qb.OpLt, qb.OpLte:
		return present && matchesRange(value, f.Op, f.Operand)
	case qb.OpIn:
		return present && matchesAny(value, f.Operand.([]any))
	case qb.OpNin:
		return !present || !matchesAny(value, f.Operand.([]any))
	case qb.OpAll:
		return present && matchesAll(value, f.Operand.([]any))
	case qb.OpExists:
		return present == f.Operand.(bool)
	default:
		return present && matchesEquality(value, f.Operand)
	}
}

func lookup(doc qb.Document, path []string) (any, bool) {
	var current any = doc

	for _, segment := range path {
		object, ok := asObject(current)
		if !ok {
			return nil, false
		}

		current, ok = object[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func matchesEquality(value, operand any) bool {
	if equal(value, operand) {
		return true
	}

	if items, isList := value.([]any); isList {
		for _, item := range items {
			if equal(item, operand) {
				return true
			}
		}
	}

	return false
}

func matchesAny(value any, candidates []any) bool {
	for _, candidate := range candidates {
		if matchesEquality(value, candidate) {
			return true
		}
	}

	return false
}

// matchesAll never matches an empty candidate list.
func matchesAll(value any, candidates []any) bool {
	if len(candidates) == 0 {
		return false
	}

	for _, candidate := range candidates {
		if !matchesEquality(value, candidate) {
			return false
		}
	}

	return true
}

func matchesRange(value any, op qb.Op, operand any) bool {
	if items, isList := value.([]any); isList {
		for _, item := range items {
			if matchesRange(item, op, operand) {
				return true
			}
		}
		return false
	}

	cmp, comparable := compare(value, operand)
	if !comparable {
		return false
	}

	switch op {
	case qb.OpGt:
		return cmp > 0
	case qb.OpGte:
		return cmp >= 0
	case qb.OpLt:
		return cmp < 0
	default:
		return cmp <= 0
	}
}

func compare(a, b any) (int, bool) {
	if x, ok := asFloat(a); ok {
		if y, ok := asFloat(b); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}

	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	}

	return 0, false
}

func equal(a, b any) bool {
	if x, ok := asFloat(a); ok {
		y, ok := asFloat(b)
		return ok && x == y
	}

	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	}

	x, ok := asObject(a)
	if !ok {
		return false
	}
	y, ok := asObject(b)
	if !ok || len(x) != len(y) {
		return false
	}
	for k, v := range x {
		w, present := y[k]
		if !present || !equal(v, w) {
			return false
		}
	}

	return true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func asObject(v any) (qb.Document, bool) {
	switch typed := v.(type) {
	case qb.Document:
		return typed, true
	case map[string]any:
		return typed, true
	default:
		return nil, false
	}
}
