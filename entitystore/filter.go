package entitystore

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	qb "github.com/pful/pico/querybuilder"
)

// Filter is a parsed filter Document: either a LogicalFilter or a FieldFilter.
// Engines translate or evaluate Filters instead of walking raw Documents.
type Filter interface {
	isFilter()
}

// LogicalFilter combines child filters with $and, $or or $nor.
type LogicalFilter struct {
	Logical  qb.Logical
	Children []Filter
}

// FieldFilter applies one comparison operator to the value at a dotted field path.
//
// Operand is a Document scalar (string, int64, float64, bool), []any for $in/$nin/$all, or a nested
// Document for equality with an object.
type FieldFilter struct {
	Path    []string
	Op      qb.Op
	Operand any
}

func (LogicalFilter) isFilter() {}
func (FieldFilter) isFilter()   {}

// Field returns the dotted field path.
func (f FieldFilter) Field() string {
	return strings.Join(f.Path, ".")
}

// ParseFilter parses a rendered filter Document.
//
// The top-level keys are combined with $and. A key starting with "$" must be $and, $or or $nor holding a non-empty
// array of Documents. Any other key is a field: a Document value whose keys all start with "$" holds operators,
// everything else is an equality operand.
// Sentinels of unbound template variables fail with querybuilder.ErrUnresolvedPlaceholder; plain strings
// that only look like a sentinel are data.
func ParseFilter(doc qb.Document) (LogicalFilter, error) {
	if placeholders := qb.Placeholders(doc); len(placeholders) > 0 {
		return LogicalFilter{}, errors.Join(
			qb.ErrUnresolvedPlaceholder,
			fmt.Errorf("unbound variables: %s", strings.Join(placeholders, ", ")),
		)
	}

	return parseDocument(doc)
}

func parseDocument(doc qb.Document) (LogicalFilter, error) {
	root := LogicalFilter{Logical: qb.And, Children: make([]Filter, 0, len(doc))}

	for _, key := range doc.Keys() {
		value := doc[key]

		if strings.HasPrefix(key, "$") {
			child, err := parseLogical(qb.Logical(key), value)
			if err != nil {
				return LogicalFilter{}, err
			}
			root.Children = append(root.Children, child)

			continue
		}

		children, err := parseField(key, value)
		if err != nil {
			return LogicalFilter{}, err
		}
		root.Children = append(root.Children, children...)
	}

	return root, nil
}

func parseLogical(logical qb.Logical, value any) (Filter, error) {
	if !slices.Contains([]qb.Logical{qb.And, qb.Or, qb.Nor}, logical) {
		return nil, errors.Join(ErrUnsupportedOperator, fmt.Errorf("%q at top level", logical))
	}

	items, ok := value.([]any)
	if !ok || len(items) == 0 {
		return nil, errors.Join(ErrInvalidFilter, fmt.Errorf("%s needs a non-empty array", logical))
	}

	combined := LogicalFilter{Logical: logical, Children: make([]Filter, 0, len(items))}
	for i, item := range items {
		doc, ok := asDocument(item)
		if !ok {
			return nil, errors.Join(ErrInvalidFilter, fmt.Errorf("%s item %d is not an object", logical, i))
		}

		child, err := parseDocument(doc)
		if err != nil {
			return nil, err
		}
		combined.Children = append(combined.Children, child)
	}

	return combined, nil
}

func parseField(field string, value any) ([]Filter, error) {
	path := strings.Split(field, ".")
	if slices.Contains(path, "") {
		return nil, errors.Join(ErrInvalidFilter, fmt.Errorf("field %q", field))
	}

	operators, ok := asDocument(value)
	if !ok || !isOperatorDocument(operators) {
		return []Filter{FieldFilter{Path: path, Op: qb.Op(""), Operand: normalizeOperand(value)}}, nil
	}

	filters := make([]Filter, 0, len(operators))
	for _, key := range operators.Keys() {
		op := qb.Op(key)
		operand := normalizeOperand(operators[key])

		switch op {
		case qb.OpNe, qb.OpGt, qb.OpGte, qb.OpLt, qb.OpLte:
			if _, isList := operand.([]any); isList {
				return nil, errors.Join(ErrInvalidFilter, fmt.Errorf("%s on %q needs a scalar", op, field))
			}
		case qb.OpIn, qb.OpNin, qb.OpAll:
			if _, isList := operand.([]any); !isList {
				return nil, errors.Join(ErrInvalidFilter, fmt.Errorf("%s on %q needs an array", op, field))
			}
		case qb.OpExists:
			if _, isBool := operand.(bool); !isBool {
				return nil, errors.Join(ErrInvalidFilter, fmt.Errorf("$exists on %q needs a boolean", field))
			}
		default:
			return nil, errors.Join(ErrUnsupportedOperator, fmt.Errorf("%q on %q", key, field))
		}

		filters = append(filters, FieldFilter{Path: path, Op: op, Operand: operand})
	}

	return filters, nil
}

func isOperatorDocument(doc qb.Document) bool {
	if len(doc) == 0 {
		return false
	}

	for key := range doc {
		if !strings.HasPrefix(key, "$") {
			return false
		}
	}

	return true
}

func asDocument(v any) (qb.Document, bool) {
	switch typed := v.(type) {
	case qb.Document:
		return typed, true
	case map[string]any:
		return typed, true
	default:
		return nil, false
	}
}

// normalizeOperand maps Go numeric kinds onto int64 and float64 so engines compare one representation.
func normalizeOperand(v any) any {
	switch typed := v.(type) {
	case int:
		return int64(typed)
	case int32:
		return int64(typed)
	case float32:
		return float64(typed)
	case map[string]any:
		return normalizeOperand(qb.Document(typed))
	case qb.Document:
		doc := make(qb.Document, len(typed))
		for key, value := range typed {
			doc[key] = normalizeOperand(value)
		}
		return doc
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = normalizeOperand(item)
		}
		return items
	default:
		return v
	}
}
