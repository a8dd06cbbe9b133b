package postgresengine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/pful/pico/entitystore"
	qb "github.com/pful/pico/querybuilder"
)

const (
	sqlTrue          = "TRUE"
	sqlFalse         = "FALSE"
	sqlNot           = "NOT (?)"
	sqlContains      = "? @> ?::jsonb"
	sqlExactMatch    = "COALESCE((? #> ?) = ?::jsonb, FALSE)"
	sqlPathExists    = "(? #> ?) IS NOT NULL"
	sqlPathMissing   = "(? #> ?) IS NULL"
	sqlRangeElements = "EXISTS (SELECT 1 FROM jsonb_array_elements(" +
		"CASE jsonb_typeof(? #> ?) WHEN 'array' THEN ? #> ? ELSE jsonb_build_array(? #> ?) END" +
		") AS e(value) WHERE %s)"
	sqlNumberCheck = "jsonb_typeof(e.value) = 'number' AND (e.value #>> '{}')::numeric %s ?"
	sqlStringCheck = `jsonb_typeof(e.value) = 'string' AND (e.value #>> '{}') COLLATE "C" %s ?`
)

var comparisonOperators = map[qb.Op]string{
	qb.OpGt:  ">",
	qb.OpGte: ">=",
	qb.OpLt:  "<",
	qb.OpLte: "<=",
}

// translate turns a parsed filter into a WHERE expression over the jsonb document column.
func translate(filter entitystore.Filter) (exp.Expression, error) {
	switch f := filter.(type) {
	case entitystore.LogicalFilter:
		return translateLogical(f)
	case entitystore.FieldFilter:
		return translateField(f)
	default:
		return nil, errors.Join(entitystore.ErrInvalidFilter, fmt.Errorf("unknown filter %T", filter))
	}
}

func translateLogical(f entitystore.LogicalFilter) (exp.Expression, error) {
	children := make([]exp.Expression, 0, len(f.Children))
	for _, child := range f.Children {
		expression, err := translate(child)
		if err != nil {
			return nil, err
		}
		children = append(children, expression)
	}

	switch f.Logical {
	case qb.Or:
		if len(children) == 0 {
			return goqu.L(sqlFalse), nil
		}
		return goqu.Or(children...), nil
	case qb.Nor:
		if len(children) == 0 {
			return goqu.L(sqlTrue), nil
		}
		return goqu.L(sqlNot, goqu.Or(children...)), nil
	default:
		if len(children) == 0 {
			return goqu.L(sqlTrue), nil
		}
		return goqu.And(children...), nil
	}
}

func translateField(f entitystore.FieldFilter) (exp.Expression, error) {
	switch f.Op {
	case qb.Op(""):
		return equality(f.Path, f.Operand)

	case qb.OpNe:
		eq, err := equality(f.Path, f.Operand)
		if err != nil {
			return nil, err
		}
		return goqu.L(sqlNot, eq), nil

	case qb.OpGt, qb.OpGte, qb.OpLt, qb.OpLte:
		return rangeComparison(f.Path, f.Op, f.Operand), nil

	case qb.OpIn:
		return anyEquality(f.Path, f.Operand.([]any))

	case qb.OpNin:
		in, err := anyEquality(f.Path, f.Operand.([]any))
		if err != nil {
			return nil, err
		}
		return goqu.L(sqlNot, in), nil

	case qb.OpAll:
		return allEquality(f.Path, f.Operand.([]any))

	case qb.OpExists:
		if f.Operand.(bool) {
			return goqu.L(sqlPathExists, goqu.I(colDocument), pathLiteral(f.Path)), nil
		}
		return goqu.L(sqlPathMissing, goqu.I(colDocument), pathLiteral(f.Path)), nil

	default:
		return nil, errors.Join(entitystore.ErrUnsupportedOperator, fmt.Errorf("%q on %q", f.Op, f.Field()))
	}
}

// equality matches the value at path or, for arrays, any of its elements.
// Scalars use jsonb containment; arrays and objects must match exactly.
func equality(path []string, operand any) (exp.Expression, error) {
	wrapped, err := containment(path, []any{operand})
	if err != nil {
		return nil, err
	}

	switch operand.(type) {
	case []any, qb.Document, map[string]any:
		data, err := documentJSON.Marshal(operand)
		if err != nil {
			return nil, errors.Join(entitystore.ErrBuildingQueryFailed, err)
		}
		exact := goqu.L(sqlExactMatch, goqu.I(colDocument), pathLiteral(path), string(data))

		return goqu.Or(exact, wrapped), nil

	default:
		contained, err := containment(path, operand)
		if err != nil {
			return nil, err
		}

		return goqu.Or(contained, wrapped), nil
	}
}

func anyEquality(path []string, items []any) (exp.Expression, error) {
	if len(items) == 0 {
		return goqu.L(sqlFalse), nil
	}

	expressions := make([]exp.Expression, 0, len(items))
	for _, item := range items {
		eq, err := equality(path, item)
		if err != nil {
			return nil, err
		}
		expressions = append(expressions, eq)
	}

	return goqu.Or(expressions...), nil
}

func allEquality(path []string, items []any) (exp.Expression, error) {
	if len(items) == 0 {
		return goqu.L(sqlFalse), nil
	}

	expressions := make([]exp.Expression, 0, len(items))
	for _, item := range items {
		eq, err := equality(path, item)
		if err != nil {
			return nil, err
		}
		expressions = append(expressions, eq)
	}

	return goqu.And(expressions...), nil
}

// rangeComparison compares numbers with numbers and strings with strings, element-wise for arrays.
// Operands of other kinds never match.
func rangeComparison(path []string, op qb.Op, operand any) exp.Expression {
	var check string

	switch operand.(type) {
	case int64, float64:
		check = fmt.Sprintf(sqlNumberCheck, comparisonOperators[op])
	case string:
		check = fmt.Sprintf(sqlStringCheck, comparisonOperators[op])
	default:
		return goqu.L(sqlFalse)
	}

	document := goqu.I(colDocument)
	p := pathLiteral(path)

	return goqu.L(fmt.Sprintf(sqlRangeElements, check), document, p, document, p, document, p, operand)
}

func containment(path []string, operand any) (exp.Expression, error) {
	nested := operand
	for i := len(path) - 1; i >= 0; i-- {
		nested = map[string]any{path[i]: nested}
	}

	data, err := documentJSON.Marshal(nested)
	if err != nil {
		return nil, errors.Join(entitystore.ErrBuildingQueryFailed, err)
	}

	return goqu.L(sqlContains, goqu.I(colDocument), string(data)), nil
}

// pathLiteral renders a text[] literal for the #> operator.
func pathLiteral(path []string) string {
	quoted := make([]string, 0, len(path))
	for _, segment := range path {
		segment = strings.ReplaceAll(segment, `\`, `\\`)
		segment = strings.ReplaceAll(segment, `"`, `\"`)
		quoted = append(quoted, `"`+segment+`"`)
	}

	return "{" + strings.Join(quoted, ",") + "}"
}
