package querybuilder

import (
	"errors"
	"fmt"
	"slices"
)

// Op is a comparison operator of a predicate, rendered as the operator key of the filter document.
type Op string

// List of the supported comparison operators. Equality has no operator key.
const (
	opEq     Op = ""
	OpNe     Op = "$ne"
	OpGt     Op = "$gt"
	OpGte    Op = "$gte"
	OpLt     Op = "$lt"
	OpLte    Op = "$lte"
	OpIn     Op = "$in"
	OpNin    Op = "$nin"
	OpAll    Op = "$all"
	OpExists Op = "$exists"
)

// IsEquality reports whether the Op is the implicit equality operator.
func (op Op) IsEquality() bool {
	return op == opEq
}

// takesList reports whether the operand of the Op is an array.
func (op Op) takesList() bool {
	return op == OpIn || op == OpNin || op == OpAll
}

func (op Op) describe() string {
	if op == opEq {
		return "equality"
	}

	return string(op)
}

// Logical is the kind of a Combinator.
type Logical string

// List of the supported combinator kinds.
const (
	And Logical = "$and"
	Or  Logical = "$or"
	Nor Logical = "$nor"
)

// Node is one fragment of a filter: a Literal, an Operator, a Combinator, a Placeholder or a whole Expression.
// The set of implementations is closed.
type Node interface {
	render(r *renderer) (Document, error)
}

// Literal matches documents whose field equals the value.
type Literal struct {
	field string
	value Value
}

// Field returns the field name of the Literal.
func (l Literal) Field() string {
	return l.field
}

// Value returns the operand of the Literal.
func (l Literal) Value() Value {
	return l.value
}

func (l Literal) render(_ *renderer) (Document, error) {
	if l.field == "" {
		return nil, ErrEmptyFieldName
	}

	if !l.value.IsValid() {
		return nil, errors.Join(ErrUnsupportedValue, fmt.Errorf("field %q has no value", l.field))
	}

	return Document{l.field: l.value.Native()}, nil
}

// Operator matches documents whose field satisfies the comparison operator against the operand.
type Operator struct {
	field   string
	op      Op
	operand Value
}

// Field returns the field name of the Operator.
func (o Operator) Field() string {
	return o.field
}

// Op returns the comparison operator.
func (o Operator) Op() Op {
	return o.op
}

// Operand returns the operand of the comparison.
func (o Operator) Operand() Value {
	return o.operand
}

func (o Operator) render(_ *renderer) (Document, error) {
	if o.field == "" {
		return nil, ErrEmptyFieldName
	}

	if !o.operand.IsValid() {
		return nil, errors.Join(ErrUnsupportedValue, fmt.Errorf("field %q has no operand for %s", o.field, o.op))
	}

	return Document{o.field: Document{string(o.op): o.operand.Native()}}, nil
}

// Combinator groups child nodes with $and, $or or $nor.
type Combinator struct {
	logical  Logical
	children []Node
}

func newCombinator(logical Logical, children []Node) Combinator {
	return Combinator{logical: logical, children: slices.Clone(children)}
}

// Logical returns the kind of the Combinator.
func (c Combinator) Logical() Logical {
	return c.logical
}

// Children returns a copy of the child nodes in argument order.
func (c Combinator) Children() []Node {
	return slices.Clone(c.children)
}

func (c Combinator) render(r *renderer) (Document, error) {
	if len(c.children) == 0 {
		return nil, errors.Join(ErrEmptyCombinator, fmt.Errorf("%s without children", c.logical))
	}

	rendered := make([]any, 0, len(c.children))
	for _, child := range c.children {
		doc, err := child.render(r)
		if err != nil {
			return nil, err
		}

		rendered = append(rendered, doc)
	}

	return Document{string(c.logical): rendered}, nil
}

// Placeholder is a predicate whose operand is deferred to a named template variable.
//
// For OpExists the variable stands for the field key itself, not for the operand.
type Placeholder struct {
	field    string
	op       Op
	variable string
}

// Field returns the field name the Placeholder was declared on.
func (p Placeholder) Field() string {
	return p.field
}

// Op returns the comparison operator of the Placeholder.
func (p Placeholder) Op() Op {
	return p.op
}

// Variable returns the template variable name.
func (p Placeholder) Variable() string {
	return p.variable
}

func (p Placeholder) render(r *renderer) (Document, error) {
	if p.variable == "" {
		return nil, ErrEmptyFieldName
	}

	value, bound := r.lookup(p.variable)

	if p.op == OpExists {
		key, isString := value.AsString()
		if !bound || !isString {
			// numbers and lists leave the key unresolved
			r.markUnresolved(p.variable)
			return Document{PlaceholderSentinel(p.variable): unboundKey{string(OpExists): true}}, nil
		}

		return Document{key: Document{string(OpExists): true}}, nil
	}

	if p.field == "" {
		return nil, ErrEmptyFieldName
	}

	var operand any
	if bound {
		operand = value.Native()
	} else {
		r.markUnresolved(p.variable)
		operand = sentinelOf(p.variable)
	}

	if p.op == opEq {
		return Document{p.field: operand}, nil
	}

	return Document{p.field: Document{string(p.op): operand}}, nil
}

// renderer carries the bindings of one rendering pass and collects what stayed unresolved.
type renderer struct {
	bindings   map[string]Value
	unresolved map[string]struct{}
}

func (r *renderer) lookup(variable string) (Value, bool) {
	value, ok := r.bindings[variable]
	return value, ok
}

func (r *renderer) markUnresolved(variable string) {
	if r.unresolved == nil {
		r.unresolved = make(map[string]struct{})
	}

	r.unresolved[variable] = struct{}{}
}

func (r *renderer) unresolvedVariables() []string {
	variables := make([]string, 0, len(r.unresolved))
	for variable := range r.unresolved {
		variables = append(variables, variable)
	}
	slices.Sort(variables)

	return variables
}

var (
	_ Node = Literal{}
	_ Node = Operator{}
	_ Node = Combinator{}
	_ Node = Placeholder{}
	_ Node = Expression{}
)
