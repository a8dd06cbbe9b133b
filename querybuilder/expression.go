package querybuilder

import (
	"errors"
	"fmt"
	"slices"
)

// Expression is an ordered sequence of top-level nodes that renders into one filter Document.
//
// Expression is an immutable value: every builder call returns a new Expression and leaves the receiver untouched,
// so a partially built Expression can be reused as a common prefix.
//
// Top-level nodes are NOT wrapped in an implicit $and. Rendering merges their fragments by shallow key union,
// and when two top-level nodes produce the same key the later one wins (see Collisions).
//
// The first construction error is kept and returned by ToJSON.
type Expression struct {
	nodes []Node
	err   error
}

// NewQuery starts an empty Expression.
func NewQuery() Expression {
	return Expression{}
}

// Field starts a predicate on name; the terminal call appends it as a new top-level node.
func (e Expression) Field(name string) FieldOperator[Expression] {
	return FieldOperator[Expression]{name: name, emit: e.with}
}

// AllOf appends {"$and": [children...]} as a new top-level node.
func (e Expression) AllOf(children ...Node) Expression {
	return e.combine(And, children)
}

// AnyOf appends {"$or": [children...]} as a new top-level node.
func (e Expression) AnyOf(children ...Node) Expression {
	return e.combine(Or, children)
}

// NoneOf appends {"$nor": [children...]} as a new top-level node.
func (e Expression) NoneOf(children ...Node) Expression {
	return e.combine(Nor, children)
}

// Where appends already built nodes as top-level nodes.
func (e Expression) Where(nodes ...Node) Expression {
	for _, node := range nodes {
		e = e.with(node)
	}

	return e
}

func (e Expression) combine(logical Logical, children []Node) Expression {
	if len(children) == 0 {
		return e.withErr(errors.Join(ErrEmptyCombinator, fmt.Errorf("%s without children", logical)))
	}

	return e.with(newCombinator(logical, children))
}

func (e Expression) with(node Node) Expression {
	nodes := make([]Node, len(e.nodes), len(e.nodes)+1)
	copy(nodes, e.nodes)
	e.nodes = append(nodes, node)

	return e
}

func (e Expression) withErr(err error) Expression {
	if e.err == nil {
		e.err = err
	}

	return e
}

// Nodes returns a copy of the top-level nodes in the order they were added.
func (e Expression) Nodes() []Node {
	return slices.Clone(e.nodes)
}

// Len returns the number of top-level nodes.
func (e Expression) Len() int {
	return len(e.nodes)
}

// Err returns the first construction error, if any.
func (e Expression) Err() error {
	return e.err
}

// ToJSON renders the Expression into a filter Document.
func (e Expression) ToJSON() (Document, error) {
	return e.render(&renderer{})
}

// Collisions returns the top-level keys that more than one top-level node produced, in order of their
// first overwrite. Rendering keeps the value of the last of those nodes.
func (e Expression) Collisions() []string {
	if e.err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	collisions := make([]string, 0)
	r := &renderer{}

	for _, node := range e.nodes {
		fragment, err := node.render(r)
		if err != nil {
			return nil
		}

		for _, key := range fragment.Keys() {
			if _, ok := seen[key]; ok && !slices.Contains(collisions, key) {
				collisions = append(collisions, key)
			}
			seen[key] = struct{}{}
		}
	}

	return collisions
}

func (e Expression) render(r *renderer) (Document, error) {
	if e.err != nil {
		return nil, e.err
	}

	doc := make(Document, len(e.nodes))
	for _, node := range e.nodes {
		fragment, err := node.render(r)
		if err != nil {
			return nil, err
		}

		for key, value := range fragment {
			doc[key] = value
		}
	}

	return doc, nil
}

// AllOf builds a free-standing {"$and": [children...]} node.
func AllOf(children ...Node) Node {
	return newCombinator(And, children)
}

// AnyOf builds a free-standing {"$or": [children...]} node.
func AnyOf(children ...Node) Node {
	return newCombinator(Or, children)
}

// NoneOf builds a free-standing {"$nor": [children...]} node.
func NoneOf(children ...Node) Node {
	return newCombinator(Nor, children)
}
