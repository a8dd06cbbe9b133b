package querybuilder

import (
	"maps"
	"slices"
	"strings"
)

const (
	sentinelPrefix = "<#"
	sentinelSuffix = ">"
)

// PlaceholderSentinel returns the marker an unbound variable renders as, e.g. "<#APP_ID>".
func PlaceholderSentinel(variable string) string {
	return sentinelPrefix + variable + sentinelSuffix
}

// ParsePlaceholderSentinel returns the variable name if s is a placeholder sentinel.
func ParsePlaceholderSentinel(s string) (string, bool) {
	if len(s) <= len(sentinelPrefix)+len(sentinelSuffix) {
		return "", false
	}

	if !strings.HasPrefix(s, sentinelPrefix) || !strings.HasSuffix(s, sentinelSuffix) {
		return "", false
	}

	return s[len(sentinelPrefix) : len(s)-len(sentinelSuffix)], true
}

// Sentinel is how an unbound variable renders in an operand position, e.g. "<#APP_ID>".
// It encodes as a JSON string; a plain string operand with the same text is ordinary data.
type Sentinel string

func sentinelOf(variable string) Sentinel {
	return Sentinel(PlaceholderSentinel(variable))
}

// Variable returns the variable name of the Sentinel.
func (s Sentinel) Variable() string {
	variable, _ := ParsePlaceholderSentinel(string(s))
	return variable
}

// unboundKey holds the operators under a sentinel key, i.e. an $exists whose field is still a variable.
// It encodes like a Document.
type unboundKey map[string]any

// Placeholders returns the sorted, distinct variable names still unbound in a rendered Document,
// found in keys as well as in values. Only sentinels produced by rendering a template count:
// a string that merely looks like "<#NAME>" is data.
func Placeholders(doc Document) []string {
	found := make(map[string]struct{})
	collectSentinels(doc, found)

	variables := slices.Collect(maps.Keys(found))
	slices.Sort(variables)

	return variables
}

func collectSentinels(v any, found map[string]struct{}) {
	switch typed := v.(type) {
	case Document:
		for key, value := range typed {
			if _, unbound := value.(unboundKey); unbound {
				if variable, ok := ParsePlaceholderSentinel(key); ok {
					found[variable] = struct{}{}
				}
			}
			collectSentinels(value, found)
		}
	case map[string]any:
		collectSentinels(Document(typed), found)
	case []any:
		for _, item := range typed {
			collectSentinels(item, found)
		}
	case Sentinel:
		found[typed.Variable()] = struct{}{}
	}
}

// Location is one place in a template tree tagged with a variable.
//
// Path holds the index of the top-level node followed by the child index at each nested level.
type Location struct {
	Path  []int
	Field string
	Op    Op
}

// accepts reports whether a bound value of the given kind can be substituted at the Location.
func (l Location) accepts(kind Kind) bool {
	switch {
	case kind == KindBool || kind == KindInvalid:
		return false
	case l.Op == OpExists:
		return true
	case l.Op.takesList():
		return kind == KindList
	default:
		return kind != KindList
	}
}

// TemplateExpression is an Expression whose nodes may contain Placeholders, plus the variable index
// that maps each variable name to every Location it tags.
//
// Like Expression it is an immutable value; it is compiled once, typically registered in a Registry,
// and rendered many times through VariableBinders.
type TemplateExpression struct {
	expr  Expression
	index map[string][]Location
}

// NewTemplate starts an empty TemplateExpression.
func NewTemplate() TemplateExpression {
	return TemplateExpression{}
}

// Field adds a predicate with a concrete value, which is the same for every rendering.
func (t TemplateExpression) Field(name string) FieldOperator[TemplateExpression] {
	return FieldOperator[TemplateExpression]{name: name, emit: t.with}
}

// TemplateField adds a predicate whose operand is deferred to a variable.
func (t TemplateExpression) TemplateField(name string) TemplateFieldOperator[TemplateExpression] {
	return TemplateFieldOperator[TemplateExpression]{name: name, emit: t.with}
}

// AllOf appends {"$and": [children...]}; children may contain Placeholders.
func (t TemplateExpression) AllOf(children ...Node) TemplateExpression {
	return t.combine(t.expr.AllOf(children...))
}

// AnyOf appends {"$or": [children...]}; children may contain Placeholders.
func (t TemplateExpression) AnyOf(children ...Node) TemplateExpression {
	return t.combine(t.expr.AnyOf(children...))
}

// NoneOf appends {"$nor": [children...]}; children may contain Placeholders.
func (t TemplateExpression) NoneOf(children ...Node) TemplateExpression {
	return t.combine(t.expr.NoneOf(children...))
}

// Where appends already built nodes as top-level nodes.
func (t TemplateExpression) Where(nodes ...Node) TemplateExpression {
	for _, node := range nodes {
		t = t.with(node)
	}

	return t
}

func (t TemplateExpression) combine(next Expression) TemplateExpression {
	if next.Len() == t.expr.Len() {
		// construction failed, nothing was appended
		t.expr = next
		return t
	}

	return t.adopt(next, next.nodes[len(next.nodes)-1])
}

func (t TemplateExpression) with(node Node) TemplateExpression {
	return t.adopt(t.expr.with(node), node)
}

// adopt takes next as the new expression and tags every Placeholder of its last node.
func (t TemplateExpression) adopt(next Expression, added Node) TemplateExpression {
	index := make(map[string][]Location, len(t.index)+1)
	for variable, locations := range t.index {
		index[variable] = slices.Clip(locations)
	}

	walkPlaceholders(added, []int{next.Len() - 1}, func(p Placeholder, path []int) {
		index[p.variable] = append(index[p.variable], Location{Path: path, Field: p.field, Op: p.op})
	})

	t.expr = next
	t.index = index

	return t
}

func walkPlaceholders(node Node, path []int, visit func(Placeholder, []int)) {
	switch typed := node.(type) {
	case Placeholder:
		visit(typed, slices.Clone(path))
	case Combinator:
		for i, child := range typed.children {
			walkPlaceholders(child, append(slices.Clip(path), i), visit)
		}
	case Expression:
		for i, child := range typed.nodes {
			walkPlaceholders(child, append(slices.Clip(path), i), visit)
		}
	case TemplateExpression:
		for i, child := range typed.expr.nodes {
			walkPlaceholders(child, append(slices.Clip(path), i), visit)
		}
	}
}

// Variables returns the sorted variable names of the template.
func (t TemplateExpression) Variables() []string {
	variables := slices.Collect(maps.Keys(t.index))
	slices.Sort(variables)

	return variables
}

// Locations returns every Location tagged with variable, in tree order.
func (t TemplateExpression) Locations(variable string) []Location {
	locations := t.index[variable]
	copied := make([]Location, 0, len(locations))
	for _, location := range locations {
		location.Path = slices.Clone(location.Path)
		copied = append(copied, location)
	}

	return copied
}

// Len returns the number of top-level nodes.
func (t TemplateExpression) Len() int {
	return t.expr.Len()
}

// Err returns the first construction error, if any.
func (t TemplateExpression) Err() error {
	return t.expr.err
}

// ToJSON renders the template with every placeholder unresolved.
func (t TemplateExpression) ToJSON() (Document, error) {
	return t.expr.ToJSON()
}

// Binder starts a VariableBinder on the template.
func (t TemplateExpression) Binder() *VariableBinder {
	return newVariableBinder(t)
}

func (t TemplateExpression) render(r *renderer) (Document, error) {
	return t.expr.render(r)
}

var _ Node = TemplateExpression{}
