// Package catalog declares query templates in YAML and registers them into a querybuilder.Registry.
//
// A catalog file looks like this:
//
//	templates:
//	  - alias: entity.by_type
//	    conditions:
//	      - field: app_id
//	        var: APP_ID
//	      - field: type
//	        var: TYPE
//	  - alias: entity.recent_books
//	    conditions:
//	      - field: type
//	        value: book
//	      - any_of:
//	          - field: created_at
//	            op: gte
//	            var: SINCE
//	          - field: properties.pinned
//	            op: exists
//
// A predicate has a field, an op (eq when omitted) and either a var (placeholder) or a value (literal).
// An exists predicate without var renders {field: {"$exists": true}}.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	qb "github.com/pful/pico/querybuilder"
)

var (
	// ErrUnknownOperator is returned for an op outside eq, ne, gt, gte, lt, lte, in, nin, all and exists.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrInvalidCondition is returned for a condition that is neither a predicate nor exactly one combinator.
	ErrInvalidCondition = errors.New("invalid condition")
)

// File is the top-level shape of a catalog file.
type File struct {
	Templates []TemplateDefinition `yaml:"templates"`
}

// TemplateDefinition declares one template and the alias it is registered under.
type TemplateDefinition struct {
	Alias       string      `yaml:"alias"`
	Description string      `yaml:"description"`
	Conditions  []Condition `yaml:"conditions"`
}

// Condition is either a predicate (Field, Op and Var or Value) or one of AllOf, AnyOf and NoneOf.
type Condition struct {
	Field  string      `yaml:"field"`
	Op     string      `yaml:"op"`
	Var    string      `yaml:"var"`
	Value  any         `yaml:"value"`
	AllOf  []Condition `yaml:"all_of"`
	AnyOf  []Condition `yaml:"any_of"`
	NoneOf []Condition `yaml:"none_of"`
}

// Parse decodes catalog YAML.
func Parse(data []byte) ([]TemplateDefinition, error) {
	var f File
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}

	return f.Templates, nil
}

// Load reads and parses a catalog file.
func Load(path string) ([]TemplateDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Register builds every definition and registers it under its alias, stopping at the first failure.
func Register(registry *qb.Registry, defs []TemplateDefinition) error {
	for _, def := range defs {
		tpl, err := Build(def)
		if err != nil {
			return err
		}

		if err := registry.Register(def.Alias, tpl); err != nil {
			return err
		}
	}

	return nil
}

// Build compiles a definition into a TemplateExpression.
func Build(def TemplateDefinition) (qb.TemplateExpression, error) {
	tpl := qb.NewTemplate()

	for i, condition := range def.Conditions {
		node, err := condition.node()
		if err != nil {
			return qb.TemplateExpression{}, fmt.Errorf("template %q condition %d: %w", def.Alias, i, err)
		}

		tpl = tpl.Where(node)
	}

	if err := tpl.Err(); err != nil {
		return qb.TemplateExpression{}, fmt.Errorf("template %q: %w", def.Alias, err)
	}

	return tpl, nil
}

func (c Condition) node() (qb.Node, error) {
	shapes := 0
	for _, set := range []bool{c.Field != "", c.AllOf != nil, c.AnyOf != nil, c.NoneOf != nil} {
		if set {
			shapes++
		}
	}

	if shapes != 1 {
		return nil, errors.Join(
			ErrInvalidCondition,
			errors.New("a condition needs exactly one of field, all_of, any_of or none_of"),
		)
	}

	switch {
	case c.AllOf != nil:
		return combine(c.AllOf, qb.AllOf)
	case c.AnyOf != nil:
		return combine(c.AnyOf, qb.AnyOf)
	case c.NoneOf != nil:
		return combine(c.NoneOf, qb.NoneOf)
	default:
		return c.predicate()
	}
}

func combine(conditions []Condition, build func(...qb.Node) qb.Node) (qb.Node, error) {
	if len(conditions) == 0 {
		return nil, qb.ErrEmptyCombinator
	}

	children := make([]qb.Node, 0, len(conditions))
	for i, condition := range conditions {
		child, err := condition.node()
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}

		children = append(children, child)
	}

	return build(children...), nil
}

func (c Condition) predicate() (qb.Node, error) {
	if c.Var != "" && c.Value != nil {
		return nil, errors.Join(ErrInvalidCondition, fmt.Errorf("field %q has both var and value", c.Field))
	}

	op := c.Op
	if op == "" {
		op = "eq"
	}

	if c.Var != "" {
		return placeholder(qb.TemplateField(c.Field), op, c.Var)
	}

	if op == "exists" {
		if c.Value != nil {
			return nil, errors.Join(ErrInvalidCondition, fmt.Errorf("field %q: exists takes no value", c.Field))
		}

		return qb.Field(c.Field).Exists(), nil
	}

	if c.Value == nil {
		return nil, errors.Join(ErrInvalidCondition, fmt.Errorf("field %q has neither var nor value", c.Field))
	}

	value, err := qb.ValueOf(c.Value)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", c.Field, err)
	}

	return literal(qb.Field(c.Field), op, value)
}

func placeholder(field qb.TemplateFieldOperator[qb.Node], op, variable string) (qb.Node, error) {
	switch op {
	case "eq":
		return field.Is(variable), nil
	case "ne":
		return field.Ne(variable), nil
	case "gt":
		return field.Gt(variable), nil
	case "gte":
		return field.Gte(variable), nil
	case "lt":
		return field.Lt(variable), nil
	case "lte":
		return field.Lte(variable), nil
	case "in":
		return field.InValues(variable), nil
	case "nin":
		return field.NinValues(variable), nil
	case "all":
		return field.AllValues(variable), nil
	case "exists":
		return field.Exists(variable), nil
	default:
		return nil, errors.Join(ErrUnknownOperator, fmt.Errorf("op %q", op))
	}
}

func literal(field qb.FieldOperator[qb.Node], op string, value qb.Value) (qb.Node, error) {
	switch op {
	case "eq":
		return field.Is(value), nil
	case "ne":
		return field.Ne(value), nil
	case "gt":
		return field.Gt(value), nil
	case "gte":
		return field.Gte(value), nil
	case "lt":
		return field.Lt(value), nil
	case "lte":
		return field.Lte(value), nil
	case "in":
		return field.InValues(value), nil
	case "nin":
		return field.NinValues(value), nil
	case "all":
		return field.AllValues(value), nil
	default:
		return nil, errors.Join(ErrUnknownOperator, fmt.Errorf("op %q", op))
	}
}
