package querybuilder

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// VariableBinder collects variable bindings for one TemplateExpression and renders concrete Documents.
//
// The template is never modified: every ToJSON call substitutes the current bindings into a fresh Document.
// Many binders may render the same template concurrently; a single binder is not safe for concurrent use.
type VariableBinder struct {
	template TemplateExpression
	bindings map[string]Value
	err      error
}

func newVariableBinder(template TemplateExpression) *VariableBinder {
	return &VariableBinder{
		template: template,
		bindings: make(map[string]Value),
	}
}

// Bind sets the value of variable at every Location it tags and returns the binder for chaining.
//
// Accepted kinds are string, number and list, and each tagged Location must accept the kind:
// comparison operators take a scalar, $in/$nin/$all take a list, $exists takes any of them.
// A mismatch records ErrTypeMismatch, which ToJSON then returns.
// An empty string at an $exists location records ErrEmptyFieldName.
// Binding a variable the template does not use is a no-op, but its kind is still checked.
// Binding a variable again replaces the value.
func (b *VariableBinder) Bind(variable string, value Value) *VariableBinder {
	if kind := value.Kind(); kind == KindBool || kind == KindInvalid {
		b.fail(errors.Join(ErrTypeMismatch, fmt.Errorf("variable %q cannot be bound to a %s", variable, kind)))
		return b
	}

	locations := b.template.index[variable]
	if len(locations) == 0 {
		return b
	}

	for _, location := range locations {
		if !location.accepts(value.Kind()) {
			b.fail(errors.Join(ErrTypeMismatch, fmt.Errorf(
				"variable %q at field %q takes no %s operand for %s",
				variable, location.Field, value.Kind(), location.Op.describe(),
			)))

			return b
		}

		if key, isString := value.AsString(); isString && key == "" && location.Op == OpExists {
			b.fail(errors.Join(ErrEmptyFieldName, fmt.Errorf("variable %q names the field of an $exists", variable)))
			return b
		}
	}

	b.bindings[variable] = value

	return b
}

// BindAll binds every entry of values, in the order of the sorted variable names.
func (b *VariableBinder) BindAll(values map[string]Value) *VariableBinder {
	for _, variable := range sortedKeys(values) {
		b.Bind(variable, values[variable])
	}

	return b
}

func (b *VariableBinder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns the first binding error, if any.
func (b *VariableBinder) Err() error {
	if b.err != nil {
		return b.err
	}

	return b.template.Err()
}

// Bindings returns a copy of the current bindings.
func (b *VariableBinder) Bindings() map[string]Value {
	return maps.Clone(b.bindings)
}

// Template returns the template the binder renders.
func (b *VariableBinder) Template() TemplateExpression {
	return b.template
}

// ToJSON renders the template with the current bindings.
//
// Unbound placeholders render as their sentinel (see PlaceholderSentinel) instead of failing,
// so a template can be rendered partially. Use ToResolvedJSON to reject that.
func (b *VariableBinder) ToJSON() (Document, error) {
	doc, _, err := b.render()

	return doc, err
}

// ToResolvedJSON renders like ToJSON but fails with ErrUnresolvedPlaceholder if any placeholder stayed unbound.
func (b *VariableBinder) ToResolvedJSON() (Document, error) {
	doc, unresolved, err := b.render()
	if err != nil {
		return nil, err
	}

	if len(unresolved) > 0 {
		return nil, errors.Join(
			ErrUnresolvedPlaceholder,
			fmt.Errorf("unbound variables: %s", strings.Join(unresolved, ", ")),
		)
	}

	return doc, nil
}

// Unresolved returns the sorted variables that would render as sentinels with the current bindings.
// A variable bound to a number or a list at an $exists location counts as unresolved.
func (b *VariableBinder) Unresolved() []string {
	_, unresolved, err := b.render()
	if err != nil {
		return nil
	}

	return unresolved
}

func (b *VariableBinder) render() (Document, []string, error) {
	if err := b.Err(); err != nil {
		return nil, nil, err
	}

	r := &renderer{bindings: b.bindings}

	doc, err := b.template.render(r)
	if err != nil {
		return nil, nil, err
	}

	return doc, r.unresolvedVariables(), nil
}
