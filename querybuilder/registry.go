package querybuilder

import (
	"errors"
	"fmt"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry maps aliases to compiled templates.
//
// A Registry is built once at startup and passed to whoever renders queries; it is safe for concurrent use.
// Registering an alias that is already taken fails with ErrDuplicateTemplateAlias.
type Registry struct {
	templates *xsync.MapOf[string, TemplateExpression]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{templates: xsync.NewMapOf[string, TemplateExpression]()}
}

// Register stores tpl under alias.
func (r *Registry) Register(alias string, tpl TemplateExpression) error {
	if alias == "" {
		return ErrEmptyAlias
	}

	if err := tpl.Err(); err != nil {
		return fmt.Errorf("template %q: %w", alias, err)
	}

	if _, loaded := r.templates.LoadOrStore(alias, tpl); loaded {
		return errors.Join(ErrDuplicateTemplateAlias, fmt.Errorf("alias %q", alias))
	}

	return nil
}

// RegisterTemplate builds a template starting from NewTemplate and stores it under alias.
func (r *Registry) RegisterTemplate(
	alias string,
	build func(TemplateExpression) TemplateExpression,
) (TemplateExpression, error) {

	tpl := build(NewTemplate())
	if err := r.Register(alias, tpl); err != nil {
		return TemplateExpression{}, err
	}

	return tpl, nil
}

// MustRegister is like RegisterTemplate but panics on error. It is meant for startup wiring.
func (r *Registry) MustRegister(alias string, build func(TemplateExpression) TemplateExpression) {
	if _, err := r.RegisterTemplate(alias, build); err != nil {
		panic(err)
	}
}

// Lookup returns the template registered under alias.
func (r *Registry) Lookup(alias string) (TemplateExpression, bool) {
	return r.templates.Load(alias)
}

// OpenQuery starts a fresh VariableBinder on the template registered under alias.
func (r *Registry) OpenQuery(alias string) (*VariableBinder, error) {
	if alias == "" {
		return nil, ErrEmptyAlias
	}

	tpl, ok := r.templates.Load(alias)
	if !ok {
		return nil, errors.Join(ErrTemplateNotFound, fmt.Errorf("alias %q", alias))
	}

	return tpl.Binder(), nil
}

// Deregister removes alias and reports whether it was registered.
func (r *Registry) Deregister(alias string) bool {
	_, loaded := r.templates.LoadAndDelete(alias)

	return loaded
}

// Aliases returns all registered aliases, sorted.
func (r *Registry) Aliases() []string {
	aliases := make([]string, 0, r.templates.Size())
	r.templates.Range(func(alias string, _ TemplateExpression) bool {
		aliases = append(aliases, alias)
		return true
	})
	slices.Sort(aliases)

	return aliases
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	return r.templates.Size()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	return keys
}
