package querybuilder

import (
	"errors"
)

var (
	// ErrEmptyCombinator is returned when AllOf, AnyOf or NoneOf is called without children.
	ErrEmptyCombinator = errors.New("combinator needs at least one child node")

	// ErrEmptyFieldName is returned when a predicate is rendered for an empty field name.
	ErrEmptyFieldName = errors.New("field name must not be empty")

	// ErrTemplateNotFound is returned by OpenQuery for an alias that was never registered.
	ErrTemplateNotFound = errors.New("no template registered under this alias")

	// ErrDuplicateTemplateAlias is returned when an alias is registered a second time.
	ErrDuplicateTemplateAlias = errors.New("template alias is already registered")

	// ErrEmptyAlias is returned when a template is registered or opened with an empty alias.
	ErrEmptyAlias = errors.New("template alias must not be empty")

	// ErrTypeMismatch is returned when a bound value kind is not accepted by the placeholder.
	ErrTypeMismatch = errors.New("value kind does not match placeholder")

	// ErrUnresolvedPlaceholder is returned by strict rendering when a placeholder was not bound.
	ErrUnresolvedPlaceholder = errors.New("template has unresolved placeholders")

	// ErrUnsupportedValue is returned by ValueOf for Go values outside the Value kinds.
	ErrUnsupportedValue = errors.New("unsupported value type")

	// ErrInvalidDocument is returned when a JSON payload cannot be decoded into a Document.
	ErrInvalidDocument = errors.New("document json is not valid")
)
