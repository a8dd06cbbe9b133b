package querybuilder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qb "github.com/pful/pico/querybuilder"
)

func Test_Registry_OpenQueryOnUnknownAliasFails(t *testing.T) {
	registry := qb.NewRegistry()

	binder, err := registry.OpenQuery("missing")

	assert.ErrorIs(t, err, qb.ErrTemplateNotFound)
	assert.Nil(t, binder)
}

func Test_Registry_DuplicateAliasFails(t *testing.T) {
	registry := qb.NewRegistry()
	first := qb.NewTemplate().TemplateField("type").Is("TYPE")
	second := qb.NewTemplate().TemplateField("app_id").Is("APP_ID")

	require.NoError(t, registry.Register("q", first))
	err := registry.Register("q", second)

	require.ErrorIs(t, err, qb.ErrDuplicateTemplateAlias)

	kept, ok := registry.Lookup("q")
	require.True(t, ok)
	assert.Equal(t, []string{"TYPE"}, kept.Variables())
}

func Test_Registry_RejectsInvalidRegistrations(t *testing.T) {
	registry := qb.NewRegistry()

	t.Run("empty_alias", func(t *testing.T) {
		assert.ErrorIs(t, registry.Register("", qb.NewTemplate()), qb.ErrEmptyAlias)

		_, err := registry.OpenQuery("")
		assert.ErrorIs(t, err, qb.ErrEmptyAlias)
	})

	t.Run("template_with_construction_error", func(t *testing.T) {
		_, err := registry.RegisterTemplate("broken", func(t qb.TemplateExpression) qb.TemplateExpression {
			return t.AllOf()
		})

		assert.ErrorIs(t, err, qb.ErrEmptyCombinator)
		assert.Equal(t, 0, registry.Len())
	})

	t.Run("must_register_panics", func(t *testing.T) {
		registry.MustRegister("once", func(t qb.TemplateExpression) qb.TemplateExpression {
			return t.TemplateField("a").Is("")
		})

		assert.Panics(t, func() {
			registry.MustRegister("once", func(t qb.TemplateExpression) qb.TemplateExpression {
				return t
			})
		})
	})
}

func Test_Registry_AliasesAndDeregister(t *testing.T) {
	registry := qb.NewRegistry()
	require.NoError(t, registry.Register("b", qb.NewTemplate()))
	require.NoError(t, registry.Register("a", qb.NewTemplate()))

	assert.Equal(t, []string{"a", "b"}, registry.Aliases())
	assert.Equal(t, 2, registry.Len())

	assert.True(t, registry.Deregister("a"))
	assert.False(t, registry.Deregister("a"))

	_, err := registry.OpenQuery("a")
	assert.ErrorIs(t, err, qb.ErrTemplateNotFound)
	assert.Equal(t, []string{"b"}, registry.Aliases())
}
