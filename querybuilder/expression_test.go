package querybuilder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qb "github.com/pful/pico/querybuilder"
)

func Test_Expression_RendersPredicatesAndCombinators(t *testing.T) {
	tests := []struct {
		name     string
		build    func() qb.Expression
		expected string
	}{
		{
			name: "greater_than",
			build: func() qb.Expression {
				return qb.NewQuery().Field("qty").Gt(qb.Int(10))
			},
			expected: `{"qty": {"$gt": 10}}`,
		},
		{
			name: "all_of_two_literals",
			build: func() qb.Expression {
				return qb.NewQuery().AllOf(qb.Field("a").Is(qb.Int(1)), qb.Field("b").Is(qb.Int(2)))
			},
			expected: `{"$and": [{"a": 1}, {"b": 2}]}`,
		},
		{
			name: "any_of_same_field_with_floats",
			build: func() qb.Expression {
				return qb.NewQuery().AnyOf(qb.Field("price").Is(qb.Float(0.99)), qb.Field("price").Is(qb.Float(1.99)))
			},
			expected: `{"$or": [{"price": 0.99}, {"price": 1.99}]}`,
		},
		{
			name: "in_values_keeps_order",
			build: func() qb.Expression {
				return qb.NewQuery().Field("tags").InValues(qb.Str("x"), qb.Str("y"))
			},
			expected: `{"tags": {"$in": ["x", "y"]}}`,
		},
		{
			name: "in_values_from_a_list_renders_like_variadic",
			build: func() qb.Expression {
				return qb.NewQuery().Field("tags").InValues(qb.Strings("x", "y"))
			},
			expected: `{"tags": {"$in": ["x", "y"]}}`,
		},
		{
			name: "in_values_with_a_nested_list_matches_an_array_element",
			build: func() qb.Expression {
				return qb.NewQuery().Field("pairs").InValues(qb.List(qb.Strings("a", "b")))
			},
			expected: `{"pairs": {"$in": [["a", "b"]]}}`,
		},
		{
			name: "nin_and_all_values",
			build: func() qb.Expression {
				return qb.NewQuery().
					Field("groups").NinValues(qb.Str("admins")).
					Field("sizes").AllValues(qb.Numbers(3, 1, 2))
			},
			expected: `{"groups": {"$nin": ["admins"]}, "sizes": {"$all": [3, 1, 2]}}`,
		},
		{
			name: "comparison_operators",
			build: func() qb.Expression {
				return qb.NewQuery().
					Field("a").Ne(qb.Str("x")).
					Field("b").Gte(qb.Int(1)).
					Field("c").Lt(qb.Float(2.5)).
					Field("d").Lte(qb.Int(-3))
			},
			expected: `{"a": {"$ne": "x"}, "b": {"$gte": 1}, "c": {"$lt": 2.5}, "d": {"$lte": -3}}`,
		},
		{
			name: "exists_renders_true",
			build: func() qb.Expression {
				return qb.NewQuery().Field("properties.color").Exists()
			},
			expected: `{"properties.color": {"$exists": true}}`,
		},
		{
			name: "eq_is_alias_of_is",
			build: func() qb.Expression {
				return qb.NewQuery().Field("type").Eq(qb.Str("book"))
			},
			expected: `{"type": "book"}`,
		},
		{
			name: "none_of_nested_any_of",
			build: func() qb.Expression {
				return qb.NewQuery().NoneOf(
					qb.AnyOf(qb.Field("a").Is(qb.Int(1)), qb.Field("b").Is(qb.Bool(true))),
					qb.Field("c").Exists(),
				)
			},
			expected: `{"$nor": [{"$or": [{"a": 1}, {"b": true}]}, {"c": {"$exists": true}}]}`,
		},
		{
			name: "field_after_combinator_is_a_new_top_level_node",
			build: func() qb.Expression {
				return qb.NewQuery().
					AllOf(qb.Field("a").Is(qb.Int(1))).
					Field("b").Is(qb.Int(2))
			},
			expected: `{"$and": [{"a": 1}], "b": 2}`,
		},
		{
			name: "nested_expression_as_combinator_child",
			build: func() qb.Expression {
				inner := qb.NewQuery().Field("a").Is(qb.Int(1)).Field("b").Is(qb.Int(2))
				return qb.NewQuery().AnyOf(inner, qb.Field("c").Is(qb.Int(3)))
			},
			expected: `{"$or": [{"a": 1, "b": 2}, {"c": 3}]}`,
		},
		{
			name: "empty_query",
			build: func() qb.Expression {
				return qb.NewQuery()
			},
			expected: `{}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := tc.build().ToJSON()

			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, doc.String())
		})
	}
}

func Test_Expression_PreservesNumericKind(t *testing.T) {
	doc, err := qb.NewQuery().
		Field("int").Is(qb.Int(10)).
		Field("float").Is(qb.Float(10)).
		Field("generic_int").Is(qb.Num(uint8(7))).
		Field("generic_float").Is(qb.Num(float32(0.5))).
		ToJSON()

	require.NoError(t, err)
	assert.Equal(t, int64(10), doc["int"])
	assert.Equal(t, float64(10), doc["float"])
	assert.Equal(t, int64(7), doc["generic_int"])
	assert.Equal(t, float64(0.5), doc["generic_float"])
}

func Test_Expression_EmptyCombinatorFails(t *testing.T) {
	t.Run("on_expression", func(t *testing.T) {
		expr := qb.NewQuery().Field("a").Is(qb.Int(1)).AnyOf()

		require.ErrorIs(t, expr.Err(), qb.ErrEmptyCombinator)

		_, err := expr.ToJSON()
		assert.ErrorIs(t, err, qb.ErrEmptyCombinator)
	})

	t.Run("error_is_sticky", func(t *testing.T) {
		expr := qb.NewQuery().NoneOf().Field("a").Is(qb.Int(1))

		_, err := expr.ToJSON()
		assert.ErrorIs(t, err, qb.ErrEmptyCombinator)
	})

	t.Run("free_standing_node_fails_when_rendered", func(t *testing.T) {
		_, err := qb.NewQuery().AllOf(qb.Field("a").Is(qb.Int(1)), qb.AnyOf()).ToJSON()

		assert.ErrorIs(t, err, qb.ErrEmptyCombinator)
	})
}

func Test_Expression_RejectsInvalidPredicates(t *testing.T) {
	t.Run("empty_field_name", func(t *testing.T) {
		_, err := qb.NewQuery().Field("").Is(qb.Int(1)).ToJSON()

		assert.ErrorIs(t, err, qb.ErrEmptyFieldName)
	})

	t.Run("zero_value_operand", func(t *testing.T) {
		_, err := qb.NewQuery().Field("a").Gt(qb.Value{}).ToJSON()

		assert.ErrorIs(t, err, qb.ErrUnsupportedValue)
	})
}

func Test_Expression_TopLevelCollisionOverwrites(t *testing.T) {
	expr := qb.NewQuery().
		Field("status").Is(qb.Str("open")).
		Field("owner").Is(qb.Str("ann")).
		Field("status").Is(qb.Str("closed"))

	doc, err := expr.ToJSON()

	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "closed", "owner": "ann"}`, doc.String())
	assert.Equal(t, []string{"status"}, expr.Collisions())
}

func Test_Expression_IsImmutable(t *testing.T) {
	base := qb.NewQuery().Field("app_id").Is(qb.Str("app42"))

	books := base.Field("type").Is(qb.Str("book"))
	films := base.Field("type").Is(qb.Str("film"))

	baseDoc, err := base.ToJSON()
	require.NoError(t, err)
	booksDoc, err := books.ToJSON()
	require.NoError(t, err)
	filmsDoc, err := films.ToJSON()
	require.NoError(t, err)

	assert.Equal(t, 1, base.Len())
	assert.JSONEq(t, `{"app_id": "app42"}`, baseDoc.String())
	assert.JSONEq(t, `{"app_id": "app42", "type": "book"}`, booksDoc.String())
	assert.JSONEq(t, `{"app_id": "app42", "type": "film"}`, filmsDoc.String())
}

func Test_Expression_RenderingIsIdempotent(t *testing.T) {
	expr := qb.NewQuery().
		AnyOf(qb.Field("a").InValues(qb.Int(3), qb.Int(1), qb.Int(2)), qb.Field("b").Exists()).
		Field("c").Lte(qb.Float(1.5))

	first, err := expr.ToJSON()
	require.NoError(t, err)
	second, err := expr.ToJSON()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.String(), second.String())
}

func Test_Expression_NodesExposeTheTree(t *testing.T) {
	expr := qb.NewQuery().
		Field("a").Gt(qb.Int(1)).
		AllOf(qb.Field("b").Is(qb.Str("x")))

	nodes := expr.Nodes()
	require.Len(t, nodes, 2)

	operator, ok := nodes[0].(qb.Operator)
	require.True(t, ok)
	assert.Equal(t, "a", operator.Field())
	assert.Equal(t, qb.OpGt, operator.Op())
	assert.Equal(t, qb.Int(1), operator.Operand())

	combinator, ok := nodes[1].(qb.Combinator)
	require.True(t, ok)
	assert.Equal(t, qb.And, combinator.Logical())
	require.Len(t, combinator.Children(), 1)

	literal, ok := combinator.Children()[0].(qb.Literal)
	require.True(t, ok)
	assert.Equal(t, "b", literal.Field())
	assert.Equal(t, qb.Str("x"), literal.Value())
}
