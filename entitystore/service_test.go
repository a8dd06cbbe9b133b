package entitystore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pful/pico/entitystore"
	"github.com/pful/pico/entitystore/memoryengine"
	qb "github.com/pful/pico/querybuilder"
	"github.com/pful/pico/testutil/helper"
)

var app = entitystore.ApplicationContext{AppID: "app42"}

func newService(t *testing.T, options ...entitystore.Option) *entitystore.Service {
	t.Helper()

	clock := time.Unix(1_700_000_000, 0)
	options = append([]entitystore.Option{entitystore.WithClock(func() time.Time { return clock })}, options...)

	service, err := entitystore.NewService(memoryengine.NewEngine(), options...)
	require.NoError(t, err)

	return service
}

func createUsers(t *testing.T, service *entitystore.Service, names ...string) map[string]string {
	t.Helper()

	ids := make(map[string]string, len(names))
	for _, name := range names {
		e, err := service.Create(context.Background(), app, "user", map[string]any{"name": name})
		require.NoError(t, err)
		ids[name] = e.ID
	}

	return ids
}

func Test_NewService(t *testing.T) {
	t.Run("nil_engine_fails", func(t *testing.T) {
		_, err := entitystore.NewService(nil)
		assert.ErrorIs(t, err, entitystore.ErrNilEngine)
	})

	t.Run("registers_standard_templates", func(t *testing.T) {
		registry := qb.NewRegistry()
		service, err := entitystore.NewService(memoryengine.NewEngine(), entitystore.WithTemplateRegistry(registry))
		require.NoError(t, err)

		assert.Same(t, registry, service.Templates())
		assert.Contains(t, registry.Aliases(), entitystore.TemplateGroupUnion)
	})

	t.Run("shared_registry_cannot_be_reused", func(t *testing.T) {
		registry := qb.NewRegistry()
		_, err := entitystore.NewService(memoryengine.NewEngine(), entitystore.WithTemplateRegistry(registry))
		require.NoError(t, err)

		_, err = entitystore.NewService(memoryengine.NewEngine(), entitystore.WithTemplateRegistry(registry))
		assert.ErrorIs(t, err, qb.ErrDuplicateTemplateAlias)
	})

	t.Run("nil_clock_fails", func(t *testing.T) {
		_, err := entitystore.NewService(memoryengine.NewEngine(), entitystore.WithClock(nil))
		assert.ErrorIs(t, err, entitystore.ErrInvalidArgument)
	})
}

func Test_Service_EntityLifecycle(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, app, "user", map[string]any{"name": "ada", "age": 36})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, int64(1_700_000_000), created.CreatedAt)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	read, err := service.Read(ctx, app, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "user", read.Type)
	assert.Equal(t, "ada", read.Properties["name"])

	updated, err := service.Update(ctx, app, created.ID, "", map[string]any{"name": "ada l."})
	require.NoError(t, err)
	assert.Equal(t, "user", updated.Type)
	assert.Equal(t, "ada l.", updated.Properties["name"])

	_, err = service.Read(ctx, entitystore.ApplicationContext{AppID: "other"}, created.ID)
	assert.ErrorIs(t, err, entitystore.ErrEntityNotFound)

	require.NoError(t, service.Delete(ctx, app, created.ID))

	_, err = service.Read(ctx, app, created.ID)
	assert.ErrorIs(t, err, entitystore.ErrEntityNotFound)

	err = service.Delete(ctx, app, created.ID)
	assert.ErrorIs(t, err, entitystore.ErrEntityNotFound)
}

func Test_Service_InvalidArguments(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func() error
		expected error
	}{
		{
			name: "empty_app_id",
			call: func() error {
				_, err := service.Create(ctx, entitystore.ApplicationContext{}, "user", nil)
				return err
			},
			expected: entitystore.ErrInvalidApplicationContext,
		},
		{
			name: "empty_type",
			call: func() error {
				_, err := service.Create(ctx, app, "", nil)
				return err
			},
			expected: entitystore.ErrInvalidArgument,
		},
		{
			name: "negative_offset",
			call: func() error {
				_, err := service.List(ctx, app, "user", -1, 10)
				return err
			},
			expected: entitystore.ErrInvalidArgument,
		},
		{
			name: "zero_limit",
			call: func() error {
				_, err := service.List(ctx, app, "user", 0, 0)
				return err
			},
			expected: entitystore.ErrInvalidArgument,
		},
		{
			name: "empty_group",
			call: func() error {
				_, err := service.AddToGroup(ctx, app, "id", "")
				return err
			},
			expected: entitystore.ErrInvalidArgument,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.call(), tc.expected)
		})
	}
}

func Test_Service_List(t *testing.T) {
	service := newService(t)
	ctx := context.Background()
	ids := createUsers(t, service, "ada", "bob", "cy")

	_, err := service.Create(ctx, app, "device", map[string]any{"serial": "x-1", "active": true})
	require.NoError(t, err)

	t.Run("pages_by_type", func(t *testing.T) {
		page, err := service.List(ctx, app, "user", 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, ids["bob"], page[0].ID)
	})

	t.Run("with_property", func(t *testing.T) {
		found, err := service.ListWithProperty(ctx, app, "active")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "device", found[0].Type)
	})

	t.Run("query_by_alias", func(t *testing.T) {
		found, err := service.Query(ctx, entitystore.TemplateEntityByType, map[string]qb.Value{
			entitystore.VarAppID: qb.Str(app.AppID),
			entitystore.VarType:  qb.Str("user"),
		}, entitystore.FindOptions{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{ids["ada"], ids["bob"]}, found.IDs())
	})

	t.Run("query_needs_all_bindings", func(t *testing.T) {
		_, err := service.Query(ctx, entitystore.TemplateEntityByType, map[string]qb.Value{
			entitystore.VarAppID: qb.Str(app.AppID),
		}, entitystore.FindOptions{})
		assert.ErrorIs(t, err, qb.ErrUnresolvedPlaceholder)
	})

	t.Run("query_unknown_alias", func(t *testing.T) {
		_, err := service.Query(ctx, "nope", nil, entitystore.FindOptions{})
		assert.ErrorIs(t, err, qb.ErrTemplateNotFound)
	})
}

//nolint:funlen
func Test_Service_Groups(t *testing.T) {
	service := newService(t)
	ctx := context.Background()
	ids := createUsers(t, service, "ada", "bob", "cy")

	mustAdd := func(name, group string) {
		_, err := service.AddToGroup(ctx, app, ids[name], group)
		require.NoError(t, err)
	}

	mustAdd("ada", "admins")
	mustAdd("ada", "readers")
	mustAdd("bob", "readers")

	t.Run("adding_twice_is_unchanged", func(t *testing.T) {
		_, err := service.AddToGroup(ctx, app, ids["ada"], "admins")
		assert.ErrorIs(t, err, entitystore.ErrGroupUnchanged)
	})

	t.Run("adding_unknown_entity_is_unchanged", func(t *testing.T) {
		_, err := service.AddToGroup(ctx, app, "missing", "admins")
		assert.ErrorIs(t, err, entitystore.ErrGroupUnchanged)
	})

	t.Run("groups", func(t *testing.T) {
		groups, err := service.Groups(ctx, app)
		require.NoError(t, err)
		assert.Equal(t, []string{"admins", "readers"}, groups)

		of, err := service.GroupsOf(ctx, app, ids["ada"])
		require.NoError(t, err)
		assert.Equal(t, []string{"admins", "readers"}, of)
	})

	t.Run("members", func(t *testing.T) {
		members, err := service.Members(ctx, app, "readers")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{ids["ada"], ids["bob"]}, members.IDs())
	})

	t.Run("set_operations", func(t *testing.T) {
		union, err := service.Union(ctx, app, "admins", "readers")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{ids["ada"], ids["bob"]}, union.IDs())

		intersection, err := service.Intersection(ctx, app, "admins", "readers")
		require.NoError(t, err)
		assert.Equal(t, []string{ids["ada"]}, intersection.IDs())

		difference, err := service.Difference(ctx, app, "readers", "admins")
		require.NoError(t, err)
		assert.Equal(t, []string{ids["bob"]}, difference.IDs())

		subset, err := service.Subset(ctx, app, "readers", "admins")
		require.NoError(t, err)
		assert.True(t, subset)

		subset, err = service.Subset(ctx, app, "admins", "readers")
		require.NoError(t, err)
		assert.False(t, subset)
	})

	t.Run("rename_entity_group", func(t *testing.T) {
		renamed, err := service.RenameEntityGroup(ctx, app, ids["bob"], "readers", "writers")
		require.NoError(t, err)
		assert.Equal(t, []string{"writers"}, renamed.Groups)

		_, err = service.RenameEntityGroup(ctx, app, ids["bob"], "readers", "writers")
		assert.ErrorIs(t, err, entitystore.ErrGroupUnchanged)
	})

	t.Run("rename_group_merges_duplicates", func(t *testing.T) {
		changed, err := service.RenameGroup(ctx, app, "admins", "readers")
		require.NoError(t, err)
		assert.Equal(t, int64(1), changed)

		of, err := service.GroupsOf(ctx, app, ids["ada"])
		require.NoError(t, err)
		assert.Equal(t, []string{"readers"}, of)
	})

	t.Run("remove_from_group", func(t *testing.T) {
		removed, err := service.RemoveFromGroup(ctx, app, ids["ada"], "readers")
		require.NoError(t, err)
		assert.Empty(t, removed.Groups)

		_, err = service.RemoveFromGroup(ctx, app, ids["ada"], "readers")
		assert.ErrorIs(t, err, entitystore.ErrGroupUnchanged)
	})

	t.Run("delete_group", func(t *testing.T) {
		changed, err := service.DeleteGroup(ctx, app, "writers")
		require.NoError(t, err)
		assert.Equal(t, int64(1), changed)

		groups, err := service.Groups(ctx, app)
		require.NoError(t, err)
		assert.Empty(t, groups)
	})
}

func Test_Service_Observability(t *testing.T) {
	logHandler := helper.NewLogHandlerSpy(false)
	metrics := helper.NewMetricsCollectorSpy()
	service := newService(t,
		entitystore.WithLogger(logHandler.Logger()),
		entitystore.WithMetrics(metrics),
	)
	ctx := context.Background()

	_, err := service.Create(ctx, app, "user", nil)
	require.NoError(t, err)

	_, err = service.Read(ctx, app, "missing")
	require.True(t, errors.Is(err, entitystore.ErrEntityNotFound))

	assert.True(t, logHandler.HasInfoLogWithMessage("entitystore operation: create").
		WithDurationMS().WithEntityCount().Assert())
	assert.True(t, logHandler.HasDebugLogWithMessage("rendered filter for: "+entitystore.TemplateEntityByID).
		WithAttr("alias", entitystore.TemplateEntityByID).Assert())
	assert.True(t, logHandler.HasErrorLogWithMessage("entitystore operation failed: read").
		WithDurationMS().Assert())

	assert.True(t, metrics.HasDurationRecordForMetric("entitystore_operation_duration_seconds").
		WithOperation("create").WithStatus("success").Assert())
	assert.True(t, metrics.HasValueRecordForMetric("entitystore_entities_returned").
		WithOperation("create").Assert())
	assert.True(t, metrics.HasCounterRecordForMetric("entitystore_operation_errors_total").
		WithOperation("read").WithStatus("error").Assert())
}
