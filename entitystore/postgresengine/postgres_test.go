package postgresengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pful/pico/entitystore"
	"github.com/pful/pico/entitystore/postgresengine"
	qb "github.com/pful/pico/querybuilder"
	"github.com/pful/pico/testutil/helper"
	"github.com/pful/pico/testutil/postgresengine/pgtesthelpers"
)

func Test_Engine_InsertFindReplaceDelete(t *testing.T) {
	wrapper := pgtesthelpers.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	engine := wrapper.GetEngine()
	ctx := context.Background()

	app := helper.GivenUniqueAppContext(t)
	ada := helper.FixtureEntity(t, app, "user", map[string]any{"name": "ada", "age": 36}, "admins", "readers")
	bob := helper.FixtureEntity(t, app, "user", map[string]any{"name": "bob", "age": 17.5}, "readers")
	dev := helper.FixtureEntity(t, app, "device", map[string]any{"serial": "x-1"})
	helper.GivenEntitiesWereInserted(t, ctx, engine, ada, bob, dev)

	find := func(filter qb.Expression) []string {
		doc, err := filter.ToJSON()
		require.NoError(t, err)

		found, err := engine.Find(ctx, doc, entitystore.FindOptions{})
		require.NoError(t, err)

		return found.IDs()
	}
	scoped := func() qb.Expression {
		return qb.NewQuery().Field("app_id").Is(qb.Str(app.AppID))
	}

	t.Run("duplicate_insert_fails", func(t *testing.T) {
		err := engine.Insert(ctx, ada)
		assert.ErrorIs(t, err, entitystore.ErrEntityAlreadyExists)
	})

	t.Run("find_round_trips_entities", func(t *testing.T) {
		doc, err := scoped().Field("_id").Is(qb.Str(ada.ID)).ToJSON()
		require.NoError(t, err)

		found, err := engine.Find(ctx, doc, entitystore.FindOptions{})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, ada.Groups, found[0].Groups)
		assert.Equal(t, "ada", found[0].Properties["name"])
	})

	t.Run("operator_semantics_match_the_memory_engine", func(t *testing.T) {
		assert.Equal(t, []string{ada.ID, bob.ID}, find(scoped().Field("groups").Is(qb.Str("readers"))))
		assert.Equal(t, []string{dev.ID}, find(scoped().Field("groups").NinValues(qb.Str("readers"))))
		assert.Equal(t, []string{ada.ID}, find(scoped().Field("properties.age").Gte(qb.Int(18))))
		assert.Equal(t, []string{bob.ID}, find(scoped().Field("properties.name").Gt(qb.Str("b"))))
		assert.Equal(t, []string{ada.ID}, find(scoped().Field("groups").AllValues(qb.Str("admins"), qb.Str("readers"))))
		assert.Equal(t, []string{dev.ID}, find(scoped().Field("properties.serial").Exists()))
		assert.Equal(t, []string{}, find(scoped().Field("groups").InValues()))
		assert.Equal(t, []string{bob.ID, dev.ID}, find(scoped().NoneOf(qb.Field("groups").Is(qb.Str("admins")))))
	})

	t.Run("replace", func(t *testing.T) {
		changed := dev
		changed.Type = "sensor"
		require.NoError(t, engine.Replace(ctx, changed))
		assert.Equal(t, []string{dev.ID}, find(scoped().Field("type").Is(qb.Str("sensor"))))

		missing := helper.FixtureEntity(t, app, "user", nil)
		assert.ErrorIs(t, engine.Replace(ctx, missing), entitystore.ErrEntityNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		doc, err := scoped().ToJSON()
		require.NoError(t, err)

		deleted, err := engine.Delete(ctx, doc)
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)
	})
}

func Test_Engine_ServesTheService(t *testing.T) {
	wrapper := pgtesthelpers.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()

	service, err := entitystore.NewService(wrapper.GetEngine())
	require.NoError(t, err)

	ctx := context.Background()
	app := helper.GivenUniqueAppContext(t)

	ada, err := service.Create(ctx, app, "user", map[string]any{"name": "ada"})
	require.NoError(t, err)
	bob, err := service.Create(ctx, app, "user", map[string]any{"name": "bob"})
	require.NoError(t, err)

	_, err = service.AddToGroup(ctx, app, ada.ID, "admins")
	require.NoError(t, err)
	_, err = service.AddToGroup(ctx, app, bob.ID, "readers")
	require.NoError(t, err)

	union, err := service.Union(entitystore.WithEventualConsistency(ctx), app, "admins", "readers")
	require.NoError(t, err)
	assert.Equal(t, []string{ada.ID, bob.ID}, union.IDs())

	groups, err := service.Groups(ctx, app)
	require.NoError(t, err)
	assert.Equal(t, []string{"admins", "readers"}, groups)
}

func Test_Engine_Observability(t *testing.T) {
	logHandler := helper.NewLogHandlerSpy(false)
	metrics := helper.NewMetricsCollectorSpy()
	wrapper := pgtesthelpers.CreateWrapperWithTestConfig(t,
		postgresengine.WithLogger(logHandler.Logger()),
		postgresengine.WithMetrics(metrics),
	)
	defer wrapper.Close()

	engine := wrapper.GetEngine()
	ctx := context.Background()
	app := helper.GivenUniqueAppContext(t)
	helper.GivenEntitiesWereInserted(t, ctx, engine, helper.FixtureEntity(t, app, "user", nil))

	_, err := engine.Find(ctx, qb.Document{"app_id": app.AppID}, entitystore.FindOptions{})
	require.NoError(t, err)

	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: find").WithDurationMS().Assert())
	assert.True(t, logHandler.HasInfoLogWithMessage("postgres engine operation: entities found").
		WithEntityCount().WithAttr("consistency", "strong").Assert())
	assert.True(t, logHandler.HasInfoLogWithMessage("postgres engine operation: entity inserted").
		WithDurationMS().Assert())
	assert.True(t, metrics.HasDurationRecordForMetric("entitystore_postgres_query_duration_seconds").
		WithOperation("find").WithStatus("success").Assert())
}
