package postgresengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pful/pico/entitystore"
	qb "github.com/pful/pico/querybuilder"
	"github.com/pful/pico/testutil/helper"
	"github.com/pful/pico/testutil/postgresengine/pgtesthelpers"
)

func Benchmark_Insert_And_Find(b *testing.B) {
	ctx := context.Background()
	wrapper := pgtesthelpers.CreateWrapperWithTestConfig(b)
	defer wrapper.Close()
	engine := wrapper.GetEngine()

	app := helper.GivenUniqueAppContext(b)
	scoped, err := qb.NewQuery().Field("app_id").Is(qb.Str(app.AppID)).ToJSON()
	require.NoError(b, err)

	b.Run("insert 1 entity", func(b *testing.B) {
		b.ResetTimer()
		var insertTime time.Duration

		for i := 0; i < b.N; i++ {
			b.StopTimer()
			entity := helper.FixtureEntity(b, app, "user", map[string]any{"age": i % 90}, "readers")

			b.StartTimer()
			start := time.Now()
			err := engine.Insert(ctx, entity)
			insertTime += time.Since(start)
			b.StopTimer()

			assert.NoError(b, err)
		}

		b.ReportMetric(float64(insertTime.Milliseconds())/float64(b.N), "ms/insert-op")
	})

	b.Run("find by group", func(b *testing.B) {
		filter, err := qb.NewQuery().
			Field("app_id").Is(qb.Str(app.AppID)).
			Field("groups").Is(qb.Str("readers")).
			ToJSON()
		require.NoError(b, err)

		b.ResetTimer()
		var findTime time.Duration

		for i := 0; i < b.N; i++ {
			start := time.Now()
			_, err := engine.Find(ctx, filter, entitystore.FindOptions{Limit: 100})
			findTime += time.Since(start)

			assert.NoError(b, err)
		}

		b.ReportMetric(float64(findTime.Milliseconds())/float64(b.N), "ms/find-op")
	})

	b.StopTimer()
	_, err = engine.Delete(ctx, scoped)
	assert.NoError(b, err)
}
