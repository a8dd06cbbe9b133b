// Package helper provides fixtures and spies shared by the tests of the entitystore packages.
package helper

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pful/pico/entitystore"
)

// GivenUniqueAppContext returns an ApplicationContext no other test uses, so tests can share a database.
func GivenUniqueAppContext(t testing.TB) entitystore.ApplicationContext {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return entitystore.ApplicationContext{AppID: "app-" + id.String()}
}

// FixtureEntity returns an entity of app with a fresh id.
func FixtureEntity(
	t testing.TB,
	app entitystore.ApplicationContext,
	entityType string,
	properties map[string]any,
	groups ...string,
) entitystore.Entity {

	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return entitystore.Entity{
		AppID:      app.AppID,
		ID:         id.String(),
		Type:       entityType,
		Properties: properties,
		Groups:     groups,
		CreatedAt:  1_700_000_000,
		UpdatedAt:  1_700_000_000,
	}
}

// GivenEntitiesWereInserted inserts the entities into engine.
func GivenEntitiesWereInserted(t testing.TB, ctx context.Context, engine entitystore.Engine, entities ...entitystore.Entity) {
	t.Helper()

	for _, entity := range entities {
		require.NoError(t, engine.Insert(ctx, entity), "error in arranging test data")
	}
}
