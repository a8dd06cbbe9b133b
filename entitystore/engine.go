package entitystore

import (
	"context"

	qb "github.com/pful/pico/querybuilder"
)

// FindOptions limit the result of Engine.Find. A zero Limit means no limit.
type FindOptions struct {
	Skip  int
	Limit int
}

// Engine executes rendered filter Documents against stored entities.
//
// Results of Find are ordered by entity id. Filters follow the Mongo-style operators the querybuilder renders;
// a filter that still contains a placeholder sentinel fails with querybuilder.ErrUnresolvedPlaceholder.
type Engine interface {
	// Insert stores a new entity, failing with ErrEntityAlreadyExists for a taken (app id, id) pair.
	Insert(ctx context.Context, entity Entity) error

	// Find returns the entities matching filter.
	Find(ctx context.Context, filter qb.Document, options FindOptions) (Entities, error)

	// Replace overwrites the entity with the same app id and id, failing with ErrEntityNotFound if there is none.
	Replace(ctx context.Context, entity Entity) error

	// Delete removes the entities matching filter and returns how many were removed.
	Delete(ctx context.Context, filter qb.Document) (int64, error)
}
