package memoryengine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/pful/pico/entitystore"
	qb "github.com/pful/pico/querybuilder"
)

type key struct {
	appID string
	id    string
}

type record struct {
	entity   entitystore.Entity
	document qb.Document
}

// Engine keeps entities in memory and evaluates filter Documents with Mongo semantics.
type Engine struct {
	mu      sync.RWMutex
	records map[key]record
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	return &Engine{records: make(map[key]record)}
}

// Insert stores a new entity.
func (e *Engine) Insert(ctx context.Context, entity entitystore.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec, err := newRecord(entity)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	k := key{appID: entity.AppID, id: entity.ID}
	if _, exists := e.records[k]; exists {
		return errors.Join(entitystore.ErrEntityAlreadyExists, fmt.Errorf("id %q", entity.ID))
	}
	e.records[k] = rec

	return nil
}

// Find returns the entities matching filter ordered by id.
func (e *Engine) Find(
	ctx context.Context,
	filter qb.Document,
	options entitystore.FindOptions,
) (entitystore.Entities, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := entitystore.ParseFilter(filter)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	matched := make(entitystore.Entities, 0)
	for _, rec := range e.records {
		if Matches(parsed, rec.document) {
			matched = append(matched, rec.entity.Clone())
		}
	}
	e.mu.RUnlock()

	slices.SortFunc(matched, func(a, b entitystore.Entity) int {
		return strings.Compare(a.ID, b.ID)
	})

	if options.Skip > 0 {
		if options.Skip >= len(matched) {
			return entitystore.Entities{}, nil
		}
		matched = matched[options.Skip:]
	}

	if options.Limit > 0 && options.Limit < len(matched) {
		matched = matched[:options.Limit]
	}

	return matched, nil
}

// Replace overwrites a stored entity.
func (e *Engine) Replace(ctx context.Context, entity entitystore.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec, err := newRecord(entity)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	k := key{appID: entity.AppID, id: entity.ID}
	if _, exists := e.records[k]; !exists {
		return errors.Join(entitystore.ErrEntityNotFound, fmt.Errorf("id %q", entity.ID))
	}
	e.records[k] = rec

	return nil
}

// Delete removes the entities matching filter.
func (e *Engine) Delete(ctx context.Context, filter qb.Document) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	parsed, err := entitystore.ParseFilter(filter)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	deleted := int64(0)
	for k, rec := range e.records {
		if Matches(parsed, rec.document) {
			delete(e.records, k)
			deleted++
		}
	}

	return deleted, nil
}

// Len returns the number of stored entities.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.records)
}

func newRecord(entity entitystore.Entity) (record, error) {
	entity = entity.Clone()

	document, err := entity.Document()
	if err != nil {
		return record{}, errors.Join(entitystore.ErrWritingEntityFailed, err)
	}

	return record{entity: entity, document: document}, nil
}
