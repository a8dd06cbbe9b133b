package entitystore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	qb "github.com/pful/pico/querybuilder"
)

const (
	logMsgOperation        = "entitystore operation: "
	logMsgOperationFailed  = "entitystore operation failed: "
	logMsgFilterRendered   = "rendered filter for: "
	logAttrError           = "error"
	logAttrAppID           = "app_id"
	logAttrFilter          = "filter"
	logAttrAlias           = "alias"
	logAttrDurationMS      = "duration_ms"
	logAttrEntityCount     = "entity_count"
	metricOperationSeconds = "entitystore_operation_duration_seconds"
	metricOperationErrors  = "entitystore_operation_errors_total"
	metricEntitiesReturned = "entitystore_entities_returned"
	labelOperation         = "operation"
	labelStatus            = "status"
	statusSuccess          = "success"
	statusError            = "error"
)

// Service implements entity CRUD and group operations on top of an Engine.
//
// One-off filters are built with querybuilder.NewQuery; recurring filters are rendered from the standard
// templates (see RegisterStandardTemplates) that NewService registers into its template registry.
type Service struct {
	engine   Engine
	registry *qb.Registry
	logger   Logger
	metrics  MetricsCollector
	now      func() time.Time
	newID    func() (string, error)
}

// Option defines a functional option for configuring the Service.
type Option func(*Service) error

// WithLogger sets the logger for the Service.
//
// Debug level: rendered filters
// Info level: operation names, entity counts and durations
// Error level: failed operations.
func WithLogger(logger Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Service.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Service) error {
		s.metrics = collector
		return nil
	}
}

// WithClock replaces time.Now for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return errors.Join(ErrInvalidArgument, errors.New("nil clock"))
		}

		s.now = now
		return nil
	}
}

// WithTemplateRegistry makes the Service register its standard templates into registry instead of a private one.
// The registry must not contain the standard aliases yet.
func WithTemplateRegistry(registry *qb.Registry) Option {
	return func(s *Service) error {
		if registry == nil {
			return errors.Join(ErrInvalidArgument, errors.New("nil template registry"))
		}

		s.registry = registry
		return nil
	}
}

// NewService creates a Service on engine.
func NewService(engine Engine, options ...Option) (*Service, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	s := &Service{
		engine: engine,
		now:    time.Now,
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}

			return id.String(), nil
		},
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	if s.registry == nil {
		s.registry = qb.NewRegistry()
	}

	if err := RegisterStandardTemplates(s.registry); err != nil {
		return nil, err
	}

	return s, nil
}

// Templates returns the registry holding the Service's templates.
func (s *Service) Templates() *qb.Registry {
	return s.registry
}

// Create stores a new entity of the given type with a fresh time-ordered id.
func (s *Service) Create(
	ctx context.Context,
	app ApplicationContext,
	entityType string,
	properties map[string]any,
) (Entity, error) {

	start := time.Now()

	if err := s.validate(app, "type", entityType); err != nil {
		return Entity{}, err
	}

	id, err := s.newID()
	if err != nil {
		return Entity{}, s.failed("create", start, err)
	}

	now := s.now().Unix()
	entity := Entity{
		AppID:      app.AppID,
		ID:         id,
		Type:       entityType,
		Properties: properties,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.engine.Insert(ctx, entity); err != nil {
		return Entity{}, s.failed("create", start, err)
	}

	s.succeeded("create", start, 1)

	return entity, nil
}

// Read returns the entity with id, or ErrEntityNotFound.
func (s *Service) Read(ctx context.Context, app ApplicationContext, id string) (Entity, error) {
	start := time.Now()

	if err := s.validate(app, "id", id); err != nil {
		return Entity{}, err
	}

	entity, err := s.findByID(ctx, app, id)
	if err != nil {
		return Entity{}, s.failed("read", start, err)
	}

	s.succeeded("read", start, 1)

	return entity, nil
}

// Update sets the type and the properties of the entity with id.
// An empty entityType keeps the current type and nil properties keep the current properties.
func (s *Service) Update(
	ctx context.Context,
	app ApplicationContext,
	id string,
	entityType string,
	properties map[string]any,
) (Entity, error) {

	start := time.Now()

	if err := s.validate(app, "id", id); err != nil {
		return Entity{}, err
	}

	entity, err := s.findByID(ctx, app, id)
	if err != nil {
		return Entity{}, s.failed("update", start, err)
	}

	if entityType != "" {
		entity.Type = entityType
	}

	if properties != nil {
		entity.Properties = properties
	}

	entity.UpdatedAt = s.now().Unix()

	if err := s.engine.Replace(ctx, entity); err != nil {
		return Entity{}, s.failed("update", start, err)
	}

	s.succeeded("update", start, 1)

	return entity, nil
}

// Delete removes the entity with id, or fails with ErrEntityNotFound.
func (s *Service) Delete(ctx context.Context, app ApplicationContext, id string) error {
	start := time.Now()

	if err := s.validate(app, "id", id); err != nil {
		return err
	}

	filter, err := s.render(TemplateEntityByID, map[string]qb.Value{
		VarAppID:    qb.Str(app.AppID),
		VarEntityID: qb.Str(id),
	})
	if err != nil {
		return s.failed("delete", start, err)
	}

	deleted, err := s.engine.Delete(ctx, filter)
	if err != nil {
		return s.failed("delete", start, err)
	}

	if deleted == 0 {
		return s.failed("delete", start, errors.Join(ErrEntityNotFound, fmt.Errorf("id %q", id)))
	}

	s.succeeded("delete", start, int(deleted))

	return nil
}

// List returns up to limit entities of entityType, skipping the first offset ones.
func (s *Service) List(
	ctx context.Context,
	app ApplicationContext,
	entityType string,
	offset, limit int,
) (Entities, error) {

	start := time.Now()

	if err := s.validate(app, "type", entityType); err != nil {
		return nil, err
	}

	if offset < 0 || limit <= 0 {
		return nil, errors.Join(ErrInvalidArgument, fmt.Errorf("offset %d must be >= 0 and limit %d > 0", offset, limit))
	}

	filter, err := s.render(TemplateEntityByType, map[string]qb.Value{
		VarAppID: qb.Str(app.AppID),
		VarType:  qb.Str(entityType),
	})
	if err != nil {
		return nil, s.failed("list", start, err)
	}

	return s.find(ctx, "list", start, filter, FindOptions{Skip: offset, Limit: limit})
}

// ListWithProperty returns the entities that have the property set, whatever its value.
func (s *Service) ListWithProperty(ctx context.Context, app ApplicationContext, property string) (Entities, error) {
	start := time.Now()

	if err := s.validate(app, "property", property); err != nil {
		return nil, err
	}

	filter, err := s.render(TemplateEntityWithField, map[string]qb.Value{
		VarAppID: qb.Str(app.AppID),
		VarField: qb.Str(FieldProperties + "." + property),
	})
	if err != nil {
		return nil, s.failed("list_with_property", start, err)
	}

	return s.find(ctx, "list_with_property", start, filter, FindOptions{})
}

// Query renders the template registered under alias with bindings and returns the matching entities.
// Every placeholder of the template must be bound.
func (s *Service) Query(
	ctx context.Context,
	alias string,
	bindings map[string]qb.Value,
	options FindOptions,
) (Entities, error) {

	start := time.Now()

	if options.Skip < 0 || options.Limit < 0 {
		return nil, errors.Join(ErrInvalidArgument, fmt.Errorf("skip %d and limit %d must be >= 0", options.Skip, options.Limit))
	}

	filter, err := s.render(alias, bindings)
	if err != nil {
		return nil, s.failed("query", start, err)
	}

	return s.find(ctx, "query", start, filter, options)
}

// AddToGroup adds the entity with id to group.
// It fails with ErrGroupUnchanged if the entity does not exist or is already a member.
func (s *Service) AddToGroup(ctx context.Context, app ApplicationContext, id, group string) (Entity, error) {
	start := time.Now()

	if err := s.validate(app, "id", id, "group", group); err != nil {
		return Entity{}, err
	}

	filter, err := s.render(TemplateGroupAddCandidate, map[string]qb.Value{
		VarAppID:    qb.Str(app.AppID),
		VarEntityID: qb.Str(id),
		VarGroups:   qb.Strings(group),
	})
	if err != nil {
		return Entity{}, s.failed("add_to_group", start, err)
	}

	return s.modifyOne(ctx, "add_to_group", start, filter, func(e *Entity) {
		e.Groups = append(e.Groups, group)
	})
}

// Groups returns the distinct groups used by any entity of the application, sorted.
func (s *Service) Groups(ctx context.Context, app ApplicationContext) ([]string, error) {
	start := time.Now()

	if err := s.validate(app); err != nil {
		return nil, err
	}

	filter, err := qb.NewQuery().
		Field(FieldAppID).Is(qb.Str(app.AppID)).
		Field(FieldGroups).Exists().
		ToJSON()
	if err != nil {
		return nil, s.failed("groups", start, err)
	}

	entities, err := s.find(ctx, "groups", start, filter, FindOptions{})
	if err != nil {
		return nil, err
	}

	return distinctGroups(entities), nil
}

// GroupsOf returns the groups of the entity with id, sorted.
func (s *Service) GroupsOf(ctx context.Context, app ApplicationContext, id string) ([]string, error) {
	entity, err := s.Read(ctx, app, id)
	if err != nil {
		return nil, err
	}

	return distinctGroups(Entities{entity}), nil
}

// Members returns the entities in group.
func (s *Service) Members(ctx context.Context, app ApplicationContext, group string) (Entities, error) {
	start := time.Now()

	if err := s.validate(app, "group", group); err != nil {
		return nil, err
	}

	filter, err := s.membersFilter(app, group)
	if err != nil {
		return nil, s.failed("members", start, err)
	}

	return s.find(ctx, "members", start, filter, FindOptions{})
}

// RenameGroup renames group from to group to on every entity of the application and returns how many changed.
func (s *Service) RenameGroup(ctx context.Context, app ApplicationContext, from, to string) (int64, error) {
	start := time.Now()

	if err := s.validate(app, "group", from, "new group", to); err != nil {
		return 0, err
	}

	filter, err := s.membersFilter(app, from)
	if err != nil {
		return 0, s.failed("rename_group", start, err)
	}

	return s.modifyAll(ctx, "rename_group", start, filter, func(e *Entity) {
		e.Groups = renameGroup(e.Groups, from, to)
	})
}

// RenameEntityGroup renames group from to group to on the entity with id.
// It fails with ErrGroupUnchanged if the entity does not exist or is not in from.
func (s *Service) RenameEntityGroup(
	ctx context.Context,
	app ApplicationContext,
	id, from, to string,
) (Entity, error) {

	start := time.Now()

	if err := s.validate(app, "id", id, "group", from, "new group", to); err != nil {
		return Entity{}, err
	}

	filter, err := qb.NewQuery().
		Field(FieldAppID).Is(qb.Str(app.AppID)).
		Field(FieldID).Is(qb.Str(id)).
		Field(FieldGroups).InValues(qb.Str(from)).
		ToJSON()
	if err != nil {
		return Entity{}, s.failed("rename_entity_group", start, err)
	}

	return s.modifyOne(ctx, "rename_entity_group", start, filter, func(e *Entity) {
		e.Groups = renameGroup(e.Groups, from, to)
	})
}

// DeleteGroup removes group from every entity of the application and returns how many changed.
func (s *Service) DeleteGroup(ctx context.Context, app ApplicationContext, group string) (int64, error) {
	start := time.Now()

	if err := s.validate(app, "group", group); err != nil {
		return 0, err
	}

	filter, err := s.membersFilter(app, group)
	if err != nil {
		return 0, s.failed("delete_group", start, err)
	}

	return s.modifyAll(ctx, "delete_group", start, filter, func(e *Entity) {
		e.Groups = slices.DeleteFunc(e.Groups, func(g string) bool { return g == group })
	})
}

// RemoveFromGroup removes the entity with id from group.
// It fails with ErrGroupUnchanged if the entity does not exist or is not in group.
func (s *Service) RemoveFromGroup(ctx context.Context, app ApplicationContext, id, group string) (Entity, error) {
	start := time.Now()

	if err := s.validate(app, "id", id, "group", group); err != nil {
		return Entity{}, err
	}

	filter, err := qb.NewQuery().
		Field(FieldAppID).Is(qb.Str(app.AppID)).
		Field(FieldID).Is(qb.Str(id)).
		Field(FieldGroups).InValues(qb.Str(group)).
		ToJSON()
	if err != nil {
		return Entity{}, s.failed("remove_from_group", start, err)
	}

	return s.modifyOne(ctx, "remove_from_group", start, filter, func(e *Entity) {
		e.Groups = slices.DeleteFunc(e.Groups, func(g string) bool { return g == group })
	})
}

// Union returns the entities in group1 or group2.
func (s *Service) Union(ctx context.Context, app ApplicationContext, group1, group2 string) (Entities, error) {
	return s.setOperation(ctx, "union", TemplateGroupUnion, app, group1, group2)
}

// Intersection returns the entities in both group1 and group2.
func (s *Service) Intersection(ctx context.Context, app ApplicationContext, group1, group2 string) (Entities, error) {
	return s.setOperation(ctx, "intersection", TemplateGroupIntersection, app, group1, group2)
}

// Difference returns the entities in group1 but not in group2.
func (s *Service) Difference(ctx context.Context, app ApplicationContext, group1, group2 string) (Entities, error) {
	return s.setOperation(ctx, "difference", TemplateGroupDifference, app, group1, group2)
}

// Subset reports whether every member of group2 is also a member of group1.
func (s *Service) Subset(ctx context.Context, app ApplicationContext, group1, group2 string) (bool, error) {
	if err := s.validate(app, "group", group1, "group", group2); err != nil {
		return false, err
	}

	outside, err := s.Difference(ctx, app, group2, group1)
	if err != nil {
		return false, err
	}

	return len(outside) == 0, nil
}

func (s *Service) setOperation(
	ctx context.Context,
	operation string,
	alias string,
	app ApplicationContext,
	group1, group2 string,
) (Entities, error) {

	start := time.Now()

	if err := s.validate(app, "group", group1, "group", group2); err != nil {
		return nil, err
	}

	filter, err := s.render(alias, map[string]qb.Value{
		VarAppID:  qb.Str(app.AppID),
		VarGroup1: qb.Str(group1),
		VarGroup2: qb.Str(group2),
		VarGroups: qb.Strings(group1, group2),
	})
	if err != nil {
		return nil, s.failed(operation, start, err)
	}

	return s.find(ctx, operation, start, filter, FindOptions{})
}

func (s *Service) membersFilter(app ApplicationContext, group string) (qb.Document, error) {
	return s.render(TemplateGroupMembers, map[string]qb.Value{
		VarAppID:  qb.Str(app.AppID),
		VarGroups: qb.Strings(group),
	})
}

func (s *Service) findByID(ctx context.Context, app ApplicationContext, id string) (Entity, error) {
	filter, err := s.render(TemplateEntityByID, map[string]qb.Value{
		VarAppID:    qb.Str(app.AppID),
		VarEntityID: qb.Str(id),
	})
	if err != nil {
		return Entity{}, err
	}

	entities, err := s.engine.Find(ctx, filter, FindOptions{Limit: 1})
	if err != nil {
		return Entity{}, err
	}

	if len(entities) == 0 {
		return Entity{}, errors.Join(ErrEntityNotFound, fmt.Errorf("id %q", id))
	}

	return entities[0], nil
}

func (s *Service) find(
	ctx context.Context,
	operation string,
	start time.Time,
	filter qb.Document,
	options FindOptions,
) (Entities, error) {

	entities, err := s.engine.Find(ctx, filter, options)
	if err != nil {
		return nil, s.failed(operation, start, err)
	}

	s.succeeded(operation, start, len(entities))

	return entities, nil
}

// modifyOne applies change to the single entity matching filter and stores it.
func (s *Service) modifyOne(
	ctx context.Context,
	operation string,
	start time.Time,
	filter qb.Document,
	change func(*Entity),
) (Entity, error) {

	entities, err := s.engine.Find(WithStrongConsistency(ctx), filter, FindOptions{Limit: 1})
	if err != nil {
		return Entity{}, s.failed(operation, start, err)
	}

	if len(entities) == 0 {
		return Entity{}, s.failed(operation, start, ErrGroupUnchanged)
	}

	entity := entities[0]
	change(&entity)
	entity.UpdatedAt = s.now().Unix()

	if err := s.engine.Replace(ctx, entity); err != nil {
		return Entity{}, s.failed(operation, start, err)
	}

	s.succeeded(operation, start, 1)

	return entity, nil
}

// modifyAll applies change to every entity matching filter and returns how many were stored.
func (s *Service) modifyAll(
	ctx context.Context,
	operation string,
	start time.Time,
	filter qb.Document,
	change func(*Entity),
) (int64, error) {

	entities, err := s.engine.Find(WithStrongConsistency(ctx), filter, FindOptions{})
	if err != nil {
		return 0, s.failed(operation, start, err)
	}

	now := s.now().Unix()
	modified := int64(0)

	for _, entity := range entities {
		change(&entity)
		entity.UpdatedAt = now

		if err := s.engine.Replace(ctx, entity); err != nil {
			return modified, s.failed(operation, start, err)
		}
		modified++
	}

	s.succeeded(operation, start, int(modified))

	return modified, nil
}

func (s *Service) render(alias string, bindings map[string]qb.Value) (qb.Document, error) {
	binder, err := s.registry.OpenQuery(alias)
	if err != nil {
		return nil, err
	}

	filter, err := binder.BindAll(bindings).ToResolvedJSON()
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Debug(logMsgFilterRendered+alias, logAttrAlias, alias, logAttrFilter, filter.String())
	}

	return filter, nil
}

// validate checks the application context and pairs of (argument name, argument value) for emptiness.
func (s *Service) validate(app ApplicationContext, namesAndValues ...string) error {
	if err := app.Validate(); err != nil {
		return err
	}

	for i := 0; i+1 < len(namesAndValues); i += 2 {
		if namesAndValues[i+1] == "" {
			return errors.Join(ErrInvalidArgument, fmt.Errorf("%s must not be empty", namesAndValues[i]))
		}
	}

	return nil
}

func (s *Service) succeeded(operation string, start time.Time, count int) {
	duration := time.Since(start)

	if s.logger != nil {
		s.logger.Info(logMsgOperation+operation, logAttrEntityCount, count, logAttrDurationMS, toMilliseconds(duration))
	}

	if s.metrics != nil {
		labels := map[string]string{labelOperation: operation, labelStatus: statusSuccess}
		s.metrics.RecordDuration(metricOperationSeconds, duration, labels)
		s.metrics.RecordValue(metricEntitiesReturned, float64(count), labels)
	}
}

func (s *Service) failed(operation string, start time.Time, err error) error {
	duration := time.Since(start)

	if s.logger != nil {
		s.logger.Error(logMsgOperationFailed+operation, logAttrError, err.Error(), logAttrDurationMS, toMilliseconds(duration))
	}

	if s.metrics != nil {
		labels := map[string]string{labelOperation: operation, labelStatus: statusError}
		s.metrics.RecordDuration(metricOperationSeconds, duration, labels)
		s.metrics.IncrementCounter(metricOperationErrors, labels)
	}

	return err
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func distinctGroups(entities Entities) []string {
	groups := make([]string, 0)
	for _, entity := range entities {
		groups = append(groups, entity.Groups...)
	}
	slices.Sort(groups)

	return slices.Compact(groups)
}

func renameGroup(groups []string, from, to string) []string {
	renamed := make([]string, 0, len(groups))
	for _, g := range groups {
		if g == from {
			g = to
		}
		if !slices.Contains(renamed, g) {
			renamed = append(renamed, g)
		}
	}

	return renamed
}
