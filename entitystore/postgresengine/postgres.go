package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"

	"github.com/pful/pico/entitystore"
	"github.com/pful/pico/entitystore/postgresengine/internal/adapters"
	qb "github.com/pful/pico/querybuilder"
)

const (
	defaultEntityTableName       = "entities"
	logMsgBuildQueryFailed       = "failed to build query"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgDBExecFailed           = "database execution failed"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgDecodeEntityFailed     = "failed to decode entity from database row"
	logMsgRowsAffectedFailed     = "failed to get rows affected count"
	logMsgSQLExecuted            = "executed sql for: "
	logMsgOperation              = "postgres engine operation: "
	logMsgEntitiesFound          = "entities found"
	logMsgEntityInserted         = "entity inserted"
	logMsgEntityReplaced         = "entity replaced"
	logMsgEntitiesDeleted        = "entities deleted"
	logMsgSchemaEnsured          = "schema ensured"
	logAttrError                 = "error"
	logAttrQuery                 = "query"
	logAttrEntityCount           = "entity_count"
	logAttrEntityID              = "entity_id"
	logAttrDurationMS            = "duration_ms"
	logAttrRowsAffected          = "rows_affected"
	logAttrConsistency           = "consistency"
	logActionFind                = "find"
	logActionInsert              = "insert"
	logActionReplace             = "replace"
	logActionDelete              = "delete"
	logActionSchema              = "schema"
	colID                        = "id"
	colAppID                     = "app_id"
	colDocument                  = "document"
	dialectPostgres              = "postgres"
	castJsonb                    = "?::jsonb"
	createTableStatement         = `CREATE TABLE IF NOT EXISTS %[1]s (app_id text NOT NULL, id text NOT NULL, document jsonb NOT NULL, PRIMARY KEY (app_id, id))`
	createDocumentIndexStatement = `CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s USING gin (document jsonb_path_ops)`
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
)

var documentJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Engine stores entities as jsonb documents in a PostgreSQL table and implements entitystore.Engine.
// Filter Documents are translated into SQL over the document column.
type Engine struct {
	db               adapters.DBAdapter
	tableName        string
	logger           Logger
	metricsCollector MetricsCollector
}

// NewEngineFromPGXPool creates a new Engine using a pgx Pool with optional configuration.
func NewEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, entitystore.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(db), options)
}

// NewEngineFromPGXPoolWithReplica creates a new Engine using a primary and a replica pgx Pool.
// Reads go to the replica only for contexts created with entitystore.WithEventualConsistency.
func NewEngineFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Engine, error) {
	if db == nil || replica == nil {
		return Engine{}, entitystore.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapterWithReplica(db, replica), options)
}

// NewEngineFromSQLDB creates a new Engine using a sql.DB with optional configuration.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, entitystore.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), options)
}

// NewEngineFromSQLX creates a new Engine using a sqlx.DB with optional configuration.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, entitystore.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), options)
}

func newEngine(db adapters.DBAdapter, options []Option) (Engine, error) {
	e := Engine{
		db:        db,
		tableName: defaultEntityTableName,
	}

	for _, option := range options {
		if err := option(&e); err != nil {
			return Engine{}, err
		}
	}

	return e, nil
}

// EnsureSchema creates the entity table and its jsonb index if they do not exist.
func (e Engine) EnsureSchema(ctx context.Context) error {
	quotedTable := pq.QuoteIdentifier(e.tableName)
	quotedIndex := pq.QuoteIdentifier(e.tableName + "_document_idx")

	for _, statement := range []string{createTableStatement, createDocumentIndexStatement} {
		if _, _, err := e.exec(ctx, fmt.Sprintf(statement, quotedTable, quotedIndex), logActionSchema); err != nil {
			return err
		}
	}

	e.logOperation(logMsgSchemaEnsured)

	return nil
}

// Insert stores a new entity, failing with entitystore.ErrEntityAlreadyExists for a taken id.
func (e Engine) Insert(ctx context.Context, entity entitystore.Entity) error {
	sqlQuery, err := e.buildInsertQuery(entity)
	if err != nil {
		return err
	}

	rowsAffected, duration, err := e.exec(ctx, sqlQuery, logActionInsert)
	if err != nil {
		e.recordErrorMetrics(logActionInsert, errorTypeDatabaseExec)
		return errors.Join(entitystore.ErrWritingEntityFailed, err)
	}

	if rowsAffected == 0 {
		return errors.Join(entitystore.ErrEntityAlreadyExists, fmt.Errorf("id %q", entity.ID))
	}

	e.logOperation(logMsgEntityInserted, logAttrEntityID, entity.ID, logAttrDurationMS, e.toMilliseconds(duration))
	e.recordDurationMetrics(metricWriteDuration, duration, logActionInsert, statusSuccess)

	return nil
}

// Find returns the entities matching filter ordered by id.
func (e Engine) Find(
	ctx context.Context,
	filter qb.Document,
	options entitystore.FindOptions,
) (entitystore.Entities, error) {

	sqlQuery, err := e.FindSQL(filter, options)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	documents, err := e.db.QueryDocuments(ctx, sqlQuery)
	duration := time.Since(start)
	e.logQueryWithDuration(sqlQuery, logActionFind, duration)

	if err != nil {
		if errors.Is(err, entitystore.ErrScanningDBRowFailed) {
			e.logError(logMsgScanRowFailed, err)
			e.recordErrorMetrics(logActionFind, errorTypeRowScan)
		} else {
			e.logError(logMsgDBQueryFailed, err, logAttrQuery, sqlQuery)
			e.recordErrorMetrics(logActionFind, errorTypeDatabaseQuery)
		}

		return nil, err
	}

	entities, err := e.decodeDocuments(documents)
	if err != nil {
		e.recordErrorMetrics(logActionFind, errorTypeDecode)
		return nil, err
	}

	e.logOperation(
		logMsgEntitiesFound,
		logAttrEntityCount, len(entities),
		logAttrDurationMS, e.toMilliseconds(duration),
		logAttrConsistency, entitystore.GetConsistencyLevel(ctx).String(),
	)
	e.recordDurationMetrics(metricQueryDuration, duration, logActionFind, statusSuccess)
	e.recordValueMetrics(metricEntitiesFound, float64(len(entities)), logActionFind, statusSuccess)

	return entities, nil
}

// Replace overwrites the stored document of the entity, failing with entitystore.ErrEntityNotFound if there is none.
func (e Engine) Replace(ctx context.Context, entity entitystore.Entity) error {
	sqlQuery, err := e.buildReplaceQuery(entity)
	if err != nil {
		return err
	}

	rowsAffected, duration, err := e.exec(ctx, sqlQuery, logActionReplace)
	if err != nil {
		e.recordErrorMetrics(logActionReplace, errorTypeDatabaseExec)
		return errors.Join(entitystore.ErrWritingEntityFailed, err)
	}

	if rowsAffected == 0 {
		return errors.Join(entitystore.ErrEntityNotFound, fmt.Errorf("id %q", entity.ID))
	}

	e.logOperation(logMsgEntityReplaced, logAttrEntityID, entity.ID, logAttrDurationMS, e.toMilliseconds(duration))
	e.recordDurationMetrics(metricWriteDuration, duration, logActionReplace, statusSuccess)

	return nil
}

// Delete removes the entities matching filter and returns how many were removed.
func (e Engine) Delete(ctx context.Context, filter qb.Document) (int64, error) {
	sqlQuery, err := e.DeleteSQL(filter)
	if err != nil {
		return 0, err
	}

	rowsAffected, duration, err := e.exec(ctx, sqlQuery, logActionDelete)
	if err != nil {
		e.recordErrorMetrics(logActionDelete, errorTypeDatabaseExec)
		return 0, errors.Join(entitystore.ErrWritingEntityFailed, err)
	}

	e.logOperation(logMsgEntitiesDeleted, logAttrRowsAffected, rowsAffected, logAttrDurationMS, e.toMilliseconds(duration))
	e.recordDurationMetrics(metricWriteDuration, duration, logActionDelete, statusSuccess)

	return rowsAffected, nil
}

// FindSQL returns the SELECT statement Find would run for filter.
func (e Engine) FindSQL(filter qb.Document, options entitystore.FindOptions) (sqlQueryString, error) {
	where, err := e.whereClause(filter)
	if err != nil {
		return "", err
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(e.tableName).
		Select(colDocument).
		Where(where).
		Order(goqu.I(colID).Asc(), goqu.I(colAppID).Asc())

	if options.Limit > 0 {
		selectStmt = selectStmt.Limit(uint(options.Limit))
	}

	if options.Skip > 0 {
		selectStmt = selectStmt.Offset(uint(options.Skip))
	}

	return e.toSQL(selectStmt)
}

// DeleteSQL returns the DELETE statement Delete would run for filter.
func (e Engine) DeleteSQL(filter qb.Document) (sqlQueryString, error) {
	where, err := e.whereClause(filter)
	if err != nil {
		return "", err
	}

	return e.toSQL(goqu.Dialect(dialectPostgres).Delete(e.tableName).Where(where))
}

func (e Engine) whereClause(filter qb.Document) (goqu.Expression, error) {
	parsed, err := entitystore.ParseFilter(filter)
	if err != nil {
		e.logError(logMsgBuildQueryFailed, err)
		return nil, err
	}

	where, err := translate(parsed)
	if err != nil {
		e.logError(logMsgBuildQueryFailed, err)
		return nil, err
	}

	return where, nil
}

func (e Engine) buildInsertQuery(entity entitystore.Entity) (sqlQueryString, error) {
	document, err := entity.MarshalDocument()
	if err != nil {
		return "", errors.Join(entitystore.ErrWritingEntityFailed, err)
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(e.tableName).
		Cols(colAppID, colID, colDocument).
		Vals(goqu.Vals{entity.AppID, entity.ID, goqu.L(castJsonb, string(document))}).
		OnConflict(goqu.DoNothing())

	return e.toSQL(insertStmt)
}

func (e Engine) buildReplaceQuery(entity entitystore.Entity) (sqlQueryString, error) {
	document, err := entity.MarshalDocument()
	if err != nil {
		return "", errors.Join(entitystore.ErrWritingEntityFailed, err)
	}

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(e.tableName).
		Set(goqu.Record{colDocument: goqu.L(castJsonb, string(document))}).
		Where(goqu.Ex{colAppID: entity.AppID, colID: entity.ID})

	return e.toSQL(updateStmt)
}

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func (e Engine) toSQL(builder sqlBuilder) (sqlQueryString, error) {
	sqlQuery, _, err := builder.ToSQL()
	if err != nil {
		e.logError(logMsgBuildQueryFailed, err)
		return "", errors.Join(entitystore.ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

// exec executes a statement and returns rows affected and duration.
func (e Engine) exec(ctx context.Context, sqlQuery string, action string) (rowsAffectedInt64, time.Duration, error) {
	start := time.Now()
	rowsAffected, err := e.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	e.logQueryWithDuration(sqlQuery, action, duration)

	if err != nil {
		if errors.Is(err, entitystore.ErrGettingRowsAffectedFailed) {
			e.logError(logMsgRowsAffectedFailed, err)
		} else {
			e.logError(logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		}

		return 0, duration, err
	}

	return rowsAffected, duration, nil
}

func (e Engine) decodeDocuments(documents [][]byte) (entitystore.Entities, error) {
	entities := make(entitystore.Entities, 0, len(documents))

	for _, document := range documents {
		entity, err := entitystore.EntityFromJSON(document)
		if err != nil {
			e.logError(logMsgDecodeEntityFailed, err)
			return nil, err
		}

		entities = append(entities, entity)
	}

	return entities, nil
}
