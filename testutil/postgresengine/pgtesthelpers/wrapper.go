package pgtesthelpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/pful/pico/entitystore/postgresengine"
	"github.com/pful/pico/testutil/postgresengine/config"
)

// Adapter type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLX    = "sqlx.db"
)

// Wrapper interface to abstract over different adapter types.
type Wrapper interface {
	GetEngine() postgresengine.Engine
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	pool   *pgxpool.Pool
	engine postgresengine.Engine
}

// GetEngine returns the engine under test.
func (w *PGXPoolWrapper) GetEngine() postgresengine.Engine {
	return w.engine
}

// Close closes the pool.
func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	db     *sql.DB
	engine postgresengine.Engine
}

// GetEngine returns the engine under test.
func (w *SQLDBWrapper) GetEngine() postgresengine.Engine {
	return w.engine
}

// Close closes the database handle.
func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing.
type SQLXWrapper struct {
	db     *sqlx.DB
	engine postgresengine.Engine
}

// GetEngine returns the engine under test.
func (w *SQLXWrapper) GetEngine() postgresengine.Engine {
	return w.engine
}

// Close closes the database handle.
func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the wrapper selected by ADAPTER_TYPE on a fresh schema.
// The test is skipped when no test database is configured.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	dsn, ok := config.PostgresDSN()
	if !ok {
		t.Skipf("%s is not set", config.DSNEnvVar)
	}

	var wrapper Wrapper
	adapterTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch adapterTypeFromEnv {
	case typePGXPool, "":
		pool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolConfig(dsn))
		require.NoError(t, err, "error connecting to DB pool in test setup")
		engine, err := postgresengine.NewEngineFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating engine in test setup")
		wrapper = &PGXPoolWrapper{pool: pool, engine: engine}

	case typeSQLDB:
		db := config.PostgresSQLDBConfig(dsn)
		engine, err := postgresengine.NewEngineFromSQLDB(db, options...)
		require.NoError(t, err, "error creating engine in test setup")
		wrapper = &SQLDBWrapper{db: db, engine: engine}

	case typeSQLX:
		db := config.PostgresSQLXConfig(dsn)
		engine, err := postgresengine.NewEngineFromSQLX(db, options...)
		require.NoError(t, err, "error creating engine in test setup")
		wrapper = &SQLXWrapper{db: db, engine: engine}

	default:
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterTypeFromEnv))
	}

	require.NoError(t, wrapper.GetEngine().EnsureSchema(context.Background()), "error creating schema in test setup")

	return wrapper
}
