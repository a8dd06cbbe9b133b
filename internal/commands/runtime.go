package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/lib/pq" // postgres driver for database/sql and sqlx
	"github.com/urfave/cli/v2"

	"github.com/pful/pico/entitystore"
	"github.com/pful/pico/entitystore/memoryengine"
	"github.com/pful/pico/entitystore/postgresengine"
	"github.com/pful/pico/internal/config"
	qb "github.com/pful/pico/querybuilder"
	"github.com/pful/pico/querybuilder/catalog"
)

// ErrInvalidBinding is returned for a --bind value that is not NAME=VALUE.
var ErrInvalidBinding = errors.New("binding must look like NAME=VALUE")

var bindJSON = jsoniter.Config{UseNumber: true}.Froze()

// runtime is what every command gets from the global flags.
type runtime struct {
	config   *config.ConfigFile
	logger   *slog.Logger
	registry *qb.Registry
}

func loadRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := loadConfig(c.String(flagConfig))
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(c, cfg.Logging)
	if err != nil {
		return nil, err
	}

	registry := qb.NewRegistry()
	if err := catalog.Register(registry, cfg.Templates); err != nil {
		return nil, fmt.Errorf("register configured templates: %w", err)
	}

	for _, path := range c.StringSlice(flagCatalog) {
		defs, err := catalog.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", path, err)
		}

		if err := catalog.Register(registry, defs); err != nil {
			return nil, fmt.Errorf("register catalog %s: %w", path, err)
		}
	}

	return &runtime{config: cfg, logger: logger, registry: registry}, nil
}

// loadConfig reads path, or falls back to the defaults when no file is given.
// The database section of the defaults is only checked once an engine is opened.
func loadConfig(path string) (*config.ConfigFile, error) {
	if path != "" {
		return config.FromFile(path)
	}

	cfg, err := config.Default()
	if err != nil {
		return nil, err
	}

	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newLogger(c *cli.Context, logging config.Logging) (*slog.Logger, error) {
	level, err := logging.SlogLevel()
	if err != nil {
		return nil, err
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	if logging.Format == config.FormatJSON {
		return slog.New(slog.NewJSONHandler(c.App.ErrWriter, handlerOptions)), nil
	}

	return slog.New(slog.NewTextHandler(c.App.ErrWriter, handlerOptions)), nil
}

// standardRegistry returns the registry with the standard templates added, for commands that run without a Service.
func (r *runtime) standardRegistry() (*qb.Registry, error) {
	if err := entitystore.RegisterStandardTemplates(r.registry); err != nil {
		return nil, err
	}

	return r.registry, nil
}

// OpenEngine opens the engine for the configured driver.
func OpenEngine(ctx context.Context, db config.Database, logger *slog.Logger) (entitystore.Engine, func(), error) {
	if err := db.Validate(); err != nil {
		return nil, nil, err
	}

	options := []postgresengine.Option{
		postgresengine.WithTableName(db.Table),
		postgresengine.WithLogger(logger),
	}

	switch db.Driver {
	case config.DriverMemory:
		return memoryengine.NewEngine(), func() {}, nil

	case config.DriverPGX:
		return openPGX(ctx, db, options)

	case config.DriverSQL:
		sqlDB, err := sql.Open("postgres", db.DSN)
		if err != nil {
			return nil, nil, err
		}

		engine, err := postgresengine.NewEngineFromSQLDB(sqlDB, options...)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}

		return engine, func() { _ = sqlDB.Close() }, nil

	case config.DriverSQLX:
		sqlxDB, err := sqlx.Open("postgres", db.DSN)
		if err != nil {
			return nil, nil, err
		}

		engine, err := postgresengine.NewEngineFromSQLX(sqlxDB, options...)
		if err != nil {
			_ = sqlxDB.Close()
			return nil, nil, err
		}

		return engine, func() { _ = sqlxDB.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

func openPGX(ctx context.Context, db config.Database, options []postgresengine.Option) (entitystore.Engine, func(), error) {
	pool, err := pgxpool.New(ctx, db.DSN)
	if err != nil {
		return nil, nil, err
	}

	if db.ReplicaDSN == "" {
		engine, err := postgresengine.NewEngineFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}

		return engine, pool.Close, nil
	}

	replica, err := pgxpool.New(ctx, db.ReplicaDSN)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	closeAll := func() {
		replica.Close()
		pool.Close()
	}

	engine, err := postgresengine.NewEngineFromPGXPoolWithReplica(pool, replica, options...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	return engine, closeAll, nil
}

// ParseBindings turns NAME=VALUE pairs into template bindings.
// VALUE is decoded as JSON if it parses, otherwise it is taken as a plain string.
func ParseBindings(pairs []string) (map[string]qb.Value, error) {
	bindings := make(map[string]qb.Value, len(pairs))

	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Join(ErrInvalidBinding, fmt.Errorf("got %q", pair))
		}

		var decoded any
		if err := bindJSON.UnmarshalFromString(raw, &decoded); err != nil {
			decoded = raw
		}

		value, err := qb.ValueOf(decoded)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", name, err)
		}

		bindings[name] = value
	}

	return bindings, nil
}
