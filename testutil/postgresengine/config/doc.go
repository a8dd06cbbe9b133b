// Package config provides PostgreSQL database configuration for entity engine testing.
//
// This package contains factory functions for creating database connections
// using the supported PostgreSQL adapters (pgx.Pool, sql.DB, sqlx.DB).
// The DSN comes from the PICO_POSTGRES_DSN environment variable; tests needing a
// database are skipped without it.
package config
