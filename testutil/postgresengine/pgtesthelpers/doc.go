// Package pgtesthelpers provides test utilities for PostgreSQL entity engine testing with multi-adapter support.
//
// This package enables testing across different PostgreSQL drivers (pgx, sql.DB, sqlx.DB) through
// a unified Wrapper interface. Test adapter selection is controlled via the ADAPTER_TYPE environment
// variable.
//
// Environment Variables:
//
//	ADAPTER_TYPE: selects adapter (pgx.pool, sql.db, sqlx.db)
//	PICO_POSTGRES_DSN: PostgreSQL instance DSN, tests are skipped without it
package pgtesthelpers
