// Package adapters runs the entity engine's SQL on pgx.Pool, sql.DB or sqlx.DB.
//
// Reads come back as the raw jsonb bytes of the document column, each adapter reading them the way its
// driver does best. Only the pgx adapter supports a read replica.
package adapters
