// Package postgresengine provides a PostgreSQL implementation of entitystore.Engine.
//
// Entities are stored as jsonb documents in a single table keyed by (app_id, id). Rendered filter Documents
// are parsed with entitystore.ParseFilter and translated into SQL over the document column:
//
//   - equality uses jsonb containment, so an array field matches when it contains the operand
//   - $gt, $gte, $lt and $lte compare numbers numerically and strings bytewise
//   - $in, $nin and $all expand to OR, NOT and AND over equalities; an empty list never matches
//   - $exists tests the path with #>
//
// Usage examples:
//
//	// Basic usage
//	db, _ := pgxpool.New(context.Background(), dsn)
//	engine, _ := postgresengine.NewEngineFromPGXPool(db)
//	_ = engine.EnsureSchema(ctx)
//
//	// With a read replica, a custom table and logging
//	engine, _ := postgresengine.NewEngineFromPGXPoolWithReplica(
//		primary,
//		replica,
//		postgresengine.WithTableName("my_entities"),
//		postgresengine.WithLogger(slog.Default()),
//	)
//
//	service, _ := entitystore.NewService(engine)
package postgresengine
