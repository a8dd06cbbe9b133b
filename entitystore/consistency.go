package entitystore

import "context"

// ConsistencyLevel defines the consistency requirements for Engine reads.
type ConsistencyLevel int

const (
	// StrongConsistency requires reads from the primary database, so a caller sees its own writes.
	// This is the default, because the read-modify-replace operations of the Service depend on it.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from a replica database. Suitable for listings and group set
	// operations that can tolerate slightly stale data.
	EventualConsistency
)

type contextKey string

// ConsistencyLevelKey is the context key used to store consistency level preferences.
const ConsistencyLevelKey contextKey = "entitystore.consistency_level"

// WithStrongConsistency returns a context that makes Engine reads use the primary database.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that lets Engine reads use a replica database.
//
// Example usage:
//
//	ctx = entitystore.WithEventualConsistency(ctx)
//	members, err := service.Union(ctx, app, "readers", "writers")
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context.
// Without one it returns StrongConsistency.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}
	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging and debugging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
