package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pful/pico/entitystore"
)

// PGXAdapter implements DBAdapter for pgxpool.Pool, optionally reading from a replica.
type PGXAdapter struct {
	pool        *pgxpool.Pool
	replicaPool *pgxpool.Pool
}

// NewPGXAdapter creates a PGX adapter on a primary pool.
func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{pool: pool}
}

// NewPGXAdapterWithReplica creates a PGX adapter on a primary and a replica pool.
func NewPGXAdapterWithReplica(pool *pgxpool.Pool, replica *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{pool: pool, replicaPool: replica}
}

func (p *PGXAdapter) readPool(ctx context.Context) *pgxpool.Pool {
	if p.replicaPool != nil && entitystore.GetConsistencyLevel(ctx) == entitystore.EventualConsistency {
		return p.replicaPool
	}

	return p.pool
}

// QueryDocuments collects the jsonb column of every row; pgx hands jsonb out as raw bytes.
func (p *PGXAdapter) QueryDocuments(ctx context.Context, query string) ([][]byte, error) {
	rows, err := p.readPool(ctx).Query(ctx, query)
	if err != nil {
		return nil, queryFailed(err)
	}

	documents, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, scanFailed(err)
	}

	return documents, nil
}

// Exec runs query on the primary pool.
func (p *PGXAdapter) Exec(ctx context.Context, query string) (int64, error) {
	tag, err := p.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}
