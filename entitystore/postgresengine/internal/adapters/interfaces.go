package adapters

import "context"

// DBAdapter runs the statements of the entity engine on one database driver.
//
// Errors are joined with the entitystore sentinels: ErrQueryingEntitiesFailed for a failed query,
// ErrScanningDBRowFailed for a row that could not be read and ErrGettingRowsAffectedFailed for a missing count.
type DBAdapter interface {
	// QueryDocuments runs a SELECT of the document column and returns the raw jsonb of each row, in row order.
	// Adapters with a replica read from it only when the context asks for eventual consistency.
	QueryDocuments(ctx context.Context, query string) ([][]byte, error)

	// Exec runs a statement on the primary and returns the number of affected rows.
	Exec(ctx context.Context, query string) (int64, error)
}
