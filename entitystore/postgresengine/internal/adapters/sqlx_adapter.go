package adapters

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// SQLXAdapter implements DBAdapter for sqlx.DB.
type SQLXAdapter struct {
	db *sqlx.DB
}

// NewSQLXAdapter creates a new SQLX adapter.
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

// QueryDocuments selects the document column into a byte slice per row.
func (s *SQLXAdapter) QueryDocuments(ctx context.Context, query string) ([][]byte, error) {
	documents := make([][]byte, 0)
	if err := s.db.SelectContext(ctx, &documents, query); err != nil {
		return nil, queryFailed(err)
	}

	return documents, nil
}

// Exec runs query and returns the affected row count.
func (s *SQLXAdapter) Exec(ctx context.Context, query string) (int64, error) {
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	return rowsAffected(result)
}
