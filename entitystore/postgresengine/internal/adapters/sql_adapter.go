package adapters

import (
	"context"
	"database/sql"
)

// SQLAdapter implements DBAdapter for sql.DB.
type SQLAdapter struct {
	db *sql.DB
}

// NewSQLAdapter creates a new SQL adapter.
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

// QueryDocuments scans the document column row by row.
func (s *SQLAdapter) QueryDocuments(ctx context.Context, query string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, queryFailed(err)
	}
	defer func() { _ = rows.Close() }() // the rows are drained or failed already

	documents := make([][]byte, 0)
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, scanFailed(err)
		}

		documents = append(documents, document)
	}

	if err := rows.Err(); err != nil {
		return nil, queryFailed(err)
	}

	return documents, nil
}

// Exec runs query and returns the affected row count.
func (s *SQLAdapter) Exec(ctx context.Context, query string) (int64, error) {
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	return rowsAffected(result)
}
