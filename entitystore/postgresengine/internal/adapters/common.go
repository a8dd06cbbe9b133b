package adapters

import (
	"database/sql"
	"errors"

	"github.com/pful/pico/entitystore"
)

func rowsAffected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(entitystore.ErrGettingRowsAffectedFailed, err)
	}

	return n, nil
}

func queryFailed(err error) error {
	return errors.Join(entitystore.ErrQueryingEntitiesFailed, err)
}

func scanFailed(err error) error {
	return errors.Join(entitystore.ErrScanningDBRowFailed, err)
}
