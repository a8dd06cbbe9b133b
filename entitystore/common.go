package entitystore

import (
	"errors"
)

var ErrInvalidApplicationContext = errors.New("application context needs a non-empty app id")
var ErrInvalidArgument = errors.New("invalid argument")
var ErrEntityNotFound = errors.New("entity not found")
var ErrEntityAlreadyExists = errors.New("entity already exists")
var ErrGroupUnchanged = errors.New("no entity matched, groups were not changed")
var ErrNilEngine = errors.New("nil engine supplied")

var ErrInvalidFilter = errors.New("filter document is not valid")
var ErrUnsupportedOperator = errors.New("unsupported filter operator")

var ErrEmptyTableNameSupplied = errors.New("empty table name supplied")
var ErrNilDatabaseConnection = errors.New("nil database connection supplied")
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrQueryingEntitiesFailed = errors.New("querying entities failed")
var ErrScanningDBRowFailed = errors.New("scanning db row failed")
var ErrDecodingEntityFailed = errors.New("decoding entity failed")
var ErrWritingEntityFailed = errors.New("writing entity failed")
var ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")
