package postgresengine

import (
	"math"
	"time"
)

const (
	metricQueryDuration    = "entitystore_postgres_query_duration_seconds"
	metricWriteDuration    = "entitystore_postgres_write_duration_seconds"
	metricEntitiesFound    = "entitystore_postgres_entities_found"
	metricDatabaseErrors   = "entitystore_postgres_database_errors_total"
	labelOperation         = "operation"
	labelStatus            = "status"
	labelErrorType         = "error_type"
	statusSuccess          = "success"
	statusError            = "error"
	errorTypeDatabaseQuery = "database_query"
	errorTypeDatabaseExec  = "database_exec"
	errorTypeRowScan       = "row_scan"
	errorTypeDecode        = "decode"
)

// logQueryWithDuration logs SQL queries with execution time at debug level if the logger is configured.
func (e Engine) logQueryWithDuration(
	sqlQuery string,
	action string,
	duration time.Duration,
) {
	if e.logger != nil {
		e.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, e.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (e Engine) logOperation(action string, args ...any) {
	if e.logger != nil {
		e.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level if the logger is configured.
func (e Engine) logError(
	message string,
	err error,
	args ...any,
) {
	if e.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		e.logger.Error(message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (e Engine) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordErrorMetrics records error metrics if the metrics collector is configured.
func (e Engine) recordErrorMetrics(operation, errorType string) {
	if e.metricsCollector != nil {
		labels := map[string]string{
			labelOperation: operation,
			labelStatus:    statusError,
			labelErrorType: errorType,
		}
		e.metricsCollector.IncrementCounter(metricDatabaseErrors, labels)
	}
}

// recordDurationMetrics records duration metrics if the metrics collector is configured.
func (e Engine) recordDurationMetrics(metricName string, duration time.Duration, operation, status string) {
	if e.metricsCollector != nil {
		labels := map[string]string{
			labelOperation: operation,
			labelStatus:    status,
		}
		e.metricsCollector.RecordDuration(metricName, duration, labels)
	}
}

// recordValueMetrics records value metrics if the metrics collector is configured.
func (e Engine) recordValueMetrics(metricName string, value float64, operation, status string) {
	if e.metricsCollector != nil {
		labels := map[string]string{
			labelOperation: operation,
			labelStatus:    status,
		}
		e.metricsCollector.RecordValue(metricName, value, labels)
	}
}
