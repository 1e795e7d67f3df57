package observations

import "codeberg.org/mutker/hrcap/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("observations_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("observations_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("observations_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("observations_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("observations_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed
	ErrQueryFailed  = errors.ErrorCode("observations_query_failed")

	// Recording Errors
	ErrRecordFailed     = errors.ErrorCode("observations_record_failed")
	ErrOperationTimeout = errors.ErrTimeout
)
