package telemetry

import "codeberg.org/mutker/xlnpwmon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("telemetry_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("telemetry_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("telemetry_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("telemetry_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("telemetry_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitTelemetry
	ErrStorageClose = errors.ErrCloseTelemetry

	// Collection Errors
	ErrRecordFailed = errors.ErrorCode("telemetry_record_failed")
	ErrClosed       = errors.ErrorCode("telemetry_closed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)
