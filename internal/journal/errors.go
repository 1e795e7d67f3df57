package journal

import "codeberg.org/mutker/hrcap/internal/errors"

const (
	// Storage Errors
	ErrStorageWrite   = errors.ErrStorageWrite
	ErrStorageRead    = errors.ErrorCode("journal_storage_read_failed")
	ErrStorageList    = errors.ErrorCode("journal_storage_list_failed")
	ErrStorageDelete  = errors.ErrorCode("journal_storage_delete_failed")
	ErrInvalidName    = errors.ErrorCode("journal_invalid_artifact_name")
	ErrNoSession      = errors.ErrInvalidSessionState
	ErrUnknownSession = errors.ErrorCode("journal_unknown_session")

	// Format Errors
	ErrMalformedRow    = errors.ErrorCode("journal_malformed_row")
	ErrTruncatedRecord = errors.ErrorCode("journal_truncated_record")
)
