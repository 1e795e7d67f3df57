package export

import "codeberg.org/mutker/hrcap/internal/errors"

const (
	ErrEmptySession    = errors.ErrorCode("export_empty_session")
	ErrWriteFailed     = errors.ErrorCode("export_write_failed")
	ErrReadFailed      = errors.ErrorCode("export_read_failed")
	ErrMissingManifest = errors.ErrorCode("export_missing_manifest")
)
