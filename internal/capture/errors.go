package capture

import "codeberg.org/mutker/hrcap/internal/errors"

const (
	ErrInvalidConfig       = errors.ErrInvalidConfig
	ErrInvalidSessionState = errors.ErrInvalidSessionState
	ErrStopped             = errors.ErrorCode("capture_coordinator_stopped")
	ErrStorageWrite        = errors.ErrStorageWrite
	ErrSinkRejected        = errors.ErrSinkRejected
	ErrDecodeAnomaly       = errors.ErrDecodeAnomaly
)
