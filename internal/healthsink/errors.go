package healthsink

import "codeberg.org/mutker/hrcap/internal/errors"

const (
	ErrRejected      = errors.ErrSinkRejected
	ErrNotConnected  = errors.ErrorCode("healthsink_not_connected")
	ErrPublishTimeout = errors.ErrTimeout
	ErrInvalidConfig = errors.ErrInvalidConfig
)
