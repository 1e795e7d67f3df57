package replay

import "codeberg.org/mutker/hrcap/internal/errors"

const (
	ErrReadFailed    = errors.ErrorCode("replay_read_failed")
	ErrMalformedRow  = errors.ErrorCode("replay_malformed_row")
	ErrMissingHeader = errors.ErrorCode("replay_missing_header")
	ErrInterrupted   = errors.ErrorCode("replay_interrupted")
)
