package errors_test

import (
	"fmt"
	"io"
	"testing"

	"codeberg.org/mutker/hrcap/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "No active session", f.New(errors.ErrInvalidSessionState).Error())
	assert.Equal(t, "Failed to write journal artifact: EOF", f.Wrap(errors.ErrStorageWrite, io.EOF).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "Invalid log level: loud", f.WithData(errors.ErrInvalidLogLevel, "loud").Error())
	assert.Equal(t, "unknown_code", errors.GetErrorMessage("unknown_code"))
}

func TestHasCodeFollowsWrapping(t *testing.T) {
	f := errors.New()
	inner := f.Wrap(errors.ErrStorageWrite, io.ErrShortWrite)
	outer := fmt.Errorf("append raw: %w", inner)

	assert.True(t, errors.HasCode(outer, errors.ErrStorageWrite))
	assert.False(t, errors.HasCode(outer, errors.ErrSinkRejected))
	assert.True(t, errors.Is(outer, io.ErrShortWrite))
	assert.False(t, errors.HasCode(nil, errors.ErrStorageWrite))
}

func TestErrorKeepsDataAndCause(t *testing.T) {
	err := errors.New().Wrap(errors.ErrStorageWrite, io.ErrShortWrite).WithData("a.raw.csv")

	assert.Equal(t, "Failed to write journal artifact: a.raw.csv: short write", err.Error())
	assert.Equal(t, "a.raw.csv", err.GetData())
}

func TestCodeOf(t *testing.T) {
	f := errors.New()
	err := fmt.Errorf("flush: %w", f.Wrap(errors.ErrTimeout, f.New(errors.ErrSinkRejected)))

	code, ok := errors.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrTimeout, code)
	assert.True(t, errors.HasCode(err, errors.ErrSinkRejected))
	assert.True(t, errors.Is(err, f.New(errors.ErrTimeout)))

	_, ok = errors.CodeOf(io.EOF)
	assert.False(t, ok)
}
