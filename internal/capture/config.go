package capture

import (
	"time"

	"codeberg.org/mutker/hrcap/internal/errors"
)

const (
	defaultInboxSize   = 256
	defaultLogBuffer   = 200
	defaultSinkQueue   = 64
	defaultSinkTimeout = 5 * time.Second
)

type Config struct {
	// InboxSize bounds commands waiting for the coordinator loop.
	InboxSize int
	// LogBuffer is the number of live log lines kept in LiveState.
	LogBuffer int
	// SinkQueue bounds samples waiting for the sink. Samples beyond it are
	// dropped and counted.
	SinkQueue   int
	SinkTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		InboxSize:   defaultInboxSize,
		LogBuffer:   defaultLogBuffer,
		SinkQueue:   defaultSinkQueue,
		SinkTimeout: defaultSinkTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	fields := []struct {
		name  string
		value int
	}{
		{"inbox_size", c.InboxSize},
		{"log_buffer", c.LogBuffer},
		{"sink_queue", c.SinkQueue},
	}
	for _, f := range fields {
		if f.value < 1 {
			return errFactory.WithData(ErrInvalidConfig, struct {
				Field string
				Value int
			}{
				Field: f.name,
				Value: f.value,
			})
		}
	}

	if c.SinkTimeout <= 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "sink timeout must be positive")
	}

	return nil
}
