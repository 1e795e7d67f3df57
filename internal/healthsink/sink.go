// Package healthsink is the port through which validated heart rates leave
// the capture pipeline for an external health store.
package healthsink

import (
	"context"
	"time"
)

// Sample is one validated heart rate.
type Sample struct {
	BPM       int       `json:"heart_rate"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink accepts samples. A returned error is a rejection; callers log it and
// do not retry.
type Sink interface {
	Submit(ctx context.Context, sample Sample) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, sample Sample) error

func (f SinkFunc) Submit(ctx context.Context, sample Sample) error {
	return f(ctx, sample)
}

// Nop accepts and discards every sample.
type Nop struct{}

func (Nop) Submit(context.Context, Sample) error {
	return nil
}
