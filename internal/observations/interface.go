package observations

import (
	"context"

	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
)

// Recorder mirrors decoded observations into a queryable store.
type Recorder interface {
	Record(ctx context.Context, id session.ID, obs protocol.Observation) error
	DeleteSession(ctx context.Context, id session.ID) (int64, error)
	Close() error
}

// Repository is the storage behind a Recorder.
type Repository interface {
	Record(row Row) error
	DeleteSession(id session.ID) (int64, error)
	Close() error
}

// Row is one stored observation.
type Row struct {
	ID          string
	Session     session.ID
	Observation protocol.Observation
}
