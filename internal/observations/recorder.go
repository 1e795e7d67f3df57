// Package observations mirrors decoded observations into SQLite so that
// sessions can be queried without re-parsing the journal. The mirror is
// optional and lossy on failure; the journal stays authoritative.
package observations

import (
	"context"

	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/logger"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
	"github.com/google/uuid"
)

type service struct {
	repo Repository
	cfg  Config
}

type noopRecorder struct{}

// NewRecorder returns a recorder for cfg, or a no-op recorder when the
// mirror is disabled.
func NewRecorder(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Observation mirror disabled, using no-op recorder")
		return Noop(), nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo, cfg: cfg}, nil
}

// Noop returns a recorder that keeps nothing.
func Noop() Recorder {
	return noopRecorder{}
}

func (s *service) Record(ctx context.Context, id session.ID, obs protocol.Observation) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	row := Row{
		ID:          uuid.NewString(),
		Session:     id,
		Observation: obs,
	}
	if err := s.repo.Record(row); err != nil {
		return errFactory.Wrap(ErrRecordFailed, err)
	}

	return nil
}

func (s *service) DeleteSession(ctx context.Context, id session.ID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.New().Wrap(ErrOperationTimeout, err)
	}

	return s.repo.DeleteSession(id)
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}

func (noopRecorder) Record(context.Context, session.ID, protocol.Observation) error {
	return nil
}

func (noopRecorder) DeleteSession(context.Context, session.ID) (int64, error) {
	return 0, nil
}

func (noopRecorder) Close() error {
	return nil
}
