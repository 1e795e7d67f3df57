// Package journal persists capture sessions as append-only artifacts.
//
// Each session owns a raw table (every event, three encodings of the bytes),
// one binary table per channel (length-prefixed records), a derived heart
// rate table and a free-text analysis narrative. Artifacts are created on
// first write. A failed append is returned to the caller and never retried
// here.
package journal

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/logger"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
)

type Journal struct {
	store  Store
	now    func() time.Time
	loc    *time.Location
	logger logger.Logger
}

type Option func(*Journal)

// WithClock sets the clock used to stamp narrative lines.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// WithLocation sets the zone narrative lines are written in.
func WithLocation(loc *time.Location) Option {
	return func(j *Journal) { j.loc = loc }
}

func WithLogger(l logger.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

func New(store Store, opts ...Option) *Journal {
	j := &Journal{
		store:  store,
		now:    time.Now,
		loc:    time.Local,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(j)
	}

	return j
}

// Store returns the underlying store.
func (j *Journal) Store() Store {
	return j.store
}

// AppendRaw records ev in the session's raw table.
func (j *Journal) AppendRaw(ctx context.Context, id session.ID, ev protocol.RawEvent) error {
	return j.append(ctx, id, ArtifactName(id, KindRaw, ""), []byte(RawHeader), FormatRawRow(ev))
}

// AppendBinary records ev in the session's binary table for ev.Channel.
func (j *Journal) AppendBinary(ctx context.Context, id session.ID, ev protocol.RawEvent) error {
	return j.append(ctx, id, ArtifactName(id, KindBinary, ev.Channel), nil, FormatBinaryRecord(ev))
}

// AppendDerived records an accepted heart rate.
func (j *Journal) AppendDerived(ctx context.Context, id session.ID, ts time.Time, heartRate int) error {
	return j.append(ctx, id, ArtifactName(id, KindDerived, ""), []byte(DerivedHeader), FormatDerivedRow(ts, heartRate))
}

// AppendNote adds a line to the session's analysis narrative.
func (j *Journal) AppendNote(ctx context.Context, id session.ID, message string) error {
	return j.append(ctx, id, ArtifactName(id, KindNarrative, ""), nil, FormatNote(j.now().In(j.loc), message))
}

// AppendNotef is AppendNote with formatting.
func (j *Journal) AppendNotef(ctx context.Context, id session.ID, format string, args ...any) error {
	return j.AppendNote(ctx, id, fmt.Sprintf(format, args...))
}

func (j *Journal) append(ctx context.Context, id session.ID, name string, header, record []byte) error {
	errFactory := errors.New()

	if id == "" {
		return errFactory.New(ErrNoSession)
	}

	if err := j.store.Append(ctx, name, header, record); err != nil {
		j.logger.Warn().Err(err).Str("artifact", name).Msg("Journal append failed")
		if errors.HasCode(err, ErrStorageWrite) {
			return err
		}
		return errFactory.Wrap(ErrStorageWrite, err)
	}

	return nil
}
