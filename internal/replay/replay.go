// Package replay stands in for the wireless transport. It feeds recorded raw
// events back through a coordinator, which re-decodes them into a new
// session under the current decoder.
package replay

import (
	"context"
	"time"

	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/logger"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
)

// Target is the part of a capture coordinator a transport drives.
type Target interface {
	Connected(ctx context.Context, device string) (session.ID, error)
	OnEvent(ctx context.Context, ev protocol.RawEvent)
	Disconnected(ctx context.Context) error
}

type Options struct {
	Device string
	// Speed scales the recorded gaps between events. Zero replays as fast as
	// possible; 1 reproduces the original timing.
	Speed float64
	// Restamp replaces recorded timestamps with arrival time.
	Restamp bool
	Logger  logger.Logger
}

// Replay connects, sends events in order and disconnects. The returned id is
// the session the coordinator recorded into. A cancelled ctx stops the
// replay early; the session is still closed.
func Replay(ctx context.Context, target Target, events []protocol.RawEvent, opts Options) (session.ID, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	id, err := target.Connected(ctx, opts.Device)
	if err != nil {
		return "", err
	}

	log.Info().Str("session", string(id)).Int("events", len(events)).Msg("Replay started")

	sent, runErr := send(ctx, target, events, opts)

	// disconnect even when interrupted so the session gets its closing note
	if err := target.Disconnected(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = err
	}

	log.Info().Str("session", string(id)).Int("sent", sent).Msg("Replay finished")

	return id, runErr
}

func send(ctx context.Context, target Target, events []protocol.RawEvent, opts Options) (int, error) {
	var prev time.Time

	for i, ev := range events {
		if opts.Speed > 0 && !prev.IsZero() {
			if gap := ev.Timestamp.Sub(prev); gap > 0 {
				if err := sleep(ctx, time.Duration(float64(gap)/opts.Speed)); err != nil {
					return i, err
				}
			}
		}
		prev = ev.Timestamp

		if err := ctx.Err(); err != nil {
			return i, errors.New().Wrap(ErrInterrupted, err)
		}

		if opts.Restamp {
			ev.Timestamp = time.Time{}
		}
		target.OnEvent(ctx, ev)
	}

	return len(events), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errors.New().Wrap(ErrInterrupted, ctx.Err())
	}
}
