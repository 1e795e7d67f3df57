// Package capture runs the capture pipeline: it timestamps transport events,
// decodes them, journals raw and derived records for the current session and
// forwards validated heart rates to the health sink.
//
// A Coordinator is a single-writer actor. Every command goes through one
// inbox and is handled by the loop started with Run, so session changes and
// events are applied one at a time in arrival order. Readers get immutable
// LiveState snapshots. Nothing downstream of OnEvent can stop the loop:
// storage failures, decode anomalies and sink rejections are counted, logged
// and noted, never returned to the transport.
package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/hrcap/internal/derive"
	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/healthsink"
	"codeberg.org/mutker/hrcap/internal/journal"
	"codeberg.org/mutker/hrcap/internal/logger"
	"codeberg.org/mutker/hrcap/internal/observations"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
)

type commandKind int

const (
	cmdEvent commandKind = iota
	cmdStart
	cmdStop
	cmdConnected
	cmdDisconnected
	cmdAnnotate
	cmdSinkResult
)

type command struct {
	kind    commandKind
	event   protocol.RawEvent
	device  string
	message string
	sample  sinkJob
	err     error
	reply   chan reply
}

type reply struct {
	id  session.ID
	err error
}

type Coordinator struct {
	cfg      Config
	journal  *journal.Journal
	decoder  *protocol.Decoder
	sink     healthsink.Sink
	recorder observations.Recorder
	logger   logger.Logger
	now      func() time.Time

	inbox     chan command
	sinkQueue chan sinkJob
	updates   chan LiveState
	stopped   chan struct{}
	live      atomic.Pointer[LiveState]
	running   atomic.Bool

	// owned by the loop
	state       *LiveState
	lastCreated time.Time
}

type Option func(*Coordinator)

func WithSink(s healthsink.Sink) Option {
	return func(c *Coordinator) { c.sink = s }
}

func WithRecorder(r observations.Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock sets the clock used to stamp events that arrive without a
// timestamp and to name sessions.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func New(cfg Config, j *journal.Journal, dec *protocol.Decoder, opts ...Option) (*Coordinator, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if j == nil || dec == nil {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "journal and decoder are required")
	}

	c := &Coordinator{
		cfg:       cfg,
		journal:   j,
		decoder:   dec,
		sink:      healthsink.Nop{},
		recorder:  observations.Noop(),
		logger:    logger.Nop(),
		now:       time.Now,
		inbox:     make(chan command, cfg.InboxSize),
		sinkQueue: make(chan sinkJob, cfg.SinkQueue),
		updates:   make(chan LiveState, 1),
		stopped:   make(chan struct{}),
		state:     &LiveState{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.live.Store(c.state.clone())

	return c, nil
}

// Run processes commands until ctx is done. A session still recording at
// that point is closed with a note. Run returns after the sink worker has
// drained. It may be called once.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New().WithMessage(ErrInvalidSessionState, "coordinator already running")
	}

	// Journal writes and sink submissions must outlive cancellation so that
	// shutdown can close the session.
	bg := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.sinkWorker(bg)
	}()

	c.logger.Debug().Msg("Capture coordinator started")

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case cmd := <-c.inbox:
			c.handle(bg, cmd)
		}
	}

	c.drainInbox(bg)
	if c.state.State == StateRecording {
		c.endSession(bg, "Session stopped at shutdown")
		c.publish()
	}

	close(c.stopped)
	close(c.sinkQueue)
	wg.Wait()
	close(c.updates)

	c.logger.Debug().Msg("Capture coordinator stopped")

	return nil
}

// drainInbox handles commands that were queued before shutdown without
// blocking for new ones.
func (c *Coordinator) drainInbox(ctx context.Context) {
	for {
		select {
		case cmd := <-c.inbox:
			c.handle(ctx, cmd)
		default:
			return
		}
	}
}

// Snapshot returns the latest published state.
func (c *Coordinator) Snapshot() LiveState {
	return *c.live.Load().clone()
}

// Updates delivers the latest state after each change. Intermediate states
// are coalesced when the reader is slow. The channel is closed when Run
// returns.
func (c *Coordinator) Updates() <-chan LiveState {
	return c.updates
}

// OnEvent queues ev for processing. A zero timestamp is replaced with the
// coordinator clock. OnEvent blocks while the inbox is full and gives up
// only when ctx is done or the coordinator has stopped.
func (c *Coordinator) OnEvent(ctx context.Context, ev protocol.RawEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = c.now()
	}

	if err := c.send(ctx, command{kind: cmdEvent, event: ev}); err != nil {
		c.logger.Debug().Err(err).Str("channel", string(ev.Channel)).Msg("Event not delivered")
	}
}

// StartSession begins a new session for device, closing the current one
// first.
func (c *Coordinator) StartSession(ctx context.Context, device string) (session.ID, error) {
	return c.call(ctx, command{kind: cmdStart, device: device})
}

// StopSession closes the current session. It is a no-op when idle.
func (c *Coordinator) StopSession(ctx context.Context) error {
	_, err := c.call(ctx, command{kind: cmdStop})
	return err
}

// Connected records a transport connection and starts a session for it.
func (c *Coordinator) Connected(ctx context.Context, device string) (session.ID, error) {
	return c.call(ctx, command{kind: cmdConnected, device: device})
}

// Disconnected records the loss of the transport and stops the session.
func (c *Coordinator) Disconnected(ctx context.Context) error {
	_, err := c.call(ctx, command{kind: cmdDisconnected})
	return err
}

// Annotate adds message to the current session's narrative. It fails with
// ErrInvalidSessionState when idle.
func (c *Coordinator) Annotate(ctx context.Context, message string) error {
	_, err := c.call(ctx, command{kind: cmdAnnotate, message: message})
	return err
}

func (c *Coordinator) call(ctx context.Context, cmd command) (session.ID, error) {
	cmd.reply = make(chan reply, 1)
	if err := c.send(ctx, cmd); err != nil {
		return "", err
	}

	select {
	case r := <-cmd.reply:
		return r.id, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.stopped:
		select {
		case r := <-cmd.reply:
			return r.id, r.err
		default:
			return "", errors.New().New(ErrStopped)
		}
	}
}

func (c *Coordinator) send(ctx context.Context, cmd command) error {
	select {
	case <-c.stopped:
		return errors.New().New(ErrStopped)
	default:
	}

	select {
	case c.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return errors.New().New(ErrStopped)
	}
}

func (c *Coordinator) handle(ctx context.Context, cmd command) {
	var r reply

	switch cmd.kind {
	case cmdEvent:
		c.handleEvent(ctx, cmd.event)
	case cmdStart:
		r.id = c.startSession(ctx, cmd.device)
	case cmdStop:
		if c.state.State == StateRecording {
			c.endSession(ctx, "Session stopped")
		}
	case cmdConnected:
		c.state.Connected = true
		r.id = c.startSession(ctx, cmd.device)
		c.note(ctx, fmt.Sprintf("Connected to %s", cmd.device))
	case cmdDisconnected:
		c.state.Connected = false
		if c.state.State == StateRecording {
			c.note(ctx, "Disconnected")
			c.endSession(ctx, "Session stopped after disconnect")
		} else {
			c.log("Disconnected")
		}
	case cmdAnnotate:
		if c.state.State != StateRecording {
			r.err = errors.New().New(ErrInvalidSessionState)
			break
		}
		c.note(ctx, cmd.message)
	case cmdSinkResult:
		c.handleSinkResult(ctx, cmd.sample, cmd.err)
	}

	c.publish()

	if cmd.reply != nil {
		cmd.reply <- r
	}
}

func (c *Coordinator) startSession(ctx context.Context, device string) session.ID {
	if c.state.State == StateRecording {
		c.endSession(ctx, "Session closed, new session starting")
	}

	created := c.now().UTC().Truncate(time.Millisecond)
	if !created.After(c.lastCreated) {
		created = c.lastCreated.Add(time.Millisecond)
	}
	c.lastCreated = created

	id := session.New(device, created)
	c.state.State = StateRecording
	c.state.Session = id
	c.state.Device = device

	c.logger.Info().Str("session", string(id)).Str("device", device).Msg("Session started")
	c.note(ctx, fmt.Sprintf("Session started for device %s (%s)", device, id))

	return id
}

func (c *Coordinator) endSession(ctx context.Context, message string) {
	id := c.state.Session
	c.note(ctx, message)

	c.state.State = StateIdle
	c.state.Session = ""

	c.logger.Info().Str("session", string(id)).Msg("Session stopped")
}

func (c *Coordinator) handleEvent(ctx context.Context, ev protocol.RawEvent) {
	c.state.Events++
	id := c.state.Session

	if id != "" {
		if err := c.journal.AppendRaw(ctx, id, ev); err != nil {
			c.storageFailure(err)
		}
		if err := c.journal.AppendBinary(ctx, id, ev); err != nil {
			c.storageFailure(err)
		}
	}

	obs := derive.Derive(c.decoder.Decode(ev))

	if obs.Anomaly != protocol.AnomalyNone {
		c.state.Anomalies++
		c.logger.Debug().
			Str("error_code", string(ErrDecodeAnomaly)).
			Str("channel", string(obs.Channel)).
			Str("anomaly", obs.Anomaly.String()).
			Int("length", len(obs.Raw)).
			Msg("Decode anomaly")
	}

	if obs.BatteryPercent.Valid && obs.Anomaly == protocol.AnomalyNone {
		c.state.BatteryPercent = obs.BatteryPercent
	}

	summary := obs.Summary()
	if id != "" {
		if !obs.RawOnly() {
			c.note(ctx, summary)
		}
		if err := c.recorder.Record(ctx, id, obs); err != nil {
			c.logger.Debug().Err(err).Msg("Observation mirror rejected record")
		}
	}

	if obs.HeartRate.Valid {
		c.handleHeartRate(ctx, id, obs)
	}

	c.log(summary)
}

func (c *Coordinator) handleHeartRate(ctx context.Context, id session.ID, obs protocol.Observation) {
	bpm := obs.HeartRate.V

	if !derive.HeartRateIsPlausible(bpm) {
		c.state.Implausible++
		c.logger.Debug().Int("heart_rate", bpm).Msg("Implausible heart rate not forwarded")
		if id != "" {
			c.note(ctx, fmt.Sprintf("Implausible heart rate %d bpm not forwarded", bpm))
		}
		return
	}

	c.state.LastHeartRate = obs.HeartRate
	c.state.LastHeartRateSource = obs.HeartRateSource
	c.state.LastHeartRateAt = obs.Timestamp

	if id != "" {
		if err := c.journal.AppendDerived(ctx, id, obs.Timestamp, bpm); err != nil {
			c.storageFailure(err)
		}
	}

	c.enqueueSample(sinkJob{
		session: id,
		sample:  healthsink.Sample{BPM: bpm, Timestamp: obs.Timestamp},
	})
}

// note appends to the current session's narrative and the live log.
func (c *Coordinator) note(ctx context.Context, message string) {
	c.log(message)

	id := c.state.Session
	if id == "" {
		return
	}
	if err := c.journal.AppendNote(ctx, id, message); err != nil {
		c.storageFailure(err)
	}
}

func (c *Coordinator) log(message string) {
	c.state.appendLog(c.cfg.LogBuffer, c.now(), message)
}

func (c *Coordinator) storageFailure(err error) {
	c.state.StorageFailures++

	if e, ok := errors.AsError(err); ok {
		c.logger.ErrorWithCode(e).Str("session", string(c.state.Session)).Msg("Journal write failed")
	} else {
		c.logger.Error().Err(err).Str("session", string(c.state.Session)).Msg("Journal write failed")
	}
	c.log("Journal write failed: " + err.Error())
}

// publish makes the loop's state visible to readers.
func (c *Coordinator) publish() {
	snap := c.state.clone()
	c.live.Store(snap)

	select {
	case c.updates <- *snap:
	default:
		select {
		case <-c.updates:
		default:
		}
		select {
		case c.updates <- *snap:
		default:
		}
	}
}
