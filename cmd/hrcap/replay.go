package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/hrcap/internal/capture"
	"codeberg.org/mutker/hrcap/internal/healthsink"
	"codeberg.org/mutker/hrcap/internal/journal"
	"codeberg.org/mutker/hrcap/internal/logger"
	"codeberg.org/mutker/hrcap/internal/observations"
	"codeberg.org/mutker/hrcap/internal/pid"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/replay"
	"codeberg.org/mutker/hrcap/internal/session"
	"github.com/spf13/cobra"
)

func newReplayCmd(a *app) *cobra.Command {
	var opts replay.Options

	cmd := &cobra.Command{
		Use:   "replay <raw-table | session-id>",
		Short: "Re-decode a recorded raw table into a new session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go handleSignals(ctx, cancel)

			return a.replay(ctx, cmd, args[0], opts)
		},
	}

	cmd.Flags().Float64Var(&opts.Speed, "speed", 0, "Replay speed relative to the recording (0 = as fast as possible)")
	cmd.Flags().BoolVar(&opts.Restamp, "restamp", false, "Stamp events with the replay time instead of the recorded time")

	return cmd
}

func (a *app) replay(ctx context.Context, cmd *cobra.Command, source string, opts replay.Options) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}

	if err := pid.Write(store.Dir()); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(store.Dir()); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	events, device, err := a.loadEvents(ctx, store, source)
	if err != nil {
		return err
	}
	opts.Device = device
	opts.Logger = a.log.With("replay")

	recorder, err := observations.NewRecorder(a.cfg.ObservationsConfig(), a.log.With("observations"))
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close observation mirror")
		}
	}()

	sink, closeSink, err := a.openSink(ctx)
	if err != nil {
		return err
	}
	defer closeSink()

	j := journal.New(store, journal.WithLogger(a.log.With("journal")))
	dec := protocol.NewDecoder(protocol.NewClassifier(a.cfg.Channels()...))

	coordinator, err := capture.New(a.cfg.CaptureConfig(), j, dec,
		capture.WithSink(sink),
		capture.WithRecorder(recorder),
		capture.WithLogger(a.log.With("capture")),
		capture.WithClock(a.now),
	)
	if err != nil {
		return err
	}

	runCtx, stopRun := context.WithCancel(context.WithoutCancel(ctx))
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := coordinator.Run(runCtx); err != nil {
			logger.Error().Err(err).Msg("Capture coordinator failed")
		}
	}()

	statusDone := make(chan struct{})
	go func() {
		defer close(statusDone)
		logStatus(coordinator, a.cfg.StatusEvery())
	}()

	id, replayErr := replay.Replay(ctx, coordinator, events, opts)

	stopRun()
	<-runDone
	<-statusDone

	final := coordinator.Snapshot()
	logger.Info().
		Str("session", string(id)).
		Uint64("events", final.Events).
		Uint64("anomalies", final.Anomalies).
		Uint64("storage_failures", final.StorageFailures).
		Uint64("sink_rejections", final.SinkRejections).
		Msg("Replay complete")

	if id != "" {
		_, _ = cmd.OutOrStdout().Write([]byte(string(id) + "\n"))
	}

	return replayErr
}

// loadEvents accepts a path to a raw table or the id of a stored session.
func (a *app) loadEvents(ctx context.Context, store journal.Store, source string) ([]protocol.RawEvent, string, error) {
	device := a.cfg.DeviceName

	if id := session.ID(source); id.Valid() && !strings.ContainsRune(source, os.PathSeparator) {
		events, err := replay.OpenRawTable(ctx, store, journal.ArtifactName(id, journal.KindRaw, ""))
		if err != nil {
			return nil, "", err
		}
		return events, id.Device(), nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	events, err := replay.ReadRawTable(f)
	return events, device, err
}

func (a *app) openSink(ctx context.Context) (healthsink.Sink, func(), error) {
	mqttCfg := a.cfg.MQTTConfig()
	if mqttCfg.Broker == "" {
		return healthsink.Nop{}, func() {}, nil
	}

	sink, err := healthsink.NewMQTTSink(mqttCfg, a.log.With("healthsink"))
	if err != nil {
		return nil, nil, err
	}
	if err := sink.Connect(ctx); err != nil {
		// the client keeps retrying in the background; samples are rejected
		// until it connects
		logger.Warn().Err(err).Str("broker", mqttCfg.Broker).Msg("Health sink not connected")
	}

	return sink, func() { sink.Close() }, nil
}

// logStatus logs the live state every interval until the coordinator closes
// its update feed.
func logStatus(c *capture.Coordinator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var latest capture.LiveState
	for {
		select {
		case state, ok := <-c.Updates():
			if !ok {
				return
			}
			latest = state
		case <-ticker.C:
			e := logger.Info().
				Str("state", latest.State.String()).
				Str("session", string(latest.Session)).
				Uint64("events", latest.Events)
			if latest.LastHeartRate.Valid {
				e = e.Int("heart_rate", latest.LastHeartRate.V)
			}
			if latest.BatteryPercent.Valid {
				e = e.Int("battery", latest.BatteryPercent.V)
			}
			e.Msg("Status")
		}
	}
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}
