package replay

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/hrcap/internal/capture"
	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/healthsink"
	"codeberg.org/mutker/hrcap/internal/journal"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func recordedTable(events ...protocol.RawEvent) string {
	var b bytes.Buffer
	b.WriteString(journal.RawHeader)
	for _, ev := range events {
		b.Write(journal.FormatRawRow(ev))
	}
	return b.String()
}

func sampleEvents() []protocol.RawEvent {
	return []protocol.RawEvent{
		{Channel: "FC20", Payload: []byte{0x01, 0x0A, 0xC6, 0x4E, 0x4D, 0x2C, 0xFB, 0x02, 0x8A, 0x1E, 0xAF, 0x3C, 0x00, 0x28}, Timestamp: start},
		{Channel: "2A37", Payload: []byte{0x00, 72}, Timestamp: start.Add(time.Second)},
		{Channel: "2A29", Payload: []byte("Acme, Inc"), Timestamp: start.Add(2 * time.Second)},
	}
}

func TestReadRawTable(t *testing.T) {
	want := sampleEvents()

	got, err := ReadRawTable(strings.NewReader(recordedTable(want...) + "\n"))
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		assert.Equal(t, want[i].Channel, got[i].Channel)
		assert.Equal(t, want[i].Payload, got[i].Payload)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
	}
}

func TestReadRawTableErrors(t *testing.T) {
	_, err := ReadRawTable(strings.NewReader("a,b,c\n"))
	assert.True(t, errors.HasCode(err, ErrMissingHeader))

	events, err := ReadRawTable(strings.NewReader(recordedTable(sampleEvents()[0]) + "garbage\n"))
	assert.True(t, errors.HasCode(err, ErrMalformedRow))
	assert.Len(t, events, 1)

	events, err = ReadRawTable(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, events)
}

func TestReplayReDecodesIntoNewSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := journal.NewMemoryStore()
	samples := make(chan healthsink.Sample, 8)
	sink := healthsink.SinkFunc(func(_ context.Context, s healthsink.Sample) error {
		samples <- s
		return nil
	})

	c, err := capture.New(capture.DefaultConfig(), journal.New(store),
		protocol.NewDecoder(protocol.NewClassifier()), capture.WithSink(sink))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() { defer close(done); _ = c.Run(ctx) }()

	events, err := ReadRawTable(strings.NewReader(recordedTable(sampleEvents()...)))
	require.NoError(t, err)

	id, err := Replay(ctx, c, events, Options{Device: "Sensor"})
	require.NoError(t, err)
	assert.Equal(t, "Sensor", id.Device())

	cancel()
	<-done

	raw, ok := store.Bytes(journal.ArtifactName(id, journal.KindRaw, ""))
	require.True(t, ok)
	assert.Equal(t, recordedTable(sampleEvents()...), string(raw))

	assert.Equal(t, 79, (<-samples).BPM)
	assert.Equal(t, 72, (<-samples).BPM)

	notes, ok := store.Bytes(journal.ArtifactName(id, journal.KindNarrative, ""))
	require.True(t, ok)
	assert.Contains(t, string(notes), "Session stopped after disconnect")
}

type countingTarget struct {
	events       int
	disconnected bool
}

func (c *countingTarget) Connected(context.Context, string) (session.ID, error) {
	return "Sensor_20261016T093000.000Z", nil
}

func (c *countingTarget) OnEvent(context.Context, protocol.RawEvent) { c.events++ }

func (c *countingTarget) Disconnected(context.Context) error {
	c.disconnected = true
	return nil
}

func TestReplayStopsOnCancelButDisconnects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	events := sampleEvents()
	events[1].Timestamp = start.Add(time.Hour)

	target := &countingTarget{}
	_, err := Replay(ctx, target, events, Options{Speed: 1})
	assert.True(t, errors.HasCode(err, ErrInterrupted))
	assert.Equal(t, 1, target.events)
	assert.True(t, target.disconnected)
}
