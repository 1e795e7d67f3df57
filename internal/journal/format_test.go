package journal

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventTime = time.Date(2026, 10, 16, 9, 30, 15, 250_000_000, time.UTC)

func TestFormatRawRow(t *testing.T) {
	ev := protocol.RawEvent{Channel: "FC20", Payload: []byte{0x01, 0x0A, 0xFF}, Timestamp: eventTime}

	assert.Equal(t,
		"2026-10-16T09:30:15.250Z,FC20,3,01 0A FF,N/A,00000001 00001010 11111111\n",
		string(FormatRawRow(ev)))
}

func TestFormatRawRowASCII(t *testing.T) {
	ev := protocol.RawEvent{Channel: "2A29", Payload: []byte("Acme, Inc"), Timestamp: eventTime}

	row := string(FormatRawRow(ev))
	assert.Contains(t, row, ",Acme; Inc,")
	assert.Equal(t, 6, len(bytes.Split([]byte(row), []byte(","))))
}

func TestFormatRawRowEmptyPayload(t *testing.T) {
	ev := protocol.RawEvent{Channel: "2A37", Timestamp: eventTime}

	assert.Equal(t, "2026-10-16T09:30:15.250Z,2A37,0,,,\n", string(FormatRawRow(ev)))
}

func TestParseRawRowRoundTrip(t *testing.T) {
	ev := protocol.RawEvent{
		Channel:   "FC20",
		Payload:   []byte{0x01, 0x0A, 0xC6, 0x4E, 0x4D, 0x2C, 0xFB, 0x02, 0x8A, 0x1E, 0xAF, 0x3C, 0x00, 0x28},
		Timestamp: eventTime,
	}

	got, err := ParseRawRow(string(FormatRawRow(ev)))
	require.NoError(t, err)
	assert.Equal(t, ev.Channel, got.Channel)
	assert.Equal(t, ev.Payload, got.Payload)
	assert.True(t, ev.Timestamp.Equal(got.Timestamp))
}

func TestParseRawRowRejectsMalformed(t *testing.T) {
	rows := []string{
		RawHeader,
		"2026-10-16T09:30:15.250Z,FC20,3",
		"not-a-time,FC20,1,01,N/A,00000001",
		"2026-10-16T09:30:15.250Z,FC20,2,01,N/A,00000001",
		"2026-10-16T09:30:15.250Z,FC20,1,ZZ,N/A,00000001",
	}

	for _, row := range rows {
		_, err := ParseRawRow(row)
		require.Error(t, err, row)
		assert.True(t, errors.HasCode(err, ErrMalformedRow), row)
	}
}

func TestFormatBinaryRecordLayout(t *testing.T) {
	ev := protocol.RawEvent{Channel: "FC20", Payload: []byte{0xAA, 0xBB}, Timestamp: eventTime}

	rec := FormatBinaryRecord(ev)
	require.Len(t, rec, 14)

	seconds := math.Float64frombits(binary.LittleEndian.Uint64(rec[:8]))
	assert.InDelta(t, float64(eventTime.UnixMilli())/1000, seconds, 1e-6)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x02}, rec[8:12])
	assert.Equal(t, []byte{0xAA, 0xBB}, rec[12:])
}

func TestBinaryReader(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(FormatBinaryRecord(protocol.RawEvent{Payload: []byte{0x01}, Timestamp: eventTime}))
	stream.Write(FormatBinaryRecord(protocol.RawEvent{Payload: nil, Timestamp: eventTime.Add(time.Second)}))

	r := NewBinaryReader(&stream)

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, first.Payload)
	assert.WithinDuration(t, eventTime, first.Time(), time.Microsecond)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Empty(t, second.Payload)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBinaryReaderTruncated(t *testing.T) {
	rec := FormatBinaryRecord(protocol.RawEvent{Payload: []byte{0x01, 0x02, 0x03}, Timestamp: eventTime})

	_, err := NewBinaryReader(bytes.NewReader(rec[:len(rec)-1])).Next()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrTruncatedRecord))

	_, err = NewBinaryReader(bytes.NewReader(rec[:5])).Next()
	assert.True(t, errors.HasCode(err, ErrTruncatedRecord))
}

func TestFormatDerivedRowAndNote(t *testing.T) {
	assert.Equal(t, "2026-10-16T09:30:15.250Z,79\n", string(FormatDerivedRow(eventTime, 79)))

	local := time.Date(2026, 10, 16, 11, 30, 15, 0, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "[2026-10-16 11:30:15.000] Session started\n", string(FormatNote(local, "Session started")))
	assert.Equal(t, "[2026-10-16 11:30:15.000] a b\n", string(FormatNote(local, "a\nb\n")))
}

func TestArtifactNames(t *testing.T) {
	id := testSession

	tests := []struct {
		kind    Kind
		channel protocol.ChannelID
		want    string
	}{
		{KindRaw, "", string(id) + ".raw.csv"},
		{KindBinary, "fc20", string(id) + ".binary.FC20.bin"},
		{KindBinary, "6e400003-b5a3-f393-e0a9-e50e24dcca9e", string(id) + ".binary.6E400003-B5A3-F393-E0A9-E50E24DCCA9E.bin"},
		{KindDerived, "", string(id) + ".heartrate.csv"},
		{KindNarrative, "", string(id) + ".analysis.txt"},
	}

	for _, tt := range tests {
		name := ArtifactName(id, tt.kind, tt.channel)
		assert.Equal(t, tt.want, name)

		a, ok := ParseArtifactName(name)
		require.True(t, ok, name)
		assert.Equal(t, id, a.Session)
		assert.Equal(t, tt.kind, a.Kind)
	}

	for _, name := range []string{"notes.txt", "x.raw.csv", "dev_20261016T093015.000Z.binary..bin", ".DS_Store"} {
		_, ok := ParseArtifactName(name)
		assert.False(t, ok, name)
	}
}
