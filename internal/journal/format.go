package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/protocol"
)

// Table headers, written once when an artifact is created.
const (
	RawHeader     = "Timestamp,CharacteristicUUID,DataLength,HexData,ASCIIData,BinaryData\n"
	DerivedHeader = "Timestamp,HeartRate\n"
)

const (
	// TimestampLayout is ISO 8601 with milliseconds, always written in UTC.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
	// NoteTimeLayout prefixes narrative lines, in local time.
	NoteTimeLayout = "2006-01-02 15:04:05.000"

	asciiUnavailable = "N/A"
	fieldDelimiter   = ','
	delimiterEscape  = ';'
	rawFieldCount    = 6

	binaryTimeLen   = 8
	binaryLengthLen = 4
	binaryHeaderLen = binaryTimeLen + binaryLengthLen
)

// FormatRawRow renders one raw table row.
func FormatRawRow(ev protocol.RawEvent) []byte {
	var b bytes.Buffer
	b.WriteString(ev.Timestamp.UTC().Format(TimestampLayout))
	b.WriteByte(fieldDelimiter)
	b.WriteString(string(ev.Channel))
	b.WriteByte(fieldDelimiter)
	b.WriteString(strconv.Itoa(len(ev.Payload)))
	b.WriteByte(fieldDelimiter)
	b.WriteString(HexString(ev.Payload))
	b.WriteByte(fieldDelimiter)
	b.WriteString(ASCIIString(ev.Payload))
	b.WriteByte(fieldDelimiter)
	b.WriteString(BinaryDigits(ev.Payload))
	b.WriteByte('\n')

	return b.Bytes()
}

// HexString renders payload as upper-case byte pairs separated by spaces.
func HexString(payload []byte) string {
	return strings.ToUpper(fmt.Sprintf("% x", payload))
}

// ASCIIString renders payload as text when every byte is printable ASCII,
// with the field delimiter escaped. Anything else yields "N/A".
func ASCIIString(payload []byte) string {
	out := make([]byte, len(payload))
	for i, c := range payload {
		if c < 0x20 || c > 0x7E {
			return asciiUnavailable
		}
		if c == fieldDelimiter {
			c = delimiterEscape
		}
		out[i] = c
	}

	return string(out)
}

// BinaryDigits renders payload as 8-digit groups separated by spaces.
func BinaryDigits(payload []byte) string {
	groups := make([]string, len(payload))
	for i, c := range payload {
		groups[i] = fmt.Sprintf("%08b", c)
	}

	return strings.Join(groups, " ")
}

// ParseRawRow reads a raw table row back into the event it recorded. The hex
// column is authoritative; the length column is checked against it.
func ParseRawRow(line string) (protocol.RawEvent, error) {
	errFactory := errors.New()
	line = strings.TrimRight(line, "\r\n")

	fields := strings.SplitN(line, string(fieldDelimiter), rawFieldCount)
	if len(fields) != rawFieldCount {
		return protocol.RawEvent{}, errFactory.WithData(ErrMalformedRow, line)
	}

	ts, err := time.Parse(TimestampLayout, fields[0])
	if err != nil {
		return protocol.RawEvent{}, errFactory.Wrap(ErrMalformedRow, err)
	}

	length, err := strconv.Atoi(fields[2])
	if err != nil {
		return protocol.RawEvent{}, errFactory.Wrap(ErrMalformedRow, err)
	}

	payload, err := hex.DecodeString(strings.ReplaceAll(fields[3], " ", ""))
	if err != nil {
		return protocol.RawEvent{}, errFactory.Wrap(ErrMalformedRow, err)
	}
	if len(payload) != length {
		return protocol.RawEvent{}, errFactory.WithData(ErrMalformedRow,
			fmt.Sprintf("length column %d, hex column %d bytes", length, len(payload)))
	}

	return protocol.RawEvent{
		Channel:   protocol.ChannelID(fields[1]),
		Payload:   payload,
		Timestamp: ts,
	}, nil
}

// FormatBinaryRecord renders one binary table record: float64 seconds since
// the Unix epoch (little-endian), big-endian uint32 length, then the payload.
func FormatBinaryRecord(ev protocol.RawEvent) []byte {
	out := make([]byte, binaryHeaderLen+len(ev.Payload))
	binary.LittleEndian.PutUint64(out[:binaryTimeLen], math.Float64bits(epochSeconds(ev.Timestamp)))
	binary.BigEndian.PutUint32(out[binaryTimeLen:binaryHeaderLen], uint32(len(ev.Payload)))
	copy(out[binaryHeaderLen:], ev.Payload)

	return out
}

// BinaryRecord is one decoded binary table record.
type BinaryRecord struct {
	Seconds float64
	Payload []byte
}

// Time converts Seconds back to a time.Time.
func (r BinaryRecord) Time() time.Time {
	sec, frac := math.Modf(r.Seconds)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

// BinaryReader iterates the records of a binary table.
type BinaryReader struct {
	r io.Reader
}

// NewBinaryReader returns a reader over a binary table stream.
func NewBinaryReader(r io.Reader) *BinaryReader {
	return &BinaryReader{r: r}
}

// Next returns the next record, io.EOF at a clean end of stream, or an error
// coded ErrTruncatedRecord when the stream ends inside a record.
func (br *BinaryReader) Next() (BinaryRecord, error) {
	var header [binaryHeaderLen]byte
	if _, err := io.ReadFull(br.r, header[:]); err != nil {
		if err == io.EOF {
			return BinaryRecord{}, io.EOF
		}
		return BinaryRecord{}, errors.New().Wrap(ErrTruncatedRecord, err)
	}

	length := binary.BigEndian.Uint32(header[binaryTimeLen:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(br.r, payload); err != nil {
		return BinaryRecord{}, errors.New().Wrap(ErrTruncatedRecord, err)
	}

	return BinaryRecord{
		Seconds: math.Float64frombits(binary.LittleEndian.Uint64(header[:binaryTimeLen])),
		Payload: payload,
	}, nil
}

// FormatDerivedRow renders one derived-metric row.
func FormatDerivedRow(ts time.Time, heartRate int) []byte {
	return []byte(ts.UTC().Format(TimestampLayout) + "," + strconv.Itoa(heartRate) + "\n")
}

// FormatNote renders one narrative line. Embedded newlines are flattened so
// that every note stays on one line.
func FormatNote(at time.Time, message string) []byte {
	message = strings.ReplaceAll(strings.TrimRight(message, "\n"), "\n", " ")
	return []byte("[" + at.Format(NoteTimeLayout) + "] " + message + "\n")
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
