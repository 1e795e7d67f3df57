package replay

import (
	"bufio"
	"context"
	"io"
	"strings"

	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/journal"
	"codeberg.org/mutker/hrcap/internal/protocol"
)

const maxRowBytes = 1 << 20

// RawReader reads RawEvents back from a raw table.
type RawReader struct {
	scanner *bufio.Scanner
	line    int
	started bool
}

func NewRawReader(r io.Reader) *RawReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxRowBytes)

	return &RawReader{scanner: scanner}
}

// Next returns the next event, or io.EOF after the last row. Blank lines are
// skipped. The header must be the first line.
func (r *RawReader) Next() (protocol.RawEvent, error) {
	errFactory := errors.New()

	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()

		if !r.started {
			r.started = true
			if strings.TrimRight(text, "\r") != strings.TrimSuffix(journal.RawHeader, "\n") {
				return protocol.RawEvent{}, errFactory.WithData(ErrMissingHeader, text)
			}
			continue
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		ev, err := journal.ParseRawRow(text)
		if err != nil {
			return protocol.RawEvent{}, errFactory.WithData(ErrMalformedRow, struct {
				Line  int
				Error string
			}{
				Line:  r.line,
				Error: err.Error(),
			})
		}

		return ev, nil
	}

	if err := r.scanner.Err(); err != nil {
		return protocol.RawEvent{}, errFactory.Wrap(ErrReadFailed, err)
	}

	return protocol.RawEvent{}, io.EOF
}

// ReadRawTable reads every event of a raw table.
func ReadRawTable(r io.Reader) ([]protocol.RawEvent, error) {
	reader := NewRawReader(r)

	var events []protocol.RawEvent
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// OpenRawTable reads the raw table stored under name.
func OpenRawTable(ctx context.Context, store journal.Store, name string) ([]protocol.RawEvent, error) {
	rc, _, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return ReadRawTable(rc)
}
