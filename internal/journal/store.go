package journal

import (
	"context"
	"io"
)

// Store is the storage namespace a journal writes into. Names are flat; a
// session's artifacts share the session id as prefix.
//
// Append must write header+record (or just record, when the artifact already
// has content) as one unit: two appends to the same name never interleave.
// Appends to different names may run concurrently.
type Store interface {
	// Append creates the artifact if absent, writing header first when
	// header is non-nil, then appends record.
	Append(ctx context.Context, name string, header, record []byte) error

	// List returns the sorted names starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes every artifact whose name starts with prefix. Deleting
	// nothing is not an error.
	Delete(ctx context.Context, prefix string) error

	// Open returns the content of an artifact and its size.
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)

	// Locate returns a human-usable location for name (a path, a key).
	Locate(name string) string
}
