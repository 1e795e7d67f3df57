package export

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/journal"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	created = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	testID  = session.New("Sensor", created)
)

func seed(t *testing.T) *journal.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := journal.NewMemoryStore()
	j := journal.New(store)

	ev := protocol.RawEvent{Channel: "FC20", Payload: []byte{0x01, 0x02}, Timestamp: created}
	require.NoError(t, j.AppendRaw(ctx, testID, ev))
	require.NoError(t, j.AppendBinary(ctx, testID, ev))
	require.NoError(t, j.AppendDerived(ctx, testID, created, 79))
	require.NoError(t, j.AppendNote(ctx, testID, "Session started"))

	other := session.New("Other", created)
	require.NoError(t, j.AppendNote(ctx, other, "not exported"))

	return store
}

func untar(t *testing.T, bundle []byte) map[string][]byte {
	t.Helper()

	zr, err := zstd.NewReader(bytes.NewReader(bundle))
	require.NoError(t, err)
	defer zr.Close()

	files := map[string][]byte{}
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = data
	}
}

func TestWriteBundle(t *testing.T) {
	store := seed(t)
	exported := created.Add(time.Hour)

	var buf bytes.Buffer
	manifest, err := Write(context.Background(), &buf, store, testID, exported)
	require.NoError(t, err)
	require.Len(t, manifest.Artifacts, 4)

	files := untar(t, buf.Bytes())
	assert.Len(t, files, 5)
	assert.Contains(t, files, ManifestName)

	for _, a := range manifest.Artifacts {
		want, ok := store.Bytes(a.Name)
		require.True(t, ok)
		assert.Equal(t, want, files[a.Name], a.Name)
		assert.Equal(t, int64(len(want)), a.Size)
	}

	got, err := ReadManifest(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, string(testID), got.Session)
	assert.Equal(t, "Sensor", got.Device)
	assert.True(t, created.Equal(got.Created))
	assert.True(t, exported.Equal(got.Exported))
	assert.ElementsMatch(t, manifest.Artifacts, got.Artifacts)
}

func TestWriteEmptySession(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(context.Background(), &buf, journal.NewMemoryStore(), testID, created)
	assert.True(t, errors.HasCode(err, ErrEmptySession))
	assert.Zero(t, buf.Len())
}
