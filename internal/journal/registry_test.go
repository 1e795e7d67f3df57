package journal

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSession(t *testing.T, j *Journal, id session.ID) {
	t.Helper()
	ctx := context.Background()
	ev := protocol.RawEvent{Channel: "FC20", Payload: []byte{0x01}, Timestamp: eventTime}

	require.NoError(t, j.AppendRaw(ctx, id, ev))
	require.NoError(t, j.AppendBinary(ctx, id, ev))
	require.NoError(t, j.AppendDerived(ctx, id, eventTime, 70))
	require.NoError(t, j.AppendNote(ctx, id, "note"))
}

func TestRegistryListDeduplicatesAndSorts(t *testing.T) {
	ctx := context.Background()
	j, store := newFileJournal(t)

	older := session.New("zeta", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := session.New("alpha", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	seedSession(t, j, newer)
	seedSession(t, j, older)
	require.NoError(t, store.Append(ctx, "README.txt", nil, []byte("not an artifact")))

	sessions, err := NewRegistry(store).List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, older, sessions[0].ID)
	assert.Equal(t, "zeta", sessions[0].Device)
	assert.Len(t, sessions[0].Artifacts, 4)
	assert.Equal(t, newer, sessions[1].ID)
}

func TestRegistryLocate(t *testing.T) {
	ctx := context.Background()
	j, store := newFileJournal(t)
	seedSession(t, j, testSession)

	locations, err := NewRegistry(store).Locate(ctx, testSession)
	require.NoError(t, err)
	assert.Len(t, locations, 4)
	for _, loc := range locations {
		assert.FileExists(t, loc)
	}
}

func TestRegistryDelete(t *testing.T) {
	ctx := context.Background()
	j, store := newFileJournal(t)
	other := session.New("Sensor", time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC))
	seedSession(t, j, testSession)
	seedSession(t, j, other)

	reg := NewRegistry(store)
	require.NoError(t, reg.Delete(ctx, testSession))

	artifacts, err := reg.Artifacts(ctx, testSession)
	require.NoError(t, err)
	assert.Empty(t, artifacts)

	remaining, err := reg.Artifacts(ctx, other)
	require.NoError(t, err)
	assert.Len(t, remaining, 4)

	// deleting again, or deleting a session that never existed, is a no-op
	require.NoError(t, reg.Delete(ctx, testSession))
	require.NoError(t, reg.Delete(ctx, session.New("ghost", time.Now())))

	assert.Error(t, reg.Delete(ctx, "not-a-session"))
}

func TestReadBinaryRecords(t *testing.T) {
	ctx := context.Background()
	j, store := newFileJournal(t)
	seedSession(t, j, testSession)
	require.NoError(t, j.AppendBinary(ctx, testSession, protocol.RawEvent{Channel: "FC20", Payload: []byte{0x02, 0x03}, Timestamp: eventTime}))

	records, err := ReadBinaryRecords(ctx, store, ArtifactName(testSession, KindBinary, "FC20"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []byte{0x01}, records[0].Payload)
	assert.Equal(t, []byte{0x02, 0x03}, records[1].Payload)
}
