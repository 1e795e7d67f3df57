package observations

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/hrcap/internal/derive"
	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/logger"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sessionA = session.New("Sensor", time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC))
	sessionB = session.New("Sensor", time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC))
)

func testConfig(t *testing.T) Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(t.TempDir(), "obs", "observations.db")
	cfg.BatchSize = 2
	cfg.BatchTimeout = 0

	return cfg
}

func vendorObservation() protocol.Observation {
	dec := protocol.NewDecoder(protocol.NewClassifier(protocol.ChannelVendor))
	return derive.Derive(dec.Decode(protocol.RawEvent{
		Channel:   protocol.ChannelVendor,
		Payload:   []byte{0x01, 0x0A, 0xC6, 0x4E, 0x4D, 0x2C, 0xFB, 0x02, 0x8A, 0x1E, 0xAF, 0x3C, 0x00, 0x28},
		Timestamp: time.Date(2026, 10, 16, 9, 0, 1, 0, time.UTC),
	}))
}

func countRows(t *testing.T, path string, id session.ID) int {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM observations WHERE session_id = ?`, string(id)).Scan(&n))

	return n
}

func TestDisabledRecorderIsNoop(t *testing.T) {
	rec, err := NewRecorder(DefaultConfig(), logger.Nop())
	require.NoError(t, err)

	assert.NoError(t, rec.Record(context.Background(), sessionA, vendorObservation()))
	n, err := rec.DeleteSession(context.Background(), sessionA)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, rec.Close())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = ""
	assert.True(t, errors.HasCode(cfg.Validate(), ErrInvalidDBPath))

	cfg = DefaultConfig()
	cfg.Enabled = true
	cfg.BatchSize = 0
	assert.True(t, errors.HasCode(cfg.Validate(), ErrInvalidConfig))
}

func TestRecorderPersistsObservations(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	rec, err := NewRecorder(cfg, logger.Nop())
	require.NoError(t, err)

	obs := vendorObservation()
	require.NoError(t, rec.Record(ctx, sessionA, obs))
	require.NoError(t, rec.Record(ctx, sessionA, obs))
	require.NoError(t, rec.Record(ctx, sessionB, obs))
	require.NoError(t, rec.Close())

	assert.Equal(t, 2, countRows(t, cfg.DBPath, sessionA))
	assert.Equal(t, 1, countRows(t, cfg.DBPath, sessionB))

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	var (
		hr, rr, counter sql.NullInt64
		battery         sql.NullInt64
		source, kind    string
		raw             []byte
	)
	require.NoError(t, db.QueryRow(`
		SELECT heart_rate, rr_interval_ms, packet_counter, battery_percent, heart_rate_source, kind, raw
		FROM observations WHERE session_id = ? LIMIT 1`, string(sessionB)).
		Scan(&hr, &rr, &counter, &battery, &source, &kind, &raw))

	assert.Equal(t, sql.NullInt64{Int64: 79, Valid: true}, hr)
	assert.Equal(t, sql.NullInt64{Int64: 763, Valid: true}, rr)
	assert.Equal(t, sql.NullInt64{Int64: 1, Valid: true}, counter)
	assert.False(t, battery.Valid)
	assert.Equal(t, "rr", source)
	assert.Equal(t, "vendor", kind)
	assert.Equal(t, obs.Raw, raw)
}

func TestDeleteSessionIncludesBufferedRows(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.BatchSize = 100

	rec, err := NewRecorder(cfg, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, rec.Record(ctx, sessionA, vendorObservation()))
	require.NoError(t, rec.Record(ctx, sessionB, vendorObservation()))

	n, err := rec.DeleteSession(ctx, sessionA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, rec.Close())

	assert.Zero(t, countRows(t, cfg.DBPath, sessionA))
	assert.Equal(t, 1, countRows(t, cfg.DBPath, sessionB))
}

func TestSchemaMismatchIsBackedUp(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm))

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	rec, err := NewRecorder(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	backups, err := filepath.Glob(filepath.Join(cfg.backupDir(), "observations_v99_*.db"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	db, err = sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}
