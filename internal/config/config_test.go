package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/hrcap/internal/config"
	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hrcap.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func isolated(t *testing.T) config.Option {
	t.Helper()
	t.Setenv("HRCAP_CONFIG", "")
	return config.WithSearchDirs(t.TempDir())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
device_name = "Polar"
proprietary_channels = ["FC20", "fc21"]
status_interval = 10

[journal]
dir = "/data/sessions"
sync = false

[observations]
enabled = true
db_path = "/data/obs.db"
batch_size = 16

[sink]
timeout = 3

[sink.mqtt]
broker = "tcp://broker:1883"
topic = "health/hr"
`)
	t.Setenv("HRCAP_CONFIG", path)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "Polar", cfg.DeviceName)
	assert.Equal(t, []protocol.ChannelID{"FC20", "fc21"}, cfg.Channels())
	assert.Equal(t, 10*time.Second, cfg.StatusEvery())
	assert.Equal(t, "/data/sessions", cfg.Journal.Dir)
	assert.False(t, cfg.Journal.Sync)

	obs := cfg.ObservationsConfig()
	assert.True(t, obs.Enabled)
	assert.Equal(t, "/data/obs.db", obs.DBPath)
	assert.Equal(t, 16, obs.BatchSize)

	mqtt := cfg.MQTTConfig()
	assert.Equal(t, "tcp://broker:1883", mqtt.Broker)
	assert.Equal(t, "health/hr", mqtt.Topic)
	assert.Equal(t, 3*time.Second, mqtt.Timeout)
	assert.Equal(t, 3*time.Second, cfg.CaptureConfig().SinkTimeout)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(nil, isolated(t))
	require.NoError(t, err)

	assert.Equal(t, string(config.DefaultLogLevel), cfg.LogLevel)
	assert.Equal(t, config.DefaultJournalDir, cfg.Journal.Dir)
	assert.True(t, cfg.Journal.Sync)
	assert.Equal(t, []protocol.ChannelID{protocol.ChannelVendor}, cfg.Channels())
	assert.False(t, cfg.Observations.Enabled)
	assert.Empty(t, cfg.Sink.MQTT.Broker)
	assert.Equal(t, 200, cfg.LogBuffer)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	t.Setenv("HRCAP_CONFIG", writeConfig(t, "This is not a valid TOML file\n"))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	t.Setenv("HRCAP_CONFIG", writeConfig(t, `log_level = "invalid"`))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("HRCAP_CONFIG", writeConfig(t, "[journal]\ndir = \"/from/file\"\n"))
	t.Setenv("HRCAP_JOURNAL_DIR", "/from/env")
	t.Setenv("HRCAP_DEVICE_NAME", "EnvSensor")

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Journal.Dir)
	assert.Equal(t, "EnvSensor", cfg.DeviceName)
}

func TestFlagsOverrideEverything(t *testing.T) {
	t.Setenv("HRCAP_JOURNAL_DIR", "/from/env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "warning", "")
	flags.String("journal-dir", "", "")
	flags.Bool("debug", false, "")
	require.NoError(t, flags.Parse([]string{"--log-level", "info", "--journal-dir", "/from/flag", "--debug"}))

	cfg, err := config.Load(flags, isolated(t))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/from/flag", cfg.Journal.Dir)
	assert.True(t, cfg.Debug)
}

func TestValidateRejectsNonPositiveValues(t *testing.T) {
	t.Setenv("HRCAP_CONFIG", writeConfig(t, "status_interval = 0\n"))

	_, err := config.Load(nil)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidInterval))

	t.Setenv("HRCAP_CONFIG", writeConfig(t, "log_buffer = 0\n"))

	_, err = config.Load(nil)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}
