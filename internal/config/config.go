package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/hrcap/internal/capture"
	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/healthsink"
	"codeberg.org/mutker/hrcap/internal/logger"
	"codeberg.org/mutker/hrcap/internal/observations"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel       = "warning"
	DefaultEnvPrefix      = "HRCAP"
	DefaultDeviceName     = "sensor"
	DefaultStatusInterval = 5
	DefaultJournalDir     = "/var/lib/hrcap/sessions"

	configName = "hrcap"
	configType = "toml"
)

type Config struct {
	LogLevel            string             `mapstructure:"log_level"`
	Debug               bool               `mapstructure:"debug"`
	Verbose             bool               `mapstructure:"verbose"`
	DeviceName          string             `mapstructure:"device_name"`
	ProprietaryChannels []string           `mapstructure:"proprietary_channels"`
	StatusInterval      int                `mapstructure:"status_interval"`
	LogBuffer           int                `mapstructure:"log_buffer"`
	InboxSize           int                `mapstructure:"inbox_size"`
	Journal             JournalConfig      `mapstructure:"journal"`
	Observations        ObservationsConfig `mapstructure:"observations"`
	Sink                SinkConfig         `mapstructure:"sink"`
}

type JournalConfig struct {
	Dir  string `mapstructure:"dir"`
	Sync bool   `mapstructure:"sync"`
}

type ObservationsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DBPath       string `mapstructure:"db_path"`
	BatchSize    int    `mapstructure:"batch_size"`
	BatchTimeout int    `mapstructure:"batch_timeout"`
}

type SinkConfig struct {
	MQTT    MQTTConfig `mapstructure:"mqtt"`
	Timeout int        `mapstructure:"timeout"` // seconds
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":    "log_level",
	"debug":        "debug",
	"verbose":      "verbose",
	"device":       "device_name",
	"journal-dir":  "journal.dir",
	"journal-sync": "journal.sync",
	"observations": "observations.enabled",
	"db-path":      "observations.db_path",
	"mqtt-broker":  "sink.mqtt.broker",
	"mqtt-topic":   "sink.mqtt.topic",
	"vendor":       "proprietary_channels",
}

func setDefaults(v *viper.Viper) {
	obs := observations.DefaultConfig()
	cc := capture.DefaultConfig()

	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("device_name", DefaultDeviceName)
	v.SetDefault("proprietary_channels", []string{string(protocol.ChannelVendor)})
	v.SetDefault("status_interval", DefaultStatusInterval)
	v.SetDefault("log_buffer", cc.LogBuffer)
	v.SetDefault("inbox_size", cc.InboxSize)
	v.SetDefault("journal.dir", DefaultJournalDir)
	v.SetDefault("journal.sync", true)
	v.SetDefault("observations.enabled", obs.Enabled)
	v.SetDefault("observations.db_path", obs.DBPath)
	v.SetDefault("observations.batch_size", obs.BatchSize)
	v.SetDefault("observations.batch_timeout", obs.BatchTimeout)
	v.SetDefault("sink.mqtt.broker", "")
	v.SetDefault("sink.mqtt.topic", "")
	v.SetDefault("sink.mqtt.client_id", "")
	v.SetDefault("sink.timeout", int(cc.SinkTimeout/time.Second))
}

// Load reads defaults, the config file, HRCAP_* environment variables and
// flags, in increasing order of precedence. flags may be nil.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	if home, err := os.UserHomeDir(); err == nil {
		o.searchDirs = append(o.searchDirs, filepath.Join(home, ".config", configName))
	}
	o.searchDirs = append(o.searchDirs, filepath.Join("/etc", configName))
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := o.configPath
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		for _, dir := range o.searchDirs {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errFactory.Wrap(errors.ErrBindFlags, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Journal.Dir == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "journal.dir is empty")
	}
	if c.StatusInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.StatusInterval)
	}
	if c.Sink.Timeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Sink.Timeout)
	}
	if err := c.CaptureConfig().Validate(); err != nil {
		return err
	}

	return c.ObservationsConfig().Validate()
}

// Channels returns the configured proprietary channel ids.
func (c *Config) Channels() []protocol.ChannelID {
	ids := make([]protocol.ChannelID, 0, len(c.ProprietaryChannels))
	for _, ch := range c.ProprietaryChannels {
		if ch = strings.TrimSpace(ch); ch != "" {
			ids = append(ids, protocol.ChannelID(ch))
		}
	}

	return ids
}

func (c *Config) CaptureConfig() capture.Config {
	cc := capture.DefaultConfig()
	cc.InboxSize = c.InboxSize
	cc.LogBuffer = c.LogBuffer
	cc.SinkTimeout = time.Duration(c.Sink.Timeout) * time.Second

	return cc
}

func (c *Config) ObservationsConfig() observations.Config {
	return observations.Config{
		Enabled:      c.Observations.Enabled,
		DBPath:       c.Observations.DBPath,
		BatchSize:    c.Observations.BatchSize,
		BatchTimeout: c.Observations.BatchTimeout,
	}
}

func (c *Config) MQTTConfig() healthsink.MQTTConfig {
	return healthsink.MQTTConfig{
		Broker:   c.Sink.MQTT.Broker,
		Topic:    c.Sink.MQTT.Topic,
		ClientID: c.Sink.MQTT.ClientID,
		Timeout:  time.Duration(c.Sink.Timeout) * time.Second,
	}
}

func (c *Config) StatusEvery() time.Duration {
	return time.Duration(c.StatusInterval) * time.Second
}
