package healthsink

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultTopic          = "hrcap/heart_rate"
	defaultClientID       = "hrcap"
	defaultTimeout        = 2 * time.Second
	connectTimeout        = 5 * time.Second
	disconnectQuiesceMS   = 250
	retryInterval         = 2 * time.Second
	maxReconnectInterval  = 30 * time.Second
	sampleQoS        byte = 1
)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

func (c MQTTConfig) withDefaults() MQTTConfig {
	if c.Topic == "" {
		c.Topic = defaultTopic
	}
	if c.ClientID == "" {
		c.ClientID = defaultClientID
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	return c
}

// publisher is the part of mqtt.Client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes samples as JSON at QoS 1.
type MQTTSink struct {
	cfg    MQTTConfig
	client mqtt.Client
	pub    publisher
	logger logger.Logger

	mu        sync.RWMutex
	connected bool
}

var _ Sink = (*MQTTSink)(nil)

// NewMQTTSink builds a sink for cfg.Broker. Call Connect before submitting.
func NewMQTTSink(cfg MQTTConfig, log logger.Logger) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, errors.New().WithMessage(ErrInvalidConfig, "mqtt broker is empty")
	}

	s := &MQTTSink{cfg: cfg.withDefaults(), logger: log}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(retryInterval)
	opts.SetMaxReconnectInterval(maxReconnectInterval)
	opts.OnConnect = func(mqtt.Client) {
		s.setConnected(true)
		log.Info().Str("broker", s.cfg.Broker).Msg("Health sink connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.setConnected(false)
		log.Warn().Err(err).Str("broker", s.cfg.Broker).Msg("Health sink connection lost")
	}

	s.client = mqtt.NewClient(opts)
	s.pub = s.client

	return s, nil
}

// Connect opens the broker connection, waiting at most a few seconds.
func (s *MQTTSink) Connect(ctx context.Context) error {
	errFactory := errors.New()

	token := s.client.Connect()
	if !waitToken(ctx, token, connectTimeout) {
		return errFactory.WithMessage(ErrPublishTimeout, "mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrNotConnected, err)
	}

	s.setConnected(true)

	return nil
}

// Submit publishes sample. It fails without waiting when the broker is
// unreachable.
func (s *MQTTSink) Submit(ctx context.Context, sample Sample) error {
	errFactory := errors.New()

	if !s.isConnected() {
		return errFactory.New(ErrNotConnected)
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		return errFactory.Wrap(ErrRejected, err)
	}

	token := s.pub.Publish(s.cfg.Topic, sampleQoS, false, payload)
	if !waitToken(ctx, token, s.cfg.Timeout) {
		return errFactory.WithMessage(ErrPublishTimeout, "mqtt publish timed out")
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrRejected, err)
	}

	s.logger.Debug().
		Str("topic", s.cfg.Topic).
		Int("heart_rate", sample.BPM).
		Msg("Heart rate published")

	return nil
}

func (s *MQTTSink) Close() error {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(disconnectQuiesceMS)
	}
	s.setConnected(false)

	return nil
}

func (s *MQTTSink) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *MQTTSink) isConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// waitToken waits for token until timeout or ctx is done.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
