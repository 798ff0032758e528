package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/mqtt-device-gateway/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration. No broker is contacted.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "mqttgw-test",
		},
		Auth: config.MQTTAuthConfig{
			Username: "isy",
			Password: "secret",
		},
		QoS:            0,
		ConnectTimeout: 2,
		PublishTimeout: 1,
		Reconnect: config.MQTTReconnectConfig{
			Auto:         true,
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// testLogger records log calls.
type testLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *testLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *testLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		auth config.MQTTAuthConfig
	}{
		{"no username", config.MQTTAuthConfig{Password: "p"}},
		{"no password", config.MQTTAuthConfig{Username: "u"}},
		{"neither", config.MQTTAuthConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Auth = tt.auth
			if _, err := New(cfg); !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("New() error = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestNew_InvalidQoS(t *testing.T) {
	cfg := testConfig()
	cfg.QoS = 3
	if _, err := New(cfg); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("New() error = %v, want ErrInvalidQoS", err)
	}
}

func TestNew_NotConnected(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true before Connect, want false")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if c.Broker() != "tcp://127.0.0.1:1883" {
		t.Errorf("Broker() = %q, want tcp://127.0.0.1:1883", c.Broker())
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Reconnect.Auto = false

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.Username != "isy" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want isy/secret", opts.Username, opts.Password)
	}
	if opts.ClientID != "mqttgw-test" {
		t.Errorf("ClientID = %q, want mqttgw-test", opts.ClientID)
	}
	if opts.AutoReconnect {
		t.Error("AutoReconnect = true, want false when reconnect.auto is off")
	}
	if opts.ConnectRetry {
		t.Error("ConnectRetry = true, want initial connect to fail fast")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if opts.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout = %v, want 2s", opts.ConnectTimeout)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil, want TLS enabled")
	}
}

func TestBuildClientOptions_DefaultTimeouts(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectTimeout = 0

	opts := buildClientOptions(cfg)
	if opts.ConnectTimeout != defaultConnectTimeout {
		t.Errorf("ConnectTimeout = %v, want %v", opts.ConnectTimeout, defaultConnectTimeout)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
}

func TestWithWill(t *testing.T) {
	opts := buildClientOptions(testConfig())
	WithWill("mqttgw/health", []byte(`{"status":"offline"}`))(opts)

	if !opts.WillEnabled || opts.WillTopic != "mqttgw/health" || !opts.WillRetained {
		t.Errorf("will = enabled %v topic %q retained %v, want retained mqttgw/health",
			opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if string(opts.WillPayload) != `{"status":"offline"}` {
		t.Errorf("WillPayload = %s", opts.WillPayload)
	}
}

// =============================================================================
// Publish / Subscribe Validation Tests
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		wantErr error
	}{
		{"empty topic", "", []byte("ON"), ErrInvalidTopic},
		{"wildcard topic", "cmnd/+/power", []byte("ON"), ErrInvalidTopic},
		{"oversized payload", "cmnd/sw1/power", make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"disconnected", "cmnd/sw1/power", []byte("ON"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("stat/#", nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("stat/#", handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 1 // nothing listens here

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = c.Connect(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_ContextCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Host = "192.0.2.1" // TEST-NET-1, never routable

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Connect(ctx); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestReconnect_AutoIsNoop(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Reconnect(context.Background()); err != nil {
		t.Errorf("Reconnect() with auto reconnect error = %v, want nil", err)
	}
}

func TestDisconnect_NilClient(t *testing.T) {
	c := &Client{}
	c.Disconnect()
	if c.IsConnected() {
		t.Error("IsConnected() = true on zero Client")
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

func TestWrapHandler(t *testing.T) {
	c, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger := &testLogger{}
	c.SetLogger(logger)

	var got string
	c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})(nil, fakeMessage{topic: "stat/sw1/POWER", payload: []byte("ON")})
	if got != "stat/sw1/POWER=ON" {
		t.Errorf("handler saw %q, want stat/sw1/POWER=ON", got)
	}

	c.wrapHandler(func(string, []byte) error {
		return fmt.Errorf("boom")
	})(nil, fakeMessage{topic: "a"})

	c.wrapHandler(func(string, []byte) error {
		panic("handler exploded")
	})(nil, fakeMessage{topic: "b"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
	if len(logger.errs) != 1 {
		t.Errorf("errors = %v, want one recovered panic", logger.errs)
	}
}
