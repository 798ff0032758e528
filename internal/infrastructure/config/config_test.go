package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
gateway:
  topic_prefix: "home/gw"
mqtt:
  broker:
    host: "broker.local"
    port: 1884
  auth:
    username: "isy"
    password: "secret"
devices:
  - id: "sw1"
    type: "switch"
    status_topic: "stat/sw1/POWER"
    cmd_topic: "cmnd/sw1/power"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.TopicPrefix != "home/gw" {
		t.Errorf("Gateway.TopicPrefix = %q, want %q", cfg.Gateway.TopicPrefix, "home/gw")
	}
	if cfg.MQTT.Broker.Port != 1884 {
		t.Errorf("MQTT.Broker.Port = %d, want 1884", cfg.MQTT.Broker.Port)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].CommandTopic != "cmnd/sw1/power" {
		t.Errorf("Devices = %+v, want one switch with cmd_topic", cfg.Devices)
	}
	// Defaults survive a partial file.
	if cfg.MQTT.ConnectTimeout != 10 {
		t.Errorf("MQTT.ConnectTimeout = %d, want default 10", cfg.MQTT.ConnectTimeout)
	}
	if !cfg.MQTT.Reconnect.Auto {
		t.Error("MQTT.Reconnect.Auto = false, want default true")
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want default 127.0.0.1", cfg.API.Host)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_DevList(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  auth:
    username: "u"
    password: "p"
devlist: '[{"id":"FanKitchen","type":"ifan","status_topic":"stat/fan/RESULT","cmd_topic":"cmnd/fan/FanSpeed"}]'
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Devices) != 1 {
		t.Fatalf("len(Devices) = %d, want 1", len(cfg.Devices))
	}
	if cfg.Devices[0].Type != "ifan" {
		t.Errorf("Devices[0].Type = %q, want %q", cfg.Devices[0].Type, "ifan")
	}
}

func TestLoad_DevicesFile(t *testing.T) {
	dir := t.TempDir()
	devPath := filepath.Join(dir, "devices.json")
	devJSON := `[{"id":"t1","type":"Temp","status_topic":"tele/t1/SENSOR"},
{"id":"s31","type":"s31","status_topic":"tele/t1/SENSOR"}]`
	if err := os.WriteFile(devPath, []byte(devJSON), 0600); err != nil {
		t.Fatalf("failed to write devices file: %v", err)
	}

	path := writeConfig(t, `
mqtt:
  auth:
    username: "u"
    password: "p"
devices_file: "`+devPath+`"
devices:
  - id: "inline"
    type: "raw"
    status_topic: "raw/inline"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Devices) != 3 {
		t.Fatalf("len(Devices) = %d, want 3", len(cfg.Devices))
	}
	if cfg.Devices[0].ID != "inline" || cfg.Devices[1].ID != "t1" {
		t.Errorf("device order = %q, %q; want inline first then file entries", cfg.Devices[0].ID, cfg.Devices[1].ID)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MQTTGW_MQTT_HOST", "env-broker")
	t.Setenv("MQTTGW_MQTT_PORT", "8883")
	t.Setenv("MQTTGW_MQTT_USERNAME", "env-user")
	t.Setenv("MQTTGW_MQTT_PASSWORD", "env-pass")
	t.Setenv("MQTTGW_DEVLIST", `[{"id":"sw1","type":"switch","status_topic":"a","cmd_topic":"b"}]`)

	path := writeConfig(t, "logging:\n  level: debug\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "env-broker")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "env-user" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "env-user")
	}
	if len(cfg.Devices) != 1 {
		t.Errorf("len(Devices) = %d, want 1", len(cfg.Devices))
	}
}

func TestLoad_BadDevList(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  auth: {username: u, password: p}
devlist: '[{"id": '
`)

	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Load() error = %v, want ErrInvalid", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.MQTT.Auth = MQTTAuthConfig{Username: "u", Password: "p"}
		cfg.Devices = []DeviceConfig{{ID: "sw1", Type: "switch", StatusTopic: "a", CommandTopic: "b"}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:    "missing username",
			mutate:  func(c *Config) { c.MQTT.Auth.Username = "" },
			wantErr: "mqtt.auth.username",
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.MQTT.Auth.Password = "" },
			wantErr: "mqtt.auth.password",
		},
		{
			name:    "empty device list",
			mutate:  func(c *Config) { c.Devices = nil },
			wantErr: "at least one device",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "influx enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name:    "api port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "negative journal retention",
			mutate:  func(c *Config) { c.Database.RetentionDays = -1 },
			wantErr: "database.retention_days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() error = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_StringRedactsSecrets(t *testing.T) {
	cfg := defaultConfig()
	cfg.MQTT.Auth.Password = "hunter2"
	cfg.InfluxDB.Token = "tok-123"

	out := cfg.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "tok-123") {
		t.Errorf("String() leaked a secret:\n%s", out)
	}
	if cfg.MQTT.Auth.Password != "hunter2" {
		t.Error("String() mutated the original config")
	}
}
