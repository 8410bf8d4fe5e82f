package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "factoryd.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
factory:
  document: "/srv/factory/base.json"
  transport: "websocket"
  request_timeout: 4
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "broker.local"
api:
  port: 9090
security:
  client_secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Factory.Document != "/srv/factory/base.json" {
		t.Errorf("Factory.Document = %q", cfg.Factory.Document)
	}
	if cfg.GetRequestTimeout() != 4*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 4s", cfg.GetRequestTimeout())
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	// Untouched defaults survive.
	if cfg.Factory.ManualQueueSize != 64 {
		t.Errorf("Factory.ManualQueueSize = %d, want default 64", cfg.Factory.ManualQueueSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/factoryd.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "factory: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected parse error, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FACTORYD_FACTORY_DOCUMENT", "/env/doc.yaml")
	t.Setenv("FACTORYD_FACTORY_TRANSPORT", "mqtt")
	t.Setenv("FACTORYD_FACTORY_PROBE", "false")
	t.Setenv("FACTORYD_API_PORT", "7000")
	t.Setenv("FACTORYD_DATABASE_PATH", "/env/cache.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Factory.Document != "/env/doc.yaml" {
		t.Errorf("Factory.Document = %q", cfg.Factory.Document)
	}
	if cfg.Factory.Transport != TransportMQTT {
		t.Errorf("Factory.Transport = %q", cfg.Factory.Transport)
	}
	if cfg.Factory.Probe {
		t.Error("Factory.Probe should be disabled by env")
	}
	if cfg.API.Port != 7000 {
		t.Errorf("API.Port = %d", cfg.API.Port)
	}
	if cfg.Database.Path != "/env/cache.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid websocket",
			modify: func(c *Config) { c.Security.ClientSecret = testSecret },
		},
		{
			name:   "mqtt needs no client secret",
			modify: func(c *Config) { c.Factory.Transport = TransportMQTT },
		},
		{
			name:    "missing secret",
			modify:  func(*Config) {},
			wantErr: "security.client_secret is required",
		},
		{
			name:    "short secret",
			modify:  func(c *Config) { c.Security.ClientSecret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name: "unknown transport",
			modify: func(c *Config) {
				c.Factory.Transport = "carrier-pigeon"
				c.Security.ClientSecret = testSecret
			},
			wantErr: "factory.transport",
		},
		{
			name: "bad qos and port",
			modify: func(c *Config) {
				c.Factory.Transport = TransportMQTT
				c.MQTT.QoS = 3
				c.API.Port = 70000
			},
			wantErr: "mqtt.qos",
		},
		{
			name: "influx enabled without url",
			modify: func(c *Config) {
				c.Factory.Transport = TransportMQTT
				c.InfluxDB.Enabled = true
			},
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Factory.Document = ""
	cfg.Database.Path = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"factory.document", "database.path", "security.client_secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
