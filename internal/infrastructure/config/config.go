package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for factoryd.
// All configuration is loaded from YAML and can be overridden by environment variables.
//
// The factory layout itself (storages, processes, recipes) is not part of
// this file: it lives in the factory document named by Factory.Document and
// is hot-reloaded independently.
type Config struct {
	Factory  FactoryConfig  `yaml:"factory"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// Transport names accepted in factory.transport.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
)

// FactoryConfig contains engine settings that are not hot-reloaded.
type FactoryConfig struct {
	// Document is the path of the factory document (JSON or YAML).
	Document string `yaml:"document"`

	// Transport selects how remote clients are reached: "websocket" or "mqtt".
	Transport string `yaml:"transport"`

	// RequestTimeout bounds every remote operation (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// Probe lists every storage, backup and bus inventory once while
	// building a factory; a failure rejects the build.
	Probe bool `yaml:"probe"`

	// ProbeTimeout bounds the whole probe (seconds).
	ProbeTimeout int `yaml:"probe_timeout"`

	// ReloadDebounce coalesces bursts of file events (milliseconds).
	ReloadDebounce int `yaml:"reload_debounce"`

	// ManualQueueSize is the capacity of the manual request queue.
	ManualQueueSize int `yaml:"manual_queue_size"`

	// LogHistory is how many UI log lines are kept for GET /api/v1/logs.
	LogHistory int `yaml:"log_history"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host string `yaml:"host"`

	// Port overrides the factory document's server_port when non-zero.
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	// ClientSecret signs the tokens remote clients present on /ws/client.
	ClientSecret string `yaml:"client_secret"`

	// ClientTokenTTL is the lifetime of minted client tokens (hours).
	ClientTokenTTL int `yaml:"client_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FACTORYD_SECTION_KEY
// For example: FACTORYD_DATABASE_PATH, FACTORYD_FACTORY_DOCUMENT
//
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Factory: FactoryConfig{
			Document:        "./factory.json",
			Transport:       TransportWebSocket,
			RequestTimeout:  10,
			Probe:           true,
			ProbeTimeout:    30,
			ReloadDebounce:  250,
			ManualQueueSize: 64,
			LogHistory:      200,
		},
		Database: DatabaseConfig{
			Path:        "./data/factoryd.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "factoryd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Org:           "factoryd",
			Bucket:        "factory",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			ClientTokenTTL: 24 * 365,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FACTORYD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Factory
	if v := os.Getenv("FACTORYD_FACTORY_DOCUMENT"); v != "" {
		cfg.Factory.Document = v
	}
	if v := os.Getenv("FACTORYD_FACTORY_TRANSPORT"); v != "" {
		cfg.Factory.Transport = v
	}
	if v := os.Getenv("FACTORYD_FACTORY_PROBE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Factory.Probe = b
		}
	}

	// Database
	if v := os.Getenv("FACTORYD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("FACTORYD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FACTORYD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FACTORYD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("FACTORYD_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("FACTORYD_API_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = p
		}
	}

	// InfluxDB
	if v := os.Getenv("FACTORYD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("FACTORYD_CLIENT_SECRET"); v != "" {
		cfg.Security.ClientSecret = v
	}
}

// minClientSecretLength is the shortest accepted client token secret.
const minClientSecretLength = 32

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Factory.Document == "" {
		errs = append(errs, "factory.document is required")
	}
	switch c.Factory.Transport {
	case TransportWebSocket, TransportMQTT:
	default:
		errs = append(errs, fmt.Sprintf("factory.transport must be %q or %q", TransportWebSocket, TransportMQTT))
	}
	if c.Factory.RequestTimeout < 1 {
		errs = append(errs, "factory.request_timeout must be at least 1 second")
	}
	if c.Factory.ProbeTimeout < 1 {
		errs = append(errs, "factory.probe_timeout must be at least 1 second")
	}
	if c.Factory.ManualQueueSize < 1 {
		errs = append(errs, "factory.manual_queue_size must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 0 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Remote clients move real inventory, so the websocket transport
	// refuses to run with a guessable secret.
	if c.Factory.Transport == TransportWebSocket {
		if c.Security.ClientSecret == "" {
			errs = append(errs, "security.client_secret is required (set FACTORYD_CLIENT_SECRET environment variable)")
		} else if len(c.Security.ClientSecret) < minClientSecretLength {
			errs = append(errs, "security.client_secret must be at least 32 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetRequestTimeout returns the remote request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Factory.RequestTimeout) * time.Second
}

// GetProbeTimeout returns the bootstrap probe timeout as a Duration.
func (c *Config) GetProbeTimeout() time.Duration {
	return time.Duration(c.Factory.ProbeTimeout) * time.Second
}

// GetReloadDebounce returns the reload debounce window as a Duration.
func (c *Config) GetReloadDebounce() time.Duration {
	return time.Duration(c.Factory.ReloadDebounce) * time.Millisecond
}

// GetClientTokenTTL returns the client token lifetime as a Duration.
func (c *Config) GetClientTokenTTL() time.Duration {
	return time.Duration(c.Security.ClientTokenTTL) * time.Hour
}
