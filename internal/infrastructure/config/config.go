package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for SeerLink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub       HubConfig       `yaml:"hub"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HubConfig contains the connection and bridging settings for one hub instance.
// Immutable after load; the bridge never mutates configuration at runtime.
type HubConfig struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// HTTPPort is the hub's JSON API port used for inventory and commands.
	HTTPPort int `yaml:"http_port"`

	// ASCIIPort is the hub's line-oriented push-notification port.
	ASCIIPort int `yaml:"ascii_port"`

	// Namespace scopes generated unique identifiers as "{namespace}-{ref}".
	// Exactly one bridge instance per namespace is supported.
	Namespace string `yaml:"namespace"`

	// NameTemplate renders entity display names with the device as context.
	// Parsed and test-rendered at load time; a bad template fails Load.
	NameTemplate string `yaml:"name_template"`

	// AllowEvents enables hub events (scenes). When false no scene
	// entities are produced regardless of the event inventory.
	AllowEvents bool `yaml:"allow_events"`

	// AllowedEventGroups restricts events to the listed groups.
	// Empty means all groups are allowed.
	AllowedEventGroups []string `yaml:"allowed_event_groups"`

	// ForcedCovers lists device refs to classify as covers regardless of
	// their native type (e.g. a multilevel switch driving a blind).
	ForcedCovers []int `yaml:"forced_covers"`

	// AllowedInterfaces lists hub interface names whose devices are
	// bridged. A device from an unlisted interface is excluded entirely;
	// an explicit empty list excludes every device. When the key is
	// absent the default admits the hub's native interface only.
	AllowedInterfaces []string `yaml:"allowed_interfaces"`

	// SetupTimeout bounds the inventory fetch during setup (seconds).
	SetupTimeout int `yaml:"setup_timeout"`

	// AvailabilityAttempts and AvailabilityInterval bound the
	// post-start wait for the push listener to report connected.
	AvailabilityAttempts int `yaml:"availability_attempts"`
	AvailabilityInterval int `yaml:"availability_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Auth     APIAuthConfig    `yaml:"auth"`
}

// APIAuthConfig contains API authentication settings.
type APIAuthConfig struct {
	// Enabled turns on bearer-token validation for protected routes.
	Enabled bool `yaml:"enabled"`

	// JWTSecret validates HS256 bearer tokens.
	// Required when Enabled is true; minimum 32 characters.
	JWTSecret string `yaml:"jwt_secret"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains the optional state-history sink settings.
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

// DefaultNameTemplate matches the hub convention of prefixing a device's
// name with its two grouping labels.
const DefaultNameTemplate = "{{.Location2}} {{.Location}} {{.Name}}"

// DefaultHubInterface is the hub's own native interface name, the one
// devices report when no plugin interface claims them.
const DefaultHubInterface = "HomeSeer"

// templateProbe is a minimal device-shaped value used to test-render the
// name template at load time.
type templateProbe struct {
	Ref              int
	Name             string
	Location         string
	Location2        string
	DeviceTypeString string
	Value            float64
	Status           string
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SEERLINK_SECTION_KEY
// For example: SEERLINK_HUB_HOST, SEERLINK_MQTT_HOST
//
// Returns an error if the file cannot be read or parsed, or if validation
// fails. A name template that does not parse or render is a validation
// failure here, so template errors never reach runtime.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			HTTPPort:             80,
			ASCIIPort:            11000,
			Namespace:            "seerlink",
			NameTemplate:         DefaultNameTemplate,
			AllowEvents:          true,
			AllowedInterfaces:    []string{DefaultHubInterface},
			SetupTimeout:         60,
			AvailabilityAttempts: 5,
			AvailabilityInterval: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "seerlink-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8124,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SEERLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Hub
	if v := os.Getenv("SEERLINK_HUB_HOST"); v != "" {
		cfg.Hub.Host = v
	}
	if v := os.Getenv("SEERLINK_HUB_USERNAME"); v != "" {
		cfg.Hub.Username = v
	}
	if v := os.Getenv("SEERLINK_HUB_PASSWORD"); v != "" {
		cfg.Hub.Password = v
	}
	if v := os.Getenv("SEERLINK_HUB_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Hub.HTTPPort = port
		}
	}
	if v := os.Getenv("SEERLINK_HUB_ASCII_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Hub.ASCIIPort = port
		}
	}

	// MQTT
	if v := os.Getenv("SEERLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SEERLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SEERLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SEERLINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SEERLINK_JWT_SECRET"); v != "" {
		cfg.API.Auth.JWTSecret = v
	}

	// InfluxDB
	if v := os.Getenv("SEERLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// The hub name template is parsed and test-rendered here so that a bad
// template aborts startup instead of failing per update at runtime.
func (c *Config) Validate() error {
	var errs []string

	// Hub validation
	if c.Hub.Host == "" {
		errs = append(errs, "hub.host is required")
	}
	if c.Hub.HTTPPort < 1 || c.Hub.HTTPPort > 65535 {
		errs = append(errs, "hub.http_port must be between 1 and 65535")
	}
	if c.Hub.ASCIIPort < 1 || c.Hub.ASCIIPort > 65535 {
		errs = append(errs, "hub.ascii_port must be between 1 and 65535")
	}
	if c.Hub.Namespace == "" {
		errs = append(errs, "hub.namespace is required")
	}
	if err := validateNameTemplate(c.Hub.NameTemplate); err != nil {
		errs = append(errs, fmt.Sprintf("hub.name_template: %v", err))
	}
	for _, ref := range c.Hub.ForcedCovers {
		if ref < 1 {
			errs = append(errs, fmt.Sprintf("hub.forced_covers: ref %d is not a positive integer", ref))
		}
	}
	if c.Hub.AvailabilityAttempts < 1 {
		errs = append(errs, "hub.availability_attempts must be at least 1")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	const minJWTSecretLength = 32
	if c.API.Auth.Enabled {
		if c.API.Auth.JWTSecret == "" {
			errs = append(errs, "api.auth.jwt_secret is required when api.auth.enabled is true (set SEERLINK_JWT_SECRET)")
		} else if len(c.API.Auth.JWTSecret) < minJWTSecretLength {
			errs = append(errs, "api.auth.jwt_secret must be at least 32 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateNameTemplate parses the template and renders it against a probe
// device to surface field errors at configuration time.
func validateNameTemplate(text string) error {
	if text == "" {
		return fmt.Errorf("template is empty")
	}

	tmpl, err := template.New("name").Option("missingkey=error").Parse(text)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	probe := templateProbe{
		Ref:              1,
		Name:             "Probe",
		Location:         "Room",
		Location2:        "Floor",
		DeviceTypeString: "Probe Device",
		Status:           "Off",
	}
	if err := tmpl.Execute(discardWriter{}, probe); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	return nil
}

// discardWriter swallows template output during validation.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// GetSetupTimeout returns the hub inventory fetch timeout as a Duration.
func (c *Config) GetSetupTimeout() time.Duration {
	return time.Duration(c.Hub.SetupTimeout) * time.Second
}

// GetAvailabilityInterval returns the listener availability poll interval.
func (c *Config) GetAvailabilityInterval() time.Duration {
	return time.Duration(c.Hub.AvailabilityInterval) * time.Second
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
