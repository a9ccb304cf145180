package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
hub:
  host: "192.168.1.50"
  username: "admin"
  password: "secret"
  http_port: 80
  ascii_port: 11000
  namespace: "seerlink"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8124
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hub.Host != "192.168.1.50" {
		t.Errorf("Hub.Host = %q, want %q", cfg.Hub.Host, "192.168.1.50")
	}

	if cfg.Hub.NameTemplate != DefaultNameTemplate {
		t.Errorf("Hub.NameTemplate = %q, want default %q", cfg.Hub.NameTemplate, DefaultNameTemplate)
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if !cfg.Hub.AllowEvents {
		t.Error("Hub.AllowEvents = false, want default true")
	}

	if len(cfg.Hub.AllowedInterfaces) != 1 || cfg.Hub.AllowedInterfaces[0] != DefaultHubInterface {
		t.Errorf("Hub.AllowedInterfaces = %v, want default [%s]", cfg.Hub.AllowedInterfaces, DefaultHubInterface)
	}
}

func TestLoad_ExplicitEmptyInterfaceList(t *testing.T) {
	// An explicit empty list turns every interface off; it must not be
	// replaced by the default.
	content := `
hub:
  host: "192.168.1.50"
  allowed_interfaces: []
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Hub.AllowedInterfaces) != 0 {
		t.Errorf("Hub.AllowedInterfaces = %v, want empty", cfg.Hub.AllowedInterfaces)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
hub:
  host: "file-host"
  namespace: "seerlink"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("SEERLINK_HUB_HOST", "env-host")
	t.Setenv("SEERLINK_HUB_HTTP_PORT", "8081")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hub.Host != "env-host" {
		t.Errorf("Hub.Host = %q, want env override %q", cfg.Hub.Host, "env-host")
	}
	if cfg.Hub.HTTPPort != 8081 {
		t.Errorf("Hub.HTTPPort = %d, want env override 8081", cfg.Hub.HTTPPort)
	}
}

func TestConfig_Validate(t *testing.T) {
	// validJWTSecret is a secret that meets the 32-character minimum requirement
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Hub.Host = "192.168.1.50"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing hub host",
			mutate:  func(c *Config) { c.Hub.Host = "" },
			wantErr: true,
		},
		{
			name:    "missing namespace",
			mutate:  func(c *Config) { c.Hub.Namespace = "" },
			wantErr: true,
		},
		{
			name:    "invalid http port",
			mutate:  func(c *Config) { c.Hub.HTTPPort = 0 },
			wantErr: true,
		},
		{
			name:    "invalid ascii port",
			mutate:  func(c *Config) { c.Hub.ASCIIPort = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "negative forced cover ref",
			mutate:  func(c *Config) { c.Hub.ForcedCovers = []int{170, -3} },
			wantErr: true,
		},
		{
			name:    "zero availability attempts",
			mutate:  func(c *Config) { c.Hub.AvailabilityAttempts = 0 },
			wantErr: true,
		},
		{
			name: "auth enabled without secret",
			mutate: func(c *Config) {
				c.API.Auth.Enabled = true
				c.API.Auth.JWTSecret = ""
			},
			wantErr: true,
		},
		{
			name: "auth enabled with short secret",
			mutate: func(c *Config) {
				c.API.Auth.Enabled = true
				c.API.Auth.JWTSecret = "short"
			},
			wantErr: true,
		},
		{
			name: "auth enabled with valid secret",
			mutate: func(c *Config) {
				c.API.Auth.Enabled = true
				c.API.Auth.JWTSecret = validJWTSecret
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNameTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		wantErr  bool
	}{
		{
			name:     "default template",
			template: DefaultNameTemplate,
			wantErr:  false,
		},
		{
			name:     "name only",
			template: "{{.Name}}",
			wantErr:  false,
		},
		{
			name:     "empty template",
			template: "",
			wantErr:  true,
		},
		{
			name:     "syntax error",
			template: "{{.Name",
			wantErr:  true,
		},
		{
			name:     "unknown field",
			template: "{{.NoSuchField}}",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNameTemplate(tt.template)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateNameTemplate(%q) error = %v, wantErr %v", tt.template, err, tt.wantErr)
			}
		})
	}
}
