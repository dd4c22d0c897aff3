// Package config loads and validates application configuration from YAML
// files and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	ERP           ERPConfig           `yaml:"erp"`
	Ion           IonConfig           `yaml:"ion"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes the gateway HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ERPConfig describes the application server endpoints and transport
// settings for the Form and MI protocols.
type ERPConfig struct {
	// BaseURL is the root of the application server, e.g.
	// https://erp.example.com:22107.
	BaseURL string `yaml:"base_url"`
	// FormPath is the Form protocol servlet path.
	FormPath string `yaml:"form_path"`
	// MIPath is the MI REST root.
	MIPath string `yaml:"mi_path"`

	Timeout        time.Duration        `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`

	// User is the principal signed on through the Form protocol.
	User string `yaml:"user"`
	// LogonParams holds extra identity parameters sent with the logon
	// command, e.g. company or language overrides.
	LogonParams map[string]string `yaml:"logon_params"`
}

// CircuitBreakerConfig describes breaker settings for the HTTP executor.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// IonConfig describes ION API gateway settings.
type IonConfig struct {
	// TokenPath is the OAuth token endpoint, relative to the application
	// server base URL.
	TokenPath string `yaml:"token_path"`
	// Platform is sent as the x-infor-ionapi-platform header.
	Platform string `yaml:"platform"`
	// DevelopmentURL overrides environment-context base URL resolution,
	// for local development against a fixed gateway.
	DevelopmentURL string `yaml:"development_url"`
	// Retry disables the single 401 retry when set to false.
	Retry *bool `yaml:"retry"`
}

// RetryEnabled reports whether the single 401 retry is allowed.
func (c IonConfig) RetryEnabled() bool {
	return c.Retry == nil || *c.Retry
}

// GatewayConfig describes the REST gateway surface.
type GatewayConfig struct {
	// AuthSecretEnv names the environment variable holding the shared
	// HS256 secret for inbound bearer tokens. Empty disables auth.
	AuthSecretEnv string `yaml:"auth_secret_env"`
	// Audience is required in inbound token claims when auth is enabled.
	Audience string `yaml:"audience"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		ERP: ERPConfig{
			FormPath: "/mne/servlet/MvxMCSvt",
			MIPath:   "/m3api-rest",
			Timeout:  30 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
		},
		Ion: IonConfig{
			TokenPath: "/grid/rest/security/sessions/oauth",
			Platform:  "gridlink",
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.ERP.BaseURL == "" {
		errs = append(errs, "erp.base_url is required")
	}
	if !strings.HasPrefix(c.ERP.FormPath, "/") {
		errs = append(errs, "erp.form_path must start with /")
	}
	if !strings.HasPrefix(c.ERP.MIPath, "/") {
		errs = append(errs, "erp.mi_path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads GRIDLINK_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRIDLINK_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GRIDLINK_ERP_BASE_URL"); v != "" {
		cfg.ERP.BaseURL = v
	}
	if v := os.Getenv("GRIDLINK_ERP_USER"); v != "" {
		cfg.ERP.User = v
	}
	if v := os.Getenv("GRIDLINK_ION_DEVELOPMENT_URL"); v != "" {
		cfg.Ion.DevelopmentURL = v
	}
	if v := os.Getenv("GRIDLINK_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
