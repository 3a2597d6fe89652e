// Package config implements centralized configuration loading for the DDI
// agent following the 12-Factor App methodology: environment variables are
// the primary source, with an optional YAML overlay for values operators
// prefer to keep in a file (device identity, certificate paths) rather than
// exported into every process's environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the root configuration structure for cmd/ddiagent.
type Config struct {
	Controller ControllerConfig `envPrefix:"DDI_"`
	Auth       AuthConfig       `envPrefix:"DDI_AUTH_"`
	Audit      AuditConfig      `envPrefix:"DDI_AUDIT_"`
	Diagnostics DiagnosticsConfig `envPrefix:"DDI_DIAG_"`
}

// ControllerConfig configures the polling controller itself.
type ControllerConfig struct {
	Endpoint       string        `env:"ENDPOINT" validate:"required,url"`
	ControllerID   string        `env:"CONTROLLER_ID" validate:"required"`
	Tenant         string        `env:"TENANT" envDefault:"default"`
	PollingTimeout time.Duration `env:"POLLING_TIMEOUT" envDefault:"30s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	VerifyTLS      bool          `env:"VERIFY_TLS" envDefault:"true"`
}

// AuthConfig configures at most one of the three mutually exclusive
// authentication strategies; Load rejects more than one being set and
// accepts none (the client then runs without authentication).
type AuthConfig struct {
	GatewayToken string `env:"GATEWAY_TOKEN"`
	DeviceToken  string `env:"DEVICE_TOKEN"`
	CertFile     string `env:"CERT_FILE"`
	KeyFile      string `env:"KEY_FILE"`
}

// AuditConfig configures the optional Postgres-backed feedback audit trail.
// Enabled is false by default: the audit store is opt-in, not core protocol
// state.
type AuditConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	Name     string `env:"NAME" envDefault:"ddi_audit"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
}

// DiagnosticsConfig configures the local read-only status endpoint.
type DiagnosticsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Addr    string `env:"ADDR" envDefault:"127.0.0.1:8081"`
}

// Load reads the environment, optionally overlaying a YAML file named by
// DDI_CONFIG_FILE, and validates the result. Environment variables take
// precedence over the file: env.Parse runs after the overlay populates
// defaults that are still zero-valued in the struct, matching viper's
// intended "config file supplies defaults, environment overrides" role.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("DDI_CONFIG_FILE"); path != "" {
		if err := overlayYAML(&cfg, path); err != nil {
			return nil, fmt.Errorf("loading config overlay %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if err := validator.New().Struct(cfg.Controller); err != nil {
		return nil, fmt.Errorf("invalid controller config: %w", err)
	}
	if err := cfg.Auth.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (a AuthConfig) validate() error {
	set := 0
	if a.GatewayToken != "" {
		set++
	}
	if a.DeviceToken != "" {
		set++
	}
	if a.CertFile != "" || a.KeyFile != "" {
		if a.CertFile == "" || a.KeyFile == "" {
			return fmt.Errorf("invalid auth config: both DDI_AUTH_CERT_FILE and DDI_AUTH_KEY_FILE must be set together")
		}
		set++
	}
	if set > 1 {
		return fmt.Errorf("invalid auth config: at most one of gateway token, device token, or TLS keypair may be set")
	}
	return nil
}

// overlayYAML loads a YAML file via viper and decodes it onto cfg, ahead of
// env.Parse so environment variables still win for anything present in
// both. This is the only code path that exercises viper; the teacher's
// go.mod carries it but no teacher code actually calls it.
func overlayYAML(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(cfg)
}
