// Package config loads runtime settings for the API and admin binaries.
//
// Values start from Default, are overlaid by the YAML file named in
// PROPHUB_CONFIG (if set), and finally by PROPHUB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "PROPHUB_"
	// MinSigningKeyLen matches the minimum HS256 key length the token codec accepts.
	MinSigningKeyLen = 32
)

type Config struct {
	HTTPAddr string     `yaml:"http_addr"`
	GRPCAddr string     `yaml:"grpc_addr"`
	PGDSN    string     `yaml:"pg_dsn"`
	LogLevel string     `yaml:"log_level"`
	JWT      JWTConfig  `yaml:"jwt"`
	Rate     RateConfig `yaml:"rate"`
	// CORSOrigins lists allowed browser origins; empty disables CORS headers.
	CORSOrigins []string        `yaml:"cors_origins"`
	Bootstrap   BootstrapConfig `yaml:"bootstrap"`
}

type JWTConfig struct {
	SigningKey    string `yaml:"signing_key"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	ExpiryMinutes int    `yaml:"expiry_minutes"`
}

// RateConfig throttles POST /auth/login per client address.
type RateConfig struct {
	PerSecond float64 `yaml:"per_sec"`
	Burst     int     `yaml:"burst"`
}

// BootstrapConfig names a global admin created at startup if the email is
// not registered yet.
type BootstrapConfig struct {
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		GRPCAddr: ":9090",
		LogLevel: "info",
		JWT: JWTConfig{
			Issuer:        "propertyhub",
			Audience:      "propertyhub-web",
			ExpiryMinutes: 60,
		},
		Rate: RateConfig{PerSecond: 1, Burst: 5},
	}
}

// TokenTTL is the configured token lifetime.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.ExpiryMinutes) * time.Minute
}

// Validate reports every setting that would stop the API from starting.
func (c Config) Validate() error {
	var errs []error
	if c.JWT.SigningKey == "" {
		errs = append(errs, errors.New("PROPHUB_JWT_SIGNING_KEY is required"))
	} else if len(c.JWT.SigningKey) < MinSigningKeyLen {
		errs = append(errs, fmt.Errorf("PROPHUB_JWT_SIGNING_KEY must be at least %d bytes", MinSigningKeyLen))
	}
	if c.JWT.ExpiryMinutes <= 0 {
		errs = append(errs, errors.New("PROPHUB_JWT_EXPIRY_MINUTES must be positive"))
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" || strings.TrimSpace(c.JWT.Audience) == "" {
		errs = append(errs, errors.New("jwt issuer and audience must be set"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("PROPHUB_HTTP_ADDR must be set"))
	}
	if c.Rate.PerSecond <= 0 || c.Rate.Burst <= 0 {
		errs = append(errs, errors.New("login rate limit must be positive"))
	}
	if (c.Bootstrap.AdminEmail == "") != (c.Bootstrap.AdminPassword == "") {
		errs = append(errs, errors.New("bootstrap admin needs both email and password"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv, os.ReadFile)
}

// LoadFrom is Load with injectable lookups.
func LoadFrom(lookup func(string) (string, bool), readFile func(string) ([]byte, error)) (Config, error) {
	cfg := Default()
	if path, ok := lookup(envPrefix + "CONFIG"); ok && path != "" {
		data, err := readFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("GRPC_ADDR", &cfg.GRPCAddr)
	str("PG_DSN", &cfg.PGDSN)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("JWT_SIGNING_KEY", &cfg.JWT.SigningKey)
	str("JWT_ISSUER", &cfg.JWT.Issuer)
	str("JWT_AUDIENCE", &cfg.JWT.Audience)
	str("BOOTSTRAP_ADMIN_EMAIL", &cfg.Bootstrap.AdminEmail)
	str("BOOTSTRAP_ADMIN_PASSWORD", &cfg.Bootstrap.AdminPassword)

	if v, ok := lookup(envPrefix + "JWT_EXPIRY_MINUTES"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PROPHUB_JWT_EXPIRY_MINUTES: %w", err)
		}
		cfg.JWT.ExpiryMinutes = n
	}
	if v, ok := lookup(envPrefix + "RATE_BURST"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PROPHUB_RATE_BURST: %w", err)
		}
		cfg.Rate.Burst = n
	}
	if v, ok := lookup(envPrefix + "RATE_PER_SEC"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("PROPHUB_RATE_PER_SEC: %w", err)
		}
		cfg.Rate.PerSecond = f
	}
	if v, ok := lookup(envPrefix + "CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
