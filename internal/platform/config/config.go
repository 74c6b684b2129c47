// Package config reads process-level settings shared by every service
// binary. Service-specific settings live in the service's own config package.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

type HTTPConfig struct {
	Addr string
	// CORSOrigins is the raw comma-separated CORS_ALLOWED_ORIGINS value.
	CORSOrigins string
}

type AppConfig struct {
	ServiceName string
	Env         string
	LogLevel    string
	HTTP        HTTPConfig
}

// Load reads the process environment.
func Load() (AppConfig, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads settings through getenv. Values are trimmed; APP_ENV is
// case-insensitive.
func LoadFrom(getenv func(string) string) (AppConfig, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	cfg := AppConfig{
		ServiceName: get("SERVICE_NAME", ""),
		Env:         strings.ToLower(get("APP_ENV", EnvDevelopment)),
		LogLevel:    get("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Addr:        get("HTTP_ADDR", ":8080"),
			CORSOrigins: get("CORS_ALLOWED_ORIGINS", ""),
		},
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, fmt.Errorf("SERVICE_NAME is required")
	}
	switch cfg.Env {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return AppConfig{}, fmt.Errorf("APP_ENV %q: want development, test or production", cfg.Env)
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return AppConfig{}, fmt.Errorf("HTTP_ADDR %q: %w", cfg.HTTP.Addr, err)
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV=production.
func (c AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}
