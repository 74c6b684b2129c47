// Package config loads the ratings service settings from an optional
// ratings.yaml and the environment, environment taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type BootstrapAdmin struct {
	Email    string
	Password string
	Name     string
}

// Enabled reports whether both credentials are configured.
func (b BootstrapAdmin) Enabled() bool {
	return b.Email != "" && b.Password != ""
}

type Config struct {
	JWTSecret        []byte
	AccessTokenTTL   time.Duration
	GRPCAddr         string
	DefaultPageLimit int
	MaxPageLimit     int
	BcryptCost       int
	AutoMigrate      bool
	Admin            BootstrapAdmin
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("ratings")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("jwt_secret", "")
	v.SetDefault("access_token_ttl", 24*time.Hour)
	v.SetDefault("grpc_addr", ":9090")
	v.SetDefault("default_page_limit", 10)
	v.SetDefault("max_page_limit", 100)
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("auto_migrate", true)
	v.SetDefault("bootstrap_admin_email", "")
	v.SetDefault("bootstrap_admin_password", "")
	v.SetDefault("bootstrap_admin_name", "System Administrator Account")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read ratings config: %w", err)
		}
	}

	cfg := Config{
		JWTSecret:        []byte(strings.TrimSpace(v.GetString("jwt_secret"))),
		AccessTokenTTL:   v.GetDuration("access_token_ttl"),
		GRPCAddr:         strings.TrimSpace(v.GetString("grpc_addr")),
		DefaultPageLimit: v.GetInt("default_page_limit"),
		MaxPageLimit:     v.GetInt("max_page_limit"),
		BcryptCost:       v.GetInt("bcrypt_cost"),
		AutoMigrate:      v.GetBool("auto_migrate"),
		Admin: BootstrapAdmin{
			Email:    strings.ToLower(strings.TrimSpace(v.GetString("bootstrap_admin_email"))),
			Password: v.GetString("bootstrap_admin_password"),
			Name:     strings.TrimSpace(v.GetString("bootstrap_admin_name")),
		},
	}

	if len(cfg.JWTSecret) == 0 {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 24 * time.Hour
	}
	if cfg.MaxPageLimit <= 0 {
		cfg.MaxPageLimit = 100
	}
	if cfg.DefaultPageLimit <= 0 {
		cfg.DefaultPageLimit = 10
	}
	if cfg.DefaultPageLimit > cfg.MaxPageLimit {
		cfg.DefaultPageLimit = cfg.MaxPageLimit
	}
	return cfg, nil
}
