// Package config loads the AYumeRNA API server configuration from an
// optional YAML file and AYUME_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended to every environment override, e.g.
// AYUME_AUTH_JWT_SECRET for auth.jwt_secret.
const EnvPrefix = "AYUME"

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Docs    DocsConfig    `mapstructure:"docs"`
	API     APIConfig     `mapstructure:"api"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DocsConfig places the description document and its viewers. A .yaml or
// .yml OpenAPI URL serves YAML instead of JSON.
type DocsConfig struct {
	OpenAPIURL string `mapstructure:"openapi_url"`
	DocsURL    string `mapstructure:"docs_url"`
	RedocURL   string `mapstructure:"redoc_url"`
}

// APIConfig overrides the published metadata. Empty fields keep the
// built-in values.
type APIConfig struct {
	Title       string   `mapstructure:"title"`
	Version     string   `mapstructure:"version"`
	Description string   `mapstructure:"description"`
	Servers     []string `mapstructure:"servers"`
}

// Bearer token verification modes.
const (
	AuthModeJWT     = "jwt"
	AuthModeSession = "session"
)

// AuthConfig selects how bearer tokens are verified: signed JWTs, or
// opaque session tokens looked up in Redis.
type AuthConfig struct {
	Mode       string        `mapstructure:"mode"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	Issuer     string        `mapstructure:"issuer"`
	Leeway     time.Duration `mapstructure:"leeway"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("docs.openapi_url", "/openapi.json")
	v.SetDefault("docs.docs_url", "/docs")
	v.SetDefault("docs.redoc_url", "/redoc")

	v.SetDefault("api.title", "")
	v.SetDefault("api.version", "")
	v.SetDefault("api.description", "")
	v.SetDefault("api.servers", []string{})

	v.SetDefault("auth.mode", AuthModeJWT)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.leeway", 30*time.Second)
	v.SetDefault("auth.session_ttl", time.Hour)
	v.SetDefault("auth.redis.addr", "localhost:6379")
	v.SetDefault("auth.redis.password", "")
	v.SetDefault("auth.redis.db", 0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.url", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads path when it is not empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return fmt.Errorf("%w: server.address is required", ErrInvalidConfig)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	urls := map[string]string{
		"docs.openapi_url": c.Docs.OpenAPIURL,
		"docs.docs_url":    c.Docs.DocsURL,
		"docs.redoc_url":   c.Docs.RedocURL,
	}
	if c.Metrics.Enabled {
		urls["metrics.url"] = c.Metrics.URL
	}
	for key, url := range urls {
		if !strings.HasPrefix(url, "/") {
			return fmt.Errorf("%w: %s must start with /", ErrInvalidConfig, key)
		}
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks the settings the selected mode needs.
func (c AuthConfig) Validate() error {
	switch c.Mode {
	case AuthModeJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("%w: auth.jwt_secret is required (set %s_AUTH_JWT_SECRET)", ErrInvalidConfig, EnvPrefix)
		}
		if c.Leeway < 0 {
			return fmt.Errorf("%w: auth.leeway must not be negative", ErrInvalidConfig)
		}
	case AuthModeSession:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("%w: auth.redis.addr is required in session mode", ErrInvalidConfig)
		}
		if c.SessionTTL <= 0 {
			return fmt.Errorf("%w: auth.session_ttl must be positive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: auth.mode must be %q or %q, got %q", ErrInvalidConfig, AuthModeJWT, AuthModeSession, c.Mode)
	}
	return nil
}

// Logger builds the process logger: JSON in production, console output in
// development.
func (c LogConfig) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
