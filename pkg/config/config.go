// Package config loads the process configuration from the environment once
// at startup. Nothing reads the environment after Load returns.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string `env:"GO_ENV" env-default:"development"`
	Port     string `env:"PORT" env-default:"8082"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`
	RedisURL    string `env:"REDIS_URL"`

	UserCacheTTL time.Duration `env:"USER_CACHE_TTL" env-default:"5m"`

	CORSOrigins string `env:"CORS_ORIGINS" env-default:"http://localhost:3000"`

	Auth   AuthConfig
	Admin  AdminConfig
	Events EventsConfig
}

// EventsConfig selects where auth events go. Kafka wins when brokers are
// set; otherwise redis pub/sub is used when REDIS_URL is set.
type EventsConfig struct {
	Channel      string   `env:"EVENTS_CHANNEL" env-default:"auth.events"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" env-separator:","`
}

// AuthConfig holds the signing and session parameters.
//
// Every path is protected unless listed in PublicPaths (exact match) or
// starting with one of PublicPrefixes.
type AuthConfig struct {
	SecretKey                 string   `env:"SECRET_KEY" env-required:"true"`
	Algorithm                 string   `env:"ALGORITHM" env-default:"HS256"`
	AccessTokenExpireMinutes  int      `env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"30"`
	RefreshTokenExpireMinutes int      `env:"REFRESH_TOKEN_EXPIRE_MINUTES" env-default:"10080"`
	CookieDomain              string   `env:"COOKIE_DOMAIN"`
	PublicPaths               []string `env:"AUTH_PUBLIC_PATHS" env-separator:"," env-default:"/,/login,/register,/logout,/health,/metrics"`
	PublicPrefixes            []string `env:"AUTH_PUBLIC_PREFIXES" env-separator:"," env-default:"/docs,/openapi.json,/redoc,/static"`
}

// AdminConfig seeds an admin account at startup when both fields are set.
type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME"`
	Password string `env:"ADMIN_PASSWORD"`
}

func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTokenExpireMinutes) * time.Minute
}

func (c *Config) Production() bool {
	return c.Env == "production"
}

func (c *Config) Validate() error {
	var errs []error
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY is required"))
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.Auth.RefreshTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.Auth.AccessTokenExpireMinutes >= c.Auth.RefreshTokenExpireMinutes {
		errs = append(errs, errors.New("access token lifetime must be shorter than refresh token lifetime"))
	}
	switch strings.ToUpper(c.Auth.Algorithm) {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("ALGORITHM %q is not supported", c.Auth.Algorithm))
	}
	if (c.Admin.Username == "") != (c.Admin.Password == "") {
		errs = append(errs, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
