package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the token server.
// Tags use mapstructure for Viper unmarshalling and env for environment variable binding.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"` // empty disables the redis token cache
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	AccessTokenTTLMin   int `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTokenTTLHour int `mapstructure:"REFRESH_TOKEN_TTL_HOUR"`
	TokenCacheTTLMin    int `mapstructure:"TOKEN_CACHE_TTL_MIN"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (c *ServerConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHour) * time.Hour
}

// TokenCacheTTL returns the in-memory/redis token cache lifetime.
func (c *ServerConfig) TokenCacheTTL() time.Duration {
	return time.Duration(c.TokenCacheTTLMin) * time.Minute
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/minigrant/")
	v.AddConfigPath("$HOME/.minigrant")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/minigrant_dev")
	v.SetDefault("MONGO_DB_NAME", "minigrant_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "minigrant-server")
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)    // 1 hour
	v.SetDefault("REFRESH_TOKEN_TTL_HOUR", 720) // 30 days
	v.SetDefault("TOKEN_CACHE_TTL_MIN", 5)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars still apply.
		// Anything else (permissions, malformed yaml) is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
