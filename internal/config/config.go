package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all service configuration. The approval threshold and
// window are workflow constants, not configuration; only infrastructure
// settings live here.
type Config struct {
	Temporal TemporalConfig
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
}

// TemporalConfig holds the connection to the workflow engine.
type TemporalConfig struct {
	HostPort  string
	Namespace string
}

// ServerConfig holds the HTTP gateway settings.
type ServerConfig struct {
	Addr string
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from an optional config file and the
// environment (ORDERSVC_ prefix, dots as underscores) and returns a
// Config with defaults applied.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORDERSVC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	cfg := &Config{
		Temporal: TemporalConfig{
			HostPort:  v.GetString("temporal.hostport"),
			Namespace: v.GetString("temporal.namespace"),
		},
		Server: ServerConfig{
			Addr: v.GetString("server.addr"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Logger: LoggerConfig{
			Level: v.GetString("logger.level"),
		},
	}

	// Apply defaults
	if cfg.Temporal.HostPort == "" {
		cfg.Temporal.HostPort = "localhost:7233"
	}
	if cfg.Temporal.Namespace == "" {
		cfg.Temporal.Namespace = "default"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8090"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "orders.db"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}

	return cfg, nil
}
