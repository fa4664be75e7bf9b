package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the service, e.g.
// MARKETFLOW_HTTP_PORT for http.port.
const EnvPrefix = "MARKETFLOW"

// Config holds all application configuration.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	OTel     OTelConfig
	River    RiverConfig
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Port string
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	Path string
}

// OTelConfig holds telemetry settings.
type OTelConfig struct {
	Exporter    string // "stdout", "otlp" or "none"
	Environment string
	Insecure    bool
}

// RiverConfig holds job queue settings.
type RiverConfig struct {
	Workers int
}

// Init binds v to the environment and registers defaults.
func Init(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.port", "8080")
	v.SetDefault("database.path", "marketflow.db")
	v.SetDefault("otel.exporter", "stdout")
	v.SetDefault("otel.environment", "development")
	v.SetDefault("otel.insecure", false)
	v.SetDefault("river.workers", 2)
}

// Load reads configuration from v and returns a Config struct.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port: v.GetString("http.port"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		OTel: OTelConfig{
			Exporter:    v.GetString("otel.exporter"),
			Environment: v.GetString("otel.environment"),
			Insecure:    v.GetBool("otel.insecure"),
		},
		River: RiverConfig{
			Workers: v.GetInt("river.workers"),
		},
	}

	switch cfg.OTel.Exporter {
	case "stdout", "otlp", "none":
	default:
		return nil, fmt.Errorf("otel.exporter: unsupported value %q", cfg.OTel.Exporter)
	}
	if cfg.River.Workers < 1 {
		return nil, fmt.Errorf("river.workers: must be at least 1, got %d", cfg.River.Workers)
	}
	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("database.path: must not be empty")
	}

	return cfg, nil
}
