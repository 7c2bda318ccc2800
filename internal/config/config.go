// Package config loads server configuration from a YAML or JSON file with
// environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses human-readable values like "30m" from YAML and JSON.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RedisConfig holds the connection settings for the Redis entity store.
// Leaving Addr empty selects the in-memory store.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// Config is the full server configuration.
type Config struct {
	Addr        string `yaml:"addr" json:"addr"`
	ServiceName string `yaml:"service_name" json:"service_name"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
	LogFormat   string `yaml:"log_format" json:"log_format"`

	// WidgetDomain and the origin allowlists feed the widget CSP metadata.
	WidgetDomain    string   `yaml:"widget_domain" json:"widget_domain"`
	ConnectOrigins  []string `yaml:"connect_origins" json:"connect_origins"`
	ResourceOrigins []string `yaml:"resource_origins" json:"resource_origins"`

	SessionTTL Duration `yaml:"session_ttl" json:"session_ttl"`

	Redis RedisConfig `yaml:"redis" json:"redis"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Addr:        ":8000",
		ServiceName: "apphost",
		LogLevel:    "info",
		LogFormat:   "text",
		SessionTTL:  Duration(30 * time.Minute),
	}
}

// Load reads a configuration file (YAML or JSON), falling back to defaults
// when the path is empty or the default file is missing, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		} else {
			ext := strings.ToLower(filepath.Ext(path))
			if ext == ".json" {
				if err := json.Unmarshal(data, &cfg); err != nil {
					return Config{}, fmt.Errorf("failed to parse config: %w", err)
				}
			} else {
				if err := yaml.Unmarshal(data, &cfg); err != nil {
					return Config{}, fmt.Errorf("failed to parse config: %w", err)
				}
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays APPHOST_* environment variables on top of the file
// values so containerized deployments need no config file at all.
func applyEnv(cfg *Config) {
	if v := os.Getenv("APPHOST_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("APPHOST_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("APPHOST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("APPHOST_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("APPHOST_WIDGET_DOMAIN"); v != "" {
		cfg.WidgetDomain = v
	}
	if v := os.Getenv("APPHOST_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = Duration(d)
		}
	}
	if v := os.Getenv("APPHOST_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("APPHOST_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("APPHOST_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
}
