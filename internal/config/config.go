// Package config loads runtime configuration from layered sources: built-in
// defaults, an optional YAML file, then environment variables, the highest
// layer winning.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/cinemate/cinemate-web/internal/logging"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths lists where a config file is searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cinemate/config.yaml",
}

// Config captures the full runtime configuration of the web client.
type Config struct {
	Upstream UpstreamConfig `koanf:"upstream"`
	Server   ServerConfig   `koanf:"server"`
	Search   SearchConfig   `koanf:"search"`
	Ratings  RatingsConfig  `koanf:"ratings"`
	Logging  logging.Config `koanf:"logging"`
}

// UpstreamConfig points at the remote movie API this client consumes.
type UpstreamConfig struct {
	URL         string `koanf:"url"`
	TimeoutSecs int    `koanf:"timeout_secs"`
}

// ServerConfig tunes the client's own HTTP surface.
type ServerConfig struct {
	Host             string `koanf:"host"`
	Port             string `koanf:"port"`
	ReadTimeoutSecs  int    `koanf:"read_timeout_secs"`
	WriteTimeoutSecs int    `koanf:"write_timeout_secs"`
	IdleTimeoutSecs  int    `koanf:"idle_timeout_secs"`
}

// SearchConfig tunes the search/filter controller.
type SearchConfig struct {
	DebounceMillis int `koanf:"debounce_millis"`
}

// RatingsConfig tunes the rating store.
type RatingsConfig struct {
	FeedbackTTLSecs int `koanf:"feedback_ttl_secs"`
}

func defaults() Config {
	return Config{
		Upstream: UpstreamConfig{
			URL:         "",
			TimeoutSecs: 10,
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             "8080",
			ReadTimeoutSecs:  15,
			WriteTimeoutSecs: 15,
			IdleTimeoutSecs:  60,
		},
		Search: SearchConfig{
			DebounceMillis: 500,
		},
		Ratings: RatingsConfig{
			FeedbackTTLSecs: 3,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// CINEMATE_-prefixed environment variables, then validates it.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// CINEMATE_UPSTREAM_URL -> upstream.url, CINEMATE_SERVER_PORT -> server.port
	if err := k.Load(env.Provider("CINEMATE_", ".", envTransform), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the client cannot run with.
func (c Config) Validate() error {
	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}
	if c.Upstream.TimeoutSecs <= 0 {
		return fmt.Errorf("upstream.timeout_secs must be positive")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Search.DebounceMillis <= 0 {
		return fmt.Errorf("search.debounce_millis must be positive")
	}
	if c.Ratings.FeedbackTTLSecs <= 0 {
		return fmt.Errorf("ratings.feedback_ttl_secs must be positive")
	}
	return nil
}

func envTransform(s string) string {
	s = strings.TrimPrefix(s, "CINEMATE_")
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
