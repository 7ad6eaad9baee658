package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the chatd server configuration. Every field has a usable default
// so running without a config file works out of the box; CLI flags override
// whatever the file sets.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Health HealthConfig `yaml:"health"`
}

type ServerConfig struct {
	Listen        string   `yaml:"listen"`
	WSListen      string   `yaml:"ws_listen"`
	MetricsListen string   `yaml:"metrics_listen"`
	MaxLineBytes  int      `yaml:"max_line_bytes"`
	QueueDepth    int      `yaml:"queue_depth"`
	IdleTimeout   Duration `yaml:"idle_timeout"`
	ShutdownGrace Duration `yaml:"shutdown_grace"`
}

type LogConfig struct {
	// Save is the JSON Lines session log path; empty disables the file sink.
	Save  string `yaml:"save"`
	Level string `yaml:"level"`
}

type HealthConfig struct {
	// Interval between process self-stat samples; 0 disables the sampler.
	Interval Duration `yaml:"interval"`
}

// Duration parses YAML scalars like "90s" or "5m" via time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:        "0.0.0.0:5555",
			MetricsListen: "",
			MaxLineBytes:  4096,
			QueueDepth:    256,
			IdleTimeout:   0,
			ShutdownGrace: Duration(5 * time.Second),
		},
		Log: LogConfig{
			Level: "info",
		},
		Health: HealthConfig{
			Interval: Duration(30 * time.Second),
		},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
