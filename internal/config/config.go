package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the contents of protoflow.yaml.
type Config struct {
	Version int `yaml:"version"`
	Project struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
		Path string `yaml:"path"`
	} `yaml:"project"`
	Network struct {
		HTTPPort int `yaml:"http_port"`
	} `yaml:"network"`
	Runtime struct {
		FrameRate    int `yaml:"frame_rate"`
		HistoryDepth int `yaml:"history_depth"`
		HighlightMS  int `yaml:"highlight_ms"`
	} `yaml:"runtime"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Postgres struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"postgres"`
}

// HTTPPort returns the configured HTTP port, defaulting to 8080 if not set.
func (c *Config) HTTPPort() int {
	if c.Network.HTTPPort == 0 {
		return 8080
	}
	return c.Network.HTTPPort
}

// FrameInterval is the time between preview frames. The default rate is 60.
func (c *Config) FrameInterval() time.Duration {
	rate := c.Runtime.FrameRate
	if rate <= 0 {
		rate = 60
	}
	return time.Second / time.Duration(rate)
}

// HistoryDepth returns the undo depth, defaulting to 50.
func (c *Config) HistoryDepth() int {
	if c.Runtime.HistoryDepth <= 0 {
		return 50
	}
	return c.Runtime.HistoryDepth
}

// Highlight is how long a fired patch stays highlighted, defaulting to 250ms.
func (c *Config) Highlight() time.Duration {
	if c.Runtime.HighlightMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.Runtime.HighlightMS) * time.Millisecond
}

// TopicPrefix returns the MQTT topic prefix, defaulting to "protoflow".
func (c *Config) TopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "protoflow"
	}
	return c.MQTT.TopicPrefix
}

// ProjectID returns the project id used in topics and the projects table.
// It falls back to "default".
func (c *Config) ProjectID() string {
	if c.Project.ID == "" {
		return "default"
	}
	return c.Project.ID
}

// Default returns the configuration used when no protoflow.yaml is given.
func Default() *Config {
	return &Config{Version: 1}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported protoflow.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}
