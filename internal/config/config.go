// Package config loads the YAML configuration record consumed by the
// forwarder binary.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors the YAML configuration file structure.
type Config struct {
	Gateway struct {
		IDHex              string `yaml:"id_hex"`
		ServerAddress      string `yaml:"server_address"`
		ServPortUp         uint16 `yaml:"serv_port_up"`
		ServPortDown       uint16 `yaml:"serv_port_down"`
		KeepaliveInterval  int    `yaml:"keepalive_interval"`
		StatInterval       int    `yaml:"stat_interval"`
		PushTimeoutMs      int    `yaml:"push_timeout_ms"`
		ForwardCRCValid    bool   `yaml:"forward_crc_valid"`
		ForwardCRCError    bool   `yaml:"forward_crc_error"`
		ForwardCRCDisabled bool   `yaml:"forward_crc_disabled"`
	} `yaml:"gateway"`

	HAL struct {
		Driver     string `yaml:"driver"` // "concentratord" | "simulator"
		EventURL   string `yaml:"event_url"`
		CommandURL string `yaml:"command_url"`
	} `yaml:"hal"`

	Logging struct {
		Level  int  `yaml:"level"`
		Stdout bool `yaml:"stdout"`
		Syslog bool `yaml:"syslog"`
	} `yaml:"logging"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Monitor struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"monitor"`
}

// DefaultConfig returns the documented gateway defaults.
func DefaultConfig() Config {
	var cfg Config
	cfg.Gateway.ServPortUp = 1780
	cfg.Gateway.ServPortDown = 1782
	cfg.Gateway.KeepaliveInterval = 5
	cfg.Gateway.StatInterval = 30
	cfg.Gateway.PushTimeoutMs = 100
	cfg.Gateway.ForwardCRCValid = true
	cfg.HAL.Driver = "simulator"
	return cfg
}

// Load reads and parses the YAML configuration file at path, applying
// defaults for any field YAML leaves zero.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if cfg.Gateway.IDHex == "" {
		return Config{}, fmt.Errorf("config: gateway.id_hex is required")
	}
	if cfg.Gateway.ServerAddress == "" {
		return Config{}, fmt.Errorf("config: gateway.server_address is required")
	}

	return cfg, nil
}

// AckTimeout derives the per-attempt ack wait (push_timeout_ms ÷ 2).
func (c Config) AckTimeout() time.Duration {
	return time.Duration(c.Gateway.PushTimeoutMs) * time.Millisecond / 2
}

// KeepaliveIntervalDuration returns the configured keepalive interval as a
// Duration.
func (c Config) KeepaliveIntervalDuration() time.Duration {
	return time.Duration(c.Gateway.KeepaliveInterval) * time.Second
}

// StatIntervalDuration returns the configured reporter interval as a
// Duration.
func (c Config) StatIntervalDuration() time.Duration {
	return time.Duration(c.Gateway.StatInterval) * time.Second
}
