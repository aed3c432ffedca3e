// Package config loads the daemon bootstrap configuration from YAML.
// Device-level settings (broker credentials, thresholds, link settings) live
// in the JSON stores under DataDir, not here.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon bootstrap configuration.
type Config struct {
	Log     LogConfig    `yaml:"log"`
	HTTP    HTTPConfig   `yaml:"http"`
	DataDir string       `yaml:"data_dir"`
	Clock   ClockConfig  `yaml:"clock"`
	MQTT    MQTTConfig   `yaml:"mqtt"`
	Link    LinkConfig   `yaml:"link"`
	Device  DeviceConfig `yaml:"device"`
	Button  ButtonConfig `yaml:"button"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig configures the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// ClockConfig configures the network time sync.
type ClockConfig struct {
	URL           string        `yaml:"url"`
	OffsetSeconds int           `yaml:"offset_seconds"`
	Interval      time.Duration `yaml:"interval"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxAttempts   int           `yaml:"max_attempts"`
	Timeout       time.Duration `yaml:"timeout"`
}

// MQTTConfig configures session timing. Broker and credentials come from
// the mqtt store so they can be changed on the device.
type MQTTConfig struct {
	LivenessInterval time.Duration `yaml:"liveness_interval"`
	ConnectBackoff   time.Duration `yaml:"connect_backoff"`
	QueueLen         int           `yaml:"queue_len"`
	CommandTopic     string        `yaml:"command_topic"`
}

// LinkConfig points at the network helper's status file.
type LinkConfig struct {
	EnvFile   string `yaml:"env_file"`
	Interface string `yaml:"interface"`
}

// DeviceConfig holds identity overrides.
type DeviceConfig struct {
	// MAC overrides the hardware address used for the client id and topics.
	MAC string `yaml:"mac"`
}

// ButtonConfig configures the reset-config button. Pin 0 disables it.
type ButtonConfig struct {
	Pin  int           `yaml:"pin"`
	Hold time.Duration `yaml:"hold"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = string(LogFormatText)
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/eth-sensor"
	}
	if c.Clock.URL == "" {
		c.Clock.URL = "http://192.168.42.9:1880/api/time"
	}
	if c.Clock.Interval == 0 {
		c.Clock.Interval = 10 * time.Second
	}
	if c.Clock.RetryDelay == 0 {
		c.Clock.RetryDelay = 5 * time.Second
	}
	if c.Clock.MaxAttempts == 0 {
		c.Clock.MaxAttempts = 3
	}
	if c.Clock.Timeout == 0 {
		c.Clock.Timeout = 10 * time.Second
	}
	if c.MQTT.LivenessInterval == 0 {
		c.MQTT.LivenessInterval = 19 * time.Second
	}
	if c.MQTT.ConnectBackoff == 0 {
		c.MQTT.ConnectBackoff = 10 * time.Second
	}
	if c.MQTT.QueueLen == 0 {
		c.MQTT.QueueLen = 16
	}
	if c.MQTT.CommandTopic == "" {
		c.MQTT.CommandTopic = "sensor/commands"
	}
	if c.Link.EnvFile == "" {
		c.Link.EnvFile = "/run/pi-helper.env"
	}
	if c.Link.Interface == "" {
		c.Link.Interface = "eth0"
	}
	if c.Button.Hold == 0 {
		c.Button.Hold = 5 * time.Second
	}
}

func (c *Config) validate() error {
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Clock.MaxAttempts < 1 {
		return fmt.Errorf("clock.max_attempts must be >= 1, got %d", c.Clock.MaxAttempts)
	}
	if c.Clock.Interval < 0 || c.Clock.RetryDelay < 0 {
		return fmt.Errorf("clock intervals cannot be negative")
	}
	if c.MQTT.QueueLen < 1 {
		return fmt.Errorf("mqtt.queue_len must be >= 1, got %d", c.MQTT.QueueLen)
	}
	if c.MQTT.LivenessInterval < time.Second {
		return fmt.Errorf("mqtt.liveness_interval must be at least 1s, got %v", c.MQTT.LivenessInterval)
	}
	if c.Button.Pin < 0 {
		return fmt.Errorf("button.pin cannot be negative")
	}
	return nil
}
