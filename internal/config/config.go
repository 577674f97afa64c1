// Package config handles configuration loading for socwatch.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" or "1600ms"
// parse; yaml.v3 only decodes integers into time.Duration directly.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// Config holds the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Generator GeneratorConfig `yaml:"generator"`
	Queue     QueueConfig     `yaml:"queue"`
	Engine    EngineConfig    `yaml:"engine"`
	Detection Settings        `yaml:"detection"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPPort     int      `yaml:"http_port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// GeneratorConfig holds synthetic telemetry generator settings.
type GeneratorConfig struct {
	Enabled        bool     `yaml:"enabled"`
	BenignInterval Duration `yaml:"benign_interval"` // benign user activity tick
	AttackInterval Duration `yaml:"attack_interval"` // attack sequence scheduling
	EventLogCap    int      `yaml:"event_log_cap"`
	EventLogTrim   int      `yaml:"event_log_trim"`
}

// QueueConfig holds event queue settings.
type QueueConfig struct {
	Size         int      `yaml:"size"`
	PollInterval Duration `yaml:"poll_interval"`
	BatchSize    int      `yaml:"batch_size"`
}

// EngineConfig holds detection engine retention caps.
type EngineConfig struct {
	EventCap          int `yaml:"event_cap"`
	EventKeep         int `yaml:"event_keep"`
	AlertCap          int `yaml:"alert_cap"`
	AlertKeep         int `yaml:"alert_keep"`
	InvestigationCap  int `yaml:"investigation_cap"`
	InvestigationKeep int `yaml:"investigation_keep"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     8080,
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Generator: GeneratorConfig{
			Enabled:        true,
			BenignInterval: Duration(1600 * time.Millisecond),
			AttackInterval: Duration(45 * time.Second),
			EventLogCap:    7000,
			EventLogTrim:   1500,
		},
		Queue: QueueConfig{
			Size:         10000,
			PollInterval: Duration(100 * time.Millisecond),
			BatchSize:    256,
		},
		Engine: EngineConfig{
			EventCap:          4000,
			EventKeep:         3100,
			AlertCap:          600,
			AlertKeep:         450,
			InvestigationCap:  80,
			InvestigationKeep: 60,
		},
		Detection: DefaultSettings(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a file or returns defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := os.Getenv("SOCWATCH_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			cfg.Detection = cfg.Detection.Clamped()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	// Detection knobs arrive clamped so the engine never has to validate them.
	cfg.Detection = cfg.Detection.Clamped()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("SOCWATCH_HTTP_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Server.HTTPPort)
	}

	if level := os.Getenv("SOCWATCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if format := os.Getenv("SOCWATCH_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if enabled := os.Getenv("SOCWATCH_GENERATOR_ENABLED"); enabled != "" {
		c.Generator.Enabled = strings.EqualFold(enabled, "true")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.Server.HTTPPort)
	}

	if c.Queue.Size <= 0 {
		return fmt.Errorf("queue size must be positive")
	}

	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("queue batch_size must be positive")
	}

	// The pump ticker rejects non-positive intervals.
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue poll_interval must be positive")
	}

	if c.Engine.EventKeep >= c.Engine.EventCap ||
		c.Engine.AlertKeep >= c.Engine.AlertCap ||
		c.Engine.InvestigationKeep >= c.Engine.InvestigationCap {
		return fmt.Errorf("engine retention keep values must be below their caps")
	}

	if c.Generator.EventLogTrim >= c.Generator.EventLogCap {
		return fmt.Errorf("generator event_log_trim must be below event_log_cap")
	}

	return nil
}
