package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"

	defaultLogLevel        = "info"
	defaultGracefulSignal  = "SIGTERM"
	defaultRelaySignal     = "SIGINT"
	defaultShutdownTimeout = 2 * time.Second
)

// Config mirrors the optional reaper.yaml document.
type Config struct {
	Relay   RelaySpec   `yaml:"relay"`
	Sweep   SweepSpec   `yaml:"sweep"`
	Process ProcessSpec `yaml:"process"`
	Logging LoggingSpec `yaml:"logging"`
	Metrics MetricsSpec `yaml:"metrics"`
}

// RelaySpec configures forwarding of interrupt requests to the primary child.
type RelaySpec struct {
	Enabled        *bool    `yaml:"enabled"`
	Signals        []string `yaml:"signals"`
	GracefulSignal string   `yaml:"gracefulSignal"`
}

// SweepSpec configures collection of exited orphans while the primary child
// is running.
type SweepSpec struct {
	Enabled *bool `yaml:"enabled"`
}

// ProcessSpec tunes how the primary child is started and how the process
// table is read.
type ProcessSpec struct {
	NewProcessGroup   bool   `yaml:"newProcessGroup"`
	ParentDeathSignal string `yaml:"parentDeathSignal"`
	ProcRoot          string `yaml:"procRoot"`
}

// LoggingSpec configures the supervisor's own diagnostics.
type LoggingSpec struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsSpec configures the optional Prometheus endpoint.
type MetricsSpec struct {
	Address         string   `yaml:"address"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in unset fields.
func (c *Config) ApplyDefaults() {
	if c.Relay.Enabled == nil {
		c.Relay.Enabled = boolPtr(true)
	}
	if len(c.Relay.Signals) == 0 {
		c.Relay.Signals = []string{defaultRelaySignal}
	}
	if c.Relay.GracefulSignal == "" {
		c.Relay.GracefulSignal = defaultGracefulSignal
	}
	if c.Sweep.Enabled == nil {
		c.Sweep.Enabled = boolPtr(true)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatAuto
	}
	if !c.Metrics.ShutdownTimeout.IsSet() {
		c.Metrics.ShutdownTimeout.Duration = defaultShutdownTimeout
	}
}

func boolPtr(v bool) *bool {
	return &v
}
