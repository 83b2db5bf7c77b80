package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a configuration file from the provided path. An empty document
// yields the defaults.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	var doc Config
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	doc.Process.ProcRoot = os.ExpandEnv(doc.Process.ProcRoot)
	doc.Metrics.Address = os.ExpandEnv(doc.Metrics.Address)

	doc.ApplyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &doc, nil
}

// ApplyEnv overrides fields from REAPER_* environment variables. Values that
// fail to parse are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if value, ok := lookup("REAPER_RELAY_INTERRUPT"); ok {
		if enabled, err := strconv.ParseBool(value); err == nil {
			c.Relay.Enabled = boolPtr(enabled)
		}
	}
	if value, ok := lookup("REAPER_RELAY_SIGNALS"); ok && strings.TrimSpace(value) != "" {
		c.Relay.Signals = splitList(value)
	}
	if value, ok := lookup("REAPER_GRACEFUL_SIGNAL"); ok && value != "" {
		c.Relay.GracefulSignal = value
	}
	if value, ok := lookup("REAPER_SWEEP_ZOMBIES"); ok {
		if enabled, err := strconv.ParseBool(value); err == nil {
			c.Sweep.Enabled = boolPtr(enabled)
		}
	}
	if value, ok := lookup("REAPER_LOG_LEVEL"); ok && value != "" {
		c.Logging.Level = value
	}
	if value, ok := lookup("REAPER_LOG_FORMAT"); ok && value != "" {
		c.Logging.Format = value
	}
	if value, ok := lookup("REAPER_METRICS_ADDR"); ok {
		c.Metrics.Address = value
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
