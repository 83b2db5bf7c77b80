package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshal(t *testing.T) {
	var doc struct {
		Timeout Duration `yaml:"timeout"`
		Empty   Duration `yaml:"empty"`
		Missing Duration `yaml:"missing"`
	}
	if err := yaml.Unmarshal([]byte("timeout: 1500ms\nempty: \"\"\n"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Timeout.Duration != 1500*time.Millisecond || !doc.Timeout.IsSet() {
		t.Fatalf("unexpected timeout: %+v", doc.Timeout)
	}
	if doc.Empty.Duration != 0 || !doc.Empty.IsSet() {
		t.Fatalf("explicit empty duration should be set and zero: %+v", doc.Empty)
	}
	if doc.Missing.IsSet() {
		t.Fatalf("missing duration should not be set: %+v", doc.Missing)
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	var doc struct {
		Timeout Duration `yaml:"timeout"`
	}
	if err := yaml.Unmarshal([]byte("timeout: soon\n"), &doc); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestExplicitZeroShutdownTimeoutIsKept(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte("metrics:\n  shutdownTimeout: \"\"\n"), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	cfg.ApplyDefaults()
	if cfg.Metrics.ShutdownTimeout.Duration != 0 {
		t.Fatalf("expected explicit zero timeout, got %s", cfg.Metrics.ShutdownTimeout.Duration)
	}
}
