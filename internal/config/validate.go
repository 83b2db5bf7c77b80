package config

import (
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/moby/sys/signal"
	"github.com/sirupsen/logrus"
)

// Settings is the validated, typed form of a Config.
type Settings struct {
	RelayInterrupt bool
	RelaySignals   []syscall.Signal
	GracefulSignal syscall.Signal
	SweepZombies   bool

	NewProcessGroup   bool
	ParentDeathSignal syscall.Signal
	ProcRoot          string

	LogLevel  logrus.Level
	LogFormat string

	MetricsAddress         string
	MetricsShutdownTimeout time.Duration
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	_, err := c.Settings()
	return err
}

// Settings converts the configuration to typed values.
func (c *Config) Settings() (Settings, error) {
	s := Settings{
		RelayInterrupt:         c.Relay.Enabled == nil || *c.Relay.Enabled,
		SweepZombies:           c.Sweep.Enabled == nil || *c.Sweep.Enabled,
		NewProcessGroup:        c.Process.NewProcessGroup,
		ProcRoot:               c.Process.ProcRoot,
		MetricsAddress:         strings.TrimSpace(c.Metrics.Address),
		MetricsShutdownTimeout: c.Metrics.ShutdownTimeout.Duration,
	}

	for idx, name := range c.Relay.Signals {
		sig, err := parseSignal(name)
		if err != nil {
			return Settings{}, fmt.Errorf("relay.signals[%d]: %w", idx, err)
		}
		if err := catchable(sig); err != nil {
			return Settings{}, fmt.Errorf("relay.signals[%d]: %w", idx, err)
		}
		s.RelaySignals = append(s.RelaySignals, sig)
	}

	graceful, err := parseSignal(c.Relay.GracefulSignal)
	if err != nil {
		return Settings{}, fmt.Errorf("relay.gracefulSignal: %w", err)
	}
	s.GracefulSignal = graceful

	if c.Process.ParentDeathSignal != "" {
		sig, err := parseSignal(c.Process.ParentDeathSignal)
		if err != nil {
			return Settings{}, fmt.Errorf("process.parentDeathSignal: %w", err)
		}
		s.ParentDeathSignal = sig
	}

	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return Settings{}, fmt.Errorf("logging.level: %w", err)
	}
	s.LogLevel = level

	switch format := strings.ToLower(c.Logging.Format); format {
	case LogFormatAuto, LogFormatText, LogFormatJSON:
		s.LogFormat = format
	default:
		return Settings{}, fmt.Errorf("logging.format: must be one of auto, text, json (got %q)", c.Logging.Format)
	}

	if s.MetricsAddress != "" {
		if _, _, err := net.SplitHostPort(s.MetricsAddress); err != nil {
			return Settings{}, fmt.Errorf("metrics.address: %w", err)
		}
	}
	if s.MetricsShutdownTimeout < 0 {
		return Settings{}, fmt.Errorf("metrics.shutdownTimeout: must not be negative")
	}
	return s, nil
}

func parseSignal(name string) (syscall.Signal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("signal must not be empty")
	}
	sig, err := signal.ParseSignal(name)
	if err != nil {
		return 0, err
	}
	return sig, nil
}

// catchable rejects signals a relay handler can never observe, and SIGCHLD
// which drives orphan sweeping.
func catchable(sig syscall.Signal) error {
	switch sig {
	case syscall.SIGKILL:
		return fmt.Errorf("SIGKILL cannot be caught")
	case syscall.SIGSTOP:
		return fmt.Errorf("SIGSTOP cannot be caught")
	case syscall.SIGCHLD:
		return fmt.Errorf("SIGCHLD is reserved for orphan sweeping")
	}
	return nil
}
