package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Paintersrp/reaper/internal/supervisor"
)

var (
	registry = prometheus.NewRegistry()

	relayedSignals = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reaper",
		Name:      "relayed_signals_total",
		Help:      "Total number of graceful signals forwarded to the primary child.",
	})

	relayFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reaper",
		Name:      "relay_failures_total",
		Help:      "Total number of graceful signals that could not be delivered to the primary child.",
	})

	descendantsKilled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reaper",
		Name:      "descendants_killed_total",
		Help:      "Total number of descendants sent SIGKILL by the reap loop.",
	})

	descendantsReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reaper",
		Name:      "descendants_reaped_total",
		Help:      "Total number of descendants collected by the reap loop.",
	})

	reapFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reaper",
		Name:      "reap_failures_total",
		Help:      "Total number of failed per-descendant operations, by operation.",
	}, []string{"op"})

	reapScans = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reaper",
		Name:      "reap_scans_total",
		Help:      "Total number of child listings performed by the reap loop.",
	})

	zombiesSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reaper",
		Name:      "zombies_swept_total",
		Help:      "Total number of exited orphans collected while the primary child was running.",
	})

	primaryExitCode = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reaper",
		Name:      "primary_exit_code",
		Help:      "Exit code of the primary child, or 128 plus the signal number when it was killed by a signal.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "reaper",
		Name:      "build_info",
		Help:      "Build metadata for the running reaper binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(
		relayedSignals,
		relayFailures,
		descendantsKilled,
		descendantsReaped,
		reapFailures,
		reapScans,
		zombiesSwept,
		primaryExitCode,
		buildInfo,
	)
}

// Registry returns the Prometheus registry containing all reaper metrics.
func Registry() *prometheus.Registry {
	return registry
}

// Observe records a supervisor event.
func Observe(event supervisor.Event) {
	switch event.Type {
	case supervisor.EventTypeRelayed:
		relayedSignals.Inc()
	case supervisor.EventTypeRelayFailed:
		relayFailures.Inc()
	case supervisor.EventTypeScan:
		reapScans.Inc()
	case supervisor.EventTypeKilled:
		descendantsKilled.Inc()
	case supervisor.EventTypeKillFailed:
		reapFailures.WithLabelValues("kill").Inc()
	case supervisor.EventTypeReaped:
		descendantsReaped.Inc()
	case supervisor.EventTypeReapFailed:
		reapFailures.WithLabelValues("wait").Inc()
	case supervisor.EventTypeSwept:
		zombiesSwept.Inc()
	case supervisor.EventTypeSweepFailed:
		reapFailures.WithLabelValues("sweep").Inc()
	case supervisor.EventTypePrimaryExited:
		if event.Status == nil {
			return
		}
		code := float64(event.Status.ExitCode)
		if event.Status.Signaled() {
			code = float64(128 + int(event.Status.Signal))
		}
		primaryExitCode.Set(code)
	}
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
