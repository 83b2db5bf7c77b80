package cli

import (
	stdcontext "context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Paintersrp/reaper/internal/cliutil"
	"github.com/Paintersrp/reaper/internal/config"
	"github.com/Paintersrp/reaper/internal/metrics"
	"github.com/Paintersrp/reaper/internal/proctable"
	"github.com/Paintersrp/reaper/internal/supervisor"
)

const eventBuffer = 64

func runSupervisor(cmd *cobra.Command, settings config.Settings, target supervisor.Target) error {
	logger := cliutil.NewLogger(cmd.ErrOrStderr(), settings.LogLevel, settings.LogFormat)
	logger.WithFields(logrus.Fields{
		"program": target.Path,
		"argv":    cliutil.RedactArgs(target.Argv()),
	}).Info("starting program")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = stdcontext.Background()
	}

	stopMetrics, err := startMetrics(logger, settings)
	if err != nil {
		return err
	}
	defer stopMetrics()

	events := make(chan supervisor.Event, eventBuffer)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for evt := range events {
			cliutil.LogEvent(logger, evt)
			metrics.Observe(evt)
		}
	}()

	sup := supervisor.New(proctable.New(settings.ProcRoot), supervisorOptions(settings, events))
	result, runErr := sup.Run(ctx, target)
	close(events)
	<-drained

	if runErr != nil {
		return runErr
	}
	fields := logrus.Fields{
		"pid":    result.PrimaryPID,
		"reaped": result.Reaped,
		"swept":  result.Swept,
		"scans":  result.Scans,
	}
	if result.PrimaryStatus != nil {
		fields["status"] = result.PrimaryStatus.String()
	}
	logger.WithFields(fields).Info("supervision complete")
	return nil
}

func supervisorOptions(settings config.Settings, events chan<- supervisor.Event) supervisor.Options {
	relay := make([]os.Signal, 0, len(settings.RelaySignals))
	for _, sig := range settings.RelaySignals {
		relay = append(relay, sig)
	}
	return supervisor.Options{
		RelayInterrupt: settings.RelayInterrupt,
		RelaySignals:   relay,
		GracefulSignal: settings.GracefulSignal,
		SweepZombies:   settings.SweepZombies,
		ProcAttrs: supervisor.ProcAttrs{
			NewProcessGroup:   settings.NewProcessGroup,
			ParentDeathSignal: settings.ParentDeathSignal,
		},
		Events: events,
	}
}

// startMetrics binds the metrics endpoint before the program starts so an
// unusable address fails fast. The returned func stops the server and waits
// for it to exit.
func startMetrics(logger *logrus.Logger, settings config.Settings) (func(), error) {
	if settings.MetricsAddress == "" {
		return func() {}, nil
	}
	srv, err := metrics.NewServer(metrics.ServerConfig{
		Addr:            settings.MetricsAddress,
		ShutdownTimeout: settings.MetricsShutdownTimeout,
	})
	if err != nil {
		return nil, err
	}
	if err := srv.Listen(); err != nil {
		return nil, err
	}
	logger.WithField("addr", srv.Addr()).Info("serving metrics")

	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()
	return func() {
		cancel()
		if err := <-done; err != nil {
			logger.WithError(err).Warn("metrics server stopped with error")
		}
	}, nil
}
