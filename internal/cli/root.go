package cli

import (
	stdcontext "context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Paintersrp/reaper/internal/cliutil"
	"github.com/Paintersrp/reaper/internal/config"
	"github.com/Paintersrp/reaper/internal/supervisor"
)

// runFunc performs one supervision run with fully resolved settings.
type runFunc func(cmd *cobra.Command, settings config.Settings, target supervisor.Target) error

type rootOptions struct {
	configPath        string
	noRelay           bool
	relaySignals      []string
	gracefulSignal    string
	noSweep           bool
	newProcessGroup   bool
	parentDeathSignal string
	logLevel          string
	logFormat         string
	metricsAddr       string
	printConfig       bool
}

func NewRootCmd() *cobra.Command {
	return newRootCommand(os.LookupEnv, runSupervisor)
}

func newRootCommand(lookup func(string) (string, bool), run runFunc) *cobra.Command {
	var opts rootOptions

	root := &cobra.Command{
		Use:   "reaper [flags] <program> [args...]",
		Short: "Run a program as the child of a subreaper and reap every descendant it leaves behind",
		Long: `reaper registers itself as a child subreaper, runs the given program, and
after the program exits kills and reaps every remaining descendant before
exiting. Interrupts sent to reaper are relayed to the program as a graceful
termination signal.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, &opts, lookup)
			if err != nil {
				return err
			}
			if opts.printConfig {
				return printConfig(cmd, cfg)
			}
			settings, err := cfg.Settings()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			target, err := supervisor.ParseTarget(args)
			if err != nil {
				return err
			}
			return run(cmd, settings, target)
		},
	}

	flags := root.Flags()
	// Everything after the program name belongs to the program.
	flags.SetInterspersed(false)
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a reaper.yaml configuration file (env REAPER_CONFIG)")
	flags.BoolVar(&opts.noRelay, "no-relay", false, "Do not relay interrupts to the program")
	flags.StringSliceVar(&opts.relaySignals, "relay-signal", nil, "Signal that triggers a graceful stop of the program (repeatable)")
	flags.StringVar(&opts.gracefulSignal, "graceful-signal", "", "Signal sent to the program when an interrupt is relayed")
	flags.BoolVar(&opts.noSweep, "no-sweep", false, "Do not collect exited orphans while the program runs")
	flags.BoolVar(&opts.newProcessGroup, "new-process-group", false, "Start the program in its own process group")
	flags.StringVar(&opts.parentDeathSignal, "parent-death-signal", "", "Signal delivered to the program if reaper dies")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format (auto, text, json)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while supervising")
	flags.BoolVar(&opts.printConfig, "print-config", false, "Print the effective configuration as YAML and exit")

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// resolveConfig layers defaults, the config file, the environment, and
// explicitly set flags, in that order.
func resolveConfig(cmd *cobra.Command, opts *rootOptions, lookup func(string) (string, bool)) (*config.Config, error) {
	flags := cmd.Flags()

	path := opts.configPath
	if !flags.Changed("config") {
		if value, ok := lookup("REAPER_CONFIG"); ok {
			path = value
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv(lookup)

	if flags.Changed("no-relay") {
		enabled := !opts.noRelay
		cfg.Relay.Enabled = &enabled
	}
	if flags.Changed("relay-signal") {
		cfg.Relay.Signals = append([]string(nil), opts.relaySignals...)
	}
	if flags.Changed("graceful-signal") {
		cfg.Relay.GracefulSignal = opts.gracefulSignal
	}
	if flags.Changed("no-sweep") {
		enabled := !opts.noSweep
		cfg.Sweep.Enabled = &enabled
	}
	if flags.Changed("new-process-group") {
		cfg.Process.NewProcessGroup = opts.newProcessGroup
	}
	if flags.Changed("parent-death-signal") {
		cfg.Process.ParentDeathSignal = opts.parentDeathSignal
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Address = opts.metricsAddr
	}
	return cfg, nil
}

func printConfig(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	return enc.Close()
}

// Execute runs the CLI entrypoint.
//
// No signal context is installed here: interrupts are owned by the
// supervisor's relay once the program is running.
func Execute() {
	root := NewRootCmd()
	if err := root.ExecuteContext(stdcontext.Background()); err != nil {
		logger := cliutil.NewLogger(os.Stderr, logrus.InfoLevel, config.LogFormatAuto)
		logger.WithError(err).Error("reaper exiting")
		os.Exit(1)
	}
}
