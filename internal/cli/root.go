package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/sluice/internal/config"
	"github.com/roach88/sluice/internal/ir"
	"github.com/roach88/sluice/internal/metrics"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// MetricsFile, when set, receives the command's metrics in the
	// Prometheus text format after it completes.
	MetricsFile string

	// Logger is installed by the root command before any subcommand runs.
	Logger *slog.Logger

	env      *environment
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sluice CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultEnvironment())
}

func newRootCommand(env *environment) *cobra.Command {
	opts := &RootOptions{env: env}

	cmd := &cobra.Command{
		Use:     "sluice",
		Short:   "sluice - sharding, encryption and CDC positions",
		Long:    "Route statements across shards, rewrite encrypted columns and track replication positions for online migrations.",
		Version: ir.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.Logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.writeMetrics()
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (yaml, json or toml)")
	pf.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file on success")
	pf.String(config.KeyRules, "", "rule file (.yaml or .cue)")
	pf.String(config.KeyStore, "", "checkpoint store path")
	pf.String("dsn", "", "PostgreSQL connection string")
	pf.String("driver", "", "PostgreSQL driver (pgx|postgres)")
	pf.String(config.KeySlotPrefix, "", "replication slot name prefix")
	pf.Int(config.KeyConcurrency, 0, "concurrent source calls")

	cmd.AddCommand(NewAlgorithmsCommand(opts))
	cmd.AddCommand(NewRouteCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewEncryptCommand(opts))
	cmd.AddCommand(NewDecryptCommand(opts))
	cmd.AddCommand(NewCDCCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// newLogger writes text logs to w; debug records only when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// logger returns the installed logger, or one that discards everything when
// a subcommand runs without the root command.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// instruments returns the metrics shared by every component a command
// builds, registered once per command run.
func (o *RootOptions) instruments() *metrics.Metrics {
	if o.metrics == nil {
		o.registry = prometheus.NewRegistry()
		o.metrics = metrics.New(o.registry)
	}
	return o.metrics
}

// writeMetrics dumps the gathered metrics to --metrics-file. Commands that
// built no instrumented component write an empty file.
func (o *RootOptions) writeMetrics() error {
	if o.MetricsFile == "" {
		return nil
	}
	o.instruments()
	if err := prometheus.WriteToTextfile(o.MetricsFile, o.registry); err != nil {
		return WrapExitError(ExitCommandError, "failed to write metrics", err)
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
