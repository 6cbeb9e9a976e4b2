package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/contention-simulator/internal/config"
	"github.com/signalsfoundry/contention-simulator/internal/logging"
	"github.com/signalsfoundry/contention-simulator/internal/observability"
	"github.com/signalsfoundry/contention-simulator/internal/plot"
	"github.com/signalsfoundry/contention-simulator/internal/results"
	"github.com/signalsfoundry/contention-simulator/internal/sweep"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the contention engine over a range of station counts",
		Long: `Run one population per station count in [--min, --max], each for
--slots slots, and write one record per population to the configured
sinks. The text sink keeps the four-column format:

  stations occupied_fraction collision_probability fairness_variance`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applySweepFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSweep(ctx, cmd, cfg)
		},
	}

	cmd.Flags().Int("min", 0, "Smallest station count (inclusive)")
	cmd.Flags().Int("max", 0, "Largest station count (inclusive)")
	cmd.Flags().Int64("slots", 0, "Slots simulated per population")
	cmd.Flags().Uint64("seed", 0, "Base seed; population n uses seed+n")
	cmd.Flags().Int("workers", 0, "Populations simulated concurrently")
	cmd.Flags().Bool("check-invariants", false, "Verify engine invariants after every slot")
	cmd.Flags().String("output", "", "Text results file")
	cmd.Flags().String("sqlite", "", "SQLite results database")
	cmd.Flags().String("jsonl", "", "JSON-lines results file")
	cmd.Flags().String("gnuplot-script", "", "Write a gnuplot script for the text results")
	cmd.Flags().Bool("run-gnuplot", false, "Run gnuplot on the script after the sweep")
	cmd.Flags().String("xplot", "", "Write an xplot file of the three series")
	cmd.Flags().String("metrics-addr", "", "HTTP address for Prometheus /metrics")
	cmd.Flags().String("metrics-textfile", "", "Write final metrics in text exposition format")
	cmd.Flags().Bool("trace", false, "Enable OpenTelemetry tracing")
	cmd.Flags().String("trace-exporter", "", "Tracing exporter: stdout or otlp")
	return cmd
}

// applySweepFlags copies explicitly set flags over the loaded configuration.
func applySweepFlags(cmd *cobra.Command, cfg *config.SimConfig) {
	f := cmd.Flags()
	if f.Changed("min") {
		cfg.Sweep.MinStations, _ = f.GetInt("min")
	}
	if f.Changed("max") {
		cfg.Sweep.MaxStations, _ = f.GetInt("max")
	}
	if f.Changed("slots") {
		cfg.Sweep.Slots, _ = f.GetInt64("slots")
	}
	if f.Changed("seed") {
		cfg.Sweep.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("workers") {
		cfg.Sweep.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("check-invariants") {
		cfg.Sweep.CheckInvariants, _ = f.GetBool("check-invariants")
	}
	if f.Changed("output") {
		cfg.Output.TextPath, _ = f.GetString("output")
	}
	if f.Changed("sqlite") {
		cfg.Output.SQLitePath, _ = f.GetString("sqlite")
	}
	if f.Changed("jsonl") {
		cfg.Output.JSONLPath, _ = f.GetString("jsonl")
	}
	if f.Changed("gnuplot-script") {
		cfg.Output.GnuplotScript, _ = f.GetString("gnuplot-script")
	}
	if f.Changed("run-gnuplot") {
		cfg.Output.RunGnuplot, _ = f.GetBool("run-gnuplot")
	}
	if f.Changed("xplot") {
		cfg.Output.XplotPath, _ = f.GetString("xplot")
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.ListenAddr, _ = f.GetString("metrics-addr")
	}
	if f.Changed("metrics-textfile") {
		cfg.Metrics.TextfilePath, _ = f.GetString("metrics-textfile")
	}
	if f.Changed("trace") {
		cfg.Tracing.Enabled, _ = f.GetBool("trace")
	}
	if f.Changed("trace-exporter") {
		cfg.Tracing.Exporter, _ = f.GetString("trace-exporter")
	}
}

func runSweep(ctx context.Context, cmd *cobra.Command, cfg *config.SimConfig) (err error) {
	log := newLogger(cmd, cfg)
	sweepID := logging.NewRunID()
	log = log.With(logging.String("sweep_id", sweepID))
	ctx = logging.ContextWithLogger(ctx, log)

	cfg.Tracing.Writer = cmd.OutOrStdout()
	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewSweepCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if metricsSrv := serveMetrics(cfg.Metrics.ListenAddr, collector, log); metricsSrv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	sinks, err := openSinks(ctx, cfg, sweepID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sinks.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close sinks: %w", cerr))
		}
	}()

	runner, err := sweep.NewRunner(cfg.SweepConfig(),
		sweep.WithLogger(log),
		sweep.WithMetrics(collector),
		sweep.WithTracer(observability.Tracer()),
	)
	if err != nil {
		return err
	}

	summaries, err := runner.Run(ctx, sinks)
	if err != nil {
		if sweep.IsCancelled(err) {
			log.Warn(ctx, "sweep interrupted", logging.Int("completed", len(summaries)))
		}
		return err
	}

	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
	}

	return renderPlot(ctx, cfg, log)
}

// openSinks builds the enabled result sinks. Sinks opened before a failure
// are closed.
func openSinks(ctx context.Context, cfg *config.SimConfig, sweepID string) (results.Multi, error) {
	var sinks results.Multi
	fail := func(err error) (results.Multi, error) {
		return nil, errors.Join(err, sinks.Close())
	}

	if path := cfg.Output.TextPath; path != "" {
		s, err := results.CreateTextFile(path)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if path := cfg.Output.SQLitePath; path != "" {
		s, err := results.OpenSQLite(ctx, path, sweepID, fmt.Sprintf("stations %d..%d, %d slots",
			cfg.Sweep.MinStations, cfg.Sweep.MaxStations, cfg.Sweep.Slots))
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if path := cfg.Output.JSONLPath; path != "" {
		s, err := results.CreateJSONLinesFile(path)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if path := cfg.Output.XplotPath; path != "" {
		p := plot.NewXplot()
		if err := p.Open(path); err != nil {
			return fail(err)
		}
		sinks = append(sinks, p)
	}
	return sinks, nil
}

func renderPlot(ctx context.Context, cfg *config.SimConfig, log logging.Logger) error {
	script := cfg.Output.GnuplotScript
	if script == "" || cfg.Output.TextPath == "" {
		return nil
	}
	if err := plot.WriteScript(script, plot.Script{DataPath: cfg.Output.TextPath, Pause: cfg.Output.RunGnuplot}); err != nil {
		return err
	}
	log.Info(ctx, "wrote gnuplot script", logging.String("path", script))

	if !cfg.Output.RunGnuplot {
		return nil
	}
	err := plot.Runner{}.RunGnuplot(ctx, script)
	if errors.Is(err, plot.ErrGnuplotNotFound) {
		return nil
	}
	return err
}

func serveMetrics(addr string, collector *observability.SweepCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Error(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
