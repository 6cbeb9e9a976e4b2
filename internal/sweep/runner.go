package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/contention-simulator/core"
	"github.com/signalsfoundry/contention-simulator/internal/logging"
	"github.com/signalsfoundry/contention-simulator/model"
	"github.com/signalsfoundry/contention-simulator/timectrl"
)

const tracerName = "github.com/signalsfoundry/contention-simulator/internal/sweep"

// Sink accepts one summary per completed population.
type Sink interface {
	Write(ctx context.Context, s model.Summary) error
}

// MetricsRecorder receives one summary per completed population.
type MetricsRecorder interface {
	RecordPopulation(s model.Summary)
}

// SourceFactory builds the random source for a population seed.
type SourceFactory func(seed uint64) core.Source

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithSourceFactory overrides how random sources are seeded.
func WithSourceFactory(f SourceFactory) Option {
	return func(r *Runner) {
		if f != nil {
			r.newSource = f
		}
	}
}

// Runner executes population sweeps. Each population gets a fresh engine,
// so no state carries over between runs.
type Runner struct {
	cfg       Config
	log       logging.Logger
	metrics   MetricsRecorder
	tracer    trace.Tracer
	newSource SourceFactory
}

// NewRunner validates cfg and returns a Runner.
func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	r := &Runner{
		cfg:    cfg,
		log:    logging.Noop(),
		tracer: otel.Tracer(tracerName),
		newSource: func(seed uint64) core.Source {
			return core.NewSource(seed)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the validated sweep configuration.
func (r *Runner) Config() Config { return r.cfg }

// Run visits every population in order and writes one summary per population
// to sink, which may be nil. Summaries are returned in ascending station
// order regardless of Workers.
func (r *Runner) Run(ctx context.Context, sink Sink) ([]model.Summary, error) {
	sizes := r.cfg.Populations()

	ctx, span := r.tracer.Start(ctx, "sweep", trace.WithAttributes(
		attribute.Int("sweep.min_stations", r.cfg.MinStations),
		attribute.Int("sweep.max_stations", r.cfg.MaxStations),
		attribute.Int64("sweep.slots_per_run", r.cfg.SlotsPerRun),
		attribute.Int("sweep.workers", r.cfg.Workers),
	))
	defer span.End()

	r.log.Info(ctx, "starting sweep",
		logging.Int("min_stations", r.cfg.MinStations),
		logging.Int("max_stations", r.cfg.MaxStations),
		logging.Int64("slots_per_run", r.cfg.SlotsPerRun),
		logging.Int("workers", r.cfg.Workers),
	)

	var (
		summaries []model.Summary
		err       error
	)
	if r.cfg.Workers <= 1 {
		summaries, err = r.runSequential(ctx, sizes, sink)
	} else {
		summaries, err = r.runParallel(ctx, sizes, sink)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return summaries, err
	}

	r.log.Info(ctx, "sweep complete", logging.Int("populations", len(summaries)))
	return summaries, nil
}

func (r *Runner) runSequential(ctx context.Context, sizes []int, sink Sink) ([]model.Summary, error) {
	summaries := make([]model.Summary, 0, len(sizes))
	for _, n := range sizes {
		s, err := r.RunPopulation(ctx, n)
		if err != nil {
			return summaries, err
		}
		if err := r.emit(ctx, sink, s); err != nil {
			return summaries, err
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (r *Runner) runParallel(ctx context.Context, sizes []int, sink Sink) ([]model.Summary, error) {
	results := make([]model.Summary, len(sizes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, n := range sizes {
		g.Go(func() error {
			s, err := r.RunPopulation(gctx, n)
			if err != nil {
				return err
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, s := range results {
		if err := r.emit(ctx, sink, s); err != nil {
			return results[:i], err
		}
	}
	return results, nil
}

func (r *Runner) emit(ctx context.Context, sink Sink, s model.Summary) error {
	if r.metrics != nil {
		r.metrics.RecordPopulation(s)
	}
	if sink == nil {
		return nil
	}
	if err := sink.Write(ctx, s); err != nil {
		return fmt.Errorf("write summary for %d stations: %w", s.StationCount, err)
	}
	return nil
}

// RunPopulation simulates SlotsPerRun slots with n stations and summarises
// the result. Re-running with the same configuration reproduces the same
// summary apart from RunID and Elapsed.
func (r *Runner) RunPopulation(ctx context.Context, n int) (model.Summary, error) {
	if n < 1 {
		return model.Summary{}, fmt.Errorf("%w: got %d", core.ErrNoStations, n)
	}

	runID := logging.NewRunID()
	ctx, log := logging.WithRunLogger(logging.ContextWithRunID(ctx, runID), r.log)
	log = log.With(logging.Int("stations", n))
	ctx = logging.ContextWithLogger(ctx, log)

	ctx, span := r.tracer.Start(ctx, "population_run", trace.WithAttributes(
		attribute.Int("stations", n),
		attribute.String("run_id", runID),
	))
	defer span.End()

	s, err := r.simulate(ctx, n, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(ctx, "population run failed", logging.Error(err))
		return model.Summary{}, err
	}

	span.SetAttributes(
		attribute.Int64("collisions", s.Collisions),
		attribute.Int64("successes", s.Successes),
		attribute.Float64("occupied_fraction", s.OccupiedFraction),
		attribute.Float64("collision_probability", s.CollisionProbability),
		attribute.Float64("fairness_variance", s.FairnessVariance),
	)

	log.Info(ctx, "population complete",
		logging.Int64("collisions", s.Collisions),
		logging.Int64("successes", s.Successes),
		logging.Float64("occupied_pct", s.OccupiedFraction*100),
		logging.Float64("collision_probability", s.CollisionProbability),
		logging.Float64("fairness_variance", s.FairnessVariance),
		logging.String("airtime", r.cfg.Engine.Timing.Airtime(s.TotalSlots).String()),
		logging.String("elapsed", s.Elapsed.String()),
	)
	for i, sent := range s.StationSends {
		log.Debug(ctx, "station share",
			logging.Int("station", i),
			logging.Int("sent", sent),
			logging.Float64("share_pct", s.ShareOf(i)),
		)
	}
	return s, nil
}

func (r *Runner) simulate(ctx context.Context, n int, runID string) (model.Summary, error) {
	seed := r.cfg.SeedFor(n)
	eng, err := core.NewEngine(r.cfg.Engine, n, r.newSource(seed))
	if err != nil {
		return model.Summary{}, fmt.Errorf("build engine for %d stations: %w", n, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		counters Counters
		invErr   error
	)
	clock := timectrl.NewSlotController(r.cfg.Engine.Timing.SlotDuration)
	clock.AddListener(func(int64) {
		if invErr != nil {
			return
		}
		counters.Observe(eng.Step())
		if r.cfg.CheckInvariants {
			if invErr = eng.CheckInvariants(); invErr != nil {
				invErr = fmt.Errorf("slot %d: %w", eng.Slot()-1, invErr)
				cancel()
			}
		}
	})

	start := time.Now()
	_, runErr := clock.Run(runCtx, r.cfg.SlotsPerRun)
	elapsed := time.Since(start)
	if invErr != nil {
		return model.Summary{}, invErr
	}
	if runErr != nil {
		return model.Summary{}, runErr
	}

	sends := eng.StationSends()
	var total int64
	for _, sent := range sends {
		total += int64(sent)
	}
	if total != counters.Successes {
		return model.Summary{}, fmt.Errorf("%w: stations report %d, driver counted %d",
			ErrAccounting, total, counters.Successes)
	}

	return model.Summary{
		RunID:                runID,
		StationCount:         n,
		Seed:                 seed,
		OccupiedFraction:     Throughput(counters.Occupied, counters.Slots),
		CollisionProbability: CollisionProbability(counters.Collisions, counters.Successes),
		FairnessVariance:     FairnessVariance(sends, counters.Successes),
		TotalSlots:           counters.Slots,
		OccupiedSlots:        counters.Occupied,
		Collisions:           counters.Collisions,
		Successes:            counters.Successes,
		BlockedRequests:      counters.Blocked,
		StationSends:         sends,
		Elapsed:              elapsed,
	}, nil
}

// IsCancelled reports whether err stems from context cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
