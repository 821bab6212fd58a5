package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/fidelity/internal/config"
)

// Sink persists results as the batch progresses.
type Sink interface {
	// Begin prepares a fresh output location for cfg.
	Begin(cfg config.Config) error

	// WriteScenario persists one finished scenario. Goldens that could not
	// be written are returned keyed by golden name; err is reserved for
	// failures that affect the whole scenario.
	WriteScenario(result ScenarioResult) (failed map[string]error, err error)

	// Finish writes batch-level documents after the last scenario.
	Finish(batch *BatchResult) error
}

// History records runs for later inspection.
type History interface {
	RecordBatch(ctx context.Context, batch *BatchResult) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSink persists each scenario through s before the next one starts.
func WithSink(s Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithHistory records the finished batch in h.
func WithHistory(h History) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithIDGenerator overrides the run ID generator (default UUIDv7).
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// WithClock overrides time.Now for batch timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator runs every scenario of a configuration, one at a time.
type Orchestrator struct {
	runner  *Runner
	sink    Sink
	history History
	ids     IDGenerator
	now     func() time.Time
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator around runner.
func NewOrchestrator(runner *Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner: runner,
		ids:    UUIDv7Generator{},
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes cfg in order. Scenario and comparison failures are recorded
// in the returned BatchResult, never returned as an error.
//
// The returned error is reserved for conditions that stop the batch: the
// sink could not prepare or finish its output, or ctx was cancelled. In the
// latter case the scenarios finished so far are still returned and written
// through the sink's Finish, but not recorded in history.
func (o *Orchestrator) Run(ctx context.Context, cfg config.Config) (*BatchResult, error) {
	batch := &BatchResult{
		RunID:     o.ids.Generate(),
		Config:    cfg,
		Scenarios: make([]ScenarioResult, 0, len(cfg)),
		StartedAt: o.now(),
	}
	logger := o.logger.With("run_id", batch.RunID)
	logger.Info("rendering fidelity analysis", "scenarios", len(cfg))

	if o.sink != nil {
		if err := o.sink.Begin(cfg); err != nil {
			return nil, fmt.Errorf("prepare output: %w", err)
		}
	}

	for _, scenario := range cfg {
		if ctx.Err() != nil {
			break
		}

		logger.Info("scenario", "slug", scenario.Slug, "goldens", len(scenario.Goldens))
		result := o.runScenario(ctx, scenario)

		if o.sink != nil && result.Err == nil {
			o.persist(&result, logger)
		}
		batch.Scenarios = append(batch.Scenarios, result)
	}
	batch.FinishedAt = o.now()

	// An interrupted batch still gets its batch-level documents.
	var finishErr error
	if o.sink != nil {
		if err := o.sink.Finish(batch); err != nil {
			finishErr = fmt.Errorf("finish output: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		logger.Warn("batch interrupted", "completed", len(batch.Scenarios), "scenarios", len(cfg))
		return batch, errors.Join(err, finishErr)
	}
	if finishErr != nil {
		return batch, finishErr
	}
	if o.history != nil {
		if err := o.history.RecordBatch(ctx, batch); err != nil {
			// History is auxiliary; the results tree is already complete.
			logger.Error("record history failed", "error", err)
		}
	}

	passed, failed := batch.Counts()
	logger.Info("batch finished", "passed", passed, "failed", failed)
	return batch, nil
}

// persist writes result through the sink and records write failures on the
// goldens they belong to. Written siblings stay successful.
func (o *Orchestrator) persist(result *ScenarioResult, logger *slog.Logger) {
	slug := result.Scenario.Slug
	failed, err := o.sink.WriteScenario(*result)
	if err != nil {
		result.Err = &Failure{Code: CodeArtifactIO, Slug: slug, Err: &artifactIOError{Err: err}}
		logger.Error("persist failed", "slug", slug, "error", err)
		return
	}
	for i, r := range result.Results {
		werr := failed[r.Golden.Name]
		if werr == nil {
			continue
		}
		result.Results[i] = GoldenResult{
			Golden: r.Golden,
			Err:    &Failure{Code: CodeArtifactIO, Slug: slug, Golden: r.Golden.Name, Err: &artifactIOError{Err: werr}},
		}
		logger.Error("persist failed", "slug", slug, "golden", r.Golden.Name, "error", werr)
	}
}

func (o *Orchestrator) runScenario(ctx context.Context, scenario config.Scenario) ScenarioResult {
	result, err := o.runner.Run(ctx, scenario)
	if err != nil {
		return ScenarioResult{Scenario: scenario, Err: newFailure(scenario.Slug, "", err)}
	}
	return *result
}
