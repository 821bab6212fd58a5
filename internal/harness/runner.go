package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/roach88/fidelity/internal/capture"
	"github.com/roach88/fidelity/internal/compare"
	"github.com/roach88/fidelity/internal/config"
)

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// BaseURL is the prefix of scenario pages; a scenario is served at
	// BaseURL + slug + "/".
	BaseURL string

	// GoldensRoot is the directory holding <slug>/<golden file>.
	GoldensRoot string

	// CaptureTimeout bounds each capture. Zero leaves the capturer unbounded.
	CaptureTimeout time.Duration

	// Workers bounds the rows compared in parallel; see compare.Comparator.
	Workers int

	Logger *slog.Logger
}

// Runner runs a single scenario.
type Runner struct {
	capturer    capture.Capturer
	comparator  *compare.Comparator
	baseURL     string
	goldensRoot string
	logger      *slog.Logger
}

// NewRunner creates a Runner capturing through c.
func NewRunner(c capture.Capturer, opts RunnerOptions) *Runner {
	if opts.CaptureTimeout > 0 {
		c = capture.WithTimeout(c, opts.CaptureTimeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		capturer:    c,
		comparator:  &compare.Comparator{Workers: opts.Workers},
		baseURL:     opts.BaseURL,
		goldensRoot: opts.GoldensRoot,
		logger:      logger,
	}
}

// ScenarioURL returns the page URL of slug.
func (r *Runner) ScenarioURL(slug string) (string, error) {
	if r.baseURL == "" {
		return "", nil
	}
	u, err := url.JoinPath(r.baseURL, slug)
	if err != nil {
		return "", fmt.Errorf("scenario url: %w", err)
	}
	return u + "/", nil
}

// Run captures the scenario once and compares it against every golden.
//
// A capture failure returns a *Failure and no result. Per-golden failures
// are recorded in the returned result and do not stop the other goldens.
func (r *Runner) Run(ctx context.Context, scenario config.Scenario) (*ScenarioResult, error) {
	slug := scenario.Slug
	dims := scenario.Dimensions

	pageURL, err := r.ScenarioURL(slug)
	if err != nil {
		return nil, &Failure{Code: CodeCaptureFailed, Slug: slug, Err: err}
	}

	r.logger.Info("capturing scenario", "slug", slug, "url", pageURL, "dimensions", dims.String())
	candidate, err := r.capturer.Capture(ctx, capture.Request{
		Slug:   slug,
		URL:    pageURL,
		Width:  dims.Width,
		Height: dims.Height,
	})
	if err != nil {
		code := CodeCaptureFailed
		if capture.IsTimeout(err) {
			code = CodeCaptureTimeout
		}
		r.logger.Error("capture failed", "slug", slug, "code", code, "error", err)
		return nil, &Failure{Code: code, Slug: slug, Err: err}
	}

	result := &ScenarioResult{
		Scenario: scenario,
		Results:  make([]GoldenResult, 0, len(scenario.Goldens)),
	}
	for _, golden := range scenario.Goldens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Results = append(result.Results, r.compareGolden(candidate, scenario, golden))
	}
	return result, nil
}

func (r *Runner) compareGolden(candidate compare.Buffer, scenario config.Scenario, golden config.Golden) GoldenResult {
	slug := scenario.Slug
	dims := scenario.Dimensions
	path := GoldenPath(r.goldensRoot, slug, golden)

	fail := func(err error) GoldenResult {
		f := newFailure(slug, golden.Name, err)
		r.logger.Error("comparison failed", "slug", slug, "golden", golden.Name, "code", f.Code, "error", err)
		return GoldenResult{Golden: golden, Err: f}
	}

	reference, w, h, err := LoadGolden(path)
	if err != nil {
		return fail(err)
	}
	if err := checkGoldenSize(path, candidate, reference, w, h, dims); err != nil {
		return fail(err)
	}

	cmp, err := r.comparator.Compare(candidate, reference, dims.Width, dims.Height)
	if err != nil {
		return fail(err)
	}

	a := cmp.Analysis
	r.logger.Info("compared",
		"slug", slug,
		"golden", golden.Name,
		"matching", a.Matching,
		"average_distance", a.AverageDistance,
		"not_matching_average_distance", a.NotMatchingAverageDistance,
	)
	return GoldenResult{Golden: golden, Comparison: cmp}
}
