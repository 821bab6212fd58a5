package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fidelity/internal/artifact"
	"github.com/roach88/fidelity/internal/capture"
	"github.com/roach88/fidelity/internal/config"
	"github.com/roach88/fidelity/internal/harness"
	"github.com/roach88/fidelity/internal/serve"
	"github.com/roach88/fidelity/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Output        string
	BaseURL       string
	Pages         string
	Goldens       string
	Timeout       time.Duration
	Scale         int
	Workers       int
	History       string
	ContactSheets bool
	RescoreFrom   string
	Chrome        string
	Headful       bool

	// Capturer replaces the browser (for testing). Pages are still served
	// when no base URL is given.
	Capturer capture.Capturer

	// IDGenerator allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator harness.IDGenerator
}

// RunSummary is the payload of a finished run.
type RunSummary struct {
	RunID  string          `json:"runId"`
	Output string          `json:"output"`
	Report artifact.Report `json:"report"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Capture every scenario and compare it against its goldens",
		Long: `Capture every scenario of a fidelity configuration and compare the
screenshot against each of the scenario's goldens.

Scenario pages are loaded from <base-url>/<slug>/. Without --base-url the
--pages directory (default: the config directory) is served on a free
localhost port. Goldens are read from <goldens>/<slug>/<file>.

The output directory is replaced on every run.

Exit codes:
  0 - Every comparison produced a result
  1 - A scenario or comparison failed
  2 - Command error (invalid config, output not writable, etc.)

Examples:
  fidelity run ./test/fidelity/config.json
  fidelity run config.json --base-url http://localhost:9030/test/fidelity/
  fidelity run config.json --rescore-from ./old-results --output ./results
  fidelity run config.json --history ./fidelity.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFidelity(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "results directory (default: <config dir>/results)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "URL prefix of scenario pages (default: serve --pages)")
	cmd.Flags().StringVar(&opts.Pages, "pages", "", "directory served when no --base-url is given (default: config dir)")
	cmd.Flags().StringVar(&opts.Goldens, "goldens", "", "root of <slug>/<file> golden images (default: config dir)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", capture.DefaultTimeout, "maximum wait for a scenario to become ready")
	cmd.Flags().IntVar(&opts.Scale, "scale", capture.DefaultScale, "device scale factor")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "rows compared in parallel (default: GOMAXPROCS)")
	cmd.Flags().StringVar(&opts.History, "history", "", "record the run in this SQLite database")
	cmd.Flags().BoolVar(&opts.ContactSheets, "contact-sheets", false, "write sheet.png next to each comparison")
	cmd.Flags().StringVar(&opts.RescoreFrom, "rescore-from", "", "reuse candidate.png files of an earlier results tree instead of a browser")
	cmd.Flags().StringVar(&opts.Chrome, "chrome", "", "Chrome executable (default: auto-detect)")
	cmd.Flags().BoolVar(&opts.Headful, "headful", false, "show the browser window")

	return cmd
}

// runPaths are the resolved locations of one run.
type runPaths struct {
	config  string
	output  string
	goldens string
	pages   string
}

func resolvePaths(opts *RunOptions, configPath string) (runPaths, error) {
	dir := filepath.Dir(configPath)
	p := runPaths{
		config:  configPath,
		output:  opts.Output,
		goldens: opts.Goldens,
		pages:   opts.Pages,
	}
	if p.output == "" {
		p.output = filepath.Join(dir, "results")
	}
	if p.goldens == "" {
		p.goldens = dir
	}
	if p.pages == "" {
		p.pages = dir
	}

	// The output directory is wiped first; it must not hold any input.
	inputs := map[string]string{"config": p.config, "goldens": p.goldens}
	if opts.BaseURL == "" && opts.RescoreFrom == "" {
		inputs["pages"] = p.pages
	}
	if opts.RescoreFrom != "" {
		inputs["rescore-from"] = opts.RescoreFrom
	}
	for name, in := range inputs {
		inside, err := within(p.output, in)
		if err != nil {
			return runPaths{}, err
		}
		if inside {
			return runPaths{}, fmt.Errorf("output %s would overwrite %s %s", p.output, name, in)
		}
	}
	return p, nil
}

// within reports whether path is parent or lies beneath it.
func within(parent, path string) (bool, error) {
	absParent, err := filepath.Abs(parent)
	if err != nil {
		return false, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(absParent, absPath)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}

func runFidelity(opts *RunOptions, configPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		code := config.CodeInvalid
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		if outErr := formatter.Error(code, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "load configuration", err)
	}
	logger.Info("configuration loaded", "path", configPath, "scenarios", len(cfg))

	paths, err := resolvePaths(opts, configPath)
	if err != nil {
		if outErr := formatter.Error(ErrCodeGeneric, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "invalid paths", err)
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	session, err := openSession(ctx, opts, paths, logger)
	if err != nil {
		if outErr := formatter.Error(ErrCodeGeneric, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "start capture", err)
	}
	defer session.Close()

	runner := harness.NewRunner(session.capturer, harness.RunnerOptions{
		BaseURL:        session.baseURL,
		GoldensRoot:    paths.goldens,
		CaptureTimeout: opts.Timeout,
		Workers:        opts.Workers,
		Logger:         logger,
	})
	orchOpts := []harness.Option{
		harness.WithSink(artifact.NewWriter(paths.output, artifact.Options{
			ContactSheets: opts.ContactSheets,
			Logger:        logger,
		})),
		harness.WithLogger(logger),
	}
	if opts.IDGenerator != nil {
		orchOpts = append(orchOpts, harness.WithIDGenerator(opts.IDGenerator))
	}
	if opts.History != "" {
		st, err := store.Open(opts.History)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		orchOpts = append(orchOpts, harness.WithHistory(st))
	}

	batch, err := harness.NewOrchestrator(runner, orchOpts...).Run(ctx, cfg)
	if err != nil {
		if batch == nil || !errors.Is(err, context.Canceled) {
			if outErr := formatter.Error(ErrCodeGeneric, err.Error(), nil); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitCommandError, "run failed", err)
		}
		logger.Warn("run interrupted", "completed", len(batch.Scenarios), "scenarios", len(cfg))
		return WrapExitError(ExitFailure, "run interrupted", err)
	}

	return outputRun(formatter, paths.output, batch)
}

// session owns the capture side of a run: the page server and the browser.
type session struct {
	capturer capture.Capturer
	baseURL  string
	closers  []func()
}

func openSession(ctx context.Context, opts *RunOptions, paths runPaths, logger *slog.Logger) (*session, error) {
	s := &session{baseURL: opts.BaseURL}

	if opts.RescoreFrom != "" {
		logger.Info("rescoring saved candidates", "dir", opts.RescoreFrom)
		s.capturer = capture.Dir{Root: opts.RescoreFrom}
		return s, nil
	}

	if s.baseURL == "" {
		srv, err := serve.Start("127.0.0.1:0", serve.Pages(paths.pages), logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Close(shutdownCtx); err != nil {
				logger.Error("stop page server", "error", err)
			}
		})
		s.baseURL = srv.URL()
		logger.Info("serving scenario pages", "dir", paths.pages, "url", s.baseURL)
	}

	if opts.Capturer != nil {
		s.capturer = opts.Capturer
		return s, nil
	}

	browser, err := capture.NewBrowser(ctx, capture.BrowserOptions{
		Timeout:  opts.Timeout,
		Scale:    opts.Scale,
		ExecPath: opts.Chrome,
		Headful:  opts.Headful,
		Logger:   logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, func() { browser.Close() })
	s.capturer = browser
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func outputRun(formatter *OutputFormatter, output string, batch *harness.BatchResult) error {
	summary := RunSummary{
		RunID:  batch.RunID,
		Output: output,
		Report: artifact.NewReport(batch),
	}
	failed := summary.Report.Failed

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: summary}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeRunFailed,
				Message: fmt.Sprintf("%d comparison(s) failed", failed),
			}
		}
		if err := writeJSON(formatter.Writer, resp); err != nil {
			return err
		}
	} else {
		writeRunText(formatter, summary)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d comparison(s) failed", failed))
	}
	return nil
}

func writeRunText(f *OutputFormatter, summary RunSummary) {
	w := f.Writer
	for _, s := range summary.Report.Scenarios {
		if s.Error != nil && !hasAnalysis(s) {
			fmt.Fprintf(w, "%s %s: %s\n", f.Mark(false), s.Slug, s.Error.Message)
			continue
		}
		fmt.Fprintf(w, "Scenario: %s\n", s.Slug)
		for _, g := range s.Goldens {
			if g.Analysis == nil {
				msg := "failed"
				if g.Error != nil {
					msg = g.Error.Message
				}
				fmt.Fprintf(w, "  %s %s: %s\n", f.Mark(false), g.Name, msg)
				continue
			}
			a := g.Analysis
			fmt.Fprintf(w, "  %s %s: matching %s, mean distance %s (non-matching %s)\n",
				f.Mark(g.Status == artifact.StatusOK), g.Name,
				percent(a.Matching), percent(a.AverageDistance), percent(a.NotMatchingAverageDistance))
		}
		if s.Error != nil {
			fmt.Fprintf(w, "  %s %s\n", f.Mark(false), s.Error.Message)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Results recorded to %s\n", summary.Output)
	fmt.Fprintf(w, "Summary: %d passed, %d failed\n", summary.Report.Passed, summary.Report.Failed)
}

func hasAnalysis(s artifact.ScenarioReport) bool {
	for _, g := range s.Goldens {
		if g.Analysis != nil {
			return true
		}
	}
	return false
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
