package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/roach88/fidelity/internal/compare"
)

// Defaults used when BrowserOptions leaves a field zero.
const (
	DefaultTimeout = 10 * time.Second
	DefaultScale   = 2
)

// DefaultReadyExpression is true once the page's <model-viewer> element
// has finished loading its model.
const DefaultReadyExpression = `(() => {
  const viewer = document.querySelector('model-viewer');
  return viewer != null && viewer.loaded === true;
})()`

// BrowserOptions configures a Browser.
type BrowserOptions struct {
	// Timeout bounds navigation plus the wait for ReadyExpression.
	Timeout time.Duration

	// Scale is the device pixel ratio. The viewport is Width/Scale by
	// Height/Scale CSS pixels, so the screenshot has the requested size.
	Scale int

	// ReadyExpression is polled until it evaluates truthy.
	ReadyExpression string

	// ExecPath overrides the Chrome binary; empty means auto-detect.
	ExecPath string

	// Headful shows the browser window.
	Headful bool

	Logger *slog.Logger
}

// Browser is a single headless Chrome session. Each capture runs in its own
// tab, closed when the capture returns. Captures must not run concurrently.
type Browser struct {
	opts BrowserOptions

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        *slog.Logger
}

// NewBrowser starts Chrome. The caller must Close the returned Browser.
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	if opts.ReadyExpression == "" {
		opts.ReadyExpression = DefaultReadyExpression
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.Headful {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
	)

	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	logger.Debug("browser started", "scale", opts.Scale, "timeout", opts.Timeout)

	return &Browser{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger,
	}, nil
}

// Capture renders req.URL in a fresh tab and screenshots the viewport.
func (b *Browser) Capture(ctx context.Context, req Request) (compare.Buffer, error) {
	scale := b.opts.Scale
	if req.Width%scale != 0 || req.Height%scale != 0 {
		return nil, fmt.Errorf("CAPTURE_FAILED: %s: %dx%d is not divisible by device scale %d", req.Slug, req.Width, req.Height, scale)
	}

	tabCtx, closeTab := chromedp.NewContext(b.browserCtx)
	defer closeTab()
	// The tab lives under the browser context, so tie it to the caller too.
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancel()

	var shot []byte
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(req.Width/scale), int64(req.Height/scale), chromedp.EmulateScale(float64(scale))),
		chromedp.Navigate(req.URL),
		chromedp.Poll(b.opts.ReadyExpression, nil, chromedp.WithPollingTimeout(b.opts.Timeout)),
		chromedp.CaptureScreenshot(&shot),
	)
	if err != nil {
		if errors.Is(err, chromedp.ErrPollingTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Slug: req.Slug, URL: req.URL, Timeout: b.opts.Timeout, Err: err}
		}
		return nil, fmt.Errorf("CAPTURE_FAILED: %s: %w", req.Slug, err)
	}

	buf, w, h, err := compare.DecodePNG(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("CAPTURE_FAILED: %s: %w", req.Slug, err)
	}
	if w != req.Width || h != req.Height {
		return nil, &DimensionError{Slug: req.Slug, Width: w, Height: h, WantW: req.Width, WantH: req.Height}
	}

	b.logger.Debug("captured", "slug", req.Slug, "url", req.URL, "width", w, "height", h)
	return buf, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (b *Browser) Close() error {
	if b.browserCancel != nil {
		b.browserCancel()
		b.browserCancel = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
	return nil
}
