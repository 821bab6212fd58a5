// Package capture produces candidate screenshots.
//
// A Capturer renders one scenario and returns its pixels. Browser drives a
// headless Chrome through chromedp; Dir re-reads candidates persisted by an
// earlier run. WithTimeout bounds any Capturer and turns an expired wait
// into a *TimeoutError.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/fidelity/internal/compare"
)

// Request describes one capture.
type Request struct {
	// Slug identifies the scenario being captured.
	Slug string

	// URL is the page that renders the scenario.
	URL string

	// Width and Height are the pixel dimensions the returned buffer must have.
	Width  int
	Height int
}

// Capturer renders a scenario and returns a buffer of exactly
// req.Width x req.Height pixels.
type Capturer interface {
	Capture(ctx context.Context, req Request) (compare.Buffer, error)
}

// Func adapts a function to the Capturer interface.
type Func func(ctx context.Context, req Request) (compare.Buffer, error)

// Capture implements Capturer.
func (f Func) Capture(ctx context.Context, req Request) (compare.Buffer, error) {
	return f(ctx, req)
}

// TimeoutError reports a page that did not signal readiness in time.
type TimeoutError struct {
	Slug    string
	URL     string
	Timeout time.Duration
	Err     error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("CAPTURE_TIMEOUT: %s not ready after %s", e.URL, e.Timeout)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if err wraps a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// DimensionError reports a capture whose size differs from the request.
type DimensionError struct {
	Slug          string
	Width, Height int
	WantW, WantH  int
}

// Error implements the error interface.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("CAPTURE_FAILED: %s captured %dx%d, want %dx%d", e.Slug, e.Width, e.Height, e.WantW, e.WantH)
}

// WithTimeout bounds every capture made through c. A capture still running
// when the timeout expires has its context cancelled, and the failure is
// reported as a *TimeoutError.
func WithTimeout(c Capturer, timeout time.Duration) Capturer {
	return Func(func(ctx context.Context, req Request) (compare.Buffer, error) {
		tctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		buf, err := c.Capture(tctx, req)
		if err == nil {
			return buf, nil
		}
		if IsTimeout(err) {
			return nil, err
		}
		// Only our own deadline counts as a timeout; a cancelled parent is
		// passed through unchanged.
		if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Slug: req.Slug, URL: req.URL, Timeout: timeout, Err: err}
		}
		return nil, err
	})
}
