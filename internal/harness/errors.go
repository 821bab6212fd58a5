package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/fidelity/internal/capture"
	"github.com/roach88/fidelity/internal/compare"
)

// FailureCode categorizes a recorded failure.
type FailureCode string

const (
	// CodeCaptureTimeout indicates the page never signalled readiness.
	CodeCaptureTimeout FailureCode = "CAPTURE_TIMEOUT"

	// CodeCaptureFailed indicates any other capture failure.
	CodeCaptureFailed FailureCode = "CAPTURE_FAILED"

	// CodeSizeMismatch indicates candidate and golden sizes disagree.
	CodeSizeMismatch FailureCode = "SIZE_MISMATCH"

	// CodeGoldenIO indicates the golden image could not be read or decoded.
	CodeGoldenIO FailureCode = "GOLDEN_IO"

	// CodeArtifactIO indicates results could not be persisted.
	CodeArtifactIO FailureCode = "ARTIFACT_IO"

	// CodeCompareFailed indicates any other comparison failure.
	CodeCompareFailed FailureCode = "COMPARE_FAILED"
)

// Failure is a scenario or comparison failure. Golden is empty for
// scenario-level failures.
type Failure struct {
	Code   FailureCode
	Slug   string
	Golden string
	Err    error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Golden != "" {
		return fmt.Sprintf("%s: scenario %q, golden %q: %v", f.Code, f.Slug, f.Golden, f.Err)
	}
	return fmt.Sprintf("%s: scenario %q: %v", f.Code, f.Slug, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// goldenIOError marks failures to read or decode a golden image.
type goldenIOError struct {
	Path string
	Err  error
}

func (e *goldenIOError) Error() string {
	return fmt.Sprintf("golden %s: %v", e.Path, e.Err)
}

func (e *goldenIOError) Unwrap() error {
	return e.Err
}

// artifactIOError marks failures to persist results.
type artifactIOError struct {
	Err error
}

func (e *artifactIOError) Error() string { return e.Err.Error() }

func (e *artifactIOError) Unwrap() error { return e.Err }

// newFailure wraps err for slug/golden, picking a code from its type.
// An err that already is a *Failure is returned as is.
func newFailure(slug, golden string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Code: classify(err), Slug: slug, Golden: golden, Err: err}
}

func classify(err error) FailureCode {
	var (
		gio *goldenIOError
		aio *artifactIOError
	)
	switch {
	case capture.IsTimeout(err):
		return CodeCaptureTimeout
	case compare.IsSizeMismatch(err):
		return CodeSizeMismatch
	case errors.As(err, &gio):
		return CodeGoldenIO
	case errors.As(err, &aio):
		return CodeArtifactIO
	default:
		return CodeCompareFailed
	}
}

// IsCaptureTimeout returns true if err is a capture timeout failure.
func IsCaptureTimeout(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code == CodeCaptureTimeout
	}
	return capture.IsTimeout(err)
}

// FailureCodeOf returns the code of a *Failure in err's chain, or "".
func FailureCodeOf(err error) FailureCode {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return ""
}
