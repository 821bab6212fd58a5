package compare

import (
	"errors"
	"fmt"
)

// ErrInvalidDimensions is returned when width or height is not positive.
var ErrInvalidDimensions = errors.New("invalid dimensions")

// SizeMismatchError reports candidate and golden buffers that cannot be
// compared pixel for pixel.
type SizeMismatchError struct {
	CandidateLen int
	GoldenLen    int
	Width        int
	Height       int
}

// Error implements the error interface.
func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("SIZE_MISMATCH: image sizes do not match (candidate=%d bytes, golden=%d bytes, want %dx%dx4=%d)",
		e.CandidateLen, e.GoldenLen, e.Width, e.Height, e.Width*e.Height*4)
}

// IsSizeMismatch returns true if err wraps a SizeMismatchError.
func IsSizeMismatch(err error) bool {
	var se *SizeMismatchError
	return errors.As(err, &se)
}
