package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/fidelity/internal/capture"
	"github.com/roach88/fidelity/internal/compare"
)

// ErrBlocked is returned by a blocking scripted capture once its context
// is done.
var ErrBlocked = errors.New("capture blocked until context done")

// Shot scripts the outcome of one scenario capture.
type Shot struct {
	Buffer compare.Buffer
	Err    error

	// Block makes the capture wait for its context to be done, simulating
	// a page that never signals readiness.
	Block bool
}

// ScriptedCapturer returns pre-arranged captures keyed by slug and records
// every request it receives.
type ScriptedCapturer struct {
	mu       sync.Mutex
	shots    map[string]Shot
	requests []capture.Request
	active   int
	maxSeen  int
}

// NewScriptedCapturer creates an empty ScriptedCapturer.
func NewScriptedCapturer() *ScriptedCapturer {
	return &ScriptedCapturer{shots: make(map[string]Shot)}
}

// On arranges the outcome for slug.
func (s *ScriptedCapturer) On(slug string, shot Shot) *ScriptedCapturer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shots[slug] = shot
	return s
}

// Capture implements capture.Capturer.
func (s *ScriptedCapturer) Capture(ctx context.Context, req capture.Request) (compare.Buffer, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	shot, ok := s.shots[req.Slug]
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if !ok {
		return nil, fmt.Errorf("no capture scripted for %q", req.Slug)
	}
	if shot.Block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", ErrBlocked, ctx.Err())
	}
	if shot.Err != nil {
		return nil, shot.Err
	}
	return append(compare.Buffer(nil), shot.Buffer...), nil
}

// Requests returns the requests received so far, in order.
func (s *ScriptedCapturer) Requests() []capture.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capture.Request(nil), s.requests...)
}

// MaxConcurrent returns the highest number of captures in flight at once.
func (s *ScriptedCapturer) MaxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxSeen
}
