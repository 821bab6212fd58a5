package harness

import (
	"time"

	"github.com/roach88/fidelity/internal/compare"
	"github.com/roach88/fidelity/internal/config"
)

// GoldenResult is the outcome of comparing the candidate against one golden.
// Exactly one of Comparison and Err is set.
type GoldenResult struct {
	Golden     config.Golden
	Comparison *compare.Result
	Err        error
}

// OK reports whether the comparison produced a result.
func (g GoldenResult) OK() bool {
	return g.Err == nil && g.Comparison != nil
}

// ScenarioResult holds one entry per golden, in configuration order.
// Err is set when the scenario failed as a whole (no candidate, or its
// artifacts could not be written); Results is empty if no candidate was
// captured.
type ScenarioResult struct {
	Scenario config.Scenario
	Results  []GoldenResult
	Err      error
}

// Failed reports whether the scenario or any of its comparisons failed.
func (s ScenarioResult) Failed() bool {
	if s.Err != nil {
		return true
	}
	for _, r := range s.Results {
		if !r.OK() {
			return true
		}
	}
	return false
}

// BatchResult is the outcome of an Orchestrator run.
type BatchResult struct {
	RunID      string
	Config     config.Config
	Scenarios  []ScenarioResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failures lists every recorded failure in run order.
func (b *BatchResult) Failures() []*Failure {
	var out []*Failure
	for _, s := range b.Scenarios {
		if s.Err != nil {
			out = append(out, newFailure(s.Scenario.Slug, "", s.Err))
		}
		for _, r := range s.Results {
			if r.Err != nil {
				out = append(out, newFailure(s.Scenario.Slug, r.Golden.Name, r.Err))
			}
		}
	}
	return out
}

// Counts returns the number of successful and failed comparisons. A scenario
// that failed before comparing counts one failure per golden.
func (b *BatchResult) Counts() (passed, failed int) {
	for _, s := range b.Scenarios {
		if len(s.Results) == 0 && s.Err != nil {
			failed += len(s.Scenario.Goldens)
			continue
		}
		for _, r := range s.Results {
			if r.OK() && s.Err == nil {
				passed++
			} else {
				failed++
			}
		}
	}
	return passed, failed
}
