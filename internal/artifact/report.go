package artifact

import (
	"errors"
	"path/filepath"

	"github.com/roach88/fidelity/internal/compare"
	"github.com/roach88/fidelity/internal/config"
	"github.com/roach88/fidelity/internal/harness"
	"github.com/roach88/fidelity/internal/report"
)

// Status values in report.json.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Report is the report.json document. It carries no timestamps or run IDs
// so identical runs produce identical reports.
type Report struct {
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

// ScenarioReport summarizes one scenario.
type ScenarioReport struct {
	Slug    string         `json:"slug"`
	Status  string         `json:"status"`
	Error   *ErrorReport   `json:"error,omitempty"`
	Goldens []GoldenReport `json:"goldens"`
}

// GoldenReport summarizes one comparison. Path is relative to the results
// root and only set when the comparison was written.
type GoldenReport struct {
	Name     string            `json:"name"`
	Status   string            `json:"status"`
	Path     string            `json:"path,omitempty"`
	Error    *ErrorReport      `json:"error,omitempty"`
	Analysis *compare.Analysis `json:"analysis,omitempty"`
}

// ErrorReport is a recorded failure.
type ErrorReport struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewReport summarizes batch. A scenario that failed before comparing lists
// its goldens as failed with the scenario error.
func NewReport(batch *harness.BatchResult) Report {
	passed, failed := batch.Counts()
	r := Report{
		Passed:    passed,
		Failed:    failed,
		Scenarios: make([]ScenarioReport, 0, len(batch.Scenarios)),
	}
	for _, s := range batch.Scenarios {
		r.Scenarios = append(r.Scenarios, scenarioReport(s))
	}
	return r
}

func scenarioReport(s harness.ScenarioResult) ScenarioReport {
	sr := ScenarioReport{
		Slug:    s.Scenario.Slug,
		Status:  StatusOK,
		Error:   errorReport(s.Err),
		Goldens: make([]GoldenReport, 0, len(s.Scenario.Goldens)),
	}
	if s.Failed() {
		sr.Status = StatusFailed
	}

	if len(s.Results) == 0 {
		for _, g := range s.Scenario.Goldens {
			sr.Goldens = append(sr.Goldens, GoldenReport{Name: g.Name, Status: StatusFailed})
		}
		return sr
	}

	for _, res := range s.Results {
		gr := GoldenReport{Name: res.Golden.Name, Status: StatusFailed, Error: errorReport(res.Err)}
		if res.OK() {
			a := res.Comparison.Analysis
			gr.Analysis = &a
			if s.Err == nil {
				gr.Status = StatusOK
				gr.Path = s.Scenario.Slug + "/" + res.Golden.Name
			}
		}
		sr.Goldens = append(sr.Goldens, gr)
	}
	return sr
}

func errorReport(err error) *ErrorReport {
	if err == nil {
		return nil
	}
	var f *harness.Failure
	if errors.As(err, &f) {
		return &ErrorReport{Code: string(f.Code), Message: f.Err.Error()}
	}
	return &ErrorReport{Code: string(harness.CodeCompareFailed), Message: err.Error()}
}

// ReadConfig loads the configuration echoed into a results tree.
func ReadConfig(root string) (config.Config, error) {
	return config.Load(filepath.Join(root, report.ConfigFile))
}
