package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roach88/fidelity/internal/compare"
	"github.com/roach88/fidelity/internal/config"
	"github.com/roach88/fidelity/internal/harness"
)

var epoch = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func testConfig() config.Config {
	dims := config.Dimensions{Width: 1, Height: 1}
	return config.Config{
		{Slug: "helmet", Goldens: []config.Golden{
			{Name: "filament", File: "filament.png"},
			{Name: "three", File: "three.png"},
		}, Dimensions: dims},
		{Slug: "timeout", Goldens: []config.Golden{{Name: "filament", File: "filament.png"}}, Dimensions: dims},
	}
}

func pixel(r, g, b uint8) compare.Buffer {
	return compare.Buffer{r, g, b, 255}
}

// testBatch builds a batch with one passing comparison, one missing golden
// and one capture timeout.
func testBatch(t *testing.T, id string, started time.Time, candidate compare.Buffer) *harness.BatchResult {
	t.Helper()
	cfg := testConfig()
	cmp, err := compare.Compare(candidate, pixel(255, 0, 0), 1, 1)
	if err != nil {
		t.Fatalf("Compare() failed: %v", err)
	}
	return &harness.BatchResult{
		RunID:  id,
		Config: cfg,
		Scenarios: []harness.ScenarioResult{
			{
				Scenario: cfg[0],
				Results: []harness.GoldenResult{
					{Golden: cfg[0].Goldens[0], Comparison: cmp},
					{Golden: cfg[0].Goldens[1], Err: &harness.Failure{
						Code: harness.CodeGoldenIO, Slug: "helmet", Golden: "three", Err: errors.New("no such file"),
					}},
				},
			},
			{
				Scenario: cfg[1],
				Err: &harness.Failure{
					Code: harness.CodeCaptureTimeout, Slug: "timeout", Err: errors.New("not ready after 10s"),
				},
			},
		},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}
}

func TestRecordBatch_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	batch := testBatch(t, "run-0001", epoch, pixel(255, 0, 0))

	if err := s.RecordBatch(ctx, batch); err != nil {
		t.Fatalf("RecordBatch() failed: %v", err)
	}

	run, err := s.GetRun(ctx, "run-0001")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	hash, _ := batch.Config.Hash()
	if run.ConfigHash != hash {
		t.Errorf("ConfigHash = %q, want %q", run.ConfigHash, hash)
	}
	if !run.StartedAt.Equal(epoch) || !run.FinishedAt.Equal(epoch.Add(1500*time.Millisecond)) {
		t.Errorf("timestamps = %v..%v", run.StartedAt, run.FinishedAt)
	}
	if run.Passed != 1 || run.Failed != 2 {
		t.Errorf("passed/failed = %d/%d, want 1/2", run.Passed, run.Failed)
	}

	comparisons, err := s.RunComparisons(ctx, "run-0001")
	if err != nil {
		t.Fatalf("RunComparisons() failed: %v", err)
	}
	if len(comparisons) != 3 {
		t.Fatalf("got %d comparisons, want 3", len(comparisons))
	}

	ok := comparisons[0]
	if ok.Slug != "helmet" || ok.Golden != "filament" || ok.Status != "ok" || ok.Code != "" {
		t.Errorf("comparison 0 = %+v", ok)
	}
	if ok.Analysis == nil || ok.Analysis.Matching != 1 || ok.Analysis.AverageDistance != 0 {
		t.Errorf("comparison 0 analysis = %+v", ok.Analysis)
	}

	missing := comparisons[1]
	if missing.Golden != "three" || missing.Status != "failed" || missing.Code != "GOLDEN_IO" {
		t.Errorf("comparison 1 = %+v", missing)
	}
	if missing.Analysis != nil {
		t.Errorf("failed comparison has analysis %+v", missing.Analysis)
	}

	timeout := comparisons[2]
	if timeout.Slug != "timeout" || timeout.Code != "CAPTURE_TIMEOUT" || timeout.Message != "not ready after 10s" {
		t.Errorf("comparison 2 = %+v", timeout)
	}
}

func TestRecordBatch_DuplicateRunFails(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	batch := testBatch(t, "run-0001", epoch, pixel(255, 0, 0))

	if err := s.RecordBatch(ctx, batch); err != nil {
		t.Fatalf("first RecordBatch() failed: %v", err)
	}
	if err := s.RecordBatch(ctx, batch); err == nil {
		t.Fatal("expected error recording the same run twice")
	}

	// The failed transaction must not leave extra comparison rows.
	comparisons, err := s.RunComparisons(ctx, "run-0001")
	if err != nil {
		t.Fatalf("RunComparisons() failed: %v", err)
	}
	if len(comparisons) != 3 {
		t.Errorf("got %d comparisons, want 3", len(comparisons))
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Fatalf("empty store: got %v, want empty slice", runs)
	}

	// Sub-second offsets exercise the fixed-width timestamp ordering.
	starts := []time.Duration{0, 500 * time.Millisecond, time.Second}
	for i, d := range starts {
		id := []string{"run-a", "run-b", "run-c"}[i]
		if err := s.RecordBatch(ctx, testBatch(t, id, epoch.Add(d), pixel(255, 0, 0))); err != nil {
			t.Fatalf("RecordBatch(%s) failed: %v", id, err)
		}
	}

	runs, err = s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "run-c" || ids[1] != "run-b" || ids[2] != "run-a" {
		t.Errorf("ListRuns() order = %v, want [run-c run-b run-a]", ids)
	}

	runs, err = s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns(2) failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" {
		t.Errorf("ListRuns(2) = %v", runs)
	}
}

func TestScenarioHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.RecordBatch(ctx, testBatch(t, "run-a", epoch, pixel(255, 0, 0))); err != nil {
		t.Fatalf("RecordBatch() failed: %v", err)
	}
	if err := s.RecordBatch(ctx, testBatch(t, "run-b", epoch.Add(time.Minute), pixel(0, 255, 255))); err != nil {
		t.Fatalf("RecordBatch() failed: %v", err)
	}

	history, err := s.ScenarioHistory(ctx, "helmet", 0)
	if err != nil {
		t.Fatalf("ScenarioHistory() failed: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("got %d rows, want 4", len(history))
	}
	if history[0].RunID != "run-b" || history[0].Golden != "filament" || history[1].Golden != "three" {
		t.Errorf("unexpected order: %+v", history)
	}
	if history[0].Analysis == nil || history[0].Analysis.AverageDistance != 1 {
		t.Errorf("run-b analysis = %+v, want averageDistance 1", history[0].Analysis)
	}
	if history[2].RunID != "run-a" || history[2].Analysis.Matching != 1 {
		t.Errorf("run-a row = %+v", history[2])
	}

	latest, err := s.ScenarioHistory(ctx, "helmet", 1)
	if err != nil {
		t.Fatalf("ScenarioHistory(1) failed: %v", err)
	}
	if len(latest) != 2 || latest[0].RunID != "run-b" || latest[1].RunID != "run-b" {
		t.Errorf("ScenarioHistory(1) = %+v", latest)
	}

	none, err := s.ScenarioHistory(ctx, "unknown", 0)
	if err != nil {
		t.Fatalf("ScenarioHistory(unknown) failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unknown slug returned %d rows", len(none))
	}
}
