package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/fidelity/internal/compare"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded batch.
type Run struct {
	ID         string    `json:"id"`
	ConfigHash string    `json:"configHash"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
}

// Comparison is one recorded comparison. Analysis is nil for failed
// comparisons.
type Comparison struct {
	RunID    string            `json:"runId"`
	Slug     string            `json:"slug"`
	Golden   string            `json:"golden"`
	Status   string            `json:"status"`
	Code     string            `json:"code,omitempty"`
	Message  string            `json:"message,omitempty"`
	Analysis *compare.Analysis `json:"analysis,omitempty"`
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, config_hash, started_at, finished_at, passed, failed
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given ID, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, config_hash, started_at, finished_at, passed, failed
		FROM runs
		WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// RunComparisons returns the comparisons of a run in configuration order.
func (s *Store) RunComparisons(ctx context.Context, runID string) ([]Comparison, error) {
	return s.queryComparisons(ctx, `
		SELECT run_id, slug, golden, status, code, message,
		       matching, average_distance, not_matching_average_distance
		FROM comparisons
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
}

// ScenarioHistory returns the comparisons recorded for slug across runs,
// newest run first, up to limit runs (all when limit <= 0).
func (s *Store) ScenarioHistory(ctx context.Context, slug string, limit int) ([]Comparison, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryComparisons(ctx, `
		SELECT c.run_id, c.slug, c.golden, c.status, c.code, c.message,
		       c.matching, c.average_distance, c.not_matching_average_distance
		FROM comparisons c
		JOIN (
			SELECT DISTINCT r.id, r.started_at
			FROM runs r
			JOIN comparisons x ON x.run_id = r.id
			WHERE x.slug = ?
			ORDER BY r.started_at DESC, r.id COLLATE BINARY DESC
			LIMIT ?
		) recent ON recent.id = c.run_id
		WHERE c.slug = ?
		ORDER BY recent.started_at DESC, c.run_id COLLATE BINARY DESC, c.ordinal ASC
	`, slug, limit, slug)
}

func (s *Store) queryComparisons(ctx context.Context, query string, args ...any) ([]Comparison, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query comparisons: %w", err)
	}
	defer rows.Close()

	comparisons := []Comparison{}
	for rows.Next() {
		var (
			c                          Comparison
			matching, avg, notMatching sql.NullFloat64
		)
		if err := rows.Scan(
			&c.RunID, &c.Slug, &c.Golden, &c.Status, &c.Code, &c.Message,
			&matching, &avg, &notMatching,
		); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		if matching.Valid {
			c.Analysis = &compare.Analysis{
				AverageDistance:            avg.Float64,
				Matching:                   matching.Float64,
				NotMatchingAverageDistance: notMatching.Float64,
			}
		}
		comparisons = append(comparisons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparisons: %w", err)
	}
	return comparisons, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                 Run
		started, finished string
	)
	if err := row.Scan(&r.ID, &r.ConfigHash, &started, &finished, &r.Passed, &r.Failed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, fmt.Errorf("run %s: started_at: %w", r.ID, err)
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, fmt.Errorf("run %s: finished_at: %w", r.ID, err)
	}
	return r, nil
}
