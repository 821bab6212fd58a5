package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/fidelity/internal/artifact"
	"github.com/roach88/fidelity/internal/harness"
)

var _ harness.History = (*Store)(nil)

// RecordBatch stores batch and its comparisons in one transaction.
// Comparison rows follow the configuration order and mirror report.json.
func (s *Store) RecordBatch(ctx context.Context, batch *harness.BatchResult) error {
	hash, err := batch.Config.Hash()
	if err != nil {
		return fmt.Errorf("record batch: %w", err)
	}
	rep := artifact.NewReport(batch)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record batch: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, config_hash, started_at, finished_at, passed, failed)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		batch.RunID,
		hash,
		formatTime(batch.StartedAt),
		formatTime(batch.FinishedAt),
		rep.Passed,
		rep.Failed,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", batch.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO comparisons
		(run_id, ordinal, slug, golden, status, code, message,
		 matching, average_distance, not_matching_average_distance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("record comparisons: %w", err)
	}
	defer stmt.Close()

	ordinal := 0
	for _, sc := range rep.Scenarios {
		for _, g := range sc.Goldens {
			code, message := "", ""
			switch {
			case g.Error != nil:
				code, message = g.Error.Code, g.Error.Message
			case sc.Error != nil:
				code, message = sc.Error.Code, sc.Error.Message
			}

			var matching, avg, notMatching sql.NullFloat64
			if g.Analysis != nil {
				matching = sql.NullFloat64{Float64: g.Analysis.Matching, Valid: true}
				avg = sql.NullFloat64{Float64: g.Analysis.AverageDistance, Valid: true}
				notMatching = sql.NullFloat64{Float64: g.Analysis.NotMatchingAverageDistance, Valid: true}
			}

			if _, err := stmt.ExecContext(ctx,
				batch.RunID, ordinal, sc.Slug, g.Name, g.Status, code, message,
				matching, avg, notMatching,
			); err != nil {
				return fmt.Errorf("record comparison %s/%s: %w", sc.Slug, g.Name, err)
			}
			ordinal++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record batch: %w", err)
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
