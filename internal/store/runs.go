package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cesargomez89/streampay/internal/domain"
)

const runColumns = `id, window_start, window_end, status, artists, streams, amount, failures, error, created_at, finished_at`

func (db *DB) CreateRun(ctx context.Context, run *domain.AggregationRun) error {
	run.WindowStart = run.WindowStart.UTC()
	run.WindowEnd = run.WindowEnd.UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO aggregation_runs (` + runColumns + `)
		VALUES (:id, :window_start, :window_end, :status, :artists, :streams, :amount, :failures, :error, :created_at, :finished_at)`

	_, err := db.NamedExecContext(ctx, query, run)
	return err
}

// FinishRun stores the final status and totals of a run.
func (db *DB) FinishRun(ctx context.Context, run *domain.AggregationRun) error {
	if !run.IsTerminal() {
		return fmt.Errorf("run %s can not finish as %s", run.ID, run.Status)
	}
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	query := `UPDATE aggregation_runs SET status = ?, artists = ?, streams = ?, amount = ?, failures = ?, error = ?, finished_at = ?
		WHERE id = ?`
	_, err := db.ExecContext(ctx, db.Rebind(query),
		run.Status, run.Artists, run.Streams, run.Amount, run.Failures, run.Error, run.FinishedAt.UTC(), run.ID)
	return err
}

func (db *DB) GetRun(ctx context.Context, id string) (*domain.AggregationRun, error) {
	run := &domain.AggregationRun{}
	err := db.GetContext(ctx, run, db.Rebind(`SELECT `+runColumns+` FROM aggregation_runs WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err, "aggregation run "+id)
	}
	return run, nil
}

func (db *DB) ListRuns(ctx context.Context, limit int) ([]*domain.AggregationRun, error) {
	query := `SELECT ` + runColumns + ` FROM aggregation_runs ORDER BY created_at DESC LIMIT ?`

	var runs []*domain.AggregationRun
	err := db.SelectContext(ctx, &runs, db.Rebind(query), limit)
	return runs, err
}

// ResetStuckRuns fails runs still marked running that started before
// startedBefore. Their claimed streams were committed per artist, so
// nothing needs to be undone.
func (db *DB) ResetStuckRuns(ctx context.Context, startedBefore time.Time) (int64, error) {
	msg := "interrupted by shutdown"
	res, err := db.ExecContext(ctx, db.Rebind(`UPDATE aggregation_runs SET status = ?, error = ?, finished_at = ?
		WHERE status = ? AND created_at < ?`),
		domain.RunStatusFailed, msg, time.Now().UTC(), domain.RunStatusRunning, startedBefore.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type RunStats struct {
	Total     int             `db:"total" json:"total"`
	Completed int             `db:"completed" json:"completed"`
	Partial   int             `db:"partial" json:"partial"`
	Failed    int             `db:"failed" json:"failed"`
	Streams   int64           `db:"streams" json:"streams"`
	Amount    domain.Lamports `db:"amount" json:"amount"`
}

func (db *DB) GetRunStats(ctx context.Context) (*RunStats, error) {
	query := `SELECT
		COUNT(*) as total,
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) as completed,
		COALESCE(SUM(CASE WHEN status = 'partial' THEN 1 ELSE 0 END), 0) as partial,
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) as failed,
		COALESCE(SUM(streams), 0) as streams,
		COALESCE(SUM(amount), 0) as amount
	FROM aggregation_runs
	WHERE status IN ('completed', 'partial', 'failed')`

	stats := &RunStats{}
	err := db.GetContext(ctx, stats, query)
	return stats, err
}
