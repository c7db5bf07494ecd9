package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/leavesync/pkg/models"
)

const runColumns = `id, source, started, finished, fetched, updated, notified, repaired, skipped, failed, error`

func (r *SQLiteRepo) StartRun(ctx context.Context, run *models.SyncRun) error {
	if run == nil {
		return fmt.Errorf("run is nil")
	}
	if run.Started == 0 {
		run.Started = now()
	}
	_, err := r.conn.Exec(ctx, `INSERT INTO sync_runs (id, source, started) VALUES (?, ?, ?)`, run.ID, run.Trigger, run.Started)
	return err
}

func (r *SQLiteRepo) FinishRun(ctx context.Context, run *models.SyncRun) error {
	if run == nil {
		return fmt.Errorf("run is nil")
	}
	finished := now()
	run.Finished = &finished

	var errText sql.NullString
	if run.Error != "" {
		errText = sql.NullString{String: run.Error, Valid: true}
	}
	res, err := r.conn.Exec(ctx, `UPDATE sync_runs SET finished = ?, fetched = ?, updated = ?, notified = ?, repaired = ?, skipped = ?, failed = ?, error = ? WHERE id = ?`,
		finished, run.Fetched, run.Updated, run.Notified, run.Repaired, run.Skipped, run.Failed, errText, run.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

func (r *SQLiteRepo) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *SQLiteRepo) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.conn.QueryRows(ctx, `SELECT `+runColumns+` FROM sync_runs ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.SyncRun, error) {
	var run models.SyncRun
	var finished sql.NullInt64
	var errText sql.NullString
	if err := s.Scan(&run.ID, &run.Trigger, &run.Started, &finished, &run.Fetched, &run.Updated, &run.Notified, &run.Repaired, &run.Skipped, &run.Failed, &errText); err != nil {
		return nil, err
	}
	if finished.Valid {
		v := finished.Int64
		run.Finished = &v
	}
	if errText.Valid {
		run.Error = errText.String
	}
	return &run, nil
}
