package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/leavesync/pkg/models"
)

// HasSent reports whether a notification for (requestID, status) is on record.
func (r *SQLiteRepo) HasSent(ctx context.Context, requestID, status string) (bool, error) {
	var count int
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM notifications WHERE request_id = ? AND status = ?`, requestID, status)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return count > 0, nil
}

// RecordSent stores a delivered notification. Recording the same
// (request_id, status) twice keeps the first row.
func (r *SQLiteRepo) RecordSent(ctx context.Context, n *models.Notification) error {
	if n == nil {
		return fmt.Errorf("notification is nil")
	}
	if n.SentAt == 0 {
		n.SentAt = now()
	}

	var runID sql.NullString
	if n.RunID != "" {
		runID = sql.NullString{String: n.RunID, Valid: true}
	}
	res, err := r.conn.Exec(ctx, `INSERT INTO notifications (request_id, status, recipient, run_id, sent_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT(request_id, status) DO NOTHING`, n.RequestID, n.Status, n.Recipient, runID, n.SentAt)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		r.logger.Warn("notification already recorded", "request_id", n.RequestID, "status", n.Status)
		return nil
	}
	n.ID, _ = res.LastInsertId()
	return nil
}

func (r *SQLiteRepo) ListByRequest(ctx context.Context, requestID string) ([]models.Notification, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, request_id, status, recipient, run_id, sent_at FROM notifications WHERE request_id = ? ORDER BY sent_at, id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var runID sql.NullString
		if err := rows.Scan(&n.ID, &n.RequestID, &n.Status, &n.Recipient, &runID, &n.SentAt); err != nil {
			return nil, err
		}
		if runID.Valid {
			n.RunID = runID.String
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
