package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/alert"
)

// AppendAlert records a delivered alert. Re-appending the same id is a no-op.
func (db *DB) AppendAlert(ctx context.Context, rec alert.Record) error {
	var detail sql.NullString
	if len(rec.Detail) > 0 {
		b, err := json.Marshal(rec.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode alert detail: %w", err)
		}
		detail = sql.NullString{String: string(b), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO alerts (alert_id, subject_id, kind, message, detail, emitted_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(alert_id) DO NOTHING
	`, rec.ID, rec.SubjectID, string(rec.Kind), rec.Message, detail, rec.EmittedAtMs)
	if err != nil {
		return fmt.Errorf("failed to append alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts of a subject, newest first. An
// empty kind matches every kind.
func (db *DB) RecentAlerts(ctx context.Context, subjectID string, kind alert.Kind, limit int) ([]alert.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT alert_id, subject_id, kind, message, detail, emitted_at_ms
		FROM alerts
		WHERE subject_id = ? AND (? = '' OR kind = ?)
		ORDER BY emitted_at_ms DESC, rowid DESC
		LIMIT ?
	`, subjectID, string(kind), string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var records []alert.Record
	for rows.Next() {
		var (
			rec    alert.Record
			kindS  string
			detail sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &kindS, &rec.Message, &detail, &rec.EmittedAtMs); err != nil {
			return nil, err
		}
		rec.Kind = alert.Kind(kindS)
		if detail.Valid {
			if err := json.Unmarshal([]byte(detail.String), &rec.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode alert detail: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// PruneAlerts deletes alerts emitted before cutoffMs.
func (db *DB) PruneAlerts(ctx context.Context, cutoffMs int64) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM alerts WHERE emitted_at_ms < ?`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}
	return res.RowsAffected()
}
