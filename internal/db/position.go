package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/movement"
)

// Position is the live position document of one subject.
type Position struct {
	SubjectID     string   `json:"subject_id"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	Accuracy      *float64 `json:"accuracy,omitempty"`
	Battery       *int     `json:"battery,omitempty"`
	Status        string   `json:"status"`
	LastUpdatedMs int64    `json:"lastUpdated"`
}

// StoredFix is a fix as persisted in position_fixes.
type StoredFix struct {
	ID           int64                   `json:"id"`
	SubjectID    string                  `json:"subject_id"`
	Sample       movement.PositionSample `json:"sample"`
	ReceivedAtMs int64                   `json:"received_at_ms"`
}

// UpdatePosition overwrites the live position document and appends the fix
// to position_fixes in one transaction. battery is optional.
func (db *DB) UpdatePosition(ctx context.Context, subjectID string, p movement.PositionSample, battery *int) error {
	now := db.nowMs()

	var accuracy *float64
	if p.HorizontalAccuracyM > 0 {
		a := float64(p.HorizontalAccuracyM)
		accuracy = &a
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			// ErrTxDone means transaction was already committed/rolled back
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO child_position (subject_id, lat, lon, accuracy, battery, status, last_updated)
		VALUES (?, ?, ?, ?, ?, 'online', ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			lat = excluded.lat,
			lon = excluded.lon,
			accuracy = excluded.accuracy,
			battery = COALESCE(excluded.battery, child_position.battery),
			status = excluded.status,
			last_updated = excluded.last_updated
	`, subjectID, p.Latitude, p.Longitude, accuracy, battery, now)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO position_fixes (subject_id, lat, lon, accuracy, captured_at_ms, received_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, subjectID, p.Latitude, p.Longitude, accuracy, p.CapturedAtMs, now)
	if err != nil {
		return fmt.Errorf("failed to record fix: %w", err)
	}

	return tx.Commit()
}

// GetPosition returns the live position document of a subject.
func (db *DB) GetPosition(ctx context.Context, subjectID string) (*Position, error) {
	var (
		pos      Position
		accuracy sql.NullFloat64
		battery  sql.NullInt64
	)
	err := db.QueryRowContext(ctx, `
		SELECT subject_id, lat, lon, accuracy, battery, status, last_updated
		FROM child_position
		WHERE subject_id = ?
	`, subjectID).Scan(&pos.SubjectID, &pos.Lat, &pos.Lon, &accuracy, &battery, &pos.Status, &pos.LastUpdatedMs)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("position for %s: %w", subjectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	if accuracy.Valid {
		pos.Accuracy = &accuracy.Float64
	}
	if battery.Valid {
		b := int(battery.Int64)
		pos.Battery = &b
	}
	return &pos, nil
}

// MarkOffline sets the status of every live position not updated since
// cutoffMs to "offline". Returns the number of subjects changed.
func (db *DB) MarkOffline(ctx context.Context, cutoffMs int64) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE child_position SET status = 'offline'
		WHERE status != 'offline' AND last_updated < ?
	`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale positions offline: %w", err)
	}
	return res.RowsAffected()
}

// RecentFixes returns up to limit fixes of a subject captured at or after
// sinceMs, oldest first.
func (db *DB) RecentFixes(ctx context.Context, subjectID string, sinceMs int64, limit int) ([]StoredFix, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.QueryContext(ctx, `
		SELECT fix_id, subject_id, lat, lon, accuracy, captured_at_ms, received_at_ms
		FROM (
			SELECT * FROM position_fixes
			WHERE subject_id = ? AND captured_at_ms >= ?
			ORDER BY captured_at_ms DESC, fix_id DESC
			LIMIT ?
		)
		ORDER BY captured_at_ms ASC, fix_id ASC
	`, subjectID, sinceMs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixes: %w", err)
	}
	defer rows.Close()

	var fixes []StoredFix
	for rows.Next() {
		var (
			f        StoredFix
			accuracy sql.NullFloat64
		)
		if err := rows.Scan(&f.ID, &f.SubjectID, &f.Sample.Latitude, &f.Sample.Longitude, &accuracy, &f.Sample.CapturedAtMs, &f.ReceivedAtMs); err != nil {
			return nil, err
		}
		if accuracy.Valid {
			f.Sample.HorizontalAccuracyM = float32(accuracy.Float64)
		}
		fixes = append(fixes, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fixes, nil
}

// PruneFixes deletes fixes captured before cutoffMs.
func (db *DB) PruneFixes(ctx context.Context, cutoffMs int64) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM position_fixes WHERE captured_at_ms < ?`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("failed to prune fixes: %w", err)
	}
	return res.RowsAffected()
}
