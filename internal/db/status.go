package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/alert"
)

// ErrNotFound is returned when a subject has no row in the requested table.
var ErrNotFound = errors.New("not found")

// statusColumns maps status document fields to child_locations columns.
var statusColumns = map[string]string{
	alert.FieldAIAlert:    "ai_alert",
	alert.FieldAIAlertAt:  "ai_alert_at",
	alert.FieldAIDetails:  "ai_details",
	alert.FieldStoreAlert: "store_alert",
}

// SubjectStatus is the merged alert status document of one subject.
type SubjectStatus struct {
	SubjectID   string             `json:"subject_id"`
	AIAlert     *string            `json:"aiAlert,omitempty"`
	AIAlertAt   *int64             `json:"aiAlertAt,omitempty"`
	AIDetails   map[string]float64 `json:"aiDetails,omitempty"`
	StoreAlert  *string            `json:"storeAlert,omitempty"`
	UpdatedAtMs int64              `json:"updated_at_ms"`
}

// MergeStatus upserts the given fields of a subject's status document.
// Fields not named are left as they are.
func (db *DB) MergeStatus(ctx context.Context, subjectID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := statusColumns[k]; !ok {
			return fmt.Errorf("unknown status field %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := []string{"subject_id", "updated_at"}
	args := []any{subjectID, db.nowMs()}
	sets := []string{"updated_at = excluded.updated_at"}
	for _, k := range keys {
		col := statusColumns[k]
		v, err := statusValue(k, fields[k])
		if err != nil {
			return err
		}
		cols = append(cols, col)
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	query := fmt.Sprintf(
		`INSERT INTO child_locations (%s) VALUES (%s)
		ON CONFLICT(subject_id) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(sets, ", "),
	)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to merge status for %s: %w", subjectID, err)
	}
	return nil
}

func statusValue(field string, v any) (any, error) {
	if field != alert.FieldAIDetails {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", field, err)
	}
	return string(b), nil
}

// GetStatus returns the status document of a subject.
func (db *DB) GetStatus(ctx context.Context, subjectID string) (*SubjectStatus, error) {
	var (
		st         SubjectStatus
		aiAlert    sql.NullString
		aiAlertAt  sql.NullInt64
		aiDetails  sql.NullString
		storeAlert sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT subject_id, ai_alert, ai_alert_at, ai_details, store_alert, updated_at
		FROM child_locations
		WHERE subject_id = ?
	`, subjectID).Scan(&st.SubjectID, &aiAlert, &aiAlertAt, &aiDetails, &storeAlert, &st.UpdatedAtMs)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("status for %s: %w", subjectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	if aiAlert.Valid {
		st.AIAlert = &aiAlert.String
	}
	if aiAlertAt.Valid {
		st.AIAlertAt = &aiAlertAt.Int64
	}
	if storeAlert.Valid {
		st.StoreAlert = &storeAlert.String
	}
	if aiDetails.Valid && aiDetails.String != "" {
		if err := json.Unmarshal([]byte(aiDetails.String), &st.AIDetails); err != nil {
			return nil, fmt.Errorf("failed to decode ai_details: %w", err)
		}
	}
	return &st, nil
}
