package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Subject is a tracked person known to the service.
type Subject struct {
	ID          string `json:"id"`
	UIDHash     string `json:"uid_hash,omitempty"`
	DisplayName string `json:"display_name"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// UpsertSubject creates or renames a subject.
func (db *DB) UpsertSubject(ctx context.Context, s Subject) error {
	var uidHash sql.NullString
	if s.UIDHash != "" {
		uidHash = sql.NullString{String: s.UIDHash, Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO subjects (subject_id, uid_hash, display_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			uid_hash = COALESCE(excluded.uid_hash, subjects.uid_hash),
			display_name = excluded.display_name
	`, s.ID, uidHash, s.DisplayName, db.nowMs())
	if err != nil {
		return fmt.Errorf("failed to upsert subject: %w", err)
	}
	return nil
}

// GetSubject returns a subject by id.
func (db *DB) GetSubject(ctx context.Context, id string) (*Subject, error) {
	return db.scanSubject(db.QueryRowContext(ctx, `
		SELECT subject_id, uid_hash, display_name, created_at FROM subjects WHERE subject_id = ?
	`, id), id)
}

// SubjectByUIDHash returns the subject registered under a hashed account uid.
func (db *DB) SubjectByUIDHash(ctx context.Context, uidHash string) (*Subject, error) {
	return db.scanSubject(db.QueryRowContext(ctx, `
		SELECT subject_id, uid_hash, display_name, created_at FROM subjects WHERE uid_hash = ?
	`, uidHash), uidHash)
}

func (db *DB) scanSubject(row *sql.Row, key string) (*Subject, error) {
	var (
		s       Subject
		uidHash sql.NullString
	)
	err := row.Scan(&s.ID, &uidHash, &s.DisplayName, &s.CreatedAtMs)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subject %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	s.UIDHash = uidHash.String
	return &s, nil
}

// ListSubjects returns every subject ordered by id.
func (db *DB) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := db.QueryContext(ctx, `SELECT subject_id, uid_hash, display_name, created_at FROM subjects ORDER BY subject_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		var (
			s       Subject
			uidHash sql.NullString
		)
		if err := rows.Scan(&s.ID, &uidHash, &s.DisplayName, &s.CreatedAtMs); err != nil {
			return nil, err
		}
		s.UIDHash = uidHash.String
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}
