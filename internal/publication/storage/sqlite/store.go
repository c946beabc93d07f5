// Package sqlite provides a SQLite-backed publication storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/nyuiela/revent/internal/platform/storage/sqlitemigrate"
	"github.com/nyuiela/revent/internal/publication/storage"
	"github.com/nyuiela/revent/internal/publication/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed publication stage persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a publication SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordStage persists one publication stage outcome.
func (s *Store) RecordStage(ctx context.Context, record storage.StageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.PublicationID = strings.TrimSpace(record.PublicationID)
	record.Stage = strings.TrimSpace(record.Stage)
	record.Outcome = strings.TrimSpace(record.Outcome)
	if record.PublicationID == "" {
		return fmt.Errorf("publication id is required")
	}
	if record.Stage == "" {
		return fmt.Errorf("stage is required")
	}
	if record.Outcome == "" {
		return fmt.Errorf("outcome is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO publication_stages (
	publication_id,
	stage,
	outcome,
	attempts,
	event_id,
	last_error,
	title,
	creator,
	start_time,
	end_time,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.PublicationID,
		record.Stage,
		record.Outcome,
		record.Attempts,
		record.EventID,
		record.LastError,
		record.Title,
		record.Creator,
		record.StartTime,
		record.EndTime,
		record.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record stage: %w", err)
	}
	return nil
}

// ListStages lists newest-first stage records.
func (s *Store) ListStages(ctx context.Context, limit int) ([]storage.StageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, publication_id, stage, outcome, attempts, event_id, last_error,
       title, creator, start_time, end_time, created_at
FROM publication_stages
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	return scanStageRecords(rows)
}

// ListPendingVerifications returns the latest record per publication whose
// most recent verification attempt timed out.
func (s *Store) ListPendingVerifications(ctx context.Context) ([]storage.StageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, publication_id, stage, outcome, attempts, event_id, last_error,
       title, creator, start_time, end_time, created_at
FROM publication_stages
WHERE id IN (
	SELECT MAX(id) FROM publication_stages GROUP BY publication_id
)
AND stage = 'verifying_event' AND outcome = ?
ORDER BY created_at ASC
`, storage.OutcomeTimeout)
	if err != nil {
		return nil, fmt.Errorf("list pending verifications: %w", err)
	}
	defer rows.Close()

	return scanStageRecords(rows)
}

func scanStageRecords(rows *sql.Rows) ([]storage.StageRecord, error) {
	var records []storage.StageRecord
	for rows.Next() {
		var record storage.StageRecord
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.PublicationID,
			&record.Stage,
			&record.Outcome,
			&record.Attempts,
			&record.EventID,
			&record.LastError,
			&record.Title,
			&record.Creator,
			&record.StartTime,
			&record.EndTime,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan stage record: %w", err)
		}
		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage records: %w", err)
	}
	return records, nil
}
