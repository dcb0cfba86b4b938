package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertCheckpoint persists run progress for one source. The orchestrator
// only calls this after a window completes or when recording a fatal error,
// so a crash mid-run leaves the prior checkpoint untouched.
func (s *Store) UpsertCheckpoint(ctx context.Context, cp *Checkpoint) error {
	if cp == nil {
		return errors.New("checkpoint is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO checkpoints (source_id, org_id, last_cursor, last_run_at, status, last_error_message, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (source_id) DO UPDATE SET
             org_id = excluded.org_id,
             last_cursor = excluded.last_cursor,
             last_run_at = excluded.last_run_at,
             status = excluded.status,
             last_error_message = excluded.last_error_message,
             updated_at = excluded.updated_at`,
		cp.SourceID,
		cp.OrgID,
		nullableString(cp.LastCursor),
		nullableTime(cp.LastRunAt),
		string(cp.Status),
		nullableString(cp.LastErrorMessage),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint fetches the checkpoint for one source, or ErrNotFound when
// the source has never completed a run.
func (s *Store) GetCheckpoint(ctx context.Context, sourceID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT source_id, org_id, last_cursor, last_run_at, status, last_error_message, updated_at
         FROM checkpoints WHERE source_id = ?`,
		sourceID,
	)

	var (
		cp         Checkpoint
		cursor     sql.NullString
		lastRunRaw sql.NullString
		status     string
		lastError  sql.NullString
		updatedRaw string
	)
	err := row.Scan(&cp.SourceID, &cp.OrgID, &cursor, &lastRunRaw, &status, &lastError, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}

	cp.LastCursor = cursor.String
	cp.LastRunAt = parseNullableTime(lastRunRaw)
	cp.Status = CheckpointStatus(status)
	cp.LastErrorMessage = lastError.String
	if updated, perr := parseTimeString(updatedRaw); perr == nil {
		cp.UpdatedAt = updated
	}
	return &cp, nil
}
