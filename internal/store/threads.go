package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertThread writes one container row with its recomputed aggregates.
// Aggregates are derived from messages processed oldest to newest, so a
// rerun over the same window produces the same row.
func (s *Store) UpsertThread(ctx context.Context, thread *Thread) (string, error) {
	if thread == nil {
		return "", errors.New("thread is nil")
	}
	participantsJSON, err := json.Marshal(stringSliceOrEmpty(thread.Participants))
	if err != nil {
		return "", fmt.Errorf("marshal thread participants: %w", err)
	}

	now := formatTime(time.Now())
	id := thread.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO threads (id, org_id, external_id, subject, participants, first_message_at, last_message_at, has_attachments, message_count, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (org_id, external_id) DO UPDATE SET
             subject = excluded.subject,
             participants = excluded.participants,
             first_message_at = excluded.first_message_at,
             last_message_at = excluded.last_message_at,
             has_attachments = excluded.has_attachments,
             message_count = excluded.message_count,
             updated_at = excluded.updated_at`,
		id,
		thread.OrgID,
		thread.ExternalID,
		nullableString(thread.Subject),
		string(participantsJSON),
		nullableTime(thread.FirstMessageAt),
		nullableTime(thread.LastMessageAt),
		boolToInt(thread.HasAttachments),
		thread.MessageCount,
		now,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("upsert thread: %w", err)
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT id FROM threads WHERE org_id = ? AND external_id = ?`,
		thread.OrgID,
		thread.ExternalID,
	)
	var storedID string
	if err := row.Scan(&storedID); err != nil {
		return "", fmt.Errorf("fetch thread id: %w", err)
	}
	return storedID, nil
}

// GetThreadByExternalID fetches one thread row.
func (s *Store) GetThreadByExternalID(ctx context.Context, orgID, externalID string) (*Thread, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+threadColumns+` FROM threads WHERE org_id = ? AND external_id = ?`,
		orgID,
		externalID,
	)
	thread, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return thread, nil
}

// CountThreads returns the number of thread rows for the org.
func (s *Store) CountThreads(ctx context.Context, orgID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM threads WHERE org_id = ?`, orgID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count threads: %w", err)
	}
	return count, nil
}

const threadColumns = "id, org_id, external_id, subject, participants, first_message_at, last_message_at, has_attachments, message_count, created_at, updated_at"

func scanThread(scanner interface{ Scan(dest ...any) error }) (*Thread, error) {
	var (
		id              string
		orgID           string
		externalID      string
		subject         sql.NullString
		participantsRaw string
		firstRaw        sql.NullString
		lastRaw         sql.NullString
		hasAttachments  int
		messageCount    int
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(&id, &orgID, &externalID, &subject, &participantsRaw, &firstRaw, &lastRaw, &hasAttachments, &messageCount, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	thread := &Thread{
		ID:             id,
		OrgID:          orgID,
		ExternalID:     externalID,
		Subject:        subject.String,
		HasAttachments: hasAttachments != 0,
		MessageCount:   messageCount,
	}
	if participantsRaw != "" {
		if err := json.Unmarshal([]byte(participantsRaw), &thread.Participants); err != nil {
			return nil, fmt.Errorf("decode thread participants: %w", err)
		}
	}
	thread.FirstMessageAt = parseNullableTime(firstRaw)
	thread.LastMessageAt = parseNullableTime(lastRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		thread.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		thread.UpdatedAt = updated
	}
	return thread, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
