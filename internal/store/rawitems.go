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

// CreateRawItem inserts one raw item row. A unique-key conflict is success:
// the id of the already-present row is returned and created is false.
// Callers never branch on "already exists" as a failure path.
func (s *Store) CreateRawItem(ctx context.Context, orgID, idempotencyKey, sourceType string, payload map[string]any) (string, bool, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", false, fmt.Errorf("marshal raw item payload: %w", err)
	}

	id := uuid.NewString()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO raw_items (id, org_id, idempotency_key, source_type, payload, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (org_id, idempotency_key) DO NOTHING`,
		id,
		orgID,
		idempotencyKey,
		sourceType,
		string(payloadJSON),
		formatTime(time.Now()),
	)
	if err != nil {
		return "", false, fmt.Errorf("insert raw item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return id, true, nil
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT id FROM raw_items WHERE org_id = ? AND idempotency_key = ?`,
		orgID,
		idempotencyKey,
	)
	var existingID string
	if err := row.Scan(&existingID); err != nil {
		return "", false, fmt.Errorf("fetch existing raw item: %w", err)
	}
	return existingID, false, nil
}

// GetRawItem fetches one raw item by its idempotency key.
func (s *Store) GetRawItem(ctx context.Context, orgID, idempotencyKey string) (*RawItem, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, org_id, idempotency_key, source_type, payload, created_at
         FROM raw_items WHERE org_id = ? AND idempotency_key = ?`,
		orgID,
		idempotencyKey,
	)
	item, err := scanRawItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get raw item: %w", err)
	}
	return item, nil
}

// ListRawItems returns every raw item for the org ordered by creation time.
func (s *Store) ListRawItems(ctx context.Context, orgID string) ([]*RawItem, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, org_id, idempotency_key, source_type, payload, created_at
         FROM raw_items WHERE org_id = ? ORDER BY created_at, id`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list raw items: %w", err)
	}
	defer rows.Close()

	var items []*RawItem
	for rows.Next() {
		item, err := scanRawItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountRawItems returns the number of raw items stored for the org.
func (s *Store) CountRawItems(ctx context.Context, orgID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM raw_items WHERE org_id = ?`, orgID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count raw items: %w", err)
	}
	return count, nil
}

func scanRawItem(scanner interface{ Scan(dest ...any) error }) (*RawItem, error) {
	var (
		id         string
		orgID      string
		key        string
		sourceType string
		payloadRaw string
		createdRaw string
	)
	if err := scanner.Scan(&id, &orgID, &key, &sourceType, &payloadRaw, &createdRaw); err != nil {
		return nil, err
	}

	item := &RawItem{
		ID:             id,
		OrgID:          orgID,
		IdempotencyKey: key,
		SourceType:     sourceType,
	}
	if payloadRaw != "" {
		if err := json.Unmarshal([]byte(payloadRaw), &item.Payload); err != nil {
			return nil, fmt.Errorf("decode raw item payload: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	return item, nil
}
