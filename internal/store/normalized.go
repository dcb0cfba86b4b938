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

// UpsertNormalizedItem writes the structured view for one raw item. The row
// is keyed on the raw item's idempotency key; reruns overwrite the payload
// (last write wins) while the id and created_at survive.
func (s *Store) UpsertNormalizedItem(ctx context.Context, item *NormalizedItem) (string, error) {
	if item == nil {
		return "", errors.New("normalized item is nil")
	}
	payloadJSON, err := json.Marshal(item.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal normalized payload: %w", err)
	}

	now := formatTime(time.Now())
	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO normalized_items (id, org_id, idempotency_key, source_type, normalized_type, payload, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (org_id, idempotency_key) DO UPDATE SET
             source_type = excluded.source_type,
             normalized_type = excluded.normalized_type,
             payload = excluded.payload,
             updated_at = excluded.updated_at`,
		id,
		item.OrgID,
		item.IdempotencyKey,
		item.SourceType,
		item.NormalizedType,
		string(payloadJSON),
		now,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("upsert normalized item: %w", err)
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT id FROM normalized_items WHERE org_id = ? AND idempotency_key = ?`,
		item.OrgID,
		item.IdempotencyKey,
	)
	var storedID string
	if err := row.Scan(&storedID); err != nil {
		return "", fmt.Errorf("fetch normalized item id: %w", err)
	}
	return storedID, nil
}

// GetNormalizedItem fetches one normalized item by its idempotency key.
func (s *Store) GetNormalizedItem(ctx context.Context, orgID, idempotencyKey string) (*NormalizedItem, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+normalizedColumns+` FROM normalized_items WHERE org_id = ? AND idempotency_key = ?`,
		orgID,
		idempotencyKey,
	)
	item, err := scanNormalizedItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get normalized item: %w", err)
	}
	return item, nil
}

// GetNormalizedItemByID fetches one normalized item by its row id.
func (s *Store) GetNormalizedItemByID(ctx context.Context, orgID, id string) (*NormalizedItem, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+normalizedColumns+` FROM normalized_items WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	)
	item, err := scanNormalizedItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get normalized item: %w", err)
	}
	return item, nil
}

// ListNormalizedItems returns every normalized item for the org ordered by
// creation time.
func (s *Store) ListNormalizedItems(ctx context.Context, orgID string) ([]*NormalizedItem, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+normalizedColumns+` FROM normalized_items WHERE org_id = ? ORDER BY created_at, id`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list normalized items: %w", err)
	}
	defer rows.Close()

	var items []*NormalizedItem
	for rows.Next() {
		item, err := scanNormalizedItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const normalizedColumns = "id, org_id, idempotency_key, source_type, normalized_type, payload, created_at, updated_at"

func scanNormalizedItem(scanner interface{ Scan(dest ...any) error }) (*NormalizedItem, error) {
	var (
		id             string
		orgID          string
		key            string
		sourceType     string
		normalizedType string
		payloadRaw     string
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(&id, &orgID, &key, &sourceType, &normalizedType, &payloadRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	item := &NormalizedItem{
		ID:             id,
		OrgID:          orgID,
		IdempotencyKey: key,
		SourceType:     sourceType,
		NormalizedType: normalizedType,
	}
	if payloadRaw != "" {
		if err := json.Unmarshal([]byte(payloadRaw), &item.Payload); err != nil {
			return nil, fmt.Errorf("decode normalized payload: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}
