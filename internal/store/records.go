package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateRecord inserts a canonical business record.
func (s *Store) CreateRecord(ctx context.Context, record *Record) (string, error) {
	if record == nil {
		return "", errors.New("record is nil")
	}
	if strings.TrimSpace(record.Title) == "" {
		return "", errors.New("record title is required")
	}
	tagsJSON, err := json.Marshal(stringSliceOrEmpty(record.Tags))
	if err != nil {
		return "", fmt.Errorf("marshal record tags: %w", err)
	}

	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := record.Status
	if status == "" {
		status = "open"
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO records (id, org_id, record_type, record_type_id, title, status, tags, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		record.OrgID,
		record.RecordType,
		nullableString(record.RecordTypeID),
		record.Title,
		status,
		string(tagsJSON),
		formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// GetRecord fetches one record by id.
func (s *Store) GetRecord(ctx context.Context, orgID, id string) (*Record, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordColumns+` FROM records WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// ListRecords returns the org's records in their default order. Matching
// relies on this order being stable: creation time, then id.
func (s *Store) ListRecords(ctx context.Context, orgID string) ([]*Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM records WHERE org_id = ? ORDER BY created_at, id`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

const recordColumns = "id, org_id, record_type, record_type_id, title, status, tags, created_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id         string
		orgID      string
		recordType string
		typeID     sql.NullString
		title      string
		status     string
		tagsRaw    string
		createdRaw string
	)
	if err := scanner.Scan(&id, &orgID, &recordType, &typeID, &title, &status, &tagsRaw, &createdRaw); err != nil {
		return nil, err
	}

	record := &Record{
		ID:           id,
		OrgID:        orgID,
		RecordType:   recordType,
		RecordTypeID: typeID.String,
		Title:        title,
		Status:       status,
	}
	if tagsRaw != "" {
		if err := json.Unmarshal([]byte(tagsRaw), &record.Tags); err != nil {
			return nil, fmt.Errorf("decode record tags: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	return record, nil
}

func stringSliceOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
