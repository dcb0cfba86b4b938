package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertRecordLink associates a source item with a target record. The link
// identity is (source_type, source_id, target_type, target_id); upserting an
// existing link refreshes its method and actor without duplicating the row.
// The returned created flag reports whether a new association appeared.
func (s *Store) UpsertRecordLink(ctx context.Context, link *RecordLink) (string, bool, error) {
	if link == nil {
		return "", false, errors.New("record link is nil")
	}

	id := link.ID
	if id == "" {
		id = uuid.NewString()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO record_links (id, org_id, source_type, source_id, target_type, target_id, link_method, linked_by, linked_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (source_type, source_id, target_type, target_id) DO UPDATE SET
             link_method = excluded.link_method,
             linked_by = excluded.linked_by`,
		id,
		link.OrgID,
		link.SourceType,
		link.SourceID,
		link.TargetType,
		link.TargetID,
		link.LinkMethod,
		nullableString(link.LinkedBy),
		formatTime(time.Now()),
	)
	if err != nil {
		return "", false, fmt.Errorf("upsert record link: %w", err)
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, linked_at FROM record_links
         WHERE source_type = ? AND source_id = ? AND target_type = ? AND target_id = ?`,
		link.SourceType,
		link.SourceID,
		link.TargetType,
		link.TargetID,
	)
	var storedID, linkedRaw string
	if err := row.Scan(&storedID, &linkedRaw); err != nil {
		return "", false, fmt.Errorf("fetch record link: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("rows affected: %w", err)
	}
	return storedID, affected > 0 && storedID == id, nil
}

// ListRecordLinks returns every link targeting the given record.
func (s *Store) ListRecordLinks(ctx context.Context, orgID, targetID string) ([]*RecordLink, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, org_id, source_type, source_id, target_type, target_id, link_method, linked_by, linked_at
         FROM record_links WHERE org_id = ? AND target_id = ? ORDER BY linked_at, id`,
		orgID,
		targetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list record links: %w", err)
	}
	defer rows.Close()

	var links []*RecordLink
	for rows.Next() {
		var (
			link      RecordLink
			linkedBy  sql.NullString
			linkedRaw string
		)
		if err := rows.Scan(&link.ID, &link.OrgID, &link.SourceType, &link.SourceID, &link.TargetType, &link.TargetID, &link.LinkMethod, &linkedBy, &linkedRaw); err != nil {
			return nil, err
		}
		link.LinkedBy = linkedBy.String
		if linked, err := parseTimeString(linkedRaw); err == nil {
			link.LinkedAt = linked
		}
		links = append(links, &link)
	}
	return links, rows.Err()
}

// FindLinkBySource returns the link for a source item against any record, or
// ErrNotFound when the item is unlinked.
func (s *Store) FindLinkBySource(ctx context.Context, sourceType, sourceID, targetType string) (*RecordLink, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, org_id, source_type, source_id, target_type, target_id, link_method, linked_by, linked_at
         FROM record_links WHERE source_type = ? AND source_id = ? AND target_type = ? LIMIT 1`,
		sourceType,
		sourceID,
		targetType,
	)
	var (
		link      RecordLink
		linkedBy  sql.NullString
		linkedRaw string
	)
	err := row.Scan(&link.ID, &link.OrgID, &link.SourceType, &link.SourceID, &link.TargetType, &link.TargetID, &link.LinkMethod, &linkedBy, &linkedRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find record link: %w", err)
	}
	link.LinkedBy = linkedBy.String
	if linked, perr := parseTimeString(linkedRaw); perr == nil {
		link.LinkedAt = linked
	}
	return &link, nil
}
