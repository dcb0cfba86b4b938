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

// CreateDocument inserts a document pointer.
func (s *Store) CreateDocument(ctx context.Context, doc *Document) (string, error) {
	if doc == nil {
		return "", errors.New("document is nil")
	}
	tagsJSON, err := json.Marshal(stringSliceOrEmpty(doc.Tags))
	if err != nil {
		return "", fmt.Errorf("marshal document tags: %w", err)
	}

	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	var sha any
	if doc.SHA256 != nil {
		sha = *doc.SHA256
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO documents (id, org_id, name, storage_path, sha256, byte_size, mime_type, external_ref, tags, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		doc.OrgID,
		doc.Name,
		doc.StoragePath,
		sha,
		doc.ByteSize,
		nullableString(doc.MimeType),
		nullableString(doc.ExternalRef),
		string(tagsJSON),
		formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

// FindDocumentByExternalRef returns the document already recorded for an
// external attachment id, or ErrNotFound. Ingestion uses this to skip
// re-creating pointers on rerun.
func (s *Store) FindDocumentByExternalRef(ctx context.Context, orgID, externalRef string) (*Document, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+documentColumns+` FROM documents WHERE org_id = ? AND external_ref = ? LIMIT 1`,
		orgID,
		externalRef,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

// ListDocumentsBySHA returns every document pointer sharing a content hash.
func (s *Store) ListDocumentsBySHA(ctx context.Context, orgID, sha256 string) ([]*Document, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+documentColumns+` FROM documents WHERE org_id = ? AND sha256 = ? ORDER BY created_at, id`,
		orgID,
		sha256,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents by hash: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

const documentColumns = "id, org_id, name, storage_path, sha256, byte_size, mime_type, external_ref, tags, created_at"

func scanDocument(scanner interface{ Scan(dest ...any) error }) (*Document, error) {
	var (
		id          string
		orgID       string
		name        string
		storagePath string
		sha         sql.NullString
		byteSize    int64
		mimeType    sql.NullString
		externalRef sql.NullString
		tagsRaw     string
		createdRaw  string
	)
	if err := scanner.Scan(&id, &orgID, &name, &storagePath, &sha, &byteSize, &mimeType, &externalRef, &tagsRaw, &createdRaw); err != nil {
		return nil, err
	}

	doc := &Document{
		ID:          id,
		OrgID:       orgID,
		Name:        name,
		StoragePath: storagePath,
		ByteSize:    byteSize,
		MimeType:    mimeType.String,
		ExternalRef: externalRef.String,
	}
	if sha.Valid {
		value := sha.String
		doc.SHA256 = &value
	}
	if tagsRaw != "" {
		if err := json.Unmarshal([]byte(tagsRaw), &doc.Tags); err != nil {
			return nil, fmt.Errorf("decode document tags: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		doc.CreatedAt = created
	}
	return doc, nil
}
