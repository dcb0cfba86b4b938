package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	"docket/internal/message"
)

// ByteFetcher retrieves attachment bytes from the remote source.
type ByteFetcher interface {
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// Saver applies the attachment storage policy: small attachments are
// content-addressed and persisted as blobs, large ones are recorded by
// reference only and their bytes never fetched.
type Saver struct {
	fetch          ByteFetcher
	storage        Storage
	maxInlineBytes int64
}

// NewSaver constructs a Saver with the given inline size threshold.
func NewSaver(fetch ByteFetcher, storage Storage, maxInlineBytes int64) (*Saver, error) {
	if fetch == nil {
		return nil, errors.New("byte fetcher required")
	}
	if storage == nil {
		return nil, errors.New("storage required")
	}
	if maxInlineBytes <= 0 {
		return nil, errors.New("inline threshold must be positive")
	}
	return &Saver{fetch: fetch, storage: storage, maxInlineBytes: maxInlineBytes}, nil
}

// SaveRequest identifies one attachment to persist.
type SaveRequest struct {
	OrgID      string
	MailboxID  string
	SourceType string
	MessageID  string
	Attachment message.AttachmentRef
}

// SaveResult describes where an attachment landed. SHA256 is nil for
// reference-only results.
type SaveResult struct {
	StoragePath string
	SHA256      *string
	ByteSize    int64
	MimeType    string
	Filename    string
	Stored      bool
}

// Save fetches, hashes, and stores one attachment, or records a reference
// marker when the declared size exceeds the threshold. Exactly-threshold
// attachments are stored.
func (s *Saver) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	ref := req.Attachment
	if ref.AttachmentID == "" {
		return nil, errors.New("attachment id required")
	}

	filename := sanitizeFilename(ref.Filename)

	if ref.ByteSize > s.maxInlineBytes {
		return &SaveResult{
			StoragePath: ReferenceMarker(req.SourceType, req.MessageID, ref.AttachmentID),
			ByteSize:    ref.ByteSize,
			MimeType:    ref.MimeType,
			Filename:    filename,
			Stored:      false,
		}, nil
	}

	data, err := s.fetch.GetAttachment(ctx, req.MessageID, ref.AttachmentID)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment bytes: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	storagePath := StoragePath(req.OrgID, req.MailboxID, hash, filename)

	if err := s.storage.Put(ctx, storagePath, data, ref.MimeType); err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	return &SaveResult{
		StoragePath: storagePath,
		SHA256:      &hash,
		ByteSize:    int64(len(data)),
		MimeType:    ref.MimeType,
		Filename:    filename,
		Stored:      true,
	}, nil
}

// StoragePath derives the deterministic content-addressed location for an
// attachment. Identical content in the same org/mailbox always maps to the
// same directory, deduplicating the stored blob.
func StoragePath(orgID, mailboxID, sha256Hex, filename string) string {
	return path.Join(orgID, mailboxID, sha256Hex, filename)
}

// ReferenceMarker derives the deterministic placeholder recorded for an
// attachment whose bytes were not fetched.
func ReferenceMarker(sourceType, messageID, attachmentID string) string {
	return "ref:" + sourceType + ":" + messageID + ":" + attachmentID
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "attachment"
	}
	return name
}
