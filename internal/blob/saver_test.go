package blob_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"docket/internal/blob"
	"docket/internal/message"
)

type fakeFetcher struct {
	data    map[string][]byte
	fetches int
}

func (f *fakeFetcher) GetAttachment(_ context.Context, messageID, attachmentID string) ([]byte, error) {
	f.fetches++
	data, ok := f.data[attachmentID]
	if !ok {
		return nil, fmt.Errorf("unknown attachment %s", attachmentID)
	}
	return data, nil
}

func newSaver(t *testing.T, fetch *fakeFetcher, threshold int64) (*blob.Saver, *blob.FS) {
	t.Helper()
	fs, err := blob.NewFS(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	saver, err := blob.NewSaver(fetch, fs, threshold)
	if err != nil {
		t.Fatalf("NewSaver failed: %v", err)
	}
	return saver, fs
}

func TestSaveStoresContentAddressed(t *testing.T) {
	payload := []byte("attachment body")
	fetch := &fakeFetcher{data: map[string][]byte{"att-1": payload}}
	saver, fs := newSaver(t, fetch, 1024)

	result, err := saver.Save(context.Background(), blob.SaveRequest{
		OrgID:      "org-1",
		MailboxID:  "mbx-1",
		SourceType: "mailbox",
		MessageID:  "msg-1",
		Attachment: message.AttachmentRef{AttachmentID: "att-1", Filename: "notes.txt", MimeType: "text/plain", ByteSize: int64(len(payload))},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !result.Stored || result.SHA256 == nil {
		t.Fatalf("expected stored result, got %#v", result)
	}

	sum := sha256.Sum256(payload)
	wantHash := hex.EncodeToString(sum[:])
	if *result.SHA256 != wantHash {
		t.Fatalf("unexpected hash: %q", *result.SHA256)
	}
	wantPath := blob.StoragePath("org-1", "mbx-1", wantHash, "notes.txt")
	if result.StoragePath != wantPath {
		t.Fatalf("unexpected storage path: %q", result.StoragePath)
	}

	stored, err := os.ReadFile(filepath.Join(fs.Root(), filepath.FromSlash(wantPath)))
	if err != nil {
		t.Fatalf("read stored blob: %v", err)
	}
	if !bytes.Equal(stored, payload) {
		t.Fatal("stored bytes differ from fetched bytes")
	}
}

func TestSaveIdenticalBytesShareOneBlob(t *testing.T) {
	payload := []byte("same content")
	fetch := &fakeFetcher{data: map[string][]byte{"att-1": payload, "att-2": payload}}
	saver, fs := newSaver(t, fetch, 1024)

	first, err := saver.Save(context.Background(), blob.SaveRequest{
		OrgID: "org-1", MailboxID: "mbx-1", SourceType: "mailbox", MessageID: "msg-1",
		Attachment: message.AttachmentRef{AttachmentID: "att-1", Filename: "a.txt", ByteSize: int64(len(payload))},
	})
	if err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	second, err := saver.Save(context.Background(), blob.SaveRequest{
		OrgID: "org-1", MailboxID: "mbx-1", SourceType: "mailbox", MessageID: "msg-2",
		Attachment: message.AttachmentRef{AttachmentID: "att-2", Filename: "a.txt", ByteSize: int64(len(payload))},
	})
	if err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	if *first.SHA256 != *second.SHA256 {
		t.Fatalf("expected identical hashes, got %q and %q", *first.SHA256, *second.SHA256)
	}
	if first.StoragePath != second.StoragePath {
		t.Fatalf("expected one storage path, got %q and %q", first.StoragePath, second.StoragePath)
	}

	hashDir := filepath.Join(fs.Root(), "org-1", "mbx-1", *first.SHA256)
	entries, err := os.ReadDir(hashDir)
	if err != nil {
		t.Fatalf("read hash dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one stored blob, found %d", len(entries))
	}
}

func TestSaveThresholdBoundary(t *testing.T) {
	threshold := int64(64)
	atLimit := bytes.Repeat([]byte("a"), int(threshold))
	fetch := &fakeFetcher{data: map[string][]byte{"att-small": atLimit}}
	saver, _ := newSaver(t, fetch, threshold)

	stored, err := saver.Save(context.Background(), blob.SaveRequest{
		OrgID: "org-1", MailboxID: "mbx-1", SourceType: "mailbox", MessageID: "msg-1",
		Attachment: message.AttachmentRef{AttachmentID: "att-small", Filename: "exact.bin", ByteSize: threshold},
	})
	if err != nil {
		t.Fatalf("Save at threshold failed: %v", err)
	}
	if !stored.Stored || stored.SHA256 == nil {
		t.Fatal("expected exactly-threshold attachment to be stored")
	}

	over, err := saver.Save(context.Background(), blob.SaveRequest{
		OrgID: "org-1", MailboxID: "mbx-1", SourceType: "mailbox", MessageID: "msg-2",
		Attachment: message.AttachmentRef{AttachmentID: "att-big", Filename: "huge.bin", ByteSize: threshold + 1},
	})
	if err != nil {
		t.Fatalf("Save over threshold failed: %v", err)
	}
	if over.Stored || over.SHA256 != nil {
		t.Fatalf("expected reference-only result, got %#v", over)
	}
	if over.StoragePath != blob.ReferenceMarker("mailbox", "msg-2", "att-big") {
		t.Fatalf("unexpected reference marker: %q", over.StoragePath)
	}
	if fetch.fetches != 1 {
		t.Fatalf("expected no byte fetch for oversize attachment, fetches=%d", fetch.fetches)
	}
}

func TestSaveSanitizesFilename(t *testing.T) {
	payload := []byte("x")
	fetch := &fakeFetcher{data: map[string][]byte{"att-1": payload}}
	saver, _ := newSaver(t, fetch, 1024)

	result, err := saver.Save(context.Background(), blob.SaveRequest{
		OrgID: "org-1", MailboxID: "mbx-1", SourceType: "mailbox", MessageID: "msg-1",
		Attachment: message.AttachmentRef{AttachmentID: "att-1", Filename: "../../etc/passwd", ByteSize: 1},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Base(result.StoragePath) != "passwd" {
		t.Fatalf("unexpected filename in path: %q", result.StoragePath)
	}
	if bytes.Contains([]byte(result.StoragePath), []byte("..")) {
		t.Fatalf("expected traversal stripped, got %q", result.StoragePath)
	}
}
