package testsupport

import (
	"context"
	"testing"

	"docket/internal/config"
	"docket/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewRecord creates a canonical record for tests using the provided store.
func NewRecord(t testing.TB, st *store.Store, orgID, title string) *store.Record {
	t.Helper()

	record := &store.Record{
		OrgID:      orgID,
		RecordType: "matter",
		Title:      title,
	}
	id, err := st.CreateRecord(context.Background(), record)
	if err != nil {
		t.Fatalf("store.CreateRecord: %v", err)
	}
	record.ID = id
	return record
}
