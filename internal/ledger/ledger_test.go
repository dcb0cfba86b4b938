package ledger_test

import (
	"context"
	"testing"

	"docket/internal/ledger"
	"docket/internal/testsupport"
)

func TestAppendDeduplicatesByIdempotencyKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	lg := ledger.New(st.DB())
	ctx := context.Background()

	event := ledger.Event{
		OrgID:      "org-1",
		EventType:  ledger.EventItemIngested,
		EntityType: ledger.EntityRawItem,
		EntityID:   "raw-1",
		Payload:    map[string]any{"idempotency_key": "mailbox:msg-1"},
	}

	firstID, err := lg.Append(ctx, event)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	secondID, err := lg.Append(ctx, event)
	if err != nil {
		t.Fatalf("Append rerun failed: %v", err)
	}
	if secondID != firstID {
		t.Fatalf("expected duplicate append to return id %q, got %q", firstID, secondID)
	}

	count, err := lg.CountByType(ctx, "org-1", ledger.EventItemIngested)
	if err != nil {
		t.Fatalf("CountByType failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one event, got %d", count)
	}
}

func TestAppendWithoutKeyAlwaysInserts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	lg := ledger.New(st.DB())
	ctx := context.Background()

	event := ledger.Event{
		OrgID:      "org-1",
		EventType:  ledger.EventRunStarted,
		EntityType: ledger.EntityRun,
		EntityID:   "run-1",
	}
	for i := 0; i < 2; i++ {
		if _, err := lg.Append(ctx, event); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	count, err := lg.CountByType(ctx, "org-1", ledger.EventRunStarted)
	if err != nil {
		t.Fatalf("CountByType failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two distinct events, got %d", count)
	}
}

func TestTimelineNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	lg := ledger.New(st.DB())
	ctx := context.Background()

	types := []string{ledger.EventItemIngested, ledger.EventItemNormalized, ledger.EventRecordLinked}
	for _, eventType := range types {
		if _, err := lg.Append(ctx, ledger.Event{
			OrgID:      "org-1",
			EventType:  eventType,
			EntityType: ledger.EntityRawItem,
			EntityID:   "raw-1",
		}); err != nil {
			t.Fatalf("Append %s failed: %v", eventType, err)
		}
	}

	events, err := lg.Timeline(ctx, "org-1", "raw-1", 10)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].EventType != ledger.EventRecordLinked {
		t.Fatalf("expected newest event first, got %q", events[0].EventType)
	}

	limited, err := lg.Timeline(ctx, "org-1", "raw-1", 1)
	if err != nil {
		t.Fatalf("Timeline with limit failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d events", len(limited))
	}
}

func TestAppendRequiresIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	lg := ledger.New(st.DB())

	if _, err := lg.Append(context.Background(), ledger.Event{OrgID: "org-1"}); err == nil {
		t.Fatal("expected error for incomplete event")
	}
}
