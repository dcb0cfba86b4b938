package match_test

import (
	"context"
	"testing"

	"docket/internal/ledger"
	"docket/internal/match"
	"docket/internal/store"
	"docket/internal/testsupport"
)

func newFixture(t *testing.T) (*store.Store, *ledger.Store, *match.Engine) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	lg := ledger.New(st.DB())
	engine, err := match.New(st, lg, nil)
	if err != nil {
		t.Fatalf("match.New failed: %v", err)
	}
	return st, lg, engine
}

// seedNormalizedItem stores a raw message and its normalized counterpart
// under the shared idempotency key, returning the normalized item and the raw
// row id links point at.
func seedNormalizedItem(t *testing.T, st *store.Store, orgID, externalID, subject string) (*store.NormalizedItem, string) {
	t.Helper()
	ctx := context.Background()
	key := store.IdempotencyKey("mailbox", externalID)
	rawID, _, err := st.CreateRawItem(ctx, orgID, key, "mailbox", map[string]any{
		"message_id": externalID,
		"subject":    subject,
	})
	if err != nil {
		t.Fatalf("CreateRawItem failed: %v", err)
	}
	item := &store.NormalizedItem{
		OrgID:          orgID,
		IdempotencyKey: key,
		SourceType:     "mailbox",
		NormalizedType: "message",
		Payload: store.NormalizedPayload{
			Subject:     subject,
			MatchStatus: store.MatchStatusUnmatched,
		},
	}
	if _, err := st.UpsertNormalizedItem(ctx, item); err != nil {
		t.Fatalf("UpsertNormalizedItem failed: %v", err)
	}
	stored, err := st.GetNormalizedItem(ctx, orgID, key)
	if err != nil {
		t.Fatalf("GetNormalizedItem failed: %v", err)
	}
	return stored, rawID
}

func TestRunLinksBySubjectCaseInsensitive(t *testing.T) {
	st, lg, engine := newFixture(t)
	ctx := context.Background()

	record := testsupport.NewRecord(t, st, "org-1", "Acme Renewal")
	item, rawID := seedNormalizedItem(t, st, "org-1", "msg-1", "RE: acme renewal - signed copy")

	result, err := engine.Run(ctx, "org-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ItemsMatched != 1 || result.ItemsUnmatched != 0 {
		t.Fatalf("unexpected result: %#v", result)
	}

	link, err := st.FindLinkBySource(ctx, "message", rawID, "record")
	if err != nil {
		t.Fatalf("FindLinkBySource failed: %v", err)
	}
	if link.TargetID != record.ID || link.LinkMethod != store.LinkMethodSystem {
		t.Fatalf("unexpected link: %#v", link)
	}

	updated, err := st.GetNormalizedItem(ctx, "org-1", item.IdempotencyKey)
	if err != nil {
		t.Fatalf("GetNormalizedItem failed: %v", err)
	}
	if updated.Payload.MatchStatus != store.MatchStatusMatched {
		t.Fatalf("expected matched status, got %q", updated.Payload.MatchStatus)
	}

	count, err := lg.CountByType(ctx, "org-1", ledger.EventRecordLinked)
	if err != nil {
		t.Fatalf("CountByType failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 linked event, got %d", count)
	}
}

func TestRunFirstMatchWins(t *testing.T) {
	st, _, engine := newFixture(t)
	ctx := context.Background()

	first := testsupport.NewRecord(t, st, "org-1", "Quarterly Report")
	testsupport.NewRecord(t, st, "org-1", "Report")
	_, rawID := seedNormalizedItem(t, st, "org-1", "msg-1", "Quarterly Report attached")

	if _, err := engine.Run(ctx, "org-1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	link, err := st.FindLinkBySource(ctx, "message", rawID, "record")
	if err != nil {
		t.Fatalf("FindLinkBySource failed: %v", err)
	}
	if link.TargetID != first.ID {
		t.Fatalf("expected first candidate %s, got %s", first.ID, link.TargetID)
	}
}

func TestRunLeavesNonMatchingItemsUnmatched(t *testing.T) {
	st, lg, engine := newFixture(t)
	ctx := context.Background()

	testsupport.NewRecord(t, st, "org-1", "Acme Renewal")
	item, rawID := seedNormalizedItem(t, st, "org-1", "msg-1", "Lunch on Friday?")

	result, err := engine.Run(ctx, "org-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ItemsUnmatched != 1 || result.ItemsMatched != 0 {
		t.Fatalf("unexpected result: %#v", result)
	}

	if _, err := st.FindLinkBySource(ctx, "message", rawID, "record"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	updated, err := st.GetNormalizedItem(ctx, "org-1", item.IdempotencyKey)
	if err != nil {
		t.Fatalf("GetNormalizedItem failed: %v", err)
	}
	if updated.Payload.MatchStatus != store.MatchStatusUnmatched {
		t.Fatalf("expected unmatched status, got %q", updated.Payload.MatchStatus)
	}
	count, err := lg.CountByType(ctx, "org-1", ledger.EventRecordLinked)
	if err != nil {
		t.Fatalf("CountByType failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no linked events, got %d", count)
	}
}

func TestRerunIsDeterministicAndIdempotent(t *testing.T) {
	st, lg, engine := newFixture(t)
	ctx := context.Background()

	record := testsupport.NewRecord(t, st, "org-1", "Acme Renewal")
	_, rawID := seedNormalizedItem(t, st, "org-1", "msg-1", "acme renewal terms")

	if _, err := engine.Run(ctx, "org-1"); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := engine.Run(ctx, "org-1")
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if second.ItemsMatched != 0 || second.ItemsSkipped != 1 {
		t.Fatalf("expected second pass to skip the matched item: %#v", second)
	}

	links, err := st.ListRecordLinks(ctx, "org-1", record.ID)
	if err != nil {
		t.Fatalf("ListRecordLinks failed: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected one link after rerun, got %d", len(links))
	}
	if links[0].SourceType != "message" || links[0].SourceID != rawID {
		t.Fatalf("unexpected link source: %#v", links[0])
	}

	count, err := lg.CountByType(ctx, "org-1", ledger.EventRecordLinked)
	if err != nil {
		t.Fatalf("CountByType failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one linked event after rerun, got %d", count)
	}
}
