package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"docket/internal/ledger"
	"docket/internal/logging"
	"docket/internal/store"
)

// Engine links normalized items to records by scanning item subjects for
// record titles. Candidate records are evaluated in their stored order
// (creation time, then id) and the first hit wins, so repeated passes over
// unchanged data always pick the same record.
type Engine struct {
	store   *store.Store
	ledger  *ledger.Store
	logger  *slog.Logger
	actorID string
}

func New(st *store.Store, lg *ledger.Store, logger *slog.Logger) (*Engine, error) {
	if st == nil || lg == nil {
		return nil, errors.New("match engine requires store and ledger")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		store:  st,
		ledger: lg,
		logger: logging.NewComponentLogger(logger, "match"),
	}, nil
}

// WithActor attributes links and ledger events from subsequent passes to the
// given actor id instead of the implicit system actor.
func (e *Engine) WithActor(actorID string) *Engine {
	e.actorID = actorID
	return e
}

// Result summarizes one matching pass.
type Result struct {
	ItemsMatched   int
	ItemsSkipped   int
	ItemsUnmatched int
}

// Run evaluates every normalized item in the org against the org's records.
// Items already marked matched are left untouched.
func (e *Engine) Run(ctx context.Context, orgID string) (*Result, error) {
	records, err := e.store.ListRecords(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	items, err := e.store.ListNormalizedItems(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list normalized items: %w", err)
	}

	result := &Result{}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if item.Payload.MatchStatus == store.MatchStatusMatched {
			result.ItemsSkipped++
			continue
		}

		record := e.findRecord(records, item)
		if record == nil {
			result.ItemsUnmatched++
			continue
		}
		if err := e.link(ctx, item, record); err != nil {
			return result, err
		}
		result.ItemsMatched++
	}
	return result, nil
}

// findRecord returns the first record whose title appears in the item's
// subject, comparing case-insensitively. A nil return means no candidate
// matched.
func (e *Engine) findRecord(records []*store.Record, item *store.NormalizedItem) *store.Record {
	subject := strings.ToLower(item.Payload.Subject)
	if subject == "" {
		return nil
	}
	for _, record := range records {
		title := strings.ToLower(strings.TrimSpace(record.Title))
		if title == "" {
			continue
		}
		if strings.Contains(subject, title) {
			return record
		}
	}
	return nil
}

func (e *Engine) link(ctx context.Context, item *store.NormalizedItem, record *store.Record) error {
	// Links point at the raw message row, reachable through the idempotency
	// key the normalized item shares with it.
	raw, err := e.store.GetRawItem(ctx, item.OrgID, item.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("load raw item for %s: %w", item.IdempotencyKey, err)
	}
	linkID, created, err := e.store.UpsertRecordLink(ctx, &store.RecordLink{
		OrgID:      item.OrgID,
		SourceType: "message",
		SourceID:   raw.ID,
		TargetType: "record",
		TargetID:   record.ID,
		LinkMethod: store.LinkMethodSystem,
		LinkedBy:   e.actorID,
	})
	if err != nil {
		return fmt.Errorf("link item %s to record %s: %w", item.ID, record.ID, err)
	}

	item.Payload.MatchStatus = store.MatchStatusMatched
	if _, err := e.store.UpsertNormalizedItem(ctx, item); err != nil {
		return fmt.Errorf("mark item %s matched: %w", item.ID, err)
	}

	// Keyed by the link identity so a rerun that re-derives the same link
	// never appends a second event.
	if _, err := e.ledger.Append(ctx, ledger.Event{
		OrgID:      item.OrgID,
		ActorID:    e.actorID,
		EventType:  ledger.EventRecordLinked,
		EntityType: ledger.EntityRecord,
		EntityID:   record.ID,
		Payload: map[string]any{
			"idempotency_key":    "link:message:" + raw.ID + ":record:" + record.ID,
			"link_id":            linkID,
			"link_method":        store.LinkMethodSystem,
			"normalized_item_id": item.ID,
		},
	}); err != nil {
		return fmt.Errorf("ledger linked event: %w", err)
	}

	e.logger.Info("linked item to record",
		logging.String(logging.FieldOrgID, item.OrgID),
		logging.String("normalized_item_id", item.ID),
		logging.String("record_id", record.ID),
		logging.Bool("created", created),
	)
	return nil
}
