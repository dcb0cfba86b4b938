package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"docket/internal/ledger"
	"docket/internal/logging"
	"docket/internal/store"
)

// Confidence scores assigned by the engine.
const (
	senderConfidence      = 95
	recipientConfidence   = 90
	withPartiesConfidence = 85
	bareItemConfidence    = 70
)

// Classifier derives a document type from a raw item's payload.
type Classifier interface {
	Classify(payload map[string]any) (docType string, confidence int)
}

// StubClassifier is the default classifier: everything is "other".
type StubClassifier struct{}

func (StubClassifier) Classify(map[string]any) (string, int) {
	return "other", 50
}

// Engine derives normalized items from raw items. Writes are idempotent
// upserts keyed on the raw item's idempotency key, so full reruns are safe.
type Engine struct {
	store         *store.Store
	ledger        *ledger.Store
	classifier    Classifier
	maxRecipients int
	logger        *slog.Logger
	titleCaser    cases.Caser
}

// New constructs an Engine. A nil classifier falls back to the stub.
func New(st *store.Store, lg *ledger.Store, classifier Classifier, maxRecipients int, logger *slog.Logger) (*Engine, error) {
	if st == nil || lg == nil {
		return nil, errors.New("normalize engine requires store and ledger")
	}
	if classifier == nil {
		classifier = StubClassifier{}
	}
	if maxRecipients <= 0 {
		maxRecipients = 10
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		store:         st,
		ledger:        lg,
		classifier:    classifier,
		maxRecipients: maxRecipients,
		logger:        logging.NewComponentLogger(logger, "normalize"),
		titleCaser:    cases.Title(language.English),
	}, nil
}

// Result summarizes one normalization pass.
type Result struct {
	ItemsNormalized int
	ItemsSkipped    int
}

// Run normalizes every raw item in the org. Items with unusable payloads
// are logged and skipped rather than failing the pass.
func (e *Engine) Run(ctx context.Context, orgID string) (*Result, error) {
	items, err := e.store.ListRawItems(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list raw items: %w", err)
	}

	result := &Result{}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if item.Payload == nil {
			e.logger.Warn("raw item has no payload; skipping",
				logging.String(logging.FieldOrgID, orgID),
				logging.String("idempotency_key", item.IdempotencyKey),
			)
			result.ItemsSkipped++
			continue
		}
		if err := e.normalizeItem(ctx, item); err != nil {
			return result, err
		}
		result.ItemsNormalized++
	}
	return result, nil
}

func (e *Engine) normalizeItem(ctx context.Context, item *store.RawItem) error {
	payload := e.derivePayload(item.Payload)

	normalized := &store.NormalizedItem{
		OrgID:          item.OrgID,
		IdempotencyKey: item.IdempotencyKey,
		SourceType:     item.SourceType,
		NormalizedType: "message",
		Payload:        payload,
	}
	if _, err := e.store.UpsertNormalizedItem(ctx, normalized); err != nil {
		return fmt.Errorf("upsert normalized item %s: %w", item.IdempotencyKey, err)
	}

	if _, err := e.ledger.Append(ctx, ledger.Event{
		OrgID:      item.OrgID,
		EventType:  ledger.EventItemNormalized,
		EntityType: ledger.EntityRawItem,
		EntityID:   item.ID,
		Payload: map[string]any{
			"idempotency_key": item.IdempotencyKey,
			"doc_type":        payload.DocType,
			"party_count":     len(payload.Parties),
		},
	}); err != nil {
		return fmt.Errorf("ledger normalized event: %w", err)
	}
	return nil
}

func (e *Engine) derivePayload(raw map[string]any) store.NormalizedPayload {
	var parties []store.Party

	if sender := stringValue(raw, "from"); sender != "" {
		parties = append(parties, store.Party{
			Name:       e.displayName(stringValue(raw, "from_name")),
			Email:      sender,
			Role:       "sender",
			Confidence: senderConfidence,
		})
	}

	for i, recipient := range stringSlice(raw, "to") {
		if i >= e.maxRecipients {
			break
		}
		parties = append(parties, store.Party{
			Email:      recipient,
			Role:       "recipient",
			Confidence: recipientConfidence,
		})
	}

	docType, docConfidence := e.classifier.Classify(raw)

	itemConfidence := bareItemConfidence
	if len(parties) > 0 {
		itemConfidence = withPartiesConfidence
	}

	return store.NormalizedPayload{
		Parties:           parties,
		DocType:           docType,
		DocTypeConfidence: docConfidence,
		ItemConfidence:    itemConfidence,
		MatchStatus:       store.MatchStatusUnmatched,
		Subject:           stringValue(raw, "subject"),
	}
}

// displayName tidies all-caps and all-lowercase sender names; mixed-case
// names pass through untouched.
func (e *Engine) displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if name == strings.ToUpper(name) || name == strings.ToLower(name) {
		return e.titleCaser.String(strings.ToLower(name))
	}
	return name
}

func stringValue(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return strings.TrimSpace(value)
}

func stringSlice(payload map[string]any, key string) []string {
	switch typed := payload[key].(type) {
	case []string:
		return typed
	case []any:
		values := make([]string, 0, len(typed))
		for _, entry := range typed {
			if s, ok := entry.(string); ok && strings.TrimSpace(s) != "" {
				values = append(values, strings.TrimSpace(s))
			}
		}
		return values
	default:
		return nil
	}
}
