package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store appends and queries the immutable audit ledger. It shares the
// pipeline database; rows are never updated or deleted.
type Store struct {
	db *sql.DB
}

// New wraps an existing database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Event is one audit ledger entry.
type Event struct {
	ID            string
	OrgID         string
	ActorID       string
	ActorType     string
	EventType     string
	EntityType    string
	EntityID      string
	Payload       map[string]any
	CorrelationID string
	CreatedAt     time.Time
}

// Append inserts one event. When the payload carries an idempotency_key and
// a prior event for the same (org, entity type, entity id) carries the same
// key, the insert is suppressed and the existing event id is returned.
func (s *Store) Append(ctx context.Context, event Event) (string, error) {
	if event.OrgID == "" || event.EventType == "" || event.EntityType == "" || event.EntityID == "" {
		return "", errors.New("ledger event requires org, event type, entity type, and entity id")
	}

	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ledger payload: %w", err)
	}

	var idempotencyKey any
	if key, ok := payload["idempotency_key"].(string); ok && key != "" {
		idempotencyKey = key
	}

	actorType := event.ActorType
	if actorType == "" {
		actorType = "system"
	}

	id := uuid.NewString()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO ledger_events (id, org_id, actor_id, actor_type, event_type, entity_type, entity_id, payload, idempotency_key, correlation_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (org_id, entity_type, entity_id, idempotency_key)
             WHERE idempotency_key IS NOT NULL DO NOTHING`,
		id,
		event.OrgID,
		nullable(event.ActorID),
		actorType,
		event.EventType,
		event.EntityType,
		event.EntityID,
		string(payloadJSON),
		idempotencyKey,
		nullable(event.CorrelationID),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("append ledger event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return id, nil
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT id FROM ledger_events
         WHERE org_id = ? AND entity_type = ? AND entity_id = ? AND idempotency_key = ?`,
		event.OrgID,
		event.EntityType,
		event.EntityID,
		idempotencyKey,
	)
	var existingID string
	if err := row.Scan(&existingID); err != nil {
		return "", fmt.Errorf("fetch existing ledger event: %w", err)
	}
	return existingID, nil
}

// Timeline returns events for one entity ordered newest first.
func (s *Store) Timeline(ctx context.Context, orgID, entityID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, org_id, actor_id, actor_type, event_type, entity_type, entity_id, payload, correlation_id, created_at
         FROM ledger_events WHERE org_id = ? AND entity_id = ?
         ORDER BY created_at DESC, id DESC LIMIT ?`,
		orgID,
		entityID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CountByType returns how many events of one type exist for the org. Used
// by run summaries and tests.
func (s *Store) CountByType(ctx context.Context, orgID, eventType string) (int, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM ledger_events WHERE org_id = ? AND event_type = ?`,
		orgID,
		eventType,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count ledger events: %w", err)
	}
	return count, nil
}

// ByCorrelation returns every event emitted under one correlation id,
// oldest first.
func (s *Store) ByCorrelation(ctx context.Context, orgID, correlationID string) ([]*Event, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, org_id, actor_id, actor_type, event_type, entity_type, entity_id, payload, correlation_id, created_at
         FROM ledger_events WHERE org_id = ? AND correlation_id = ?
         ORDER BY created_at, id`,
		orgID,
		correlationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query by correlation: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(scanner interface{ Scan(dest ...any) error }) (*Event, error) {
	var (
		event         Event
		actorID       sql.NullString
		payloadRaw    string
		correlationID sql.NullString
		createdRaw    string
	)
	if err := scanner.Scan(&event.ID, &event.OrgID, &actorID, &event.ActorType, &event.EventType, &event.EntityType, &event.EntityID, &payloadRaw, &correlationID, &createdRaw); err != nil {
		return nil, err
	}
	event.ActorID = actorID.String
	event.CorrelationID = correlationID.String
	if payloadRaw != "" {
		if err := json.Unmarshal([]byte(payloadRaw), &event.Payload); err != nil {
			return nil, fmt.Errorf("decode ledger payload: %w", err)
		}
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		event.CreatedAt = created
	}
	return &event, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
