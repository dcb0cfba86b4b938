package store

import "time"

// IdempotencyKey derives the deterministic key for one external item.
func IdempotencyKey(sourceType, externalID string) string {
	return sourceType + ":" + externalID
}

// RawItem is one append-only row per external item. Rows are never mutated
// or deleted after creation.
type RawItem struct {
	ID             string
	OrgID          string
	IdempotencyKey string
	SourceType     string
	Payload        map[string]any
	CreatedAt      time.Time
}

// Party is one extracted participant on a normalized item.
type Party struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Confidence int    `json:"confidence"`
}

// Match status values for normalized items.
const (
	MatchStatusUnmatched = "unmatched"
	MatchStatusMatched   = "matched"
)

// NormalizedPayload is the structured view derived from one raw item.
type NormalizedPayload struct {
	Parties           []Party `json:"parties"`
	DocType           string  `json:"doc_type"`
	DocTypeConfidence int     `json:"doc_type_confidence"`
	ItemConfidence    int     `json:"item_confidence"`
	MatchStatus       string  `json:"match_status"`
	Subject           string  `json:"subject,omitempty"`
}

// NormalizedItem is the upserted structured counterpart of a RawItem,
// keyed by the same idempotency key so reruns overwrite rather than
// duplicate.
type NormalizedItem struct {
	ID             string
	OrgID          string
	IdempotencyKey string
	SourceType     string
	NormalizedType string
	Payload        NormalizedPayload
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Record is a canonical business entity that ingested items link against.
type Record struct {
	ID           string
	OrgID        string
	RecordType   string
	RecordTypeID string
	Title        string
	Status       string
	Tags         []string
	CreatedAt    time.Time
}

// Link method values for record links.
const (
	LinkMethodRule   = "rule"
	LinkMethodManual = "manual"
	LinkMethodSystem = "system"
)

// RecordLink associates an ingested item with a canonical record.
type RecordLink struct {
	ID         string
	OrgID      string
	SourceType string
	SourceID   string
	TargetType string
	TargetID   string
	LinkMethod string
	LinkedBy   string
	LinkedAt   time.Time
}

// Document points at stored attachment content. SHA256 is nil for
// reference-only documents whose bytes were never fetched.
type Document struct {
	ID          string
	OrgID       string
	Name        string
	StoragePath string
	SHA256      *string
	ByteSize    int64
	MimeType    string
	ExternalRef string
	Tags        []string
	CreatedAt   time.Time
}

// Thread aggregates the messages of one external container.
type Thread struct {
	ID             string
	OrgID          string
	ExternalID     string
	Subject        string
	Participants   []string
	FirstMessageAt *time.Time
	LastMessageAt  *time.Time
	HasAttachments bool
	MessageCount   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CheckpointStatus reflects the state of the most recent ingestion run.
type CheckpointStatus string

const (
	CheckpointIdle    CheckpointStatus = "idle"
	CheckpointRunning CheckpointStatus = "running"
	CheckpointError   CheckpointStatus = "error"
)

// Checkpoint records how far ingestion progressed for one source.
type Checkpoint struct {
	SourceID         string
	OrgID            string
	LastCursor       string
	LastRunAt        *time.Time
	Status           CheckpointStatus
	LastErrorMessage string
	UpdatedAt        time.Time
}
