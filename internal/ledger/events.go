package ledger

// Event types emitted by the pipeline.
const (
	EventRunStarted         = "run.started"
	EventRunCompleted       = "run.completed"
	EventItemIngested       = "item.ingested"
	EventAttachmentIngested = "attachment.ingested"
	EventItemNormalized     = "item.normalized"
	EventRecordLinked       = "record.linked"
)

// Entity types referenced by ledger events.
const (
	EntityRun     = "ingestion_run"
	EntityRawItem = "raw_item"
	EntityRecord  = "record"
)
