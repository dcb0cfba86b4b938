package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldOrgID is the standardized structured logging key for organization identifiers.
	FieldOrgID = "org_id"
	// FieldSourceID is the standardized structured logging key for mailbox source identifiers.
	FieldSourceID = "source_id"
	// FieldThreadID is the standardized structured logging key for external thread identifiers.
	FieldThreadID = "thread_id"
	// FieldMessageID is the standardized structured logging key for external message identifiers.
	FieldMessageID = "message_id"
	// FieldCorrelationID is the standardized structured logging key for run correlation identifiers.
	FieldCorrelationID = "correlation_id"
)
