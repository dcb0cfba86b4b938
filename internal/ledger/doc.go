// Package ledger maintains the append-only audit trail of pipeline state
// transitions.
//
// Every meaningful transition (run lifecycle, item ingestion, attachment
// storage, record linking) lands here as an immutable event. Appends may
// carry an idempotency key in their payload; a duplicate append for the
// same entity returns the existing event id instead of inserting, which
// keeps rerun-heavy callers from double-logging.
package ledger
