// Package ingest orchestrates one mailbox ingestion pass: source preflight,
// paginated thread listing, raw item and attachment persistence, and the
// per-source checkpoint. A file lock keeps concurrent passes off the same
// source.
package ingest
