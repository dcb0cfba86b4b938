// Package store persists ingested items, derived views, records, and
// checkpoints in SQLite.
//
// The Store manages database connections, schema migrations, and the three
// write shapes the pipeline relies on: insert with unique-constraint
// conflict (raw items, where conflict is success), upsert by key
// (normalized items, threads, links, checkpoints), and plain insert
// (records, documents). Raw items are append-only: for a given
// (org_id, idempotency_key) at most one row ever exists.
//
// Treat this package as the single source of truth for storage semantics;
// schema changes are added as new files under migrations/.
package store
