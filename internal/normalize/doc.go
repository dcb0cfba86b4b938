// Package normalize derives structured items (parties, document type,
// confidence scores) from stored raw items.
//
// The engine rereads every raw item on each pass; because normalized
// writes are upserts keyed on the raw item's idempotency key, a full rerun
// overwrites rather than duplicates and produces identical output for
// identical input. The document-type Classifier is pluggable; the default
// stub labels everything "other".
package normalize
