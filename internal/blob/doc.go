// Package blob stores attachment bytes under content-addressed paths.
//
// The Saver decides between inline storage (fetch, SHA-256, write at
// org/mailbox/hash/filename) and reference-only markers for attachments
// over the configured size threshold. Storage is an interface; the
// filesystem implementation here is what the CLI wires in.
package blob
