// Package mailbox is the read-only client for the remote mailbox-style API.
//
// It exposes the three operations ingestion needs (paginated thread
// listing, full thread fetch, attachment byte fetch) behind the Source
// interface, classifies HTTP failures into the permission/propagation
// taxonomy the orchestrator branches on, and takes its bearer credential
// from an injected TokenProvider so the client never manages token
// lifecycle.
package mailbox
