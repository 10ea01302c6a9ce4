// Package kv provides the foundational entry, tag and error types for sealkv.
//
// This package contains type definitions and pure functions only. Every other
// internal package imports kv; kv imports nothing internal.
//
// Key design constraints:
//   - Plaintext types (Entry, EntryTag) never cross the storage boundary; only
//     their encrypted counterparts (EncEntry, EncEntryTag) are persisted
//   - Lock tokens are derived with a versioned, seedless hash so that every
//     process computes the same token for the same record
//   - Errors carry a Code so callers can tell which stage failed
package kv
