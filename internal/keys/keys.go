package keys

import (
	"context"

	"github.com/roach88/sealkv/internal/kv"
)

// TagEncryptor encrypts tag names and values for storage and for filter
// predicates. Both operations must be deterministic for a given key.
type TagEncryptor interface {
	EncryptTagName(name []byte) ([]byte, error)
	EncryptTagValue(value []byte) ([]byte, error)
}

// EntryEncryptor encrypts a whole entry and its tags.
// The returned tag slice is nil when the entry has no tags.
type EntryEncryptor interface {
	EncryptEntry(ctx context.Context, entry kv.Entry) (kv.EncEntry, []kv.EncEntryTag, error)
}

// Encryptor is the full encryption capability.
type Encryptor interface {
	TagEncryptor
	EntryEncryptor
}
