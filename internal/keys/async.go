package keys

import (
	"context"

	"github.com/roach88/sealkv/internal/kv"
	"github.com/roach88/sealkv/internal/worker"
)

// Async wraps a StoreKey so that entry encryption runs on a worker pool.
// Tag encryption stays synchronous; the filter compiler already offloads the
// whole walk.
type Async struct {
	*StoreKey
	pool *worker.Pool
}

// NewAsync returns an Encryptor that offloads EncryptEntry to pool.
// A nil pool encrypts inline.
func NewAsync(key *StoreKey, pool *worker.Pool) *Async {
	return &Async{StoreKey: key, pool: pool}
}

type encrypted struct {
	entry kv.EncEntry
	tags  []kv.EncEntryTag
}

// EncryptEntry implements EntryEncryptor.
func (a *Async) EncryptEntry(ctx context.Context, entry kv.Entry) (kv.EncEntry, []kv.EncEntryTag, error) {
	out, err := worker.Do(ctx, a.pool, func() (encrypted, error) {
		e, tags, err := a.StoreKey.encryptEntry(entry)
		return encrypted{entry: e, tags: tags}, err
	})
	if err != nil {
		return kv.EncEntry{}, nil, err
	}
	return out.entry, out.tags, nil
}

var (
	_ Encryptor = (*StoreKey)(nil)
	_ Encryptor = (*Async)(nil)
)
