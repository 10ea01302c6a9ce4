package testutil

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/roach88/sealkv/internal/kv"
)

// ErrInjected is returned by FailingEncryptor.
var ErrInjected = errors.New("injected encryption failure")

// PrefixEncryptor is a transparent "encryption" for tests: every field is
// prefixed with a short label so compiled SQL and arguments stay readable.
//
//	tag name  -> "n:" + name
//	tag value -> "v:" + value
//	category  -> "c:" + category
//	name      -> "k:" + name
//	value     -> "e:" + value
type PrefixEncryptor struct{}

// EncryptTagName implements keys.TagEncryptor.
func (PrefixEncryptor) EncryptTagName(name []byte) ([]byte, error) {
	return prefixed("n:", name), nil
}

// EncryptTagValue implements keys.TagEncryptor.
func (PrefixEncryptor) EncryptTagValue(value []byte) ([]byte, error) {
	return prefixed("v:", value), nil
}

// EncryptEntry implements keys.EntryEncryptor.
func (p PrefixEncryptor) EncryptEntry(ctx context.Context, entry kv.Entry) (kv.EncEntry, []kv.EncEntryTag, error) {
	if err := ctx.Err(); err != nil {
		return kv.EncEntry{}, nil, err
	}
	enc := kv.EncEntry{
		Category: prefixed("c:", []byte(entry.Category)),
		Name:     prefixed("k:", []byte(entry.Name)),
		Value:    prefixed("e:", entry.Value),
	}
	var tags []kv.EncEntryTag
	if entry.Tags != nil {
		tags = make([]kv.EncEntryTag, 0, len(entry.Tags))
		for _, tag := range entry.Tags {
			name, _ := p.EncryptTagName([]byte(tag.Name))
			value := []byte(tag.Value)
			if !tag.Plaintext {
				value, _ = p.EncryptTagValue(value)
			}
			tags = append(tags, kv.EncEntryTag{Name: name, Value: value, Plaintext: tag.Plaintext})
		}
	}
	return enc, tags, nil
}

func prefixed(prefix string, b []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(b))
	out = append(out, prefix...)
	return append(out, b...)
}

// FailingEncryptor wraps PrefixEncryptor and fails on chosen inputs.
//
// Thread-safety: Calls is updated atomically.
type FailingEncryptor struct {
	PrefixEncryptor

	// FailName fails tag-name encryption of this name.
	FailName string

	// FailValue fails tag-value encryption of this value.
	FailValue string

	// FailEntry fails entry encryption of the entry with this name.
	FailEntry string

	// Calls counts EncryptEntry invocations.
	Calls atomic.Int64
}

// EncryptTagName implements keys.TagEncryptor.
func (f *FailingEncryptor) EncryptTagName(name []byte) ([]byte, error) {
	if f.FailName != "" && string(name) == f.FailName {
		return nil, ErrInjected
	}
	return f.PrefixEncryptor.EncryptTagName(name)
}

// EncryptTagValue implements keys.TagEncryptor.
func (f *FailingEncryptor) EncryptTagValue(value []byte) ([]byte, error) {
	if f.FailValue != "" && string(value) == f.FailValue {
		return nil, ErrInjected
	}
	return f.PrefixEncryptor.EncryptTagValue(value)
}

// EncryptEntry implements keys.EntryEncryptor.
func (f *FailingEncryptor) EncryptEntry(ctx context.Context, entry kv.Entry) (kv.EncEntry, []kv.EncEntryTag, error) {
	f.Calls.Add(1)
	if f.FailEntry != "" && entry.Name == f.FailEntry {
		return kv.EncEntry{}, nil, ErrInjected
	}
	return f.PrefixEncryptor.EncryptEntry(ctx, entry)
}
