package kv

// ProfileID identifies a profile row. Every entry belongs to exactly one profile.
type ProfileID int64

// EntryTag is a searchable name/value pair attached to an entry.
//
// Plaintext tags (written "~name" in tag filters) keep their value in the clear
// so it can be range-compared; the name is encrypted either way.
type EntryTag struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Plaintext bool   `json:"plaintext,omitempty"`
}

// Entry is the plaintext form of a stored record.
type Entry struct {
	Category string     `json:"category"`
	Name     string     `json:"name"`
	Value    []byte     `json:"value"`
	Tags     []EntryTag `json:"tags,omitempty"`
}

// EncEntry is the encrypted form of an Entry, ready for persistence.
// Category and Name are searchable (deterministic) ciphertext.
type EncEntry struct {
	Category []byte
	Name     []byte
	Value    []byte
}

// EncEntryTag is the encrypted form of an EntryTag.
// Value holds raw bytes when Plaintext is set.
type EncEntryTag struct {
	Name      []byte
	Value     []byte
	Plaintext bool
}

// UpdateEntry is a caller's intent to write one entry.
// ExpireMs is an offset relative to preparation time; nil means no expiry.
type UpdateEntry struct {
	Entry    Entry
	ExpireMs *int64
}

// EntryOperation selects how the store applies an update.
type EntryOperation int

const (
	// OpInsert adds a new entry and fails if one already exists.
	OpInsert EntryOperation = iota
	// OpReplace overwrites an existing entry and its tags.
	OpReplace
	// OpRemove deletes an existing entry.
	OpRemove
)

// String returns the lowercase operation name.
func (op EntryOperation) String() string {
	switch op {
	case OpInsert:
		return "insert"
	case OpReplace:
		return "replace"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}
