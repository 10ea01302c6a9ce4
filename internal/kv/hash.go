package kv

import (
	"crypto/sha256"
	"encoding/binary"
)

// LockToken derives the advisory serialization key for a (profile, category,
// name) record.
//
// Format: first 8 bytes (big-endian) of
//
//	SHA256(DomainLockToken + 0x00 + profile(8B BE) + uvarint(len) + category + uvarint(len) + name)
//
// Length prefixes keep ("ab", "c") and ("a", "bc") apart. The token is stable
// across processes and restarts; collisions only cause extra serialization.
func LockToken(profile ProfileID, category, name []byte) int64 {
	h := sha256.New()
	h.Write([]byte(DomainLockToken))
	h.Write([]byte{0x00})

	var buf [binary.MaxVarintLen64]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(profile))
	h.Write(buf[:8])

	n := binary.PutUvarint(buf[:], uint64(len(category)))
	h.Write(buf[:n])
	h.Write(category)

	n = binary.PutUvarint(buf[:], uint64(len(name)))
	h.Write(buf[:n])
	h.Write(name)

	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// EntryLockToken is LockToken over an entry's plaintext category and name.
func EntryLockToken(profile ProfileID, e Entry) int64 {
	return LockToken(profile, []byte(e.Category), []byte(e.Name))
}
