// Package keys provides the encryption capability used by the filter compiler,
// the update preparer and the store.
//
// The core packages only depend on the narrow interfaces:
//
//	TagEncryptor    - EncryptTagName / EncryptTagValue (sync, deterministic)
//	EntryEncryptor  - EncryptEntry (context-aware, may run on a worker pool)
//
// StoreKey is the concrete implementation. All subkeys are derived from one
// 32-byte master key with HKDF-SHA256:
//
//	category, name, value, tag_name, tag_value, hmac
//
// Searchable fields (category, name, tag names and encrypted tag values) are
// sealed with ChaCha20-Poly1305 under a nonce of HMAC-SHA256(hmac, plaintext),
// truncated to 12 bytes. Equal plaintexts therefore produce equal ciphertexts,
// which is what lets SQL compare them. Entry values use a random nonce and are
// bound to their record through the additional data.
//
// # Key Methods
//
//   - raw: the pass key is a base64 or hex encoded 32-byte key
//   - kdf:argon2i:mod / kdf:argon2i:int: the pass key is a passphrase,
//     stretched with Argon2 and a per-store salt
package keys
