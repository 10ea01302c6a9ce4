// Package update turns plaintext entry updates into encrypted records ready for
// persistence.
//
// Prepare is all-or-nothing: either every entry is encrypted and stamped, or
// an error is returned and nothing is. Output order always equals input order,
// including when entries are encrypted concurrently.
//
// Each Prepared record carries:
//   - the encrypted entry and tags
//   - an absolute expiry (Unix milliseconds) derived from the relative offset
//   - the record's lock token (see kv.LockToken)
package update
