package kv

// Version constants for the storage layout and the lock-token algorithm.
const (
	// SchemaVersion is the version recorded in the config table at provision time.
	SchemaVersion = "1"

	// DomainLockToken is the hash domain for LockToken. Bump the suffix if the
	// field order or encoding ever changes.
	DomainLockToken = "sealkv/lock/v1"
)
