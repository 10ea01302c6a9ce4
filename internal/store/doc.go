// Package store persists encrypted entries in a SQL database.
//
// The store is the execution boundary for the query builders in querysql and
// the records produced by update.Prepare. It owns:
//   - Schema: config, profiles, items and items_tags tables, created with
//     CREATE ... IF NOT EXISTS for each supported backend
//   - Profiles: independent key scopes within one database
//   - Reads: Fetch, Scan and Count, with tag filters and expiry applied in SQL
//   - Writes: Update (insert, replace, remove) and RemoveAll
//
// # Backends
//
//	sqlite3  - github.com/mattn/go-sqlite3 (default)
//	sqlite   - modernc.org/sqlite
//	pgx      - github.com/jackc/pgx/v5/stdlib
//	postgres - github.com/lib/pq
//	mysql    - github.com/go-sql-driver/mysql
//
// SQLite databases are configured with WAL mode, a 5-second busy timeout and
// foreign key enforcement, and use a single connection.
//
// # Locking
//
// Writes lock every affected record by its lock token, in ascending token
// order, after encryption has finished. Tokens are held in-process for the
// duration of the transaction; on PostgreSQL each token is also taken as a
// transaction-scoped advisory lock so concurrent processes serialize too.
//
// # Keys
//
// Provision records the key method, KDF salt and a key-check value in the
// config table. Unlock re-derives the key and compares the check value, so a
// wrong pass key fails with an ENCRYPTION error before any entry is read.
package store
