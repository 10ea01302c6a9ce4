package querysql

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dialect abstracts the SQL syntax differences between backends.
type Dialect interface {
	// Name identifies the dialect in configuration and metrics.
	Name() string

	// Placeholder renders the bind parameter for a 1-based argument index.
	Placeholder(index int64) string

	// LimitClause returns the pagination fragment, with the offset marker
	// before the limit marker.
	LimitClause() string

	// NoLimit is the limit value the backend treats as unbounded.
	NoLimit() int64

	// BlobLiteral renders b as an inline binary literal.
	BlobLiteral(b []byte) string

	// LockStatement acquires a transaction-scoped lock on one token marker,
	// or is empty when the backend has no advisory locks.
	LockStatement() string

	// Returning is the suffix that makes an INSERT return the new id,
	// or empty when the driver reports it via LastInsertId.
	Returning() string
}

// Dialect names accepted by LookupDialect.
const (
	DialectDefault  = "default"
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

var (
	// Default uses anonymous "?" placeholders and SQLite pagination.
	Default Dialect = defaultDialect{}

	// SQLite uses numbered "?N" placeholders.
	SQLite Dialect = sqliteDialect{}

	// Postgres uses "$N" placeholders.
	Postgres Dialect = postgresDialect{}

	// MySQL uses "?" placeholders and a maximal limit for "unbounded".
	MySQL Dialect = mysqlDialect{}
)

// LookupDialect returns the dialect registered under name.
// Driver names are accepted as aliases.
func LookupDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", DialectDefault:
		return Default, nil
	case DialectSQLite, "sqlite3":
		return SQLite, nil
	case DialectPostgres, "postgresql", "pgx":
		return Postgres, nil
	case DialectMySQL:
		return MySQL, nil
	default:
		return nil, fmt.Errorf("unknown SQL dialect %q", name)
	}
}

type defaultDialect struct{}

func (defaultDialect) Name() string                { return DialectDefault }
func (defaultDialect) Placeholder(int64) string    { return "?" }
func (defaultDialect) LimitClause() string         { return " LIMIT $$, $$" }
func (defaultDialect) NoLimit() int64              { return -1 }
func (defaultDialect) BlobLiteral(b []byte) string { return hexLiteral(b) }
func (defaultDialect) LockStatement() string       { return "" }
func (defaultDialect) Returning() string           { return "" }

type sqliteDialect struct{ defaultDialect }

func (sqliteDialect) Name() string { return DialectSQLite }

func (sqliteDialect) Placeholder(index int64) string {
	return "?" + strconv.FormatInt(index, 10)
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return DialectPostgres }

func (postgresDialect) Placeholder(index int64) string {
	return "$" + strconv.FormatInt(index, 10)
}

// NULLIF maps the unbounded sentinel to LIMIT NULL, which Postgres reads as
// no limit; a negative LIMIT is an error there.
func (postgresDialect) LimitClause() string { return " OFFSET $$ LIMIT NULLIF($$::bigint, -1)" }
func (postgresDialect) NoLimit() int64      { return -1 }

func (postgresDialect) BlobLiteral(b []byte) string {
	return "decode('" + hex.EncodeToString(b) + "', 'hex')"
}

func (postgresDialect) LockStatement() string { return "SELECT pg_advisory_xact_lock($$)" }
func (postgresDialect) Returning() string     { return " RETURNING id" }

type mysqlDialect struct{ defaultDialect }

func (mysqlDialect) Name() string { return DialectMySQL }

// MySQL rejects negative limits; its documented idiom is the largest value.
func (mysqlDialect) NoLimit() int64 { return math.MaxInt64 }

func hexLiteral(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}
