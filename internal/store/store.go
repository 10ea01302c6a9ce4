package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/sealkv/internal/keys"
	"github.com/roach88/sealkv/internal/kv"
	"github.com/roach88/sealkv/internal/querysql"
	"github.com/roach88/sealkv/internal/worker"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Options configures Open.
type Options struct {
	// Driver is a database/sql driver name; empty selects DefaultDriver.
	Driver string

	// DSN is the driver-specific data source name. For SQLite drivers it is
	// the database file path.
	DSN string

	// Dialect overrides the dialect implied by Driver.
	Dialect string

	// Pool runs encryption work. Nil encrypts inline.
	Pool *worker.Pool

	// Concurrency bounds parallel entry encryption in Update. Values <= 1
	// encrypt sequentially.
	Concurrency int

	// Now returns the current time; nil uses time.Now.
	Now func() time.Time

	// NewProfileName generates default profile names; nil uses random UUIDs.
	NewProfileName func() string
}

// Store provides encrypted entry storage over database/sql.
//
// A Store must be provisioned (once per database) and unlocked (once per
// process) before entries can be read or written.
//
// Thread-safety: Store is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect querysql.Dialect
	driver  string

	pool        *worker.Pool
	concurrency int
	now         func() time.Time
	newName     func() string

	locks *lockTable

	mu             sync.RWMutex
	key            *keys.StoreKey
	defaultProfile string
}

// Open connects to the database and applies the schema.
//
// This function is idempotent - safe to call multiple times on the same
// database.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Driver == "" {
		opts.Driver = DefaultDriver
	}
	info, err := lookupDriver(opts.Driver)
	if err != nil {
		return nil, kv.WrapError(kv.ErrCodeInput, "open store", err)
	}
	dsn, err := normalizeDSN(opts.Driver, opts.DSN)
	if err != nil {
		return nil, kv.WrapError(kv.ErrCodeInput, "open store", err)
	}

	dialect := info.dialect
	if opts.Dialect != "" {
		if dialect, err = querysql.LookupDialect(opts.Dialect); err != nil {
			return nil, kv.WrapError(kv.ErrCodeInput, "open store", err)
		}
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, kv.WrapError(kv.ErrCodeBackend, "failed to connect to database", err)
	}

	if info.sqlite {
		// SQLite only supports one writer at a time.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	if err := applySchema(ctx, db, info.schema); err != nil {
		db.Close()
		return nil, kv.WrapError(kv.ErrCodeBackend, "failed to apply schema", err)
	}

	s := newStore(db, dialect, opts)
	s.driver = opts.Driver
	slog.Debug("store opened", "driver", opts.Driver, "dialect", dialect.Name())
	return s, nil
}

// newStore wraps an already configured database handle.
func newStore(db *sql.DB, dialect querysql.Dialect, opts Options) *Store {
	s := &Store{
		db:          db,
		dialect:     dialect,
		pool:        opts.Pool,
		concurrency: opts.Concurrency,
		now:         opts.Now,
		newName:     opts.NewProfileName,
		locks:       newLockTable(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newName == nil {
		s.newName = defaultProfileName
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect used for statements.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables and indexes if they don't exist.
// Statements are executed one at a time since not every driver accepts
// multi-statement Exec.
func applySchema(ctx context.Context, db *sql.DB, file string) error {
	raw, err := schemaFS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var stmts []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// rebind rewrites querysql markers into the store's placeholder syntax,
// numbering from 1.
func (s *Store) rebind(query string) string {
	out, _ := querysql.ReplacePlaceholders(s.dialect, query, 1)
	return out
}

func (s *Store) nowMs() int64 {
	return s.now().UnixMilli()
}

// backendError wraps a driver error, mapping unique violations to DUPLICATE.
func backendError(op string, err error) error {
	if isUniqueViolation(err) {
		return kv.WrapError(kv.ErrCodeDuplicate, op, err)
	}
	return kv.WrapError(kv.ErrCodeBackend, op, err)
}
