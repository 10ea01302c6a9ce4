package store

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"

	"github.com/roach88/sealkv/internal/querysql"
)

// Driver names accepted by Open. Each is registered with database/sql by its
// package.
const (
	DriverSQLite3  = "sqlite3"  // github.com/mattn/go-sqlite3 (cgo)
	DriverSQLite   = "sqlite"   // modernc.org/sqlite (pure Go)
	DriverPgx      = "pgx"      // github.com/jackc/pgx/v5/stdlib
	DriverPostgres = "postgres" // github.com/lib/pq
	DriverMySQL    = "mysql"    // github.com/go-sql-driver/mysql
)

// DefaultDriver is used when Options.Driver is empty.
const DefaultDriver = DriverSQLite3

// driverInfo describes how the store treats one database/sql driver.
type driverInfo struct {
	dialect querysql.Dialect
	schema  string
	sqlite  bool
}

var drivers = map[string]driverInfo{
	DriverSQLite3:  {dialect: querysql.SQLite, schema: "schema/sqlite.sql", sqlite: true},
	DriverSQLite:   {dialect: querysql.SQLite, schema: "schema/sqlite.sql", sqlite: true},
	DriverPgx:      {dialect: querysql.Postgres, schema: "schema/postgres.sql"},
	DriverPostgres: {dialect: querysql.Postgres, schema: "schema/postgres.sql"},
	DriverMySQL:    {dialect: querysql.MySQL, schema: "schema/mysql.sql"},
}

func lookupDriver(name string) (driverInfo, error) {
	if name == "" {
		name = DefaultDriver
	}
	info, ok := drivers[name]
	if !ok {
		return driverInfo{}, fmt.Errorf("unsupported driver %q", name)
	}
	return info, nil
}

// normalizeDSN applies per-driver connection settings.
func normalizeDSN(driver, dsn string) (string, error) {
	switch driver {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		// Schema statements are executed one at a time.
		cfg.MultiStatements = false
		return cfg.FormatDSN(), nil
	case DriverSQLite3:
		if dsn == "" {
			return "", errors.New("sqlite3 dsn must name a database file")
		}
		return dsn, nil
	default:
		if dsn == "" {
			return "", fmt.Errorf("%s dsn is empty", driver)
		}
		return dsn, nil
	}
}

// SQLite extended result code for a UNIQUE constraint violation.
const sqliteConstraintUnique = 2067

// isUniqueViolation reports whether err is a unique-key violation from any of
// the supported drivers.
func isUniqueViolation(err error) bool {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		return mattnErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var modernErr *sqlite.Error
	if errors.As(err, &modernErr) {
		return modernErr.Code() == sqliteConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}
