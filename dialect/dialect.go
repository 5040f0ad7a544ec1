package dialect

import (
	"context"
	"strings"
)

// Dialect names.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
	D1       = "d1"
)

// ExecQuerier wraps the two database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. v holds the
	// result (e.g. *sql.Result) or is nil.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows into v.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for a
// storage backend.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Valid reports whether name is a known dialect.
func Valid(name string) bool {
	switch name {
	case Postgres, MySQL, SQLite, D1:
		return true
	}
	return false
}

// SQLiteFamily reports whether the dialect speaks the SQLite grammar.
func SQLiteFamily(name string) bool {
	return name == SQLite || name == D1
}

// SupportsILike reports whether the dialect has a native ILIKE operator.
func SupportsILike(name string) bool {
	return name == Postgres
}

// SupportsReturning reports whether the dialect has a RETURNING clause.
func SupportsReturning(name string) bool {
	return name != MySQL
}

// SupportsDefaultKeyword reports whether a VALUES row may use DEFAULT
// for a single cell.
func SupportsDefaultKeyword(name string) bool {
	return name == Postgres || name == MySQL
}

// SupportsNullsOrder reports whether ORDER BY accepts NULLS FIRST/LAST.
func SupportsNullsOrder(name string) bool {
	return name != MySQL
}

// OffsetRequiresLimit reports whether OFFSET is only valid after LIMIT.
func OffsetRequiresLimit(name string) bool {
	return name != Postgres
}

// NoLimit returns the LIMIT value meaning "all rows" for dialects where
// OFFSET requires LIMIT.
func NoLimit(name string) string {
	if name == MySQL {
		return "18446744073709551615"
	}
	return "-1"
}

// Quote quotes an identifier for the dialect. Dotted identifiers are
// quoted per segment.
func Quote(name, ident string) string {
	q := `"`
	if name == MySQL {
		q = "`"
	}
	if ident == "*" {
		return ident
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		if p == "*" {
			continue
		}
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}
