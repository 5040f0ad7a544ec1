package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConstraintKind classifies a constraint violation.
type ConstraintKind uint8

// Constraint kinds.
const (
	ConstraintNone ConstraintKind = iota
	ConstraintOther
	ConstraintUnique
	ConstraintForeignKey
	ConstraintCheck
	ConstraintNotNull
)

// String implements fmt.Stringer.
func (k ConstraintKind) String() string {
	switch k {
	case ConstraintOther:
		return "constraint"
	case ConstraintUnique:
		return "unique"
	case ConstraintForeignKey:
		return "foreign key"
	case ConstraintCheck:
		return "check"
	case ConstraintNotNull:
		return "not null"
	}
	return "none"
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlColumnCannotBeNull     = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// ConstraintKindOf classifies err. Driver error types are inspected first;
// drivers without typed errors (D1 over HTTP) fall back to message matching.
func ConstraintKindOf(err error) ConstraintKind {
	if err == nil {
		return ConstraintNone
	}
	if e, ok := asError[*pq.Error](err); ok {
		switch e.Code {
		case pgUniqueViolation:
			return ConstraintUnique
		case pgForeignKeyViolation:
			return ConstraintForeignKey
		case pgCheckViolation:
			return ConstraintCheck
		case pgNotNullViolation:
			return ConstraintNotNull
		}
		if e.Code.Class() == "23" {
			return ConstraintOther
		}
		return ConstraintNone
	}
	if e, ok := asError[*mysql.MySQLError](err); ok {
		switch e.Number {
		case mysqlDuplicateEntry:
			return ConstraintUnique
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ConstraintForeignKey
		case mysqlCheckConstraintViolate:
			return ConstraintCheck
		case mysqlColumnCannotBeNull:
			return ConstraintNotNull
		}
		return ConstraintNone
	}
	if e, ok := asError[*sqlite.Error](err); ok {
		switch e.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ConstraintUnique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ConstraintForeignKey
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return ConstraintCheck
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return ConstraintNotNull
		}
		if e.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			if k := kindFromMessage(err.Error()); k != ConstraintNone {
				return k
			}
			return ConstraintOther
		}
		return ConstraintNone
	}
	return kindFromMessage(err.Error())
}

func kindFromMessage(msg string) ConstraintKind {
	switch {
	case containsAny(msg, "Error 1062", "violates unique constraint", "UNIQUE constraint failed"):
		return ConstraintUnique
	case containsAny(msg, "Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"):
		return ConstraintForeignKey
	case containsAny(msg, "Error 3819", "violates check constraint", "CHECK constraint failed"):
		return ConstraintCheck
	case containsAny(msg, "Error 1048", "violates not-null constraint", "NOT NULL constraint failed"):
		return ConstraintNotNull
	}
	return ConstraintNone
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return ConstraintKindOf(err) != ConstraintNone
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	return ConstraintKindOf(err) == ConstraintUnique
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return ConstraintKindOf(err) == ConstraintForeignKey
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool {
	return ConstraintKindOf(err) == ConstraintCheck
}

// IsNotNullConstraintError reports if a null was written to a not-null column.
func IsNotNullConstraintError(err error) bool {
	return ConstraintKindOf(err) == ConstraintNotNull
}

// asError attempts to extract an error of type T from the error chain.
func asError[T error](err error) (T, bool) {
	var target T
	if errors.As(err, &target) {
		return target, true
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
