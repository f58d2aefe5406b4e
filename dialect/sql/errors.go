package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/syssam/veloq"
)

// ConstraintKind classifies a constraint violation reported by a backend.
type ConstraintKind uint8

// Constraint kinds.
const (
	NoConstraint ConstraintKind = iota
	UniqueConstraint
	ForeignKeyConstraint
	CheckConstraint
	NotNullConstraint
)

// String implements fmt.Stringer.
func (k ConstraintKind) String() string {
	switch k {
	case UniqueConstraint:
		return "unique"
	case ForeignKeyConstraint:
		return "foreign key"
	case CheckConstraint:
		return "check"
	case NotNullConstraint:
		return "not null"
	default:
		return "none"
	}
}

// sqlStateError is implemented by drivers exposing SQLSTATE codes (pgx and others).
type sqlStateError interface {
	SQLState() string
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
	mysqlNotNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// ClassifyConstraint reports which kind of constraint err violates.
func ClassifyConstraint(err error) ConstraintKind {
	if err == nil {
		return NoConstraint
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgKind(string(pqErr.Code))
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return UniqueConstraint
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ForeignKeyConstraint
		case mysqlCheckConstraintViolate:
			return CheckConstraint
		case mysqlNotNull:
			return NotNullConstraint
		}
		return NoConstraint
	}
	var stateErr sqlStateError
	if errors.As(err, &stateErr) {
		if k := pgKind(stateErr.SQLState()); k != NoConstraint {
			return k
		}
	}
	// Fallback to string matching for drivers without typed errors (SQLite).
	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "violates unique constraint", "Error 1062"):
		return UniqueConstraint
	case containsAny(msg, "FOREIGN KEY constraint failed", "violates foreign key constraint", "Error 1451", "Error 1452"):
		return ForeignKeyConstraint
	case containsAny(msg, "CHECK constraint failed", "violates check constraint", "Error 3819"):
		return CheckConstraint
	case containsAny(msg, "NOT NULL constraint failed", "violates not-null constraint", "Error 1048"):
		return NotNullConstraint
	}
	return NoConstraint
}

func pgKind(code string) ConstraintKind {
	switch code {
	case pgUniqueViolation:
		return UniqueConstraint
	case pgForeignKeyViolation:
		return ForeignKeyConstraint
	case pgCheckViolation:
		return CheckConstraint
	case pgNotNullViolation:
		return NotNullConstraint
	}
	return NoConstraint
}

// ConvertError wraps constraint violations in a veloq.ConstraintError and
// returns every other error unchanged.
func ConvertError(err error) error {
	if k := ClassifyConstraint(err); k != NoConstraint {
		return veloq.NewConstraintError(k.String(), err)
	}
	return err
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return ClassifyConstraint(err) == UniqueConstraint
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return ClassifyConstraint(err) == ForeignKeyConstraint
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
