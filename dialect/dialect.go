package dialect

import (
	"context"
	"strconv"
)

// Dialect names for supported backends.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for the
// execution bridge.
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

// Capabilities describes the SQL features of a backend that change the
// rendered text.
type Capabilities struct {
	// RowValues reports support for (a, b) = (?, ?) comparisons.
	RowValues bool
	// NumberedParams reports $1, $2 placeholders instead of ?.
	NumberedParams bool
}

// CapabilitiesOf returns the capabilities of the named dialect.
// Unknown dialects get the most conservative answer.
func CapabilitiesOf(name string) Capabilities {
	switch name {
	case Postgres:
		return Capabilities{RowValues: true, NumberedParams: true}
	case MySQL:
		return Capabilities{RowValues: true}
	default:
		return Capabilities{}
	}
}

// Placeholder returns the n-th (1-based) parameter placeholder.
func (c Capabilities) Placeholder(n int) string {
	if c.NumberedParams {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
