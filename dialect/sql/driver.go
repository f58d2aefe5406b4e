package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
)

// Driver runs compiled statements on a *sql.DB. Compiled SQL and its
// positional arguments pass through unchanged.
type Driver struct {
	Conn
	dialect string
}

// NewDriver returns a Driver of the named database/sql driver over c.
func NewDriver(name string, c Conn) *Driver {
	return &Driver{dialect: name, Conn: c}
}

// Open opens a pool with database/sql. name is both the registered
// database/sql driver and the dialect.
func Open(name, source string) (*Driver, error) {
	db, err := sql.Open(name, source)
	if err != nil {
		return nil, veloq.NewBackendExecutionError("OPEN", err)
	}
	return OpenDB(name, db), nil
}

// OpenDB wraps an open pool.
func OpenDB(name string, db *sql.DB) *Driver {
	return NewDriver(name, Conn{ExecQuerier: db, dialect: name})
}

// DB returns the pool.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect returns the dialect the statements are rendered for.
func (d Driver) Dialect() string {
	// Driver names such as "sqlite3" or "postgres-otel" map to their dialect.
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(d.dialect, name) {
			return name
		}
	}
	return d.dialect
}

// Tx starts and returns a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (dialect.Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, veloq.NewBackendExecutionError("BEGIN", err)
	}
	return &Tx{
		Conn: Conn{ExecQuerier: tx, dialect: d.dialect},
		Tx:   tx,
	}, nil
}

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.DB().Close() }

// Tx is a transaction of a Driver.
type Tx struct {
	Conn
	driver.Tx
}

// ExecQuerier is satisfied by *sql.DB and *sql.Tx.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements dialect.ExecQuerier given ExecQuerier. Every failure
// reported by database/sql is returned as a *veloq.BackendExecutionError
// wrapping the driver error unchanged.
type Conn struct {
	ExecQuerier
	dialect string
}

func argList(args any) ([]any, error) {
	argv, ok := args.([]any)
	if !ok {
		return nil, fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	return argv, nil
}

// Exec runs a statement. v is nil or a *Result receiving the outcome.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, err := argList(args)
	if err != nil {
		return err
	}
	var out *Result
	switch v := v.(type) {
	case nil:
	case *Result:
		out = v
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	res, err := c.ExecContext(ctx, query, argv...)
	if err != nil {
		return veloq.NewBackendExecutionError(query, err)
	}
	if out != nil {
		*out = res
	}
	return nil
}

// Query runs a statement whose rows are stored in v, a *Rows.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, err := argList(args)
	if err != nil {
		return err
	}
	rows, err := c.QueryContext(ctx, query, argv...)
	if err != nil {
		return veloq.NewBackendExecutionError(query, err)
	}
	*vr = Rows{rows}
	return nil
}

var _ dialect.Driver = (*Driver)(nil)

type (
	// Rows holds the cursor of a Query.
	Rows struct{ ColumnScanner }
	Result    = sql.Result
	TxOptions = sql.TxOptions
)

// ColumnScanner is the part of *sql.Rows the fetch planner reads.
type ColumnScanner interface {
	Close() error
	Columns() ([]string, error)
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// ScanValues reads every remaining row as a slice of raw driver values and
// closes rows. Byte slices are copied since drivers may reuse them.
func ScanValues(rows ColumnScanner) (_ [][]any, rerr error) {
	defer func() { rerr = errors.Join(rerr, rows.Close()) }()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

// QueryValues runs query on ex and returns the raw rows.
func QueryValues(ctx context.Context, ex dialect.ExecQuerier, query string, args []any) ([][]any, error) {
	rows := &Rows{}
	if err := ex.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	values, err := ScanValues(rows)
	if err != nil {
		return nil, veloq.NewBackendExecutionError(query, err)
	}
	return values, nil
}

// ExecAffected runs query on ex and returns the number of affected rows.
func ExecAffected(ctx context.Context, ex dialect.ExecQuerier, query string, args []any) (int64, error) {
	var res Result
	if err := ex.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, veloq.NewBackendExecutionError(query, err)
	}
	return n, nil
}
