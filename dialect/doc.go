// Package dialect names the SQL backends veloq renders statements for and
// defines the execution interfaces the compiled statements run on.
//
// A dialect is a plain string: Postgres, MySQL or SQLite. CapabilitiesOf
// reports what changes the rendered text of a dialect:
//
//	caps := dialect.CapabilitiesOf(dialect.Postgres)
//	caps.RowValues      // (A, B) IN ((?, ?), ...) is allowed
//	caps.Placeholder(2) // "$2"
//
// Statements reach the database through a Driver. Exec and Query take the
// SQL text, a []any of positional arguments and a destination whose type
// is defined by the implementation; the database/sql implementation lives
// in dialect/sql:
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//	    return err
//	}
//	defer drv.Close()
//
// Tx adds Commit and Rollback to ExecQuerier, so code written against
// ExecQuerier runs unchanged inside a transaction.
package dialect
