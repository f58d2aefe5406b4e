// Package sql is the execution bridge over database/sql.
//
// Builder writes SQL text for one dialect: identifiers are quoted only when
// needed and every Arg appends a placeholder (? or $n) bound to its value.
// Statements are assembled by package query; Builder only knows text.
//
//	b := sql.NewBuilder(dialect.Postgres)
//	b.WriteString("SELECT ").Column("tb_1_", "NAME").
//	    WriteString(" FROM ").Ident("DEPARTMENT").WriteString(" tb_1_ WHERE ").
//	    Column("tb_1_", "ID").WriteString(" = ").Arg(1)
//	query, args := b.Query() // ... WHERE tb_1_.ID = $1, [1]
//
// Driver runs statements on a *sql.DB. QueryValues scans every row into a
// []any and ExecAffected returns the affected row count; driver failures come
// back as *veloq.BackendExecutionError with the driver error unchanged.
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	rows, err := sql.QueryValues(ctx, drv, query, args)
//
// # Decorators
//
//   - StatsDriver counts queries and execs and reports slow statements.
//   - DebugDriver logs every statement with log/slog.
//
// # Errors
//
// ConvertError turns unique, foreign key, check and not-null violations
// reported by PostgreSQL (lib/pq), MySQL (go-sql-driver/mysql) and SQLite
// into *veloq.ConstraintError.
package sql
