package query

import (
	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect/sql"
)

// TupleExpr is an ordered list of expressions compared as a unit.
type TupleExpr struct {
	exprs []Expr
}

// Tuple returns a tuple of exprs.
//
//	query.Tuple(t.C("name"), t.C("tags")).EQ("Market", []string{"a"})
func Tuple(exprs ...Expr) *TupleExpr { return &TupleExpr{exprs: exprs} }

// EQ matches the tuple against one row of values.
func (t *TupleExpr) EQ(values ...any) Expr {
	return &tupleExpr{t: t, rows: [][]any{values}, eq: true}
}

// In matches the tuple against any of rows. No rows matches nothing.
func (t *TupleExpr) In(rows ...[]any) Expr {
	return &tupleExpr{t: t, rows: rows}
}

type tupleExpr struct {
	t    *TupleExpr
	rows [][]any
	eq   bool
}

func (e *tupleExpr) visit(ctx *Context) error {
	n := len(e.t.exprs)
	if n == 0 {
		return veloq.NewInvalidExpressionError("tuple", "no components")
	}
	for _, x := range e.t.exprs {
		if err := x.visit(ctx); err != nil {
			return err
		}
	}
	enc := make([][]any, len(e.rows))
	for i, row := range e.rows {
		if len(row) != n {
			return veloq.NewInvalidExpressionError("tuple", "%d values for %d components", len(row), n)
		}
		enc[i] = make([]any, n)
		for j, v := range row {
			if v == nil {
				return veloq.NewInvalidExpressionError("tuple", "NULL component %d", j)
			}
			f := fieldOf(ctx, e.t.exprs[j])
			if f == nil {
				enc[i][j] = v
				continue
			}
			// Each component goes through its own column's codec.
			ve := &valueExpr{v: v}
			if err := ctx.bind(ve, f); err != nil {
				return err
			}
			enc[i][j] = ctx.note(ve)
		}
	}
	ctx.setNote(e, enc)
	return nil
}

func (e *tupleExpr) render(ctx *Context, b *sql.Builder) {
	rows, _ := ctx.note(e).([][]any)
	if len(rows) == 0 {
		b.WriteString("1 = 0")
		return
	}
	comps := e.t.exprs
	if b.Capabilities().RowValues {
		b.Wrap(func(b *sql.Builder) {
			b.Join(len(comps), ", ", func(i int) { comps[i].render(ctx, b) })
		})
		if e.eq {
			b.WriteString(" = ")
			b.Wrap(func(b *sql.Builder) { b.Args(rows[0]...) })
			return
		}
		b.WriteString(" IN ")
		b.Wrap(func(b *sql.Builder) {
			b.Join(len(rows), ", ", func(i int) {
				b.Wrap(func(b *sql.Builder) { b.Args(rows[i]...) })
			})
		})
		return
	}
	conj := func(row []any) {
		b.Wrap(func(b *sql.Builder) {
			b.Join(len(comps), " AND ", func(i int) {
				comps[i].render(ctx, b)
				b.WriteString(" = ").Arg(row[i])
			})
		})
	}
	if len(rows) == 1 {
		conj(rows[0])
		return
	}
	b.Wrap(func(b *sql.Builder) {
		b.Join(len(rows), " OR ", func(i int) { conj(rows[i]) })
	})
}
