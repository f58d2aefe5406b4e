package query

import (
	"strings"
	"time"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect/sql"
	"github.com/syssam/veloq/schema"
	"github.com/syssam/veloq/schema/edge"
	"github.com/syssam/veloq/schema/field"
)

// Column is a column of a table handle: a scalar or formula property, a
// foreign key, or a raw column.
type Column struct {
	table   *Table
	prop    string
	raw     string
	rawType field.Type
	fk      *schema.Edge
}

// colNote is the resolution of a column in one frame.
type colNote struct {
	impl  *TableImpl
	field *schema.Field
}

func (c *Column) column() *Column { return c }

// Table returns the handle the column belongs to.
func (c *Column) Table() *Table { return c.table }

// String implements fmt.Stringer.
func (c *Column) String() string {
	switch {
	case c.raw != "":
		return c.table.String() + "." + c.raw
	case c.fk != nil:
		return c.table.String() + "." + c.fk.Name + "#fk"
	}
	return c.table.String() + "." + c.prop
}

func (c *Column) resolveField(n *schema.Node) (*schema.Field, error) {
	switch {
	case c.raw != "":
		return &schema.Field{Node: n, Name: c.raw, Column: c.raw, Type: c.rawType, Nillable: true}, nil
	case c.fk != nil:
		ok := c.fk.Node == n && c.fk.Rel == edge.M2O ||
			c.fk.Target == n && (c.fk.Rel == edge.O2M || c.fk.Rel == edge.O2O)
		if !ok {
			return nil, veloq.NewInvalidExpressionError(c.String(), "%s does not store the foreign key of %s", n.Name, c.fk)
		}
		return c.fk.FKField(), nil
	}
	p, ok := n.Prop(c.prop)
	if !ok {
		return nil, veloq.NewInvalidExpressionError(c.String(), "unknown property")
	}
	if p.Kind != schema.PropField {
		return nil, veloq.NewInvalidExpressionError(c.String(), "%s is not a scalar property", c.prop)
	}
	return p.Field, nil
}

func (c *Column) visit(ctx *Context) error {
	if c.table == nil {
		return veloq.NewInvalidExpressionError("column", "nil table")
	}
	impl, err := ctx.Resolve(c.table)
	if err != nil {
		return err
	}
	f, err := c.resolveField(impl.node)
	if err != nil {
		return err
	}
	if f.IsID() {
		ctx.MarkIDUsed(impl)
	} else {
		ctx.MarkFullyUsed(impl)
	}
	ctx.setNote(c, colNote{impl: impl, field: f})
	return nil
}

func (c *Column) render(ctx *Context, b *sql.Builder) {
	n, _ := ctx.note(c).(colNote)
	if n.impl == nil {
		b.AddError(veloq.NewInvalidExpressionError(c.String(), "column was not visited"))
		return
	}
	switch t := n.impl; {
	case n.field.IsFormula():
		b.WriteString(strings.ReplaceAll(n.field.Formula, "%alias", t.alias))
	case n.field.IsID() && t.mode == modeElided:
		b.Column(t.parent.alias, t.edge.Column)
	case n.field.IsID() && t.mode == modeLinkOnly:
		b.Column(t.linkAlias, t.edge.Through.TargetColumn)
	default:
		b.Column(t.alias, n.field.Column)
	}
}

// EQ returns c = v. A nil v returns c IS NULL.
func (c *Column) EQ(v any) Expr {
	if v == nil {
		return c.IsNull()
	}
	return &compareExpr{op: "=", l: c, r: toExpr(v)}
}

// NEQ returns c <> v. A nil v returns c IS NOT NULL.
func (c *Column) NEQ(v any) Expr {
	if v == nil {
		return c.NotNull()
	}
	return &compareExpr{op: "<>", l: c, r: toExpr(v)}
}

// LT returns c < v.
func (c *Column) LT(v any) Expr { return &compareExpr{op: "<", l: c, r: toExpr(v)} }

// LTE returns c <= v.
func (c *Column) LTE(v any) Expr { return &compareExpr{op: "<=", l: c, r: toExpr(v)} }

// GT returns c > v.
func (c *Column) GT(v any) Expr { return &compareExpr{op: ">", l: c, r: toExpr(v)} }

// GTE returns c >= v.
func (c *Column) GTE(v any) Expr { return &compareExpr{op: ">=", l: c, r: toExpr(v)} }

// Like returns c LIKE pattern.
func (c *Column) Like(pattern string) Expr {
	return &compareExpr{op: "LIKE", l: c, r: Value(pattern)}
}

// HasPrefix returns c LIKE 'prefix%' with the wildcards of prefix escaped.
func (c *Column) HasPrefix(prefix string) Expr {
	return &compareExpr{op: "LIKE", l: c, r: Value(escapeLike(prefix) + "%"), escape: true}
}

// Contains returns c LIKE '%s%' with the wildcards of s escaped.
func (c *Column) Contains(s string) Expr {
	return &compareExpr{op: "LIKE", l: c, r: Value("%" + escapeLike(s) + "%"), escape: true}
}

// In returns c IN (vs...). An empty list matches nothing.
func (c *Column) In(vs ...any) Expr { return &inExpr{l: c, values: toExprs(vs)} }

// NotIn returns c NOT IN (vs...). An empty list matches everything.
func (c *Column) NotIn(vs ...any) Expr { return &inExpr{l: c, values: toExprs(vs), not: true} }

// InSub returns c IN (sub). sub must select exactly one column.
func (c *Column) InSub(sub *Select) Expr { return &inExpr{l: c, sub: sub} }

// NotInSub returns c NOT IN (sub).
func (c *Column) NotInSub(sub *Select) Expr { return &inExpr{l: c, sub: sub, not: true} }

// IsNull returns c IS NULL.
func (c *Column) IsNull() Expr { return &nullExpr{e: c} }

// NotNull returns c IS NOT NULL.
func (c *Column) NotNull() Expr { return &nullExpr{e: c, not: true} }

// Asc orders by c ascending.
func (c *Column) Asc() Order { return Asc(c) }

// Desc orders by c descending.
func (c *Column) Desc() Order { return Desc(c) }

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// TypedColumn is a column whose comparisons only accept values of T.
//
//	name := query.StringColumn{Column: t.C("name")}
//	q.Where(name.EQ("Market"))
type TypedColumn[T any] struct {
	*Column
}

// Typed wraps c.
func Typed[T any](c *Column) TypedColumn[T] { return TypedColumn[T]{Column: c} }

// Typed columns of common value types.
type (
	StringColumn  = TypedColumn[string]
	Int64Column   = TypedColumn[int64]
	Float64Column = TypedColumn[float64]
	BoolColumn    = TypedColumn[bool]
	TimeColumn    = TypedColumn[time.Time]
)

// EQ returns c = v.
func (c TypedColumn[T]) EQ(v T) Expr { return c.Column.EQ(v) }

// NEQ returns c <> v.
func (c TypedColumn[T]) NEQ(v T) Expr { return c.Column.NEQ(v) }

// LT returns c < v.
func (c TypedColumn[T]) LT(v T) Expr { return c.Column.LT(v) }

// LTE returns c <= v.
func (c TypedColumn[T]) LTE(v T) Expr { return c.Column.LTE(v) }

// GT returns c > v.
func (c TypedColumn[T]) GT(v T) Expr { return c.Column.GT(v) }

// GTE returns c >= v.
func (c TypedColumn[T]) GTE(v T) Expr { return c.Column.GTE(v) }

// In returns c IN (vs...).
func (c TypedColumn[T]) In(vs ...T) Expr {
	args := make([]any, len(vs))
	for i := range vs {
		args[i] = vs[i]
	}
	return c.Column.In(args...)
}

// NotIn returns c NOT IN (vs...).
func (c TypedColumn[T]) NotIn(vs ...T) Expr {
	args := make([]any, len(vs))
	for i := range vs {
		args[i] = vs[i]
	}
	return c.Column.NotIn(args...)
}
