package query

import (
	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql"
	"github.com/syssam/veloq/schema"
	"github.com/syssam/veloq/schema/field"
)

// Expr is a node of an expression tree. Expressions are visited once per
// statement they appear in, to resolve tables and record usage, and then
// rendered into a builder.
type Expr interface {
	visit(*Context) error
	render(*Context, *sql.Builder)
}

// columnExpr is implemented by *Column and the typed columns embedding it.
type columnExpr interface {
	column() *Column
}

// fieldOf returns the field a visited column expression resolved to.
func fieldOf(ctx *Context, e Expr) *schema.Field {
	if c, ok := e.(columnExpr); ok {
		if n, ok := ctx.note(c.column()).(colNote); ok {
			return n.field
		}
	}
	return nil
}

// typeOf returns the value type of a visited expression, or TypeInvalid
// when it is unknown.
func typeOf(ctx *Context, e Expr) field.Type {
	if f := fieldOf(ctx, e); f != nil {
		return f.Type
	}
	switch e := e.(type) {
	case *valueExpr:
		return field.TypeOf(e.v)
	case *aggExpr, *subExpr:
		t, _ := ctx.note(e).(field.Type)
		return t
	case *asExpr:
		return typeOf(ctx, e.e)
	case *compareExpr, *inExpr, *nullExpr, *junction, *notExpr, *existsExpr, *tupleExpr:
		return field.TypeBool
	}
	return field.TypeInvalid
}

func toExpr(v any) Expr {
	if e, ok := v.(Expr); ok {
		return e
	}
	return Value(v)
}

func toExprs(vs []any) []Expr {
	es := make([]Expr, len(vs))
	for i, v := range vs {
		es[i] = toExpr(v)
	}
	return es
}

type valueExpr struct{ v any }

// Value returns a bound parameter. Compared with a column, the value is
// checked against the column type and encoded with its codec.
func Value(v any) Expr { return &valueExpr{v: v} }

func (e *valueExpr) visit(ctx *Context) error {
	ctx.setNote(e, e.v)
	return nil
}

func (e *valueExpr) render(ctx *Context, b *sql.Builder) {
	b.Arg(ctx.note(e))
}

type rawExpr struct {
	text string
	args []any
}

// SQL returns a literal SQL fragment. Each ? in text is bound to the next
// argument; a ? inside a quoted literal or identifier is kept as is.
func SQL(text string, args ...any) Expr { return &rawExpr{text: text, args: args} }

// placeholders returns the offsets of the ? outside quotes.
func placeholders(text string) []int {
	var (
		at    []int
		quote byte
	)
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?':
			at = append(at, i)
		}
	}
	return at
}

func (e *rawExpr) visit(*Context) error {
	if n := len(placeholders(e.text)); n != len(e.args) {
		return veloq.NewInvalidExpressionError(e.text, "%d placeholders for %d arguments", n, len(e.args))
	}
	return nil
}

func (e *rawExpr) render(_ *Context, b *sql.Builder) {
	last := 0
	for i, at := range placeholders(e.text) {
		b.WriteString(e.text[last:at])
		b.Arg(e.args[i])
		last = at + 1
	}
	b.WriteString(e.text[last:])
}

type compareExpr struct {
	op     string
	l, r   Expr
	escape bool
}

func (e *compareExpr) ordered() bool {
	switch e.op {
	case "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (e *compareExpr) visit(ctx *Context) error {
	if err := e.l.visit(ctx); err != nil {
		return err
	}
	if err := e.r.visit(ctx); err != nil {
		return err
	}
	lv, _ := e.l.(*valueExpr)
	rv, _ := e.r.(*valueExpr)
	if lv != nil && lv.v == nil || rv != nil && rv.v == nil {
		return veloq.NewInvalidExpressionError(e.op, "NULL operand")
	}
	lf, rf := fieldOf(ctx, e.l), fieldOf(ctx, e.r)
	switch {
	case lf != nil && rv != nil:
		if err := ctx.bind(rv, lf); err != nil {
			return err
		}
	case rf != nil && lv != nil:
		if err := ctx.bind(lv, rf); err != nil {
			return err
		}
	default:
		lt, rt := typeOf(ctx, e.l), typeOf(ctx, e.r)
		if lt.Valid() && rt.Valid() && !lt.Comparable(rt) {
			return veloq.NewInvalidExpressionError(e.op, "cannot compare %s with %s", lt, rt)
		}
	}
	t := typeOf(ctx, e.l)
	switch {
	case e.ordered() && t.Valid() && !t.Ordered():
		return veloq.NewInvalidExpressionError(e.op, "%s values are not ordered", t)
	case e.op == "LIKE" && t.Valid() && t != field.TypeString:
		return veloq.NewInvalidExpressionError(e.op, "%s values cannot be matched with LIKE", t)
	}
	return nil
}

func (e *compareExpr) render(ctx *Context, b *sql.Builder) {
	e.l.render(ctx, b)
	b.Pad().WriteString(e.op).Pad()
	e.r.render(ctx, b)
	if e.escape {
		if b.Dialect() == dialect.MySQL {
			b.WriteString(` ESCAPE '\\'`)
		} else {
			b.WriteString(` ESCAPE '\'`)
		}
	}
}

type nullExpr struct {
	e   Expr
	not bool
}

func (e *nullExpr) visit(ctx *Context) error { return e.e.visit(ctx) }

func (e *nullExpr) render(ctx *Context, b *sql.Builder) {
	e.e.render(ctx, b)
	if e.not {
		b.WriteString(" IS NOT NULL")
	} else {
		b.WriteString(" IS NULL")
	}
}

type inExpr struct {
	l      Expr
	values []Expr
	sub    *Select
	not    bool
}

func (e *inExpr) visit(ctx *Context) error {
	if err := e.l.visit(ctx); err != nil {
		return err
	}
	lf := fieldOf(ctx, e.l)
	lt := typeOf(ctx, e.l)
	for _, v := range e.values {
		if err := v.visit(ctx); err != nil {
			return err
		}
		vv, ok := v.(*valueExpr)
		switch {
		case ok && vv.v == nil:
			return veloq.NewInvalidExpressionError("IN", "NULL element")
		case ok && lf != nil:
			if err := ctx.bind(vv, lf); err != nil {
				return err
			}
		default:
			if t := typeOf(ctx, v); lt.Valid() && t.Valid() && !lt.Comparable(t) {
				return veloq.NewInvalidExpressionError("IN", "cannot compare %s with %s", lt, t)
			}
		}
	}
	if e.sub == nil {
		return nil
	}
	if err := ctx.visitStatement(e.sub); err != nil {
		return err
	}
	if n := len(ctx.frames[e.sub].selection); n != 1 {
		return veloq.NewInvalidExpressionError("IN", "subquery selects %d columns", n)
	}
	return nil
}

func (e *inExpr) render(ctx *Context, b *sql.Builder) {
	if e.sub == nil && len(e.values) == 0 {
		if e.not {
			b.WriteString("1 = 1")
		} else {
			b.WriteString("1 = 0")
		}
		return
	}
	e.l.render(ctx, b)
	if e.not {
		b.WriteString(" NOT IN ")
	} else {
		b.WriteString(" IN ")
	}
	b.Wrap(func(b *sql.Builder) {
		if e.sub != nil {
			ctx.renderStatement(e.sub, b)
			return
		}
		b.Join(len(e.values), ", ", func(i int) { e.values[i].render(ctx, b) })
	})
}

type junction struct {
	op    string
	exprs []Expr
}

// And returns the conjunction of exprs. Nil expressions are skipped and an
// empty conjunction is true.
func And(exprs ...Expr) Expr { return &junction{op: "AND", exprs: compact(exprs)} }

// Or returns the disjunction of exprs. Nil expressions are skipped and an
// empty disjunction is false.
func Or(exprs ...Expr) Expr { return &junction{op: "OR", exprs: compact(exprs)} }

func compact(exprs []Expr) []Expr {
	out := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (e *junction) visit(ctx *Context) error {
	for _, x := range e.exprs {
		if err := x.visit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *junction) render(ctx *Context, b *sql.Builder) {
	switch len(e.exprs) {
	case 0:
		if e.op == "AND" {
			b.WriteString("1 = 1")
		} else {
			b.WriteString("1 = 0")
		}
		return
	case 1:
		e.exprs[0].render(ctx, b)
		return
	}
	b.Join(len(e.exprs), " "+e.op+" ", func(i int) {
		x := e.exprs[i]
		if j, ok := x.(*junction); ok && j.op != e.op && len(j.exprs) > 1 {
			b.Wrap(func(b *sql.Builder) { x.render(ctx, b) })
			return
		}
		x.render(ctx, b)
	})
}

type notExpr struct{ e Expr }

// Not returns NOT (e).
func Not(e Expr) Expr { return &notExpr{e: e} }

func (e *notExpr) visit(ctx *Context) error { return e.e.visit(ctx) }

func (e *notExpr) render(ctx *Context, b *sql.Builder) {
	b.WriteString("NOT ")
	b.Wrap(func(b *sql.Builder) { e.e.render(ctx, b) })
}

type existsExpr struct {
	sub *Select
	not bool
}

// Exists returns EXISTS (sub). Without a selection, sub selects 1.
func Exists(sub *Select) Expr { return &existsExpr{sub: sub} }

// NotExists returns NOT EXISTS (sub).
func NotExists(sub *Select) Expr { return &existsExpr{sub: sub, not: true} }

func (e *existsExpr) visit(ctx *Context) error {
	if e.sub == nil {
		return veloq.NewInvalidExpressionError("EXISTS", "nil subquery")
	}
	return ctx.visitStatement(e.sub)
}

func (e *existsExpr) render(ctx *Context, b *sql.Builder) {
	if e.not {
		b.WriteString("NOT ")
	}
	b.WriteString("EXISTS ")
	b.Wrap(func(b *sql.Builder) { ctx.renderStatement(e.sub, b) })
}

type subExpr struct{ sub *Select }

// Sub returns a scalar subquery. sub must select exactly one column.
func Sub(sub *Select) Expr { return &subExpr{sub: sub} }

func (e *subExpr) visit(ctx *Context) error {
	if e.sub == nil {
		return veloq.NewInvalidExpressionError("subquery", "nil subquery")
	}
	if err := ctx.visitStatement(e.sub); err != nil {
		return err
	}
	sel := ctx.frames[e.sub].selection
	if len(sel) != 1 {
		return veloq.NewInvalidExpressionError("subquery", "selects %d columns", len(sel))
	}
	ctx.EnterStatement(e.sub)
	t := typeOf(ctx, sel[0])
	ctx.ExitStatement()
	ctx.setNote(e, t)
	return nil
}

func (e *subExpr) render(ctx *Context, b *sql.Builder) {
	b.Wrap(func(b *sql.Builder) { ctx.renderStatement(e.sub, b) })
}

type aggExpr struct {
	fn  string
	arg Expr
}

// Count returns COUNT(e).
func Count(e Expr) Expr { return &aggExpr{fn: "COUNT", arg: e} }

// CountAll returns COUNT(*).
func CountAll() Expr { return &aggExpr{fn: "COUNT"} }

// Sum returns SUM(e).
func Sum(e Expr) Expr { return &aggExpr{fn: "SUM", arg: e} }

// Avg returns AVG(e).
func Avg(e Expr) Expr { return &aggExpr{fn: "AVG", arg: e} }

// Min returns MIN(e).
func Min(e Expr) Expr { return &aggExpr{fn: "MIN", arg: e} }

// Max returns MAX(e).
func Max(e Expr) Expr { return &aggExpr{fn: "MAX", arg: e} }

func (e *aggExpr) visit(ctx *Context) error {
	if e.arg == nil {
		ctx.setNote(e, field.TypeInt64)
		return nil
	}
	if err := e.arg.visit(ctx); err != nil {
		return err
	}
	t := typeOf(ctx, e.arg)
	switch e.fn {
	case "COUNT":
		t = field.TypeInt64
	case "SUM", "AVG":
		if t.Valid() && !t.Numeric() {
			return veloq.NewInvalidExpressionError(e.fn, "%s values are not numeric", t)
		}
		if e.fn == "AVG" || !t.Integer() {
			t = field.TypeFloat64
		} else {
			t = field.TypeInt64
		}
	}
	ctx.setNote(e, t)
	return nil
}

func (e *aggExpr) render(ctx *Context, b *sql.Builder) {
	b.WriteString(e.fn)
	b.Wrap(func(b *sql.Builder) {
		if e.arg == nil {
			b.WriteByte('*')
			return
		}
		e.arg.render(ctx, b)
	})
}

type asExpr struct {
	e    Expr
	name string
}

// As names a selected expression.
func As(e Expr, name string) Expr { return &asExpr{e: e, name: name} }

func (e *asExpr) visit(ctx *Context) error { return e.e.visit(ctx) }

func (e *asExpr) render(ctx *Context, b *sql.Builder) {
	e.e.render(ctx, b)
	b.WriteString(" AS ").Ident(e.name)
}

// Order is an ORDER BY term.
type Order struct {
	Expr Expr
	Desc bool
}

// Asc orders by e ascending.
func Asc(e Expr) Order { return Order{Expr: e} }

// Desc orders by e descending.
func Desc(e Expr) Order { return Order{Expr: e, Desc: true} }

func (o Order) render(ctx *Context, b *sql.Builder) {
	o.Expr.render(ctx, b)
	if o.Desc {
		b.WriteString(" DESC")
	} else {
		b.WriteString(" ASC")
	}
}
