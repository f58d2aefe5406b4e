package query

import (
	"slices"
	"strconv"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql"
	"github.com/syssam/veloq/schema"
)

// Statement is a compilable statement. The set of implementations is
// closed: *Select, *UpdateStmt, *DeleteStmt and *InsertStmt.
type Statement interface {
	// Table returns the root handle the statement declares.
	Table() *Table
	// Node returns the entity of the root handle.
	Node() *schema.Node
	visit(*Context, *frame) error
	render(*Context, *frame, *sql.Builder)
}

// Query is a statement that reads rows.
type Query interface {
	Statement
	// WhereP appends predicates built from the root handle.
	WhereP(...func(*Table) Expr)
}

// Select is a SELECT statement.
type Select struct {
	from          *Table
	where         []Expr
	selection     []Expr
	fetcher       *Fetcher
	groupBy       []Expr
	having        []Expr
	order         []Order
	limit, offset *int
	distinct      bool
	ignoreFilters bool
}

// From returns a SELECT statement declaring the root handle t.
func From(t *Table) *Select { return &Select{from: t} }

// Table returns the root handle.
func (s *Select) Table() *Table { return s.from }

// Node returns the entity of the root handle.
func (s *Select) Node() *schema.Node {
	if s.from == nil {
		return nil
	}
	return s.from.node
}

// Where appends predicates, joined with AND.
func (s *Select) Where(preds ...Expr) *Select {
	s.where = append(s.where, compact(preds)...)
	return s
}

// WhereP appends predicates built from the root handle.
func (s *Select) WhereP(fns ...func(*Table) Expr) {
	for _, fn := range fns {
		if p := fn(s.from); p != nil {
			s.where = append(s.where, p)
		}
	}
}

// Select appends selected expressions. They come after the columns of the
// fetcher, if any.
func (s *Select) Select(exprs ...Expr) *Select {
	s.selection = append(s.selection, exprs...)
	return s
}

// Fetch sets the fetcher of the root entity. The statement selects the
// identifier, the requested stored scalars and the foreign keys of the
// requested many-to-one edges.
func (s *Select) Fetch(f *Fetcher) *Select {
	s.fetcher = f
	return s
}

// Fetcher returns the fetcher of the statement.
func (s *Select) Fetcher() *Fetcher { return s.fetcher }

// GroupBy appends GROUP BY terms.
func (s *Select) GroupBy(exprs ...Expr) *Select {
	s.groupBy = append(s.groupBy, exprs...)
	return s
}

// Having appends HAVING predicates.
func (s *Select) Having(preds ...Expr) *Select {
	s.having = append(s.having, compact(preds)...)
	return s
}

// OrderBy appends ORDER BY terms.
func (s *Select) OrderBy(terms ...Order) *Select {
	s.order = append(s.order, terms...)
	return s
}

// Limit sets the maximum number of rows.
func (s *Select) Limit(n int) *Select {
	s.limit = &n
	return s
}

// Offset sets the number of rows to skip.
func (s *Select) Offset(n int) *Select {
	s.offset = &n
	return s
}

// Distinct selects distinct rows.
func (s *Select) Distinct() *Select {
	s.distinct = true
	return s
}

// IgnoreFilters disables soft-delete and global filters for the tables of
// this statement. Nested statements keep their own setting.
func (s *Select) IgnoreFilters() *Select {
	s.ignoreFilters = true
	return s
}

func (s *Select) filtersIgnored() bool { return s.ignoreFilters }

// Clone returns a copy of the statement sharing its root handle.
func (s *Select) Clone() *Select {
	c := *s
	c.where = slices.Clone(s.where)
	c.selection = slices.Clone(s.selection)
	c.groupBy = slices.Clone(s.groupBy)
	c.having = slices.Clone(s.having)
	c.order = slices.Clone(s.order)
	return &c
}

func checkRoot(t *Table) error {
	switch {
	case t == nil:
		return veloq.NewInvalidExpressionError("statement", "nil table")
	case t.err != nil:
		return t.err
	case t.parent != nil || t.impl != nil:
		return veloq.NewInvalidExpressionError(t.String(), "statements declare root tables only")
	}
	return nil
}

// fetcherColumns returns the columns read for f: the identifier, the
// scalars and the foreign keys of many-to-one edges.
func fetcherColumns(t *Table, f *Fetcher) []Expr {
	cols := []Expr{t.ID()}
	for _, e := range f.entries {
		switch p := e.Prop; p.Kind {
		case schema.PropField:
			cols = append(cols, t.C(p.Name))
		case schema.PropEdge:
			if p.Edge.OwnFK() {
				cols = append(cols, t.ForeignKey(p.Edge))
			}
		}
	}
	return cols
}

func (s *Select) visit(ctx *Context, f *frame) error {
	if err := checkRoot(s.from); err != nil {
		return err
	}
	var sel []Expr
	if s.fetcher != nil {
		if err := s.fetcher.err; err != nil {
			return err
		}
		if s.fetcher.node != s.from.node {
			return veloq.NewInvalidExpressionError(s.from.String(), "fetcher of %s", s.fetcher.node)
		}
		sel = fetcherColumns(s.from, s.fetcher)
		ctx.MarkFullyUsed(f.root)
	}
	sel = append(sel, s.selection...)
	if len(sel) == 0 {
		if ctx.Depth() > 1 {
			sel = []Expr{SQL("1")}
		} else {
			for _, fd := range s.from.node.Fields {
				if !fd.IsFormula() {
					sel = append(sel, s.from.C(fd.Name))
				}
			}
			ctx.MarkFullyUsed(f.root)
		}
	}
	f.selection = sel
	for _, group := range [][]Expr{sel, s.where, s.groupBy, s.having} {
		for _, e := range group {
			if err := e.visit(ctx); err != nil {
				return err
			}
		}
	}
	for _, o := range s.order {
		if o.Expr == nil {
			return veloq.NewInvalidExpressionError("ORDER BY", "nil expression")
		}
		if err := o.Expr.visit(ctx); err != nil {
			return err
		}
	}
	for _, n := range []*int{s.limit, s.offset} {
		if n != nil && *n < 0 {
			return veloq.NewInvalidExpressionError("LIMIT", "negative value %d", *n)
		}
	}
	return nil
}

func (s *Select) render(ctx *Context, f *frame, b *sql.Builder) {
	ctx.allocate(f)
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	b.Join(len(f.selection), ", ", func(i int) { f.selection[i].render(ctx, b) })
	b.WriteString(" FROM ")
	ctx.renderFrom(f, b)
	ctx.renderWhere(f, s.where, b)
	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.Join(len(s.groupBy), ", ", func(i int) { s.groupBy[i].render(ctx, b) })
	}
	if len(s.having) > 0 {
		b.WriteString(" HAVING ")
		And(s.having...).render(ctx, b)
	}
	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.Join(len(s.order), ", ", func(i int) { s.order[i].render(ctx, b) })
	}
	switch {
	case s.limit != nil:
		b.WriteString(" LIMIT ").Arg(*s.limit)
	case s.offset != nil && b.Dialect() == dialect.SQLite:
		b.WriteString(" LIMIT -1")
	case s.offset != nil && b.Dialect() == dialect.MySQL:
		b.WriteString(" LIMIT " + strconv.FormatUint(1<<64-1, 10))
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ").Arg(*s.offset)
	}
}

// renderFrom writes the root table and its joins.
func (ctx *Context) renderFrom(f *frame, b *sql.Builder) {
	b.Ident(f.root.node.Table).Pad().WriteString(f.root.alias)
	ctx.renderJoins(f, f.root, b)
}

func (ctx *Context) renderJoins(f *frame, t *TableImpl, b *sql.Builder) {
	for _, c := range t.children {
		if c.mode == modeNone || c.mode == modeElided {
			continue
		}
		kw := " " + c.join.String() + " "
		e := c.edge
		switch {
		case c.isM2M():
			b.WriteString(kw).Ident(e.Through.Table).Pad().WriteString(c.linkAlias)
			b.WriteString(" ON ").Column(t.alias, t.node.ID.Column).
				WriteString(" = ").Column(c.linkAlias, e.Through.OwnColumn)
			if c.mode == modeLinkOnly {
				continue
			}
			b.WriteString(kw).Ident(c.node.Table).Pad().WriteString(c.alias)
			b.WriteString(" ON ").Column(c.linkAlias, e.Through.TargetColumn).
				WriteString(" = ").Column(c.alias, c.node.ID.Column)
		case e.OwnFK():
			b.WriteString(kw).Ident(c.node.Table).Pad().WriteString(c.alias)
			b.WriteString(" ON ").Column(t.alias, e.Column).
				WriteString(" = ").Column(c.alias, c.node.ID.Column)
		default:
			b.WriteString(kw).Ident(c.node.Table).Pad().WriteString(c.alias)
			b.WriteString(" ON ").Column(t.alias, t.node.ID.Column).
				WriteString(" = ").Column(c.alias, e.Column)
		}
		if c.outer() {
			for _, p := range f.preds[c.key] {
				b.WriteString(" AND ")
				if j, ok := p.(*junction); ok && j.op == "OR" && len(j.exprs) > 1 {
					b.Wrap(func(b *sql.Builder) { p.render(ctx, b) })
					continue
				}
				p.render(ctx, b)
			}
		}
		ctx.renderJoins(f, c, b)
	}
}

// renderWhere writes the user predicates followed by the soft-delete and
// global filter predicates of every inner table, root first.
func (ctx *Context) renderWhere(f *frame, where []Expr, b *sql.Builder) {
	preds := slices.Clone(where)
	for _, t := range f.tables() {
		if t.mode == modeFull && !t.outer() {
			preds = append(preds, f.preds[t.key]...)
		}
	}
	if len(preds) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	And(preds...).render(ctx, b)
}
