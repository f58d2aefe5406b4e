package query

import (
	"slices"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect/sql"
	"github.com/syssam/veloq/schema"
	"github.com/syssam/veloq/schema/field"
)

// CompileOption configures a compilation.
type CompileOption func(*Context)

// WithFilter applies fn to every table instance of entity, like the
// soft-delete predicate. Statements with IgnoreFilters skip it.
func WithFilter(entity string, fn Filter) CompileOption {
	return func(ctx *Context) {
		ctx.filters[entity] = append(ctx.filters[entity], fn)
	}
}

// Compiled is a compiled statement.
type Compiled struct {
	SQL  string
	Args []any
	// Columns describes the selected columns of a SELECT statement.
	Columns []ColumnInfo
	// Tables lists the distinct tables the statement reads or writes,
	// root table first.
	Tables []string
	Op     Op
}

// ColumnInfo describes one selected column.
type ColumnInfo struct {
	// Name is the property name, or the alias given with As.
	Name string
	// Field is the field read by the column, if it is a column.
	Field *schema.Field
	// Edge is set when the column is the foreign key of a many-to-one edge.
	Edge *schema.Edge
	Type field.Type
}

// Decode converts a raw value of the column.
func (c ColumnInfo) Decode(src any) (any, error) {
	switch {
	case src == nil:
		return nil, nil
	case c.Field != nil:
		return c.Field.Decode(src)
	case c.Type.Valid() && !c.Type.Structured():
		v, err := field.Convert(c.Type, src)
		if err != nil {
			return nil, veloq.NewCodecError("", c.Name, err)
		}
		return v, nil
	}
	return src, nil
}

// Compile compiles stmt into SQL text and parameters for the named
// dialect. Compilation is deterministic: the same statement tree yields the
// same text, aliases and parameter order.
func Compile(stmt Statement, dialectName string, opts ...CompileOption) (*Compiled, error) {
	if stmt == nil {
		return nil, veloq.NewInvalidExpressionError("statement", "nil statement")
	}
	ctx := NewContext(dialectName, opts...)
	if err := ctx.visitStatement(stmt); err != nil {
		return nil, err
	}
	b := sql.NewBuilder(dialectName)
	ctx.renderStatement(stmt, b)
	if err := b.Err(); err != nil {
		return nil, err
	}
	text, args := b.Query()
	c := &Compiled{SQL: text, Args: args, Op: OpQuery}
	if m, ok := stmt.(Mutation); ok {
		c.Op = m.Op()
	}
	ctx.EnterStatement(stmt)
	defer ctx.ExitStatement()
	f := ctx.top()
	for _, e := range f.selection {
		c.Columns = append(c.Columns, ctx.columnInfo(e))
	}
	c.Tables = ctx.tables()
	return c, nil
}

func (ctx *Context) columnInfo(e Expr) ColumnInfo {
	info := ColumnInfo{Type: typeOf(ctx, e)}
	if a, ok := e.(*asExpr); ok {
		info.Name = a.name
		e = a.e
	}
	c, ok := e.(columnExpr)
	if !ok {
		return info
	}
	col := c.column()
	info.Field = fieldOf(ctx, e)
	if info.Name == "" && info.Field != nil {
		info.Name = info.Field.Name
	}
	if col.fk != nil {
		info.Edge = col.fk
	}
	return info
}

// tables returns the distinct tables of every rendered frame in frame
// creation order.
func (ctx *Context) tables() []string {
	frames := make([]*frame, 0, len(ctx.frames))
	for _, f := range ctx.frames {
		if f.root != nil {
			frames = append(frames, f)
		}
	}
	slices.SortFunc(frames, func(a, b *frame) int { return a.seq - b.seq })
	var (
		out  []string
		seen = make(map[string]bool)
	)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, f := range frames {
		f.root.walk(func(t *TableImpl) {
			switch t.mode {
			case modeFull:
				if t.isM2M() {
					add(t.edge.Through.Table)
				}
				add(t.node.Table)
			case modeLinkOnly:
				add(t.edge.Through.Table)
			}
		})
	}
	return out
}
