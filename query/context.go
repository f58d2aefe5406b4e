package query

import (
	"fmt"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql"
	"github.com/syssam/veloq/schema"
	"github.com/syssam/veloq/schema/field"
)

// Usage describes how much of a table instance a statement reads.
type Usage uint8

// Usage levels. Usage only grows during a compilation.
const (
	UsageNone Usage = iota
	UsageIDOnly
	UsageFull
)

// String implements fmt.Stringer.
func (u Usage) String() string {
	switch u {
	case UsageIDOnly:
		return "id-only"
	case UsageFull:
		return "full"
	}
	return "none"
}

// Filter returns a predicate applied to every table instance of an entity,
// in the same way soft-delete predicates are.
type Filter func(t *Table) Expr

// Context is the state of one compilation. It is created per Compile call
// and is not safe for concurrent use.
type Context struct {
	dialect string
	caps    dialect.Capabilities
	usage   map[string]Usage
	stack   []*frame
	frames  map[Statement]*frame
	seq     int
	aliases aliasRegistry
	notes   map[noteKey]any
	filters map[string][]Filter
}

// NewContext returns a compilation context for the named dialect.
func NewContext(dialectName string, opts ...CompileOption) *Context {
	ctx := &Context{
		dialect: dialectName,
		caps:    dialect.CapabilitiesOf(dialectName),
		usage:   make(map[string]Usage),
		frames:  make(map[Statement]*frame),
		notes:   make(map[noteKey]any),
		filters: make(map[string][]Filter),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	return ctx
}

// Dialect returns the dialect the context renders for.
func (ctx *Context) Dialect() string { return ctx.dialect }

// frame is the per statement state. The same frame is used for the visit
// and the render pass of its statement.
type frame struct {
	stmt  Statement
	seq   int
	ident uint64
	root  *TableImpl
	// selection is the effective selection of a Select statement.
	selection []Expr
	// preds are the soft-delete and global filter predicates of a table,
	// keyed by table key.
	preds   map[string][]Expr
	visited bool
}

// tables returns every table instance of the frame, depth first.
func (f *frame) tables() []*TableImpl {
	var ts []*TableImpl
	f.root.walk(func(t *TableImpl) { ts = append(ts, t) })
	return ts
}

// MarkIDUsed records that only the identifier of t is read.
func (ctx *Context) MarkIDUsed(t *TableImpl) {
	if ctx.usage[t.key] == UsageNone {
		ctx.usage[t.key] = UsageIDOnly
	}
}

// MarkFullyUsed records that a non-id column of t is read.
func (ctx *Context) MarkFullyUsed(t *TableImpl) {
	ctx.usage[t.key] = UsageFull
}

// UsageOf returns the recorded usage of t.
func (ctx *Context) UsageOf(t *TableImpl) Usage {
	return ctx.usage[t.key]
}

// EnterStatement pushes the frame of s. Every call must be paired with
// ExitStatement.
func (ctx *Context) EnterStatement(s Statement) {
	f, ok := ctx.frames[s]
	if !ok {
		ctx.seq++
		f = &frame{stmt: s, seq: ctx.seq, preds: make(map[string][]Expr)}
		t := s.Table()
		if t != nil {
			f.ident = t.ident
			f.root = &TableImpl{key: rootKey(ctx.seq), node: t.node, frame: f, mode: modeFull}
		}
		ctx.frames[s] = f
	}
	ctx.stack = append(ctx.stack, f)
}

// ExitStatement pops the innermost frame.
func (ctx *Context) ExitStatement() {
	ctx.stack = ctx.stack[:len(ctx.stack)-1]
}

// Depth returns the number of statements being compiled.
func (ctx *Context) Depth() int { return len(ctx.stack) }

func (ctx *Context) top() *frame { return ctx.stack[len(ctx.stack)-1] }

// ResolveRootTable maps a root reference to the table instance of the
// innermost statement that declares it. Handles bound with Proxy and
// concrete instances resolve to themselves.
func (ctx *Context) ResolveRootTable(ref TableRef) (*TableImpl, error) {
	switch t := ref.(type) {
	case *TableImpl:
		return t, nil
	case *Table:
		if t.err != nil {
			return nil, t.err
		}
		if t.impl != nil {
			return t.impl, nil
		}
		for i := len(ctx.stack) - 1; i >= 0; i-- {
			if f := ctx.stack[i]; f.root != nil && f.ident == t.ident {
				return f.root, nil
			}
		}
		name := ""
		if t.node != nil {
			name = t.node.Name
		}
		return nil, &veloq.UnresolvableTableError{Entity: name, Depth: len(ctx.stack)}
	}
	return nil, fmt.Errorf("query: unexpected table reference %T", ref)
}

// Resolve maps any reference, joined or not, to its table instance.
// Joined instances are created on first use, and the table they are joined
// to is marked fully used since it must be rendered.
func (ctx *Context) Resolve(ref TableRef) (*TableImpl, error) {
	t, ok := ref.(*Table)
	if !ok || t.parent == nil || t.impl != nil {
		return ctx.ResolveRootTable(ref)
	}
	if t.err != nil {
		return nil, t.err
	}
	p, err := ctx.Resolve(t.parent)
	if err != nil {
		return nil, err
	}
	if p.parent != nil {
		ctx.MarkFullyUsed(p)
	}
	return p.joinImpl(t.edge, t.join), nil
}

// visitStatement runs the visit pass of a statement in its own frame.
func (ctx *Context) visitStatement(s Statement) error {
	ctx.EnterStatement(s)
	defer ctx.ExitStatement()
	f := ctx.top()
	if f.visited {
		return nil
	}
	f.visited = true
	if err := s.visit(ctx, f); err != nil {
		return err
	}
	if err := ctx.finishFrame(f); err != nil {
		return err
	}
	if c, ok := s.(interface{ checkFrame(*frame) error }); ok {
		return c.checkFrame(f)
	}
	return nil
}

// renderStatement runs the render pass of a visited statement.
func (ctx *Context) renderStatement(s Statement, b *sql.Builder) {
	ctx.EnterStatement(s)
	defer ctx.ExitStatement()
	s.render(ctx, ctx.top(), b)
}

// finishFrame applies soft-delete and global filters to every used table
// instance, then decides how each join is rendered.
func (ctx *Context) finishFrame(f *frame) error {
	if f.root == nil {
		return nil
	}
	ignore := false
	if s, ok := f.stmt.(interface{ filtersIgnored() bool }); ok {
		ignore = s.filtersIgnored()
	}
	// Filters may join further tables; repeat until no used table is left
	// without its predicates.
	done := make(map[string]bool)
	for !ignore {
		progress := false
		for _, t := range f.tables() {
			if done[t.key] || t.parent != nil && ctx.UsageOf(t) == UsageNone {
				continue
			}
			done[t.key], progress = true, true
			if err := ctx.filterTable(f, t); err != nil {
				return err
			}
		}
		if !progress {
			break
		}
	}
	ctx.settle(f.root)
	return nil
}

// filterTable adds the soft-delete and global filter predicates of t.
func (ctx *Context) filterTable(f *frame, t *TableImpl) error {
	if sd := t.node.SoftDelete; sd != nil {
		ctx.MarkFullyUsed(t)
		c := t.Proxy().Raw(sd.Column, sd.Type)
		if err := c.visit(ctx); err != nil {
			return err
		}
		f.preds[t.key] = append(f.preds[t.key], c.IsNull())
	}
	for _, fn := range ctx.filters[t.node.Name] {
		ctx.MarkFullyUsed(t)
		p := fn(t.Proxy())
		if p == nil {
			continue
		}
		if err := p.visit(ctx); err != nil {
			return err
		}
		f.preds[t.key] = append(f.preds[t.key], p)
	}
	return nil
}

// settle decides the render mode of t and its descendants, children first.
func (ctx *Context) settle(t *TableImpl) {
	for _, c := range t.children {
		ctx.settle(c)
	}
	if t.parent == nil {
		t.mode = modeFull
		return
	}
	switch u := ctx.UsageOf(t); {
	case u == UsageNone:
		t.mode = modeNone
	case u == UsageIDOnly && t.edge.OwnFK():
		t.mode = modeElided
		ctx.MarkFullyUsed(t.parent)
	case u == UsageIDOnly && t.isM2M():
		t.mode = modeLinkOnly
		ctx.MarkFullyUsed(t.parent)
	default:
		t.mode = modeFull
		ctx.MarkFullyUsed(t.parent)
	}
}

// allocate assigns aliases to the rendered tables of f.
func (ctx *Context) allocate(f *frame) {
	f.root.walk(func(t *TableImpl) {
		switch t.mode {
		case modeFull:
			if t.isM2M() {
				t.linkAlias = ctx.aliases.allocate(t.linkKey())
			}
			t.alias = ctx.aliases.allocate(t.key)
		case modeLinkOnly:
			t.linkAlias = ctx.aliases.allocate(t.linkKey())
		}
	})
}

// noteKey scopes expression data to a frame, since one expression value
// may appear in several statements.
type noteKey struct {
	f *frame
	k any
}

// note returns the data recorded for an expression node in the current
// frame.
func (ctx *Context) note(k any) any { return ctx.notes[noteKey{ctx.top(), k}] }

func (ctx *Context) setNote(k, v any) { ctx.notes[noteKey{ctx.top(), k}] = v }

// bind checks v against f and stores its encoded form.
func (ctx *Context) bind(v *valueExpr, f *schema.Field) error {
	if v.v == nil {
		ctx.setNote(v, nil)
		return nil
	}
	if err := field.Check(f.Type, v.v); err != nil {
		return veloq.NewInvalidExpressionError(f.String(), "%v", err)
	}
	w, err := f.Encode(v.v)
	if err != nil {
		return err
	}
	ctx.setNote(v, w)
	return nil
}

// aliasRegistry hands out table aliases in first-use order.
type aliasRegistry struct {
	n     int
	byKey map[string]string
}

// allocate returns the alias of key, allocating tb_<n>_ on first use.
func (r *aliasRegistry) allocate(key string) string {
	if a, ok := r.byKey[key]; ok {
		return a
	}
	if r.byKey == nil {
		r.byKey = make(map[string]string)
	}
	r.n++
	a := fmt.Sprintf("tb_%d_", r.n)
	r.byKey[key] = a
	return a
}
