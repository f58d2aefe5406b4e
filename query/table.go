package query

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/schema"
	"github.com/syssam/veloq/schema/edge"
	"github.com/syssam/veloq/schema/field"
)

// JoinType is the join type of a table reached through an edge.
type JoinType uint8

// Join types.
const (
	InnerJoin JoinType = iota
	LeftJoin
)

// String returns the SQL keyword of the join type.
func (j JoinType) String() string {
	if j == LeftJoin {
		return "LEFT JOIN"
	}
	return "INNER JOIN"
}

// TableRef is a table reference inside a statement: either a *Table handle
// held by the caller or a *TableImpl created by the compiler. The set of
// implementations is closed.
type TableRef interface {
	Node() *schema.Node
	tableRef()
}

// rootSeq gives every root handle a process-wide identity.
var rootSeq atomic.Uint64

// Table is the handle callers use to reference an entity in statements.
// A root handle is declared by exactly one statement (From, Update, Delete);
// joined handles are paths from a root handle through edges. A handle
// returned by TableImpl.Proxy is bound to a compiled table and resolves to
// it directly.
type Table struct {
	ident  uint64
	node   *schema.Node
	parent *Table
	edge   *schema.Edge
	join   JoinType
	impl   *TableImpl
	err    error
}

// NewTable returns a new root handle of node.
func NewTable(node *schema.Node) *Table {
	t := &Table{ident: rootSeq.Add(1), node: node}
	if node == nil {
		t.err = veloq.NewInvalidExpressionError("table", "nil entity")
	}
	return t
}

func (*Table) tableRef() {}

// Node returns the entity of the table.
func (t *Table) Node() *schema.Node { return t.node }

// Parent returns the handle t was joined from, or nil for roots.
func (t *Table) Parent() *Table { return t.parent }

// Edge returns the edge t was joined through, or nil for roots.
func (t *Table) Edge() *schema.Edge { return t.edge }

// Join returns the handle of the target of edge, inner joined.
// Joining the same edge twice from the same table yields the same table
// instance in the compiled statement.
func (t *Table) Join(edge string) *Table { return t.joinName(edge, InnerJoin) }

// LeftJoin is like Join with a left outer join.
func (t *Table) LeftJoin(edge string) *Table { return t.joinName(edge, LeftJoin) }

func (t *Table) joinName(name string, jt JoinType) *Table {
	if t.err != nil {
		return &Table{node: t.node, parent: t, join: jt, err: t.err}
	}
	e := t.node.Edge(name)
	if e == nil {
		return &Table{node: t.node, parent: t, join: jt, err: veloq.NewInvalidExpressionError(
			t.node.Name+"."+name, "unknown edge")}
	}
	return t.JoinEdge(e, jt)
}

// JoinEdge joins t through e, which must be declared by the entity of t.
func (t *Table) JoinEdge(e *schema.Edge, jt JoinType) *Table {
	j := &Table{node: e.Target, parent: t, edge: e, join: jt, err: t.err}
	if j.err == nil && e.Node != t.node {
		j.err = veloq.NewInvalidExpressionError(e.String(), "edge is not declared by %s", t.node.Name)
	}
	return j
}

// C returns the column of a scalar or formula property.
func (t *Table) C(prop string) *Column { return &Column{table: t, prop: prop} }

// ID returns the identifier column.
func (t *Table) ID() *Column {
	if t.node == nil {
		return &Column{table: t}
	}
	return &Column{table: t, prop: t.node.ID.Name}
}

// Raw returns a column that is not declared as a property.
func (t *Table) Raw(column string, typ field.Type) *Column {
	return &Column{table: t, raw: column, rawType: typ}
}

// ForeignKey returns the foreign key column of e stored in t: the column of
// a many-to-one edge declared by t, or of a one-to-many or one-to-one edge
// targeting t.
func (t *Table) ForeignKey(e *schema.Edge) *Column {
	return &Column{table: t, fk: e}
}

// String implements fmt.Stringer.
func (t *Table) String() string {
	if t.parent == nil {
		if t.node == nil {
			return "<nil>"
		}
		return t.node.Name
	}
	if t.edge == nil {
		return t.parent.String() + ".?"
	}
	return t.parent.String() + "." + t.edge.Name
}

// renderMode decides how a table instance appears in SQL.
type renderMode uint8

const (
	modeNone     renderMode = iota // not referenced
	modeElided                     // id read from the parent's foreign key
	modeLinkOnly                   // many-to-many id read from the link table
	modeFull                       // joined
)

// TableImpl is a concrete table instance of one compilation. Its key is
// stable: the same statement tree compiled twice yields the same keys.
type TableImpl struct {
	key       string
	node      *schema.Node
	parent    *TableImpl
	edge      *schema.Edge
	join      JoinType
	frame     *frame
	children  []*TableImpl
	alias     string
	linkAlias string
	mode      renderMode
	proxy     *Table
}

func (*TableImpl) tableRef() {}

// Node returns the entity of the table.
func (t *TableImpl) Node() *schema.Node { return t.node }

// Key returns the stable key of the table instance.
func (t *TableImpl) Key() string { return t.key }

// Alias returns the alias allocated when the owning statement was rendered.
func (t *TableImpl) Alias() string { return t.alias }

// Parent returns the table this one is joined to.
func (t *TableImpl) Parent() *TableImpl { return t.parent }

// Proxy returns a handle bound to t. Columns of the handle, and of joins
// from it, resolve to t without a statement lookup.
func (t *TableImpl) Proxy() *Table {
	if t.proxy == nil {
		t.proxy = &Table{node: t.node, impl: t}
	}
	return t.proxy
}

// joinImpl returns the child instance for (e, jt), creating it on first use.
func (t *TableImpl) joinImpl(e *schema.Edge, jt JoinType) *TableImpl {
	for _, c := range t.children {
		if c.edge == e && c.join == jt {
			return c
		}
	}
	key := t.key + "/" + e.Name
	if jt == LeftJoin {
		key += "!left"
	}
	c := &TableImpl{key: key, node: e.Target, parent: t, edge: e, join: jt, frame: t.frame}
	t.children = append(t.children, c)
	return c
}

// outer reports if t or one of its ancestors is left joined. Filters of
// such tables go into the join condition.
func (t *TableImpl) outer() bool {
	for p := t; p.parent != nil; p = p.parent {
		if p.join == LeftJoin {
			return true
		}
	}
	return false
}

// walk calls fn for t and its descendants, depth first in creation order.
func (t *TableImpl) walk(fn func(*TableImpl)) {
	fn(t)
	for _, c := range t.children {
		c.walk(fn)
	}
}

// String implements fmt.Stringer.
func (t *TableImpl) String() string {
	return fmt.Sprintf("%s(%s)", t.node.Name, t.key)
}

// linkKey is the registry key of the link table of a many-to-many join.
func (t *TableImpl) linkKey() string { return t.key + "#link" }

// isM2M reports if t is reached through a many-to-many edge.
func (t *TableImpl) isM2M() bool { return t.edge != nil && t.edge.Rel == edge.M2M }

func rootKey(seq int) string { return strconv.Itoa(seq) }
