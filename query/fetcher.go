package query

import (
	"slices"
	"strings"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/schema"
)

// Fetcher is the shape of the object graph a query loads: which scalars of
// the root entity to read, and which edges to load with which child shape.
// Fetchers are immutable; every method returns a new fetcher.
//
//	f := query.NewFetcher(dept).
//	    Add("name").
//	    AddEdge("employees", query.NewFetcher(emp).Add("name"))
type Fetcher struct {
	node    *schema.Node
	entries []*FetchEntry
	err     error
}

// FetchEntry is one requested property of a fetcher.
type FetchEntry struct {
	Prop schema.Prop
	// Child is the shape of the edge target. Nil for scalars.
	Child *Fetcher
	// Where restricts the loaded edge targets.
	Where func(*Table) Expr
	// OrderBy orders the loaded edge targets.
	OrderBy func(*Table) []Order
	// BatchSize bounds the number of keys per batch query. Zero means one
	// query per level.
	BatchSize int
	// Hidden entries are loaded for computed properties but are not part
	// of the result.
	Hidden bool
}

// Name returns the property name of the entry.
func (e *FetchEntry) Name() string { return e.Prop.Name }

// EdgeOption configures an edge entry.
type EdgeOption func(*FetchEntry)

// EdgeWhere filters the targets of an edge.
func EdgeWhere(fn func(*Table) Expr) EdgeOption {
	return func(e *FetchEntry) { e.Where = fn }
}

// EdgeOrderBy orders the targets of a to-many edge.
func EdgeOrderBy(fn func(*Table) []Order) EdgeOption {
	return func(e *FetchEntry) { e.OrderBy = fn }
}

// BatchSize bounds the number of keys sent in one batch query.
func BatchSize(n int) EdgeOption {
	return func(e *FetchEntry) { e.BatchSize = n }
}

// NewFetcher returns a fetcher of node that reads only the identifier.
func NewFetcher(node *schema.Node) *Fetcher {
	f := &Fetcher{node: node}
	if node == nil {
		f.err = veloq.NewInvalidExpressionError("fetcher", "nil entity")
	}
	return f
}

// Node returns the entity of the fetcher.
func (f *Fetcher) Node() *schema.Node { return f.node }

// Err returns the first error recorded while building the fetcher.
func (f *Fetcher) Err() error { return f.err }

// Entries returns the requested properties in the order they were added.
func (f *Fetcher) Entries() []*FetchEntry { return f.entries }

// Entry returns the entry of name.
func (f *Fetcher) Entry(name string) *FetchEntry {
	for _, e := range f.entries {
		if e.Prop.Name == name {
			return e
		}
	}
	return nil
}

// IDOnly reports if the fetcher reads nothing but the identifier.
func (f *Fetcher) IDOnly() bool { return len(f.entries) == 0 }

// Add requests scalar, formula, computed or edge properties. Edges added by
// name load their target's identifiers only.
func (f *Fetcher) Add(props ...string) *Fetcher {
	c := f.clone()
	for _, name := range props {
		c.add(name, false)
	}
	return c
}

// AllScalars requests every stored scalar of the entity.
func (f *Fetcher) AllScalars() *Fetcher {
	c := f.clone()
	if c.node == nil {
		return c
	}
	for _, fd := range c.node.Fields {
		if !fd.IsID() && !fd.IsFormula() {
			c.add(fd.Name, false)
		}
	}
	return c
}

// AddEdge requests an edge loaded with the child shape, or with the target
// identifiers when child is nil.
func (f *Fetcher) AddEdge(name string, child *Fetcher, opts ...EdgeOption) *Fetcher {
	c := f.clone()
	if c.err != nil {
		return c
	}
	e := c.node.Edge(name)
	if e == nil {
		c.err = veloq.NewInvalidExpressionError(c.node.Name+"."+name, "unknown edge")
		return c
	}
	if child == nil {
		child = NewFetcher(e.Target)
	}
	if child.err != nil {
		c.err = child.err
		return c
	}
	if child.node != e.Target {
		c.err = veloq.NewInvalidExpressionError(e.String(), "fetcher of %s for an edge to %s", child.node, e.Target)
		return c
	}
	p, _ := c.node.Prop(name)
	entry := &FetchEntry{Prop: p, Child: child}
	for _, opt := range opts {
		opt(entry)
	}
	c.put(entry)
	return c
}

func (f *Fetcher) clone() *Fetcher {
	return &Fetcher{node: f.node, entries: slices.Clone(f.entries), err: f.err}
}

// put replaces the entry of the same property in place, or appends it.
func (f *Fetcher) put(e *FetchEntry) {
	for i, x := range f.entries {
		if x.Prop.Name == e.Prop.Name {
			f.entries[i] = e
			return
		}
	}
	f.entries = append(f.entries, e)
}

func (f *Fetcher) add(name string, hidden bool) {
	if f.err != nil {
		return
	}
	p, ok := f.node.Prop(name)
	if !ok {
		f.err = veloq.NewInvalidExpressionError(f.node.Name+"."+name, "unknown property")
		return
	}
	if p.Kind == schema.PropField && p.Field.IsID() {
		return
	}
	if x := f.Entry(name); x != nil {
		if !hidden && x.Hidden {
			e := *x
			e.Hidden = false
			f.put(&e)
		}
		return
	}
	e := &FetchEntry{Prop: p, Hidden: hidden}
	switch p.Kind {
	case schema.PropEdge:
		e.Child = NewFetcher(p.Edge.Target)
		if hidden {
			e.Child = e.Child.AllScalars()
		}
		f.put(e)
	case schema.PropComputed:
		// Present before its dependencies so mutual dependencies stop here;
		// the planner reports the cycle.
		f.put(e)
		for _, dep := range p.Computed.Deps {
			f.add(dep, true)
		}
	default:
		f.put(e)
	}
}

// String returns the shape, as in Department{name, employees: Employee{name}}.
func (f *Fetcher) String() string {
	if f.node == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString(f.node.Name)
	sb.WriteByte('{')
	first := true
	for _, e := range f.entries {
		if e.Hidden {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(e.Prop.Name)
		if e.Child != nil {
			sb.WriteString(": ")
			sb.WriteString(e.Child.String())
		}
	}
	sb.WriteByte('}')
	return sb.String()
}
