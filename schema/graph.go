package schema

import (
	"fmt"
	"sync"

	"github.com/syssam/veloq/codec"
	"github.com/syssam/veloq/schema/edge"
	"github.com/syssam/veloq/schema/field"
)

// Graph holds the entities of an application. Entities are added while
// the application starts; Freeze resolves and validates them, after which
// the graph is read-only and safe for concurrent use.
type Graph struct {
	mu       sync.Mutex
	reg      *codec.Registry
	entities []*Entity
	nodes    []*Node
	byName   map[string]*Node
	frozen   bool
}

// Option configures a Graph.
type Option func(*Graph)

// WithRegistry sets the codec registry consulted for structured fields.
func WithRegistry(reg *codec.Registry) Option {
	return func(g *Graph) { g.reg = reg }
}

// NewGraph returns an empty graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{}
	for _, opt := range opts {
		opt(g)
	}
	if g.reg == nil {
		g.reg = codec.NewRegistry()
	}
	return g
}

// Add adds entities to the graph. Adding to a frozen graph panics.
func (g *Graph) Add(entities ...*Entity) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		panic("schema: Add called on a frozen graph")
	}
	g.entities = append(g.entities, entities...)
	return g
}

// Registry returns the codec registry of the graph.
func (g *Graph) Registry() *codec.Registry { return g.reg }

// Validate resolves the entities added so far and reports problems without
// freezing the graph.
func (g *Graph) Validate() *ValidationResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, r := g.build()
	return r
}

// Freeze resolves and validates the graph and makes it, and its codec
// registry, read-only.
func (g *Graph) Freeze() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return nil
	}
	nodes, r := g.build()
	if err := r.Err(); err != nil {
		return err
	}
	g.nodes = nodes
	g.byName = make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		g.byName[n.Name] = n
	}
	g.reg.Freeze()
	g.frozen = true
	return nil
}

// Build creates a frozen graph from entities.
func Build(reg *codec.Registry, entities ...*Entity) (*Graph, error) {
	g := NewGraph(WithRegistry(reg)).Add(entities...)
	if err := g.Freeze(); err != nil {
		return nil, err
	}
	return g, nil
}

// MustBuild is like Build but panics on error.
func MustBuild(reg *codec.Registry, entities ...*Entity) *Graph {
	g, err := Build(reg, entities...)
	if err != nil {
		panic(err)
	}
	return g
}

// Node returns the node named name, or nil. Only frozen graphs have nodes.
func (g *Graph) Node(name string) *Node {
	return g.byName[name]
}

// MustNode is like Node but panics if the node does not exist.
func (g *Graph) MustNode(name string) *Node {
	n := g.Node(name)
	if n == nil {
		panic(fmt.Sprintf("schema: unknown entity %q", name))
	}
	return n
}

// Nodes returns the nodes in the order their entities were added.
func (g *Graph) Nodes() []*Node { return g.nodes }

// build resolves entities into nodes in two passes: scalar metadata first,
// then edges, which need every node.
func (g *Graph) build() ([]*Node, *ValidationResult) {
	r := &ValidationResult{}
	var (
		nodes  = make([]*Node, 0, len(g.entities))
		byName = make(map[string]*Node, len(g.entities))
		tables = make(map[string]string)
		edges  = make(map[*Node][]*edge.Descriptor)
	)
	for _, e := range g.entities {
		n := g.buildNode(e, r)
		if n == nil {
			continue
		}
		if _, ok := byName[n.Name]; ok {
			r.errorf(n.Name, "", "duplicate entity")
			continue
		}
		if other, ok := tables[n.Table]; ok {
			r.warnf(n.Name, "", "table %s is shared with %s", n.Table, other)
		} else {
			tables[n.Table] = n.Name
		}
		byName[n.Name] = n
		nodes = append(nodes, n)
		for _, m := range e.Mixins {
			for _, ed := range m.Edges() {
				edges[n] = append(edges[n], ed.Descriptor())
			}
		}
		for _, ed := range e.Edges {
			edges[n] = append(edges[n], ed.Descriptor())
		}
	}
	for _, n := range nodes {
		for _, d := range edges[n] {
			g.buildEdge(n, d, byName, r)
		}
	}
	for _, n := range nodes {
		resolveRefs(n, r)
		n.indexProps(r)
		checkComputed(n, r)
	}
	return nodes, r
}

func (g *Graph) buildNode(e *Entity, r *ValidationResult) *Node {
	if e == nil || e.Name == "" {
		r.errorf("", "", "entity without a name")
		return nil
	}
	n := &Node{
		Name:       e.Name,
		Table:      e.Table,
		Computed:   e.Computed,
		SoftDelete: e.SoftDelete,
		Comment:    e.Comment,
	}
	if n.Table == "" {
		n.Table = TableName(e.Name)
	}
	if e.ID == nil {
		r.errorf(n.Name, "", "missing id field")
		return nil
	}
	n.ID = g.buildField(n, e.ID.Descriptor(), r)
	switch {
	case n.ID == nil:
		return nil
	case n.ID.IsFormula():
		r.errorf(n.Name, n.ID.Name, "id cannot be a formula")
	case n.ID.Nillable:
		r.errorf(n.Name, n.ID.Name, "id cannot be nillable")
	case n.ID.Type.Structured(), n.ID.Type == field.TypeBytes:
		r.errorf(n.Name, n.ID.Name, "id cannot be of type %s", n.ID.Type)
	}
	n.Fields = append(n.Fields, n.ID)
	fields := make([]field.Field, 0, len(e.Fields))
	for _, m := range e.Mixins {
		fields = append(fields, m.Fields()...)
		if n.SoftDelete == nil {
			n.SoftDelete = m.SoftDelete()
		}
	}
	fields = append(fields, e.Fields...)
	for _, fd := range fields {
		if f := g.buildField(n, fd.Descriptor(), r); f != nil {
			n.Fields = append(n.Fields, f)
		}
	}
	if sd := n.SoftDelete; sd != nil {
		switch {
		case sd.Column == "":
			r.errorf(n.Name, "", "soft-delete marker without a column")
		case sd.Value == nil:
			r.errorf(n.Name, sd.Column, "soft-delete marker without a value")
		}
	}
	return n
}

func (g *Graph) buildField(n *Node, d *field.Descriptor, r *ValidationResult) *Field {
	if d.Err != nil {
		r.errorf(n.Name, d.Name, "%v", d.Err)
		return nil
	}
	if d.Name == "" {
		r.errorf(n.Name, "", "field without a name")
		return nil
	}
	if !d.Type.Valid() {
		r.errorf(n.Name, d.Name, "invalid field type")
		return nil
	}
	f := &Field{
		Node:     n,
		Name:     d.Name,
		Column:   d.StorageKey,
		Type:     d.Type,
		Nillable: d.Nillable,
		Formula:  d.Formula,
		GoType:   d.GoType,
		Codec:    d.Codec,
	}
	if f.Column == "" && !f.IsFormula() {
		f.Column = ColumnName(f.Name)
	}
	if f.Codec == nil && d.CodecName != "" {
		c, ok := g.reg.Named(d.CodecName)
		if !ok {
			r.errorf(n.Name, f.Name, "unknown codec %q", d.CodecName)
			return nil
		}
		f.Codec = c
	}
	if f.Codec == nil {
		if c, ok := g.reg.Lookup(n.Name, f.Name, f.GoType); ok {
			f.Codec = c
		}
	}
	if f.Codec == nil {
		switch f.Type {
		case field.TypeJSON:
			f.Codec = codec.JSONOf(f.GoType)
		case field.TypeOther:
			r.errorf(n.Name, f.Name, "no codec for type %v", f.GoType)
			return nil
		}
	}
	return f
}

func (g *Graph) buildEdge(n *Node, d *edge.Descriptor, byName map[string]*Node, r *ValidationResult) {
	if d.Err != nil {
		r.errorf(n.Name, d.Name, "%v", d.Err)
		return
	}
	target, ok := byName[d.Type]
	if !ok {
		r.errorf(n.Name, d.Name, "unknown edge target %q", d.Type)
		return
	}
	e := &Edge{
		Node:    n,
		Target:  target,
		Name:    d.Name,
		Rel:     d.Rel(),
		Column:  d.Column,
		Comment: d.Comment,
	}
	if d.Through != nil {
		th := *d.Through
		if th.Table == "" {
			r.errorf(n.Name, d.Name, "many-to-many edge without a link table")
			return
		}
		if th.OwnColumn == "" {
			th.OwnColumn = ForeignKey(n.Name)
		}
		if th.TargetColumn == "" {
			th.TargetColumn = ForeignKey(target.Name)
		}
		e.Through = &th
	}
	if e.Rel == edge.M2O && e.Column == "" {
		e.Column = ForeignKey(e.Name)
	}
	// O2M and O2O columns may come from the inverse edge; see resolveRefs.
	e.ref = d.Ref
	n.Edges = append(n.Edges, e)
}

func findEdge(n *Node, name string) *Edge {
	for _, e := range n.Edges {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// resolveRefs links inverse edges and derives the foreign key columns of
// To edges.
func resolveRefs(n *Node, r *ValidationResult) {
	for _, e := range n.Edges {
		if e.Ref == nil {
			switch inv := findEdge(e.Target, e.ref); {
			case e.ref == "":
				for _, o := range e.Target.Edges {
					if o.ref == e.Name && o.Target == n {
						e.Ref = o
						break
					}
				}
			case inv == nil:
				r.errorf(n.Name, e.Name, "ref %q not found on %s", e.ref, e.Target.Name)
			case inv.Target != n:
				r.errorf(n.Name, e.Name, "ref %s.%s does not reference %s", e.Target.Name, inv.Name, n.Name)
			default:
				e.Ref = inv
				if inv.Ref == nil {
					inv.Ref = e
				}
			}
		}
		if inv := e.Ref; inv != nil {
			switch {
			case e.Rel == edge.M2M && inv.Rel != edge.M2M,
				e.Rel != edge.M2M && inv.Rel == edge.M2M,
				!e.OwnFK() && e.Rel != edge.M2M && !inv.OwnFK(),
				e.OwnFK() && inv.OwnFK():
				r.errorf(n.Name, e.Name, "%s edge cannot mirror %s edge %s", e.Rel, inv.Rel, inv)
				continue
			}
		}
		if e.Rel != edge.O2M && e.Rel != edge.O2O {
			continue
		}
		switch inv := e.Ref; {
		case e.Column == "" && inv != nil:
			e.Column = inv.Column
		case e.Column == "":
			e.Column = ForeignKey(n.Name)
			r.warnf(n.Name, e.Name, "foreign key column derived as %s.%s", e.Target.Table, e.Column)
		case inv != nil && inv.Column != e.Column:
			r.errorf(n.Name, e.Name, "column %s differs from %s column %s", e.Column, inv, inv.Column)
		}
	}
}

func (n *Node) indexProps(r *ValidationResult) {
	n.index = make(map[string]Prop)
	add := func(p Prop) {
		if _, ok := n.index[p.Name]; ok {
			r.errorf(n.Name, p.Name, "duplicate property")
			return
		}
		n.index[p.Name] = p
		n.props = append(n.props, p)
	}
	for _, f := range n.Fields {
		add(Prop{Name: f.Name, Kind: PropField, Field: f})
	}
	for _, e := range n.Edges {
		add(Prop{Name: e.Name, Kind: PropEdge, Edge: e})
	}
	for _, c := range n.Computed {
		if c == nil || c.Name == "" {
			r.errorf(n.Name, "", "computed property without a name")
			continue
		}
		add(Prop{Name: c.Name, Kind: PropComputed, Computed: c})
	}
}

// checkComputed validates computed properties. Cycles are reported when a
// fetch plan is built.
func checkComputed(n *Node, r *ValidationResult) {
	for _, c := range n.Computed {
		if c == nil || c.Name == "" {
			continue
		}
		if c.Func == nil {
			r.errorf(n.Name, c.Name, "computed property without a function")
		}
		for _, dep := range c.Deps {
			if _, ok := n.index[dep]; !ok {
				r.errorf(n.Name, c.Name, "unknown dependency %q", dep)
			}
		}
	}
}
