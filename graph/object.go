package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/schema"
)

// Object is an entity instance reconstructed from rows. Only the
// properties its fetcher requested are loaded; reading any other property
// returns a *veloq.NotLoadedError.
type Object struct {
	node   *schema.Node
	values map[string]any
	edges  map[string][]*Object
	fks    map[string]any
	hidden map[string]bool
}

// New returns an empty object of node.
func New(node *schema.Node) *Object {
	return &Object{
		node:   node,
		values: make(map[string]any),
		edges:  make(map[string][]*Object),
	}
}

// Node returns the entity of the object.
func (o *Object) Node() *schema.Node { return o.node }

// ID returns the identifier.
func (o *Object) ID() any { return o.values[o.node.ID.Name] }

// Set stores the value of a scalar, formula or computed property.
func (o *Object) Set(name string, v any) { o.values[name] = v }

// Get returns a loaded scalar, formula or computed property.
func (o *Object) Get(name string) (any, error) {
	v, ok := o.values[name]
	if !ok {
		return nil, veloq.NewNotLoadedError(o.node.Name + "." + name)
	}
	return v, nil
}

// Value is like Get and returns nil for properties that are not loaded.
func (o *Object) Value(name string) any { return o.values[name] }

// Has reports if the property is loaded, including edges.
func (o *Object) Has(name string) bool {
	if _, ok := o.values[name]; ok {
		return true
	}
	_, ok := o.edges[name]
	return ok
}

// SetEdge stores the loaded targets of an edge. A to-one edge stores zero
// or one target.
func (o *Object) SetEdge(name string, targets []*Object) {
	if targets == nil {
		targets = []*Object{}
	}
	o.edges[name] = targets
}

// Edge returns the loaded targets of an edge.
func (o *Object) Edge(name string) ([]*Object, error) {
	ts, ok := o.edges[name]
	if !ok {
		return nil, veloq.NewNotLoadedError(o.node.Name + "." + name)
	}
	return ts, nil
}

// One returns the target of a loaded to-one edge, or nil when it has none.
func (o *Object) One(name string) (*Object, error) {
	ts, err := o.Edge(name)
	if err != nil || len(ts) == 0 {
		return nil, err
	}
	return ts[0], nil
}

// Related implements schema.Values.
func (o *Object) Related(name string) ([]schema.Values, error) {
	ts, err := o.Edge(name)
	if err != nil {
		return nil, err
	}
	vs := make([]schema.Values, len(ts))
	for i, t := range ts {
		vs[i] = t
	}
	return vs, nil
}

// FK returns the foreign key read for a many-to-one edge.
func (o *Object) FK(edge string) (any, bool) {
	v, ok := o.fks[edge]
	return v, ok
}

// SetFK stores the foreign key of a many-to-one edge.
func (o *Object) SetFK(edge string, v any) {
	if o.fks == nil {
		o.fks = make(map[string]any)
	}
	o.fks[edge] = v
}

// Hide excludes a loaded property from the JSON form. Properties loaded
// only for computed properties are hidden.
func (o *Object) Hide(name string) {
	if o.hidden == nil {
		o.hidden = make(map[string]bool)
	}
	o.hidden[name] = true
}

// Loaded returns the names of the visible loaded properties in declaration
// order.
func (o *Object) Loaded() []string {
	var names []string
	for _, p := range o.node.Props() {
		if o.Has(p.Name) && !o.hidden[p.Name] {
			names = append(names, p.Name)
		}
	}
	return names
}

// MarshalJSON writes the visible loaded properties in declaration order.
// Empty to-many edges are written as [] and missing to-one targets as null.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range o.Loaded() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(name)
		buf.Write(k)
		buf.WriteByte(':')
		var v any
		if ts, ok := o.edges[name]; ok {
			e := o.node.Edge(name)
			switch {
			case e != nil && e.ToMany():
				v = ts
			case len(ts) > 0:
				v = ts[0]
			}
		} else {
			v = o.values[name]
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("graph: marshal %s.%s: %w", o.node.Name, name, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String implements fmt.Stringer.
func (o *Object) String() string {
	var sb strings.Builder
	sb.WriteString(o.node.Name)
	sb.WriteByte('(')
	fmt.Fprint(&sb, o.ID())
	sb.WriteByte(')')
	return sb.String()
}

var _ schema.Values = (*Object)(nil)
