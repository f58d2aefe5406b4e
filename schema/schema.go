package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-openapi/inflect"
	"github.com/google/uuid"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/codec"
	"github.com/syssam/veloq/schema/edge"
	"github.com/syssam/veloq/schema/field"
)

// Entity declares a mapped entity type.
type Entity struct {
	Name       string
	Table      string // derived from Name when empty
	ID         field.Field
	Fields     []field.Field
	Edges      []edge.Edge
	Computed   []*Computed
	SoftDelete *SoftDelete
	Mixins     []Mixin
	Comment    string
}

// Mixin is a reusable set of fields, edges and an optional soft-delete
// marker shared by several entities. Mixin fields and edges come before the
// entity's own.
type Mixin interface {
	Fields() []field.Field
	Edges() []edge.Edge
	SoftDelete() *SoftDelete
}

// SoftDelete declares the soft-delete marker of an entity. A row is live
// while Column is NULL.
type SoftDelete struct {
	Column string
	Type   field.Type
	// Value returns the marker written by a logical delete.
	Value func() any
}

// SoftDeleteTime returns a marker set to the current UTC time on delete.
func SoftDeleteTime(column string) *SoftDelete {
	return &SoftDelete{Column: column, Type: field.TypeTime, Value: func() any { return time.Now().UTC() }}
}

// SoftDeleteUUID returns a marker set to a random UUID on delete, which
// keeps unique keys that include the marker free for new rows.
func SoftDeleteUUID(column string) *SoftDelete {
	return &SoftDelete{Column: column, Type: field.TypeUUID, Value: func() any { return uuid.NewString() }}
}

// Values gives computed properties read access to an object.
type Values interface {
	// Get returns the value of a scalar, formula or computed property.
	Get(name string) (any, error)
	// Related returns the loaded objects of an edge. To-one edges return
	// zero or one element.
	Related(name string) ([]Values, error)
}

// Computed declares a property derived from other properties of the same
// entity, evaluated after them.
//
//	&schema.Computed{
//	    Name: "fullName",
//	    Deps: []string{"firstName", "lastName"},
//	    Func: func(v schema.Values) (any, error) { ... },
//	}
type Computed struct {
	Name string
	// Deps lists the scalars, edges and computed properties Func reads.
	Deps []string
	Func func(Values) (any, error)
}

// Node is the resolved, read-only metadata of an entity.
type Node struct {
	Name       string
	Table      string
	ID         *Field
	Fields     []*Field // ID first
	Edges      []*Edge
	Computed   []*Computed
	SoftDelete *SoftDelete
	Comment    string

	props []Prop
	index map[string]Prop
}

// PropKind is the kind of a property.
type PropKind uint8

// Property kinds.
const (
	PropField PropKind = iota + 1
	PropEdge
	PropComputed
)

// Prop is one property of a node, in declaration order.
type Prop struct {
	Name     string
	Kind     PropKind
	Field    *Field
	Edge     *Edge
	Computed *Computed
}

// Props returns the properties of the node in declaration order: the id,
// the fields, the edges, then computed properties.
func (n *Node) Props() []Prop { return n.props }

// Prop returns the property named name.
func (n *Node) Prop(name string) (Prop, bool) {
	p, ok := n.index[name]
	return p, ok
}

// Field returns the scalar or formula field named name.
func (n *Node) Field(name string) *Field {
	if p, ok := n.index[name]; ok {
		return p.Field
	}
	return nil
}

// Edge returns the edge named name.
func (n *Node) Edge(name string) *Edge {
	if p, ok := n.index[name]; ok {
		return p.Edge
	}
	return nil
}

// ComputedProp returns the computed property named name.
func (n *Node) ComputedProp(name string) *Computed {
	if p, ok := n.index[name]; ok {
		return p.Computed
	}
	return nil
}

// String implements fmt.Stringer.
func (n *Node) String() string { return n.Name }

// Field is a resolved field.
type Field struct {
	Node     *Node
	Name     string
	Column   string
	Type     field.Type
	Nillable bool
	Formula  string
	GoType   reflect.Type
	Codec    codec.Codec
}

// IsID reports if f is the identifier of its node.
func (f *Field) IsID() bool { return f.Node != nil && f.Node.ID == f }

// IsFormula reports if f is computed by the database.
func (f *Field) IsFormula() bool { return f.Formula != "" }

// Encode converts an application value into a statement parameter.
func (f *Field) Encode(v any) (any, error) {
	if v == nil || f.Codec == nil {
		return v, nil
	}
	w, err := f.Codec.Encode(v)
	if err != nil {
		return nil, veloq.NewCodecError(f.entity(), f.Name, err)
	}
	return w, nil
}

// Decode converts a raw column value into the application value.
func (f *Field) Decode(src any) (any, error) {
	if src == nil {
		return nil, nil
	}
	var (
		v   any
		err error
	)
	if f.Codec != nil {
		v, err = f.Codec.Decode(src)
	} else {
		v, err = field.Convert(f.Type, src)
	}
	if err != nil {
		return nil, veloq.NewCodecError(f.entity(), f.Name, err)
	}
	return v, nil
}

func (f *Field) entity() string {
	if f.Node == nil {
		return ""
	}
	return f.Node.Name
}

// String implements fmt.Stringer.
func (f *Field) String() string { return f.entity() + "." + f.Name }

// Edge is a resolved association.
type Edge struct {
	Node    *Node // declaring node
	Target  *Node
	Name    string
	Rel     edge.Rel
	Column  string // on Node.Table for M2O, on Target.Table for O2M and O2O
	Through *edge.Through
	Ref     *Edge // inverse edge, if declared
	Comment string

	ref string
}

// OwnFK reports if the foreign key column is on the declaring table.
func (e *Edge) OwnFK() bool { return e.Rel == edge.M2O }

// ToMany reports if the edge loads a list.
func (e *Edge) ToMany() bool { return e.Rel == edge.O2M || e.Rel == edge.M2M }

// FKField returns a synthetic field describing the foreign key column, used
// to read it alongside the owning table's properties.
func (e *Edge) FKField() *Field {
	switch e.Rel {
	case edge.M2O:
		return &Field{Node: e.Node, Name: e.Name + "#fk", Column: e.Column, Type: e.Target.ID.Type, Nillable: true}
	case edge.O2M, edge.O2O:
		return &Field{Node: e.Target, Name: e.Name + "#fk", Column: e.Column, Type: e.Node.ID.Type, Nillable: true}
	}
	return nil
}

// String implements fmt.Stringer.
func (e *Edge) String() string { return e.Node.Name + "." + e.Name }

// TableName returns the default table name of an entity.
func TableName(entity string) string {
	return strings.ToUpper(inflect.Underscore(entity))
}

// ColumnName returns the default column name of a property.
func ColumnName(prop string) string {
	return strings.ToUpper(inflect.Underscore(prop))
}

// ForeignKey returns the default foreign key column referencing name.
func ForeignKey(name string) string {
	return ColumnName(name) + "_ID"
}

func (p Prop) String() string {
	return fmt.Sprintf("%s(%d)", p.Name, p.Kind)
}
