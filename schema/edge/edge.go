package edge

import "fmt"

// Rel is the relation type of an edge.
type Rel uint8

// Relation types.
const (
	Unk Rel = iota // unknown
	O2O            // one to one
	O2M            // one to many
	M2O            // many to one
	M2M            // many to many
)

// String returns the relation name.
func (r Rel) String() string {
	switch r {
	case O2O:
		return "O2O"
	case O2M:
		return "O2M"
	case M2O:
		return "M2O"
	case M2M:
		return "M2M"
	}
	return "Unknown"
}

// Edge is implemented by every edge builder.
type Edge interface {
	Descriptor() *Descriptor
}

// Through describes the link table of a many-to-many edge.
type Through struct {
	Table        string // link table name
	OwnColumn    string // column referencing the declaring entity
	TargetColumn string // column referencing the target entity
}

// Descriptor holds the declaration of an edge.
type Descriptor struct {
	Name    string   // property name
	Type    string   // target entity name
	Inverse bool     // declared with From; the foreign key is on the declaring table
	Unique  bool     // to-one
	Column  string   // foreign key column, derived when empty
	Ref     string   // name of the edge on the other side
	Through *Through // link table of a many-to-many edge
	Comment string
	Err     error
}

// Rel returns the relation type of the edge.
func (d *Descriptor) Rel() Rel {
	switch {
	case d.Through != nil:
		return M2M
	case d.Inverse:
		return M2O
	case d.Unique:
		return O2O
	}
	return O2M
}

// Builder is the fluent builder of edges.
type Builder struct {
	desc *Descriptor
}

// To declares an association whose foreign key lives on the target table:
// one-to-many, or one-to-one when Unique is called.
//
//	edge.To("employees", "Employee").Column("DEPARTMENT_ID")
func To(name, target string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: target}}
}

// From declares a many-to-one association whose foreign key lives on the
// declaring table.
//
//	edge.From("department", "Department").Ref("employees")
func From(name, target string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: target, Inverse: true, Unique: true}}
}

// Unique makes a To edge one-to-one.
func (b *Builder) Unique() *Builder {
	if b.desc.Through != nil {
		b.desc.Err = fmt.Errorf("edge %q: many-to-many edge cannot be unique", b.desc.Name)
	}
	b.desc.Unique = true
	return b
}

// Column sets the foreign key column. For To edges it is a column of the
// target table, for From edges a column of the declaring table.
func (b *Builder) Column(col string) *Builder {
	b.desc.Column = col
	return b
}

// Ref names the edge of the other entity this edge mirrors. A To edge
// without Column takes the column of its From counterpart.
func (b *Builder) Ref(name string) *Builder {
	b.desc.Ref = name
	return b
}

// Through turns the edge into a many-to-many association stored in a link
// table.
//
//	edge.To("authors", "Author").Through("BOOK_AUTHOR_MAPPING", "BOOK_ID", "AUTHOR_ID")
func (b *Builder) Through(table, ownColumn, targetColumn string) *Builder {
	switch {
	case b.desc.Inverse:
		b.desc.Err = fmt.Errorf("edge %q: Through is not allowed on From edges", b.desc.Name)
	case b.desc.Unique:
		b.desc.Err = fmt.Errorf("edge %q: many-to-many edge cannot be unique", b.desc.Name)
	}
	b.desc.Through = &Through{Table: table, OwnColumn: ownColumn, TargetColumn: targetColumn}
	return b
}

// Comment sets the comment of the edge.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Edge interface.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}

// Raw returns a builder around an existing descriptor.
func Raw(desc *Descriptor) *Builder {
	return &Builder{desc: desc}
}

var _ Edge = (*Builder)(nil)
