package query

import (
	"strings"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect/sql"
	"github.com/syssam/veloq/schema"
)

// Op is a statement operation. Ops are bit flags so that policies can
// match several at once.
type Op uint

// Operations.
const (
	OpQuery Op = 1 << iota
	OpInsert
	OpUpdate
	OpDelete
)

// Is reports whether o matches any of the flags in x.
func (o Op) Is(x Op) bool { return o&x != 0 }

// String implements fmt.Stringer.
func (o Op) String() string {
	var ops []string
	for _, x := range []struct {
		op   Op
		name string
	}{{OpQuery, "Query"}, {OpInsert, "Insert"}, {OpUpdate, "Update"}, {OpDelete, "Delete"}} {
		if o.Is(x.op) {
			ops = append(ops, x.name)
		}
	}
	if len(ops) == 0 {
		return "Unknown"
	}
	return strings.Join(ops, "|")
}

// Mutation is a statement that writes rows.
type Mutation interface {
	Statement
	// Op returns the operation of the mutation.
	Op() Op
	// Field returns the value assigned to a field, if any.
	Field(name string) (any, bool)
}

type assignment struct {
	prop  string
	value Expr
}

func assigned(sets []assignment, name string) (any, bool) {
	for _, a := range sets {
		if v, ok := a.value.(*valueExpr); ok && a.prop == name {
			return v.v, true
		}
	}
	return nil, false
}

// visitAssignments resolves the fields of sets and binds their values.
func visitAssignments(ctx *Context, node *schema.Node, sets []assignment, literal bool) ([]*schema.Field, error) {
	fields := make([]*schema.Field, len(sets))
	for i, a := range sets {
		fd := node.Field(a.prop)
		if e := node.Edge(a.prop); fd == nil && e != nil && e.OwnFK() {
			fd = e.FKField()
		}
		switch {
		case fd == nil:
			return nil, veloq.NewInvalidExpressionError(node.Name+"."+a.prop, "unknown field")
		case fd.IsFormula():
			return nil, veloq.NewInvalidExpressionError(fd.String(), "formula fields cannot be assigned")
		}
		if err := a.value.visit(ctx); err != nil {
			return nil, err
		}
		v, ok := a.value.(*valueExpr)
		switch {
		case !ok && literal:
			return nil, veloq.NewInvalidExpressionError(fd.String(), "inserted values must be literals")
		case !ok:
			if t := typeOf(ctx, a.value); t.Valid() && !fd.Type.Comparable(t) {
				return nil, veloq.NewInvalidExpressionError(fd.String(), "cannot assign %s to %s", t, fd.Type)
			}
		case v.v == nil && !fd.Nillable:
			return nil, veloq.NewInvalidExpressionError(fd.String(), "field is not nillable")
		default:
			if err := ctx.bind(v, fd); err != nil {
				return nil, err
			}
		}
		fields[i] = fd
	}
	return fields, nil
}

// checkNoJoins rejects mutations whose statement needs joined tables.
func checkNoJoins(f *frame) error {
	for _, t := range f.tables() {
		if t.parent != nil && (t.mode == modeFull || t.mode == modeLinkOnly) {
			return veloq.NewInvalidExpressionError(t.String(), "mutations cannot join tables")
		}
	}
	return nil
}

// UpdateStmt is an UPDATE statement.
type UpdateStmt struct {
	table         *Table
	sets          []assignment
	where         []Expr
	ignoreFilters bool
}

// Update returns an UPDATE statement declaring the root handle t.
func Update(t *Table) *UpdateStmt { return &UpdateStmt{table: t} }

// Table returns the root handle.
func (u *UpdateStmt) Table() *Table { return u.table }

// Node returns the updated entity.
func (u *UpdateStmt) Node() *schema.Node { return nodeOf(u.table) }

// Op returns OpUpdate.
func (u *UpdateStmt) Op() Op { return OpUpdate }

// Set assigns v, a value or an expression, to the field prop. A
// many-to-one edge name assigns its foreign key.
func (u *UpdateStmt) Set(prop string, v any) *UpdateStmt {
	u.sets = append(u.sets, assignment{prop: prop, value: toExpr(v)})
	return u
}

// Field returns the value assigned to name.
func (u *UpdateStmt) Field(name string) (any, bool) { return assigned(u.sets, name) }

// Where appends predicates.
func (u *UpdateStmt) Where(preds ...Expr) *UpdateStmt {
	u.where = append(u.where, compact(preds)...)
	return u
}

// WhereP appends predicates built from the root handle.
func (u *UpdateStmt) WhereP(fns ...func(*Table) Expr) {
	for _, fn := range fns {
		if p := fn(u.table); p != nil {
			u.where = append(u.where, p)
		}
	}
}

// IgnoreFilters disables soft-delete and global filters.
func (u *UpdateStmt) IgnoreFilters() *UpdateStmt {
	u.ignoreFilters = true
	return u
}

func (u *UpdateStmt) filtersIgnored() bool { return u.ignoreFilters }

func (u *UpdateStmt) visit(ctx *Context, f *frame) error {
	if err := checkRoot(u.table); err != nil {
		return err
	}
	if len(u.sets) == 0 {
		return veloq.NewInvalidExpressionError("UPDATE "+u.table.node.Name, "no assignments")
	}
	fields, err := visitAssignments(ctx, u.table.node, u.sets, false)
	if err != nil {
		return err
	}
	ctx.setNote(u, fields)
	for _, p := range u.where {
		if err := p.visit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (u *UpdateStmt) checkFrame(f *frame) error { return checkNoJoins(f) }

func (u *UpdateStmt) render(ctx *Context, f *frame, b *sql.Builder) {
	ctx.allocate(f)
	fields, _ := ctx.note(u).([]*schema.Field)
	b.WriteString("UPDATE ").Ident(f.root.node.Table).WriteString(" AS ").WriteString(f.root.alias)
	b.WriteString(" SET ")
	b.Join(len(u.sets), ", ", func(i int) {
		b.Ident(fields[i].Column).WriteString(" = ")
		u.sets[i].value.render(ctx, b)
	})
	ctx.renderWhere(f, u.where, b)
}

// DeleteStmt is a DELETE statement. Entities with a soft-delete marker are
// deleted logically by setting the marker, unless Hard is set.
type DeleteStmt struct {
	table         *Table
	where         []Expr
	hard          bool
	ignoreFilters bool
}

// Delete returns a DELETE statement declaring the root handle t.
func Delete(t *Table) *DeleteStmt { return &DeleteStmt{table: t} }

// Table returns the root handle.
func (d *DeleteStmt) Table() *Table { return d.table }

// Node returns the deleted entity.
func (d *DeleteStmt) Node() *schema.Node { return nodeOf(d.table) }

// Op returns OpDelete.
func (d *DeleteStmt) Op() Op { return OpDelete }

// Field returns false; deletes assign no fields.
func (d *DeleteStmt) Field(string) (any, bool) { return nil, false }

// Where appends predicates.
func (d *DeleteStmt) Where(preds ...Expr) *DeleteStmt {
	d.where = append(d.where, compact(preds)...)
	return d
}

// WhereP appends predicates built from the root handle.
func (d *DeleteStmt) WhereP(fns ...func(*Table) Expr) {
	for _, fn := range fns {
		if p := fn(d.table); p != nil {
			d.where = append(d.where, p)
		}
	}
}

// Hard removes rows even when the entity has a soft-delete marker. The
// live-row predicate still applies unless filters are ignored.
func (d *DeleteStmt) Hard() *DeleteStmt {
	d.hard = true
	return d
}

// IgnoreFilters disables soft-delete and global filters.
func (d *DeleteStmt) IgnoreFilters() *DeleteStmt {
	d.ignoreFilters = true
	return d
}

func (d *DeleteStmt) filtersIgnored() bool { return d.ignoreFilters }

// Logical reports if the statement sets a soft-delete marker.
func (d *DeleteStmt) Logical() bool {
	n := d.Node()
	return !d.hard && n != nil && n.SoftDelete != nil
}

func (d *DeleteStmt) visit(ctx *Context, f *frame) error {
	if err := checkRoot(d.table); err != nil {
		return err
	}
	if d.Logical() {
		ctx.setNote(d, d.table.node.SoftDelete.Value())
	}
	for _, p := range d.where {
		if err := p.visit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *DeleteStmt) checkFrame(f *frame) error { return checkNoJoins(f) }

func (d *DeleteStmt) render(ctx *Context, f *frame, b *sql.Builder) {
	ctx.allocate(f)
	if d.Logical() {
		b.WriteString("UPDATE ").Ident(f.root.node.Table).WriteString(" AS ").WriteString(f.root.alias)
		b.WriteString(" SET ").Ident(f.root.node.SoftDelete.Column).WriteString(" = ").Arg(ctx.note(d))
	} else {
		b.WriteString("DELETE FROM ").Ident(f.root.node.Table).WriteString(" AS ").WriteString(f.root.alias)
	}
	ctx.renderWhere(f, d.where, b)
}

// InsertStmt is an INSERT statement of one row.
type InsertStmt struct {
	table *Table
	sets  []assignment
}

// Insert returns an INSERT statement of the entity of t.
func Insert(t *Table) *InsertStmt { return &InsertStmt{table: t} }

// Table returns the root handle.
func (i *InsertStmt) Table() *Table { return i.table }

// Node returns the inserted entity.
func (i *InsertStmt) Node() *schema.Node { return nodeOf(i.table) }

// Op returns OpInsert.
func (i *InsertStmt) Op() Op { return OpInsert }

// Set assigns the value v to the field prop, or to the foreign key of the
// many-to-one edge prop.
func (i *InsertStmt) Set(prop string, v any) *InsertStmt {
	i.sets = append(i.sets, assignment{prop: prop, value: Value(v)})
	return i
}

// Field returns the value assigned to name.
func (i *InsertStmt) Field(name string) (any, bool) { return assigned(i.sets, name) }

func (i *InsertStmt) filtersIgnored() bool { return true }

func (i *InsertStmt) visit(ctx *Context, f *frame) error {
	if err := checkRoot(i.table); err != nil {
		return err
	}
	if len(i.sets) == 0 {
		return veloq.NewInvalidExpressionError("INSERT "+i.table.node.Name, "no values")
	}
	fields, err := visitAssignments(ctx, i.table.node, i.sets, true)
	if err != nil {
		return err
	}
	ctx.setNote(i, fields)
	return nil
}

func (i *InsertStmt) render(ctx *Context, f *frame, b *sql.Builder) {
	fields, _ := ctx.note(i).([]*schema.Field)
	b.WriteString("INSERT INTO ").Ident(f.root.node.Table).Pad()
	b.Wrap(func(b *sql.Builder) {
		b.Join(len(fields), ", ", func(j int) { b.Ident(fields[j].Column) })
	})
	b.WriteString(" VALUES ")
	b.Wrap(func(b *sql.Builder) {
		b.Join(len(i.sets), ", ", func(j int) { i.sets[j].value.render(ctx, b) })
	})
}

func nodeOf(t *Table) *schema.Node {
	if t == nil {
		return nil
	}
	return t.node
}

var (
	_ Query    = (*Select)(nil)
	_ Mutation = (*UpdateStmt)(nil)
	_ Mutation = (*DeleteStmt)(nil)
	_ Mutation = (*InsertStmt)(nil)
)
