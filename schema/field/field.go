package field

import (
	"reflect"

	"github.com/syssam/veloq/codec"
)

// Field is implemented by every field builder.
type Field interface {
	Descriptor() *Descriptor
}

// Descriptor holds the declaration of a single field.
type Descriptor struct {
	Name       string       // property name
	StorageKey string       // column name, derived from Name when empty
	Type       Type         // value type
	Nillable   bool         // column accepts NULL
	GoType     reflect.Type // application type of structured fields
	Codec      codec.Codec  // explicit codec, overrides registry lookups
	CodecName  string       // codec registered under a name
	Formula    string       // SQL fragment, %alias is replaced by the table alias
	Comment    string
	Err        error
}

// Builder is the fluent builder shared by all field types.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, t Type) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: t}}
}

// Int returns a new int field.
func Int(name string) *Builder { return newBuilder(name, TypeInt) }

// Int32 returns a new int32 field.
func Int32(name string) *Builder { return newBuilder(name, TypeInt32) }

// Int64 returns a new int64 field.
func Int64(name string) *Builder { return newBuilder(name, TypeInt64) }

// Float returns a new float64 field.
func Float(name string) *Builder { return newBuilder(name, TypeFloat64) }

// String returns a new string field.
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Bool returns a new bool field.
func Bool(name string) *Builder { return newBuilder(name, TypeBool) }

// Bytes returns a new []byte field.
func Bytes(name string) *Builder { return newBuilder(name, TypeBytes) }

// Time returns a new time.Time field.
func Time(name string) *Builder { return newBuilder(name, TypeTime) }

// UUID returns a new uuid.UUID field.
func UUID(name string) *Builder { return newBuilder(name, TypeUUID) }

// JSON returns a structured field stored as JSON text. typ is a value of
// the application type, for example Point{} or []string(nil).
//
//	field.JSON("point", Point{})
//	field.JSON("tags", []string{})
func JSON(name string, typ any) *Builder {
	b := newBuilder(name, TypeJSON)
	b.desc.GoType = reflect.TypeOf(typ)
	if b.desc.GoType == nil {
		b.desc.Err = errNilType(name)
	}
	return b
}

// Other returns a structured field whose codec is found in the codec
// registry by its Go type, or set explicitly with Codec.
func Other(name string, typ any) *Builder {
	b := JSON(name, typ)
	b.desc.Type = TypeOther
	return b
}

// Formula returns a read-only field computed by the database from a SQL
// fragment. Occurrences of %alias are replaced by the alias of the table
// the field is read from.
//
//	field.Formula("employeeCount", field.TypeInt64,
//	    "(SELECT COUNT(*) FROM EMPLOYEE WHERE DEPARTMENT_ID = %alias.ID)")
func Formula(name string, t Type, sql string) *Builder {
	b := newBuilder(name, t)
	b.desc.Formula = sql
	return b
}

// StorageKey sets the column name of the field.
func (b *Builder) StorageKey(key string) *Builder {
	b.desc.StorageKey = key
	return b
}

// Nillable marks the column as nullable.
func (b *Builder) Nillable() *Builder {
	b.desc.Nillable = true
	return b
}

// Codec sets the codec of the field.
func (b *Builder) Codec(c codec.Codec) *Builder {
	b.desc.Codec = c
	return b
}

// CodecName selects a codec registered by name in the codec registry.
func (b *Builder) CodecName(name string) *Builder {
	b.desc.CodecName = name
	return b
}

// Comment sets the comment of the field.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Field interface.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}

// Raw returns a builder around an existing descriptor, as produced by a
// metadata loader.
func Raw(desc *Descriptor) *Builder {
	return &Builder{desc: desc}
}

var _ Field = (*Builder)(nil)
