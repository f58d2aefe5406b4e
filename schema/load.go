package schema

import (
	"fmt"
	"io"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/syssam/veloq/schema/edge"
	"github.com/syssam/veloq/schema/field"
)

// File is the YAML form of entity metadata.
//
//	entities:
//	  - name: Department
//	    id: {name: id, type: int64}
//	    fields:
//	      - {name: name, type: string}
//	      - name: employeeCount
//	        type: int64
//	        formula: (SELECT COUNT(*) FROM EMPLOYEE WHERE DEPARTMENT_ID = %alias.ID)
//	    edges:
//	      - {name: employees, to: Employee, ref: department}
//	    softDelete: {column: DELETED_TIME, type: time}
//
// Structured fields declared in YAML decode into generic values unless a
// codec is selected by name.
type File struct {
	Entities []EntityFile `yaml:"entities"`
}

// EntityFile is the YAML form of an Entity.
type EntityFile struct {
	Name       string          `yaml:"name"`
	Table      string          `yaml:"table"`
	Comment    string          `yaml:"comment"`
	ID         FieldFile       `yaml:"id"`
	Fields     []FieldFile     `yaml:"fields"`
	Edges      []EdgeFile      `yaml:"edges"`
	SoftDelete *SoftDeleteFile `yaml:"softDelete"`
}

// FieldFile is the YAML form of a field.
type FieldFile struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Column   string `yaml:"column"`
	Nillable bool   `yaml:"nillable"`
	Formula  string `yaml:"formula"`
	Codec    string `yaml:"codec"`
	Comment  string `yaml:"comment"`
}

// EdgeFile is the YAML form of an edge. Exactly one of To and From is set.
type EdgeFile struct {
	Name    string       `yaml:"name"`
	To      string       `yaml:"to"`
	From    string       `yaml:"from"`
	Unique  bool         `yaml:"unique"`
	Column  string       `yaml:"column"`
	Ref     string       `yaml:"ref"`
	Through *ThroughFile `yaml:"through"`
	Comment string       `yaml:"comment"`
}

// ThroughFile is the YAML form of a link table.
type ThroughFile struct {
	Table  string `yaml:"table"`
	Own    string `yaml:"own"`
	Target string `yaml:"target"`
}

// SoftDeleteFile is the YAML form of a soft-delete marker.
type SoftDeleteFile struct {
	Column string `yaml:"column"`
	Type   string `yaml:"type"` // time or uuid
}

var fieldTypes = map[string]field.Type{
	"bool":    field.TypeBool,
	"int":     field.TypeInt,
	"int32":   field.TypeInt32,
	"int64":   field.TypeInt64,
	"float":   field.TypeFloat64,
	"float64": field.TypeFloat64,
	"string":  field.TypeString,
	"bytes":   field.TypeBytes,
	"time":    field.TypeTime,
	"uuid":    field.TypeUUID,
	"json":    field.TypeJSON,
	"other":   field.TypeOther,
}

// LoadYAML reads entity declarations from r.
func LoadYAML(r io.Reader) ([]*Entity, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("schema: decode yaml: %w", err)
	}
	entities := make([]*Entity, 0, len(f.Entities))
	for _, ef := range f.Entities {
		e, err := ef.entity()
		if err != nil {
			return nil, fmt.Errorf("schema: entity %q: %w", ef.Name, err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// LoadFile reads entity declarations from a YAML file.
func LoadFile(path string) ([]*Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadYAML(f)
}

func (ef EntityFile) entity() (*Entity, error) {
	id, err := ef.ID.field()
	if err != nil {
		return nil, err
	}
	e := &Entity{Name: ef.Name, Table: ef.Table, Comment: ef.Comment, ID: id}
	for _, ff := range ef.Fields {
		f, err := ff.field()
		if err != nil {
			return nil, err
		}
		e.Fields = append(e.Fields, f)
	}
	for _, ed := range ef.Edges {
		b, err := ed.edge()
		if err != nil {
			return nil, err
		}
		e.Edges = append(e.Edges, b)
	}
	if sd := ef.SoftDelete; sd != nil {
		switch sd.Type {
		case "", "time":
			e.SoftDelete = SoftDeleteTime(sd.Column)
		case "uuid":
			e.SoftDelete = SoftDeleteUUID(sd.Column)
		default:
			return nil, fmt.Errorf("unknown soft-delete type %q", sd.Type)
		}
	}
	return e, nil
}

var anyType = reflect.TypeFor[any]()

func (ff FieldFile) field() (field.Field, error) {
	t, ok := fieldTypes[ff.Type]
	if !ok {
		return nil, fmt.Errorf("field %q: unknown type %q", ff.Name, ff.Type)
	}
	d := &field.Descriptor{
		Name:       ff.Name,
		StorageKey: ff.Column,
		Type:       t,
		Nillable:   ff.Nillable,
		Formula:    ff.Formula,
		CodecName:  ff.Codec,
		Comment:    ff.Comment,
	}
	if t.Structured() {
		d.GoType = anyType
	}
	return field.Raw(d), nil
}

func (ed EdgeFile) edge() (edge.Edge, error) {
	var b *edge.Builder
	switch {
	case ed.To != "" && ed.From != "":
		return nil, fmt.Errorf("edge %q: both to and from are set", ed.Name)
	case ed.To != "":
		b = edge.To(ed.Name, ed.To)
		if ed.Unique {
			b.Unique()
		}
	case ed.From != "":
		b = edge.From(ed.Name, ed.From)
	default:
		return nil, fmt.Errorf("edge %q: missing to or from", ed.Name)
	}
	if ed.Through != nil {
		b.Through(ed.Through.Table, ed.Through.Own, ed.Through.Target)
	}
	return b.Column(ed.Column).Ref(ed.Ref).Comment(ed.Comment), nil
}
