// Package codec converts structured column values between their wire form
// and their application value.
//
// A Codec is a pure, deterministic pair of functions satisfying
//
//	Decode(Encode(v)) == v
//
// for every valid application value v. Codecs are bound to fields through a
// Registry when entity metadata is loaded and are only read afterwards.
package codec

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts a single column value.
type Codec interface {
	// Encode converts an application value into a value accepted by
	// database/sql drivers.
	Encode(v any) (driver.Value, error)
	// Decode converts a raw driver value into the application value.
	Decode(src any) (any, error)
}

// Func adapts a pair of functions to the Codec interface.
type Func struct {
	EncodeFunc func(any) (driver.Value, error)
	DecodeFunc func(any) (any, error)
}

// Encode implements Codec.
func (f Func) Encode(v any) (driver.Value, error) { return f.EncodeFunc(v) }

// Decode implements Codec.
func (f Func) Decode(src any) (any, error) { return f.DecodeFunc(src) }

// typed checks that v holds typ or a pointer to it and returns the value.
func typed(typ reflect.Type, v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Type() == typ || (typ.Kind() == reflect.Interface && rv.Type().Implements(typ)) {
		return rv, nil
	}
	if rv.Kind() == reflect.Pointer && rv.Type().Elem() == typ {
		if rv.IsNil() {
			return reflect.Value{}, nil
		}
		return rv.Elem(), nil
	}
	return reflect.Value{}, fmt.Errorf("codec: expect %s, got %T", typ, v)
}

func wireBytes(src any) ([]byte, error) {
	switch src := src.(type) {
	case []byte:
		return src, nil
	case string:
		return []byte(src), nil
	}
	return nil, fmt.Errorf("codec: unexpected wire type %T", src)
}

type jsonCodec struct{ typ reflect.Type }

// JSON returns a codec storing values of type T as JSON text. Struct fields
// keep their declaration order, slices keep element order and map keys are
// written in encoding/json's sorted order.
func JSON[T any]() Codec { return jsonCodec{typ: reflect.TypeFor[T]()} }

// JSONOf is like JSON for a type known only at runtime.
func JSONOf(typ reflect.Type) Codec { return jsonCodec{typ: typ} }

func (c jsonCodec) Encode(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	rv, err := typed(c.typ, v)
	if err != nil || !rv.IsValid() {
		return nil, err
	}
	b, err := json.Marshal(rv.Interface())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c jsonCodec) Decode(src any) (any, error) {
	if src == nil {
		return nil, nil
	}
	b, err := wireBytes(src)
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(c.typ)
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(ptr.Interface()); err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", c.typ, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("codec: decode %s: trailing data", c.typ)
	}
	return ptr.Elem().Interface(), nil
}

type msgpackCodec struct{ typ reflect.Type }

// Msgpack returns a codec storing values of type T as MessagePack bytes.
func Msgpack[T any]() Codec { return msgpackCodec{typ: reflect.TypeFor[T]()} }

func (c msgpackCodec) Encode(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	rv, err := typed(c.typ, v)
	if err != nil || !rv.IsValid() {
		return nil, err
	}
	b, err := msgpack.Marshal(rv.Interface())
	if err != nil {
		return nil, err
	}
	// Map entries are written in iteration order; rewrite the value with
	// its map keys sorted by their encoded form.
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetMapDecoder(func(d *msgpack.Decoder) (any, error) { return d.DecodeUntypedMap() })
	tree, err := dec.DecodeInterface()
	if err != nil {
		return nil, err
	}
	return canonicalMsgpack(tree)
}

func canonicalMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	switch v := v.(type) {
	case map[any]any:
		type entry struct{ k, v []byte }
		entries := make([]entry, 0, len(v))
		for k, x := range v {
			kb, err := canonicalMsgpack(k)
			if err != nil {
				return nil, err
			}
			xb, err := canonicalMsgpack(x)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry{kb, xb})
		}
		slices.SortFunc(entries, func(a, b entry) int { return bytes.Compare(a.k, b.k) })
		if err := enc.EncodeMapLen(len(entries)); err != nil {
			return nil, err
		}
		for _, e := range entries {
			buf.Write(e.k)
			buf.Write(e.v)
		}
	case []any:
		if err := enc.EncodeArrayLen(len(v)); err != nil {
			return nil, err
		}
		for _, x := range v {
			xb, err := canonicalMsgpack(x)
			if err != nil {
				return nil, err
			}
			buf.Write(xb)
		}
	default:
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (c msgpackCodec) Decode(src any) (any, error) {
	if src == nil {
		return nil, nil
	}
	b, err := wireBytes(src)
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(c.typ)
	if err := msgpack.Unmarshal(b, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", c.typ, err)
	}
	return ptr.Elem().Interface(), nil
}

type pgStringArray struct{}

// PGStringArray returns a codec storing []string in the Postgres text[]
// literal form, for example {a,b}. Element order is preserved.
func PGStringArray() Codec { return pgStringArray{} }

func (pgStringArray) Encode(v any) (driver.Value, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return pq.StringArray(v).Value()
	case *[]string:
		if v == nil {
			return nil, nil
		}
		return pq.StringArray(*v).Value()
	}
	return nil, fmt.Errorf("codec: expect []string, got %T", v)
}

func (pgStringArray) Decode(src any) (any, error) {
	if src == nil {
		return nil, nil
	}
	var a pq.StringArray
	if err := a.Scan(src); err != nil {
		return nil, fmt.Errorf("codec: decode text[]: %w", err)
	}
	return []string(a), nil
}

type uuidCodec struct{}

// UUID returns a codec storing uuid.UUID values as their canonical text.
func UUID() Codec { return uuidCodec{} }

func (uuidCodec) Encode(v any) (driver.Value, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return v.String(), nil
	case *uuid.UUID:
		if v == nil {
			return nil, nil
		}
		return v.String(), nil
	case string:
		u, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		return u.String(), nil
	}
	return nil, fmt.Errorf("codec: expect uuid.UUID, got %T", v)
}

func (uuidCodec) Decode(src any) (any, error) {
	switch src := src.(type) {
	case nil:
		return nil, nil
	case string:
		return uuid.Parse(src)
	case []byte:
		if len(src) == 16 {
			return uuid.FromBytes(src)
		}
		return uuid.ParseBytes(src)
	}
	return nil, fmt.Errorf("codec: unexpected wire type %T for uuid", src)
}
