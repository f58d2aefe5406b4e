package field

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

func errNilType(name string) error {
	return fmt.Errorf("field %q: nil application type", name)
}

// timeLayouts lists the textual forms drivers return for time columns.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Convert converts a raw driver value into the application value of t.
// Integer types normalize to int, int32 and int64 so that identifiers
// read from different columns compare equal. Structured types are
// returned unchanged; they are decoded by their codec.
func Convert(t Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeInt, TypeInt32, TypeInt64:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		switch t {
		case TypeInt:
			return int(n), nil
		case TypeInt32:
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("field: %d overflows int32", n)
			}
			return int32(n), nil
		}
		return n, nil
	case TypeFloat64:
		return toFloat64(v)
	case TypeBool:
		return toBool(v)
	case TypeString:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case TypeBytes:
		switch v := v.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	case TypeTime:
		return toTime(v)
	case TypeUUID:
		return toUUID(v)
	case TypeJSON, TypeOther:
		return v, nil
	}
	return nil, fmt.Errorf("field: cannot convert %T to %s", v, t)
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("field: %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("field: %v is not an integer", f)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("field: cannot convert %T to an integer", v)
}

func toFloat64(v any) (float64, error) {
	switch v := v.(type) {
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("field: cannot convert %T to float64", v)
}

func toBool(v any) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	}
	n, err := toInt64(v)
	if err != nil {
		return false, fmt.Errorf("field: cannot convert %T to bool", v)
	}
	return n != 0, nil
}

func toTime(v any) (time.Time, error) {
	var s string
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("field: cannot convert %T to time.Time", v)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("field: cannot parse %q as time", s)
}

func toUUID(v any) (uuid.UUID, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case [16]byte:
		return uuid.UUID(v), nil
	}
	return uuid.Nil, fmt.Errorf("field: cannot convert %T to uuid.UUID", v)
}

// ErrMismatch is returned by Check for values of the wrong type.
var ErrMismatch = errors.New("field: value type mismatch")

// Check reports whether v is an acceptable application value for t.
// Structured types accept any value; their codec validates it.
func Check(t Type, v any) error {
	if v == nil || t.Structured() {
		return nil
	}
	ok := false
	switch t {
	case TypeInt, TypeInt32, TypeInt64:
		switch reflect.ValueOf(v).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			ok = true
		}
	case TypeFloat64:
		switch reflect.ValueOf(v).Kind() {
		case reflect.Float32, reflect.Float64,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			ok = true
		}
	case TypeBool:
		_, ok = v.(bool)
	case TypeString:
		switch v.(type) {
		case string, uuid.UUID:
			ok = true
		}
	case TypeBytes:
		_, ok = v.([]byte)
	case TypeTime:
		_, ok = v.(time.Time)
	case TypeUUID:
		switch v.(type) {
		case uuid.UUID, string:
			ok = true
		}
	}
	if !ok {
		return fmt.Errorf("%w: %T is not a %s", ErrMismatch, v, t)
	}
	return nil
}

// TypeOf returns the field type matching the Go type of v, or TypeOther.
func TypeOf(v any) Type {
	switch v.(type) {
	case nil:
		return TypeInvalid
	case bool:
		return TypeBool
	case int, int8, int16, uint, uint8, uint16, uint32:
		return TypeInt
	case int32:
		return TypeInt32
	case int64, uint64:
		return TypeInt64
	case float32, float64:
		return TypeFloat64
	case string:
		return TypeString
	case []byte:
		return TypeBytes
	case time.Time:
		return TypeTime
	case uuid.UUID:
		return TypeUUID
	}
	return TypeOther
}
