package field

// Type is the value type of a field.
type Type uint8

// Field types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeInt32
	TypeInt64
	TypeFloat64
	TypeString
	TypeBytes
	TypeTime
	TypeUUID
	TypeJSON
	TypeOther
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypeBytes:   "[]byte",
	TypeTime:    "time.Time",
	TypeUUID:    "uuid.UUID",
	TypeJSON:    "json",
	TypeOther:   "other",
}

// String returns the name of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the type is a known field type.
func (t Type) Valid() bool { return t > TypeInvalid && t < endTypes }

// Integer reports if the type is an integer type.
func (t Type) Integer() bool { return t == TypeInt || t == TypeInt32 || t == TypeInt64 }

// Numeric reports if the type is a numeric type.
func (t Type) Numeric() bool { return t.Integer() || t == TypeFloat64 }

// Structured reports if values of the type go through a codec.
func (t Type) Structured() bool { return t == TypeJSON || t == TypeOther }

// Comparable reports if values of t and u may be compared with each other.
func (t Type) Comparable(u Type) bool {
	switch {
	case t == u:
		return true
	case t.Numeric() && u.Numeric():
		return true
	case t.Structured() || u.Structured():
		return true
	// UUIDs are frequently stored and compared as text.
	case t == TypeUUID && u == TypeString, t == TypeString && u == TypeUUID:
		return true
	}
	return false
}

// Ordered reports if values of the type support <, <=, >, >=.
func (t Type) Ordered() bool {
	return t.Numeric() || t == TypeString || t == TypeTime
}
