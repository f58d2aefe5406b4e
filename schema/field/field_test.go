package field_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloq/codec"
	"github.com/syssam/veloq/schema/field"
)

type point struct{ X, Y int }

// =============================================================================
// Builders
// =============================================================================

func TestBuilders(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		b    *field.Builder
		typ  field.Type
	}{
		{"int", field.Int("a"), field.TypeInt},
		{"int32", field.Int32("a"), field.TypeInt32},
		{"int64", field.Int64("a"), field.TypeInt64},
		{"float", field.Float("a"), field.TypeFloat64},
		{"string", field.String("a"), field.TypeString},
		{"bool", field.Bool("a"), field.TypeBool},
		{"bytes", field.Bytes("a"), field.TypeBytes},
		{"time", field.Time("a"), field.TypeTime},
		{"uuid", field.UUID("a"), field.TypeUUID},
		{"json", field.JSON("a", point{}), field.TypeJSON},
		{"other", field.Other("a", []string{}), field.TypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			desc := tt.b.Descriptor()
			assert.Equal(t, "a", desc.Name)
			assert.Equal(t, tt.typ, desc.Type)
			assert.NoError(t, desc.Err)
			assert.False(t, desc.Nillable)
		})
	}
}

func TestBuilderOptions(t *testing.T) {
	t.Parallel()
	c := codec.PGStringArray()
	desc := field.Other("tags", []string{}).
		StorageKey("TAG_LIST").
		Nillable().
		Codec(c).
		Comment("ordered tags").
		Descriptor()
	assert.Equal(t, "TAG_LIST", desc.StorageKey)
	assert.True(t, desc.Nillable)
	assert.Equal(t, c, desc.Codec)
	assert.Equal(t, "ordered tags", desc.Comment)
	assert.Equal(t, "[]string", desc.GoType.String())

	f := field.Formula("count", field.TypeInt64, "(SELECT 1)").Descriptor()
	assert.Equal(t, "(SELECT 1)", f.Formula)

	assert.Error(t, field.JSON("x", nil).Descriptor().Err)
	assert.Equal(t, "p", field.String("x").CodecName("p").Descriptor().CodecName)
}

func TestType(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "int64", field.TypeInt64.String())
	assert.Equal(t, "invalid", field.Type(200).String())
	assert.True(t, field.TypeInt32.Integer())
	assert.True(t, field.TypeFloat64.Numeric())
	assert.False(t, field.TypeString.Numeric())
	assert.True(t, field.TypeJSON.Structured())
	assert.True(t, field.TypeInt.Comparable(field.TypeFloat64))
	assert.True(t, field.TypeUUID.Comparable(field.TypeString))
	assert.False(t, field.TypeBool.Comparable(field.TypeTime))
	assert.True(t, field.TypeTime.Ordered())
	assert.False(t, field.TypeBool.Ordered())
	assert.False(t, field.TypeInvalid.Valid())
}

// =============================================================================
// Conversion
// =============================================================================

func TestConvert(t *testing.T) {
	t.Parallel()
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		typ  field.Type
		in   any
		want any
	}{
		{"int/int64", field.TypeInt, int64(7), 7},
		{"int/bytes", field.TypeInt, []byte("12"), 12},
		{"int64/float", field.TypeInt64, float64(3), int64(3)},
		{"int32/uint", field.TypeInt32, uint8(9), int32(9)},
		{"float/string", field.TypeFloat64, "1.5", 1.5},
		{"bool/int", field.TypeBool, int64(1), true},
		{"bool/bytes", field.TypeBool, []byte("false"), false},
		{"string/bytes", field.TypeString, []byte("abc"), "abc"},
		{"bytes/string", field.TypeBytes, "abc", []byte("abc")},
		{"time/time", field.TypeTime, ts, ts},
		{"time/text", field.TypeTime, "2024-05-01 10:30:00", ts},
		{"time/rfc3339", field.TypeTime, []byte("2024-05-01T10:30:00Z"), ts},
		{"uuid/string", field.TypeUUID, id.String(), id},
		{"uuid/bytes", field.TypeUUID, id[:], id},
		{"json/raw", field.TypeJSON, "{}", "{}"},
		{"nil", field.TypeInt, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := field.Convert(tt.typ, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertErrors(t *testing.T) {
	t.Parallel()
	for name, tc := range map[string]struct {
		typ field.Type
		in  any
	}{
		"int/text":       {field.TypeInt, "x"},
		"int/fraction":   {field.TypeInt64, 1.5},
		"int32/overflow": {field.TypeInt32, int64(1) << 40},
		"time/text":      {field.TypeTime, "yesterday"},
		"uuid/int":       {field.TypeUUID, 5},
		"string/int":     {field.TypeString, 5},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := field.Convert(tc.typ, tc.in)
			assert.Error(t, err)
		})
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()
	assert.NoError(t, field.Check(field.TypeInt64, 5))
	assert.NoError(t, field.Check(field.TypeFloat64, 5))
	assert.NoError(t, field.Check(field.TypeString, "a"))
	assert.NoError(t, field.Check(field.TypeUUID, uuid.New()))
	assert.NoError(t, field.Check(field.TypeJSON, point{}))
	assert.NoError(t, field.Check(field.TypeTime, nil))
	assert.ErrorIs(t, field.Check(field.TypeInt, "5"), field.ErrMismatch)
	assert.ErrorIs(t, field.Check(field.TypeBool, 1), field.ErrMismatch)
	assert.ErrorIs(t, field.Check(field.TypeTime, "2024-01-01"), field.ErrMismatch)
}

func TestTypeOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, field.TypeInt, field.TypeOf(1))
	assert.Equal(t, field.TypeInt64, field.TypeOf(int64(1)))
	assert.Equal(t, field.TypeString, field.TypeOf("a"))
	assert.Equal(t, field.TypeTime, field.TypeOf(time.Time{}))
	assert.Equal(t, field.TypeUUID, field.TypeOf(uuid.UUID{}))
	assert.Equal(t, field.TypeOther, field.TypeOf(point{}))
	assert.Equal(t, field.TypeInvalid, field.TypeOf(nil))
}
