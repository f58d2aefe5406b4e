package mixin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloq/schema/field"
	"github.com/syssam/veloq/schema/mixin"
)

func TestSchema(t *testing.T) {
	t.Parallel()
	var m mixin.Schema
	assert.Nil(t, m.Fields())
	assert.Nil(t, m.Edges())
	assert.Nil(t, m.SoftDelete())
}

func TestFields(t *testing.T) {
	t.Parallel()
	m := mixin.Fields(field.String("createdBy"), field.Int("version"))
	require.Len(t, m.Fields(), 2)
	assert.Equal(t, "createdBy", m.Fields()[0].Descriptor().Name)
	assert.Nil(t, m.Edges())
	assert.Nil(t, m.SoftDelete())
}
