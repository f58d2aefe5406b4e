package edge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloq/schema/edge"
)

func TestEdgeBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		build    func() *edge.Descriptor
		validate func(t *testing.T, desc *edge.Descriptor)
	}{
		{
			name: "to",
			build: func() *edge.Descriptor {
				return edge.To("employees", "Employee").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, "employees", desc.Name)
				assert.Equal(t, "Employee", desc.Type)
				assert.False(t, desc.Inverse)
				assert.False(t, desc.Unique)
				assert.Equal(t, edge.O2M, desc.Rel())
				assert.Empty(t, desc.Column)
			},
		},
		{
			name: "to_unique",
			build: func() *edge.Descriptor {
				return edge.To("profile", "Profile").Unique().Column("USER_ID").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, edge.O2O, desc.Rel())
				assert.Equal(t, "USER_ID", desc.Column)
			},
		},
		{
			name: "from",
			build: func() *edge.Descriptor {
				return edge.From("department", "Department").Ref("employees").Comment("owner").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.True(t, desc.Inverse)
				assert.True(t, desc.Unique)
				assert.Equal(t, edge.M2O, desc.Rel())
				assert.Equal(t, "employees", desc.Ref)
				assert.Equal(t, "owner", desc.Comment)
			},
		},
		{
			name: "through",
			build: func() *edge.Descriptor {
				return edge.To("authors", "Author").Through("BOOK_AUTHOR_MAPPING", "BOOK_ID", "AUTHOR_ID").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, edge.M2M, desc.Rel())
				require.NotNil(t, desc.Through)
				assert.Equal(t, "BOOK_AUTHOR_MAPPING", desc.Through.Table)
				assert.Equal(t, "BOOK_ID", desc.Through.OwnColumn)
				assert.Equal(t, "AUTHOR_ID", desc.Through.TargetColumn)
				assert.NoError(t, desc.Err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.validate(t, tt.build())
		})
	}
}

func TestEdgeInvalid(t *testing.T) {
	t.Parallel()
	assert.Error(t, edge.From("a", "A").Through("L", "X", "Y").Descriptor().Err)
	assert.Error(t, edge.To("a", "A").Unique().Through("L", "X", "Y").Descriptor().Err)
	assert.Error(t, edge.To("a", "A").Through("L", "X", "Y").Unique().Descriptor().Err)
}

func TestRelString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "O2O", edge.O2O.String())
	assert.Equal(t, "O2M", edge.O2M.String())
	assert.Equal(t, "M2O", edge.M2O.String())
	assert.Equal(t, "M2M", edge.M2M.String())
	assert.Equal(t, "Unknown", edge.Unk.String())
}
