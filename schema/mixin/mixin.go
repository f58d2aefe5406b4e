// Package mixin provides the base implementation of schema.Mixin.
//
// A mixin is a reusable set of fields, edges and a soft-delete marker that
// can be shared by several entities. Embed Schema and override what you
// need:
//
//	type Audit struct{ mixin.Schema }
//
//	func (Audit) Fields() []field.Field {
//	    return []field.Field{
//	        field.String("createdBy"),
//	        field.String("modifiedBy").Nillable(),
//	    }
//	}
//
// Ready-made mixins live in contrib/mixin.
package mixin

import (
	"github.com/syssam/veloq/schema"
	"github.com/syssam/veloq/schema/edge"
	"github.com/syssam/veloq/schema/field"
)

// Schema is the default implementation of schema.Mixin.
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []field.Field { return nil }

// Edges returns the edges of the mixin.
func (Schema) Edges() []edge.Edge { return nil }

// SoftDelete returns the soft-delete marker of the mixin.
func (Schema) SoftDelete() *schema.SoftDelete { return nil }

var _ schema.Mixin = (*Schema)(nil)

// Fields returns a mixin made of the given fields.
func Fields(fields ...field.Field) schema.Mixin {
	return fieldsMixin(fields)
}

type fieldsMixin []field.Field

func (m fieldsMixin) Fields() []field.Field        { return m }
func (fieldsMixin) Edges() []edge.Edge             { return nil }
func (fieldsMixin) SoftDelete() *schema.SoftDelete { return nil }
