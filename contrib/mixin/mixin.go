// Package mixin provides common mixin implementations.
//
// These mixins are optional starting points:
//   - Time: createdTime and modifiedTime fields
//   - SoftDelete: nullable deletedTime field used as soft-delete marker
//   - SoftDeleteUUID: nullable deletedUUID field used as soft-delete marker
//   - TenantID: tenantId field, combined with privacy.TenantRule
//
// Usage:
//
//	&schema.Entity{
//	    Name:   "Book",
//	    ID:     field.Int64("id"),
//	    Mixins: []schema.Mixin{mixin.Time{}, mixin.SoftDelete{}},
//	}
package mixin

import (
	"github.com/syssam/veloq/schema"
	"github.com/syssam/veloq/schema/field"
	"github.com/syssam/veloq/schema/mixin"
)

// Time adds createdTime and modifiedTime fields.
type Time struct{ mixin.Schema }

// Fields of the Time mixin.
func (Time) Fields() []field.Field {
	return []field.Field{
		field.Time("createdTime").Comment("Timestamp when the entity was created"),
		field.Time("modifiedTime").Comment("Timestamp when the entity was last modified"),
	}
}

// SoftDelete adds a nullable deletedTime column and declares it as the
// soft-delete marker. Statements on the entity only see rows where it is
// NULL; deletes set it to the current time.
type SoftDelete struct{ mixin.Schema }

// Fields of the SoftDelete mixin.
func (SoftDelete) Fields() []field.Field {
	return []field.Field{
		field.Time("deletedTime").
			Nillable().
			Comment("Timestamp when the entity was soft deleted (nil means not deleted)"),
	}
}

// SoftDelete returns the marker on DELETED_TIME.
func (SoftDelete) SoftDelete() *schema.SoftDelete {
	return schema.SoftDeleteTime(schema.ColumnName("deletedTime"))
}

// SoftDeleteUUID is like SoftDelete with a random UUID marker stored in
// deletedUUID.
type SoftDeleteUUID struct{ mixin.Schema }

// Fields of the SoftDeleteUUID mixin.
func (SoftDeleteUUID) Fields() []field.Field {
	return []field.Field{
		field.UUID("deletedUUID").StorageKey("DELETED_UUID").Nillable(),
	}
}

// SoftDelete returns the marker on DELETED_UUID.
func (SoftDeleteUUID) SoftDelete() *schema.SoftDelete {
	return schema.SoftDeleteUUID("DELETED_UUID")
}

// TenantID adds a tenantId field for row-level tenant isolation:
//
//	c := client.New(drv, g, client.WithPolicy("Book", privacy.Policy{
//	    Query:    privacy.QueryPolicy{privacy.TenantFilterRule("tenantId")},
//	    Mutation: privacy.MutationPolicy{privacy.TenantRule("tenantId"), privacy.TenantFilterRule("tenantId")},
//	}))
type TenantID struct{ mixin.Schema }

// Fields of the TenantID mixin.
func (TenantID) Fields() []field.Field {
	return []field.Field{
		field.String("tenantId"),
	}
}

var (
	_ schema.Mixin = (*Time)(nil)
	_ schema.Mixin = (*SoftDelete)(nil)
	_ schema.Mixin = (*SoftDeleteUUID)(nil)
	_ schema.Mixin = (*TenantID)(nil)
)
