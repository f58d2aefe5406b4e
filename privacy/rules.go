package privacy

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/veloq/query"
)

// Viewer is the authenticated user a statement runs for.
type Viewer interface {
	GetID() string
	GetRoles() []string
	// GetTenantID returns the tenant of the viewer, or "" without one.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a context carrying viewer.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext returns the viewer of ctx, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a plain Viewer.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string { return v.UserID }

// GetRoles returns the roles.
func (v *SimpleViewer) GetRoles() []string { return v.Roles }

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer denies statements run without a viewer.
//
//	privacy.Policy{
//	    Mutation: privacy.MutationPolicy{
//	        privacy.DenyIfNoViewer(),
//	        privacy.HasRole("admin"),
//	        privacy.AlwaysDenyRule(),
//	    },
//	}
func DenyIfNoViewer() QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("veloq/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole allows viewers with role and skips otherwise.
func HasRole(role string) QueryMutationRule {
	return HasAnyRole(role)
}

// HasAnyRole allows viewers with any of roles and skips otherwise.
func HasAnyRole(roles ...string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		if slices.ContainsFunc(roles, func(r string) bool {
			return slices.Contains(viewer.GetRoles(), r)
		}) {
			return Allow
		}
		return Skip
	})
}

// IsOwner allows mutations that assign the viewer's ID to field.
func IsOwner(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m query.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		value, ok := m.Field(field)
		if !ok {
			return Skip
		}
		if fmt.Sprint(value) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// OwnerFilterRule narrows statements to rows whose field holds the
// viewer's ID, and denies statements run without a viewer.
func OwnerFilterRule(field string) QueryMutationRule {
	return FilterFunc(func(ctx context.Context, f Filter) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("veloq/privacy: viewer required for owner-filtered statement")
		}
		id := viewer.GetID()
		f.WhereP(func(t *query.Table) query.Expr { return t.C(field).EQ(id) })
		return Skip
	})
}

// TenantRule allows mutations that assign the viewer's tenant to field and
// denies the ones assigning another tenant.
func TenantRule(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m query.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		value, ok := m.Field(field)
		if !ok {
			return Skip
		}
		if fmt.Sprint(value) == viewer.GetTenantID() {
			return Allow
		}
		return Denyf("veloq/privacy: tenant mismatch")
	})
}

// TenantFilterRule narrows queries, updates and deletes to the rows of the
// viewer's tenant stored in field. Inserts are denied; use TenantRule
// before it to allow them.
//
//	privacy.Policy{
//	    Query:    privacy.QueryPolicy{privacy.TenantFilterRule("tenantId")},
//	    Mutation: privacy.MutationPolicy{
//	        privacy.TenantRule("tenantId"),
//	        privacy.TenantFilterRule("tenantId"),
//	    },
//	}
func TenantFilterRule(field string) QueryMutationRule {
	return FilterFunc(func(ctx context.Context, f Filter) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Denyf("veloq/privacy: tenant required")
		}
		tenant := viewer.GetTenantID()
		f.WhereP(func(t *query.Table) query.Expr { return t.C(field).EQ(tenant) })
		return Skip
	})
}
