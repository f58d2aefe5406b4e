// Package privacy decides whether queries and mutations may run, and lets
// rules narrow statements with extra predicates before they are compiled.
//
// Rules are evaluated in order until one returns a decision other than
// Skip:
//
//   - Allow lets the statement run
//   - Deny rejects it; the client returns a *veloq.PrivacyError
//   - Skip, or nil, passes to the next rule
//
// A policy whose rules all skip allows the statement. Filter rules narrow
// a statement instead of deciding on it: their predicates are added to the
// root table of the statement before it is compiled, so they take part in
// table resolution like any user predicate.
//
//	c := client.New(drv, g, client.WithPolicy("Employee", privacy.Policy{
//	    Query: privacy.QueryPolicy{
//	        privacy.DenyIfNoViewer(),
//	        privacy.TenantFilterRule("tenantId"),
//	    },
//	    Mutation: privacy.MutationPolicy{
//	        privacy.DenyIfNoViewer(),
//	        privacy.HasRole("admin"),
//	        privacy.AlwaysDenyRule(),
//	    },
//	}))
//	ctx = privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "u1", TenantID: "t1"})
package privacy
