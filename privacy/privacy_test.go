package privacy_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/privacy"
	"github.com/syssam/veloq/query"
	"github.com/syssam/veloq/schema"
	"github.com/syssam/veloq/schema/field"
)

func accountNode(t testing.TB) *schema.Node {
	t.Helper()
	g, err := schema.Build(nil, &schema.Entity{
		Name: "Account",
		ID:   field.Int64("id"),
		Fields: []field.Field{
			field.String("ownerId"),
			field.String("tenantId"),
			field.String("name"),
		},
	})
	require.NoError(t, err)
	return g.MustNode("Account")
}

func selectAccounts(t testing.TB) *query.Select {
	return query.From(query.NewTable(accountNode(t)))
}

func mutationOf(t testing.TB, op query.Op, field string, v any) query.Mutation {
	tbl := query.NewTable(accountNode(t))
	switch op {
	case query.OpUpdate:
		return query.Update(tbl).Set(field, v)
	case query.OpDelete:
		return query.Delete(tbl)
	}
	return query.Insert(tbl).Set(field, v)
}

// =============================================================================
// Decisions
// =============================================================================

func TestDecisionErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		decision  error
		wantAllow bool
		wantDeny  bool
		wantSkip  bool
	}{
		{name: "allow", decision: privacy.Allow, wantAllow: true},
		{name: "deny", decision: privacy.Deny, wantDeny: true},
		{name: "skip", decision: privacy.Skip, wantSkip: true},
		{name: "allowf", decision: privacy.Allowf("user %s allowed", "admin"), wantAllow: true},
		{name: "denyf", decision: privacy.Denyf("user %s denied", "guest"), wantDeny: true},
		{name: "skipf", decision: privacy.Skipf("rule %d skipped", 1), wantSkip: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantAllow, errors.Is(tt.decision, privacy.Allow))
			assert.Equal(t, tt.wantDeny, errors.Is(tt.decision, privacy.Deny))
			assert.Equal(t, tt.wantSkip, errors.Is(tt.decision, privacy.Skip))
		})
	}
	assert.Contains(t, privacy.Denyf("access denied for role %s", "guest").Error(), "access denied for role guest")
}

func TestAlwaysRules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := selectAccounts(t)
	m := mutationOf(t, query.OpInsert, "name", "a")

	assert.ErrorIs(t, privacy.AlwaysAllowRule().EvalQuery(ctx, q), privacy.Allow)
	assert.ErrorIs(t, privacy.AlwaysAllowRule().EvalMutation(ctx, m), privacy.Allow)
	assert.ErrorIs(t, privacy.AlwaysDenyRule().EvalQuery(ctx, q), privacy.Deny)
	assert.ErrorIs(t, privacy.AlwaysDenyRule().EvalMutation(ctx, m), privacy.Deny)
}

func TestContextQueryMutationRule(t *testing.T) {
	t.Parallel()
	type ctxKey struct{}
	rule := privacy.ContextQueryMutationRule(func(ctx context.Context) error {
		if ctx.Value(ctxKey{}) != nil {
			return privacy.Allow
		}
		return privacy.Deny
	})
	q := selectAccounts(t)
	assert.ErrorIs(t, rule.EvalQuery(context.Background(), q), privacy.Deny)
	ctx := context.WithValue(context.Background(), ctxKey{}, true)
	assert.ErrorIs(t, rule.EvalQuery(ctx, q), privacy.Allow)
	assert.ErrorIs(t, rule.EvalMutation(ctx, mutationOf(t, query.OpInsert, "name", "a")), privacy.Allow)
}

// =============================================================================
// Operations
// =============================================================================

func TestOnMutationOperation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		ruleOp query.Op
		op     query.Op
		want   error
	}{
		{name: "matching_insert", ruleOp: query.OpInsert, op: query.OpInsert, want: privacy.Deny},
		{name: "other_op_skips", ruleOp: query.OpInsert, op: query.OpUpdate, want: privacy.Skip},
		{name: "any_of_flags", ruleOp: query.OpUpdate | query.OpDelete, op: query.OpDelete, want: privacy.Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rule := privacy.OnMutationOperation(privacy.MutationRuleFunc(func(context.Context, query.Mutation) error {
				return privacy.Deny
			}), tt.ruleOp)
			err := rule.EvalMutation(context.Background(), mutationOf(t, tt.op, "name", "a"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMutationOperationRules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	del := mutationOf(t, query.OpDelete, "", nil)
	upd := mutationOf(t, query.OpUpdate, "name", "b")

	err := privacy.DenyMutationOperationRule(query.OpDelete).EvalMutation(ctx, del)
	require.ErrorIs(t, err, privacy.Deny)
	assert.Contains(t, err.Error(), "operation Delete is not allowed")
	assert.ErrorIs(t, privacy.DenyMutationOperationRule(query.OpDelete).EvalMutation(ctx, upd), privacy.Skip)
	assert.ErrorIs(t, privacy.AllowMutationOperationRule(query.OpUpdate).EvalMutation(ctx, upd), privacy.Allow)
}

// =============================================================================
// Policies
// =============================================================================

func TestDecisionContext(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		decision error
		stored   bool
		want     error
	}{
		{name: "deny", decision: privacy.Deny, stored: true, want: privacy.Deny},
		{name: "allow_returns_nil", decision: privacy.Allow, stored: true},
		{name: "skip_not_stored", decision: privacy.Skip},
		{name: "nil_not_stored"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			decision, ok := privacy.DecisionFromContext(privacy.DecisionContext(context.Background(), tt.decision))
			assert.Equal(t, tt.stored, ok)
			if tt.want == nil {
				assert.NoError(t, decision)
			} else {
				assert.ErrorIs(t, decision, tt.want)
			}
		})
	}
}

func TestQueryPolicy(t *testing.T) {
	t.Parallel()
	rule := func(d error) privacy.QueryRule {
		return privacy.QueryRuleFunc(func(context.Context, query.Query) error { return d })
	}
	never := privacy.QueryRuleFunc(func(context.Context, query.Query) error { panic("evaluated") })
	tests := []struct {
		name   string
		policy privacy.QueryPolicy
		want   error
	}{
		{name: "empty_allows"},
		{name: "allow_stops", policy: privacy.QueryPolicy{rule(privacy.Allow), never}, want: privacy.Allow},
		{name: "deny_stops", policy: privacy.QueryPolicy{rule(privacy.Deny), never}, want: privacy.Deny},
		{name: "skip_continues", policy: privacy.QueryPolicy{rule(privacy.Skip), rule(privacy.Deny)}, want: privacy.Deny},
		{name: "nil_continues", policy: privacy.QueryPolicy{rule(nil), rule(privacy.Allow)}, want: privacy.Allow},
		{name: "all_skip_allows", policy: privacy.QueryPolicy{rule(privacy.Skip), rule(nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.policy.EvalQuery(context.Background(), selectAccounts(t))
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

type countingPolicy struct {
	count          *int
	queryResult    error
	mutationResult error
}

func (p *countingPolicy) EvalQuery(context.Context, query.Query) error {
	*p.count++
	return p.queryResult
}

func (p *countingPolicy) EvalMutation(context.Context, query.Mutation) error {
	*p.count++
	return p.mutationResult
}

func TestPolicies(t *testing.T) {
	t.Parallel()
	t.Run("allow_stops_with_nil", func(t *testing.T) {
		var n int
		policies := privacy.Policies{
			&countingPolicy{count: &n, queryResult: privacy.Allow},
			&countingPolicy{count: &n, queryResult: privacy.Deny},
		}
		assert.NoError(t, policies.EvalQuery(context.Background(), selectAccounts(t)))
		assert.Equal(t, 1, n)
	})
	t.Run("deny_stops", func(t *testing.T) {
		var n int
		policies := privacy.Policies{
			&countingPolicy{count: &n, mutationResult: privacy.Deny},
			&countingPolicy{count: &n, mutationResult: privacy.Allow},
		}
		err := policies.EvalMutation(context.Background(), mutationOf(t, query.OpInsert, "name", "a"))
		assert.ErrorIs(t, err, privacy.Deny)
		assert.Equal(t, 1, n)
	})
	t.Run("context_decision_overrides", func(t *testing.T) {
		var n int
		ctx := privacy.DecisionContext(context.Background(), privacy.Deny)
		policies := privacy.Policies{&countingPolicy{count: &n, queryResult: privacy.Allow}}
		assert.ErrorIs(t, policies.EvalQuery(ctx, selectAccounts(t)), privacy.Deny)
		assert.Zero(t, n)
	})
	t.Run("policy_struct", func(t *testing.T) {
		p := privacy.Policy{
			Query:    privacy.QueryPolicy{privacy.AlwaysAllowRule()},
			Mutation: privacy.MutationPolicy{privacy.AlwaysDenyRule()},
		}
		assert.ErrorIs(t, p.EvalQuery(context.Background(), selectAccounts(t)), privacy.Allow)
		assert.ErrorIs(t, p.EvalMutation(context.Background(), mutationOf(t, query.OpInsert, "name", "a")), privacy.Deny)
	})
}

// =============================================================================
// Filters
// =============================================================================

func TestFilterFunc(t *testing.T) {
	t.Parallel()
	rule := privacy.FilterFunc(func(_ context.Context, f privacy.Filter) error {
		f.WhereP(func(t *query.Table) query.Expr { return t.C("name").NEQ("hidden") })
		return privacy.Skip
	})

	q := selectAccounts(t)
	require.ErrorIs(t, rule.EvalQuery(context.Background(), q), privacy.Skip)
	c, err := query.Compile(q, dialect.SQLite)
	require.NoError(t, err)
	assert.Equal(t, "SELECT tb_1_.ID, tb_1_.OWNER_ID, tb_1_.TENANT_ID, tb_1_.NAME FROM ACCOUNT tb_1_ WHERE tb_1_.NAME <> ?", c.SQL)
	assert.Equal(t, []any{"hidden"}, c.Args)

	upd := mutationOf(t, query.OpUpdate, "name", "x")
	require.ErrorIs(t, rule.EvalMutation(context.Background(), upd), privacy.Skip)
	c, err = query.Compile(upd, dialect.SQLite)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE ACCOUNT AS tb_1_ SET NAME = ? WHERE tb_1_.NAME <> ?", c.SQL)

	err = rule.EvalMutation(context.Background(), mutationOf(t, query.OpInsert, "name", "x"))
	assert.ErrorIs(t, err, privacy.Deny)
}

func BenchmarkPolicyChain(b *testing.B) {
	ctx := context.Background()
	q := selectAccounts(b)
	skip := privacy.QueryRuleFunc(func(context.Context, query.Query) error { return privacy.Skip })
	policy := privacy.QueryPolicy{skip, skip, skip, skip, privacy.AlwaysAllowRule()}
	for b.Loop() {
		_ = policy.EvalQuery(ctx, q)
	}
}

func ExampleFilterFunc() {
	g := schema.MustBuild(nil, &schema.Entity{
		Name:   "Note",
		ID:     field.Int64("id"),
		Fields: []field.Field{field.String("workspaceId")},
	})
	rule := privacy.FilterFunc(func(_ context.Context, f privacy.Filter) error {
		f.WhereP(func(t *query.Table) query.Expr { return t.C("workspaceId").EQ("w1") })
		return privacy.Skip
	})
	q := query.From(query.NewTable(g.MustNode("Note")))
	_ = rule.EvalQuery(context.Background(), q)
	c, _ := query.Compile(q, dialect.Postgres)
	fmt.Println(c.SQL)
	// Output: SELECT tb_1_.ID, tb_1_.WORKSPACE_ID FROM NOTE tb_1_ WHERE tb_1_.WORKSPACE_ID = $1
}
