package privacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/veloq/query"
)

// Policy decisions. Rules return one of them, possibly wrapped, or nil
// which counts as Skip.
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow ends the evaluation and lets the statement run.
	Allow = errors.New("veloq/privacy: allow rule")

	// Deny ends the evaluation and rejects the statement.
	Deny = errors.New("veloq/privacy: deny rule")

	// Skip passes the decision to the next rule.
	Skip = errors.New("veloq/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// AlwaysAllowRule returns a rule that always allows.
func AlwaysAllowRule() QueryMutationRule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always denies.
func AlwaysDenyRule() QueryMutationRule {
	return fixedDecision{Deny}
}

// ContextQueryMutationRule returns a rule deciding on the context alone.
func ContextQueryMutationRule(eval func(context.Context) error) QueryMutationRule {
	return contextDecision{eval}
}

type (
	// QueryRule decides whether a query may run, and may add predicates
	// to it.
	QueryRule interface {
		EvalQuery(context.Context, query.Query) error
	}

	// QueryPolicy evaluates query rules in order.
	QueryPolicy []QueryRule

	// MutationRule decides whether a mutation may run.
	MutationRule interface {
		EvalMutation(context.Context, query.Mutation) error
	}

	// MutationPolicy evaluates mutation rules in order.
	MutationPolicy []MutationRule

	// QueryMutationRule is both a query and a mutation rule.
	QueryMutationRule interface {
		QueryRule
		MutationRule
	}
)

// QueryRuleFunc adapts a function to a QueryRule.
type QueryRuleFunc func(context.Context, query.Query) error

// EvalQuery returns f(ctx, q).
func (f QueryRuleFunc) EvalQuery(ctx context.Context, q query.Query) error {
	return f(ctx, q)
}

// MutationRuleFunc adapts a function to a MutationRule.
type MutationRuleFunc func(context.Context, query.Mutation) error

// EvalMutation returns f(ctx, m).
func (f MutationRuleFunc) EvalMutation(ctx context.Context, m query.Mutation) error {
	return f(ctx, m)
}

// OnMutationOperation evaluates rule only for mutations matching op.
func OnMutationOperation(rule MutationRule, op query.Op) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m query.Mutation) error {
		if m.Op().Is(op) {
			return rule.EvalMutation(ctx, m)
		}
		return Skip
	})
}

// DenyMutationOperationRule denies mutations matching op.
func DenyMutationOperationRule(op query.Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, m query.Mutation) error {
		return Denyf("veloq/privacy: operation %s is not allowed", m.Op())
	})
	return OnMutationOperation(rule, op)
}

// AllowMutationOperationRule allows mutations matching op.
func AllowMutationOperationRule(op query.Op) MutationRule {
	rule := MutationRuleFunc(func(context.Context, query.Mutation) error {
		return Allow
	})
	return OnMutationOperation(rule, op)
}

// Evaluator decides queries and mutations. Policy, Policies and every
// QueryMutationRule implement it.
type Evaluator interface {
	EvalQuery(context.Context, query.Query) error
	EvalMutation(context.Context, query.Mutation) error
}

// Policy groups the query and mutation policies of an entity.
type Policy struct {
	Query    QueryPolicy
	Mutation MutationPolicy
}

// EvalQuery evaluates the query policy.
func (p Policy) EvalQuery(ctx context.Context, q query.Query) error {
	return p.Query.EvalQuery(ctx, q)
}

// EvalMutation evaluates the mutation policy.
func (p Policy) EvalMutation(ctx context.Context, m query.Mutation) error {
	return p.Mutation.EvalMutation(ctx, m)
}

// Policies evaluates several policies in order. The first Allow ends the
// evaluation with a nil error; the first other decision is returned.
type Policies []Evaluator

// EvalQuery evaluates the query policies.
func (policies Policies) EvalQuery(ctx context.Context, q query.Query) error {
	return policies.eval(ctx, func(policy Evaluator) error {
		return policy.EvalQuery(ctx, q)
	})
}

// EvalMutation evaluates the mutation policies.
func (policies Policies) EvalMutation(ctx context.Context, m query.Mutation) error {
	return policies.eval(ctx, func(policy Evaluator) error {
		return policy.EvalMutation(ctx, m)
	})
}

func (policies Policies) eval(ctx context.Context, eval func(Evaluator) error) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, policy := range policies {
		switch decision := eval(policy); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// EvalQuery evaluates the rules until one decides.
func (policies QueryPolicy) EvalQuery(ctx context.Context, q query.Query) error {
	for _, policy := range policies {
		switch decision := policy.EvalQuery(ctx, q); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

// EvalMutation evaluates the rules until one decides.
func (policies MutationPolicy) EvalMutation(ctx context.Context, m query.Mutation) error {
	for _, policy := range policies {
		switch decision := policy.EvalMutation(ctx, m); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext returns a context carrying a decision that overrides
// every policy evaluated with it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext returns the decision attached to ctx. An Allow
// decision is returned as nil.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalQuery(context.Context, query.Query) error {
	return f.decision
}

func (f fixedDecision) EvalMutation(context.Context, query.Mutation) error {
	return f.decision
}

type contextDecision struct {
	eval func(context.Context) error
}

func (c contextDecision) EvalQuery(ctx context.Context, _ query.Query) error {
	return c.eval(ctx)
}

func (c contextDecision) EvalMutation(ctx context.Context, _ query.Mutation) error {
	return c.eval(ctx)
}

// Filter is implemented by statements that accept predicates on their
// root table: selects, updates and deletes.
type Filter interface {
	WhereP(...func(*query.Table) query.Expr)
}

// FilterFunc adapts a function that narrows statements to a rule.
//
//	privacy.FilterFunc(func(ctx context.Context, f privacy.Filter) error {
//	    f.WhereP(func(t *query.Table) query.Expr {
//	        return t.C("workspaceId").EQ(workspaceID)
//	    })
//	    return privacy.Skip
//	})
type FilterFunc func(context.Context, Filter) error

// EvalQuery calls f with q.
func (f FilterFunc) EvalQuery(ctx context.Context, q query.Query) error {
	return f(ctx, q)
}

// EvalMutation calls f with m, or denies mutations that cannot be
// filtered, such as inserts.
func (f FilterFunc) EvalMutation(ctx context.Context, m query.Mutation) error {
	fr, ok := m.(Filter)
	if !ok {
		return Denyf("veloq/privacy: mutation type %T does not support filtering", m)
	}
	return f(ctx, fr)
}

var (
	_ QueryMutationRule = FilterFunc(nil)
	_ Evaluator         = Policy{}
	_ Evaluator         = Policies(nil)
)
