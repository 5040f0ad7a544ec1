package privacy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/quill"
	ql "github.com/syssam/quill/querylanguage"
)

// Policy decision sentinel errors. Use errors.Is to check for them:
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow ends the evaluation and permits the operation.
	Allow = errors.New("quill/privacy: allow rule")

	// Deny ends the evaluation and rejects the operation.
	Deny = errors.New("quill/privacy: deny rule")

	// Skip passes the decision to the next rule.
	Skip = errors.New("quill/privacy: skip rule")
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

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() QueryMutationRule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() QueryMutationRule {
	return fixedDecision{Deny}
}

// ContextQueryMutationRule creates a rule from a context evaluation
// function. Returning nil is equivalent to returning Skip.
func ContextQueryMutationRule(eval func(context.Context) error) QueryMutationRule {
	return contextDecision{eval}
}

type (
	// QueryRule decides whether a select is allowed.
	QueryRule interface {
		EvalQuery(context.Context, *quill.Query) error
	}

	// QueryPolicy combines multiple query rules into a single policy.
	QueryPolicy []QueryRule

	// MutationRule decides whether an insert, update or delete is
	// allowed.
	MutationRule interface {
		EvalMutation(context.Context, *quill.Query) error
	}

	// MutationPolicy combines multiple mutation rules into a single policy.
	MutationPolicy []MutationRule

	// QueryMutationRule groups query and mutation rules.
	QueryMutationRule interface {
		QueryRule
		MutationRule
	}
)

// QueryRuleFunc is an adapter which allows the use of ordinary functions
// as query rules.
type QueryRuleFunc func(context.Context, *quill.Query) error

// EvalQuery returns f(ctx, q).
func (f QueryRuleFunc) EvalQuery(ctx context.Context, q *quill.Query) error {
	return f(ctx, q)
}

// MutationRuleFunc is an adapter which allows the use of ordinary
// functions as mutation rules.
type MutationRuleFunc func(context.Context, *quill.Query) error

// EvalMutation returns f(ctx, m).
func (f MutationRuleFunc) EvalMutation(ctx context.Context, m *quill.Query) error {
	return f(ctx, m)
}

// OnMutationOperation evaluates the given rule only on a given mutation operation.
func OnMutationOperation(rule MutationRule, op quill.Op) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m *quill.Query) error {
		if m.Op.Is(op) {
			return rule.EvalMutation(ctx, m)
		}
		return Skip
	})
}

// DenyMutationOperationRule returns a rule denying specified mutation operation.
func DenyMutationOperationRule(op quill.Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, m *quill.Query) error {
		return Denyf("quill/privacy: operation %s is not allowed", m.Op)
	})
	return OnMutationOperation(rule, op)
}

// Policy groups query and mutation policies.
type Policy struct {
	Query    QueryPolicy
	Mutation MutationPolicy
}

// EvalQuery forwards evaluation to the query policy.
func (p Policy) EvalQuery(ctx context.Context, q *quill.Query) error {
	return p.Query.EvalQuery(ctx, q)
}

// EvalMutation forwards evaluation to the mutation policy.
func (p Policy) EvalMutation(ctx context.Context, m *quill.Query) error {
	return p.Mutation.EvalMutation(ctx, m)
}

// Policies combines multiple policies into a single policy. An Allow
// from one of them ends the evaluation with a nil error.
type Policies []QueryMutationRule

// EvalQuery evaluates the query policies.
func (policies Policies) EvalQuery(ctx context.Context, q *quill.Query) error {
	return policies.eval(ctx, func(policy QueryMutationRule) error {
		return policy.EvalQuery(ctx, q)
	})
}

// EvalMutation evaluates the mutation policies.
func (policies Policies) EvalMutation(ctx context.Context, m *quill.Query) error {
	return policies.eval(ctx, func(policy QueryMutationRule) error {
		return policy.EvalMutation(ctx, m)
	})
}

func (policies Policies) eval(ctx context.Context, eval func(QueryMutationRule) error) error {
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

// EvalQuery evaluates a query against a query policy.
func (policies QueryPolicy) EvalQuery(ctx context.Context, q *quill.Query) error {
	for _, policy := range policies {
		switch decision := policy.EvalQuery(ctx, q); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

// EvalMutation evaluates a mutation against a mutation policy.
func (policies MutationPolicy) EvalMutation(ctx context.Context, m *quill.Query) error {
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

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
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

func (f fixedDecision) EvalQuery(context.Context, *quill.Query) error {
	return f.decision
}

func (f fixedDecision) EvalMutation(context.Context, *quill.Query) error {
	return f.decision
}

type contextDecision struct {
	eval func(context.Context) error
}

func (c contextDecision) EvalQuery(ctx context.Context, _ *quill.Query) error {
	return c.eval(ctx)
}

func (c contextDecision) EvalMutation(ctx context.Context, _ *quill.Query) error {
	return c.eval(ctx)
}

// FilterFunc is a rule that narrows the where tree of a query. It
// returns the conditions to add and a decision; the conditions are
// added only when the decision is not a Deny.
//
//	privacy.FilterFunc(func(ctx context.Context, q *quill.Query) ([]ql.Condition, error) {
//	    return []ql.Condition{ql.Where("tenantId", ql.OpEQ, tenantID)}, privacy.Skip
//	})
//
// Filters must be evaluated by a hook registered at
// quill.BeforeQueryPreparation; later the statement is already compiled.
type FilterFunc func(context.Context, *quill.Query) ([]ql.Condition, error)

// ErrFilterTooLate is returned by filters evaluated after the statement
// of the query was compiled.
var ErrFilterTooLate = errors.New("quill/privacy: filter evaluated after query preparation")

func (f FilterFunc) eval(ctx context.Context, q *quill.Query) error {
	if q.Statement != nil {
		return ErrFilterTooLate
	}
	conds, decision := f(ctx, q)
	if decision != nil && !errors.Is(decision, Skip) && !errors.Is(decision, Allow) {
		return decision
	}
	q.Where = append(q.Where, conds...)
	return decision
}

// EvalQuery adds the conditions of f to the query.
func (f FilterFunc) EvalQuery(ctx context.Context, q *quill.Query) error {
	return f.eval(ctx, q)
}

// EvalMutation adds the conditions of f to the mutation. Inserts have no
// where tree and are skipped.
func (f FilterFunc) EvalMutation(ctx context.Context, m *quill.Query) error {
	if m.Op.Is(quill.OpInsert) {
		return Skip
	}
	return f.eval(ctx, m)
}

var _ QueryMutationRule = FilterFunc(nil)

// Hook returns a quill.Hook evaluating rule: EvalQuery for selects,
// EvalMutation for the other operations. A Deny decision becomes a
// *quill.PrivacyError; other non-decision errors are returned as is.
//
//	client := quill.NewClient(drv, registry,
//	    quill.WithHook(quill.BeforeQueryExecution, privacy.Hook(policy)),
//	)
func Hook(rule QueryMutationRule) quill.Hook {
	return func(ctx context.Context, q *quill.Query) error {
		var decision error
		if q.Op.Is(quill.OpSelect) {
			decision = rule.EvalQuery(ctx, q)
		} else {
			decision = rule.EvalMutation(ctx, q)
		}
		switch {
		case decision == nil || errors.Is(decision, Allow) || errors.Is(decision, Skip):
			return nil
		case errors.Is(decision, Deny):
			return quill.NewPrivacyError(q.Collection, q.Op, reason(decision))
		default:
			return decision
		}
	}
}

// reason returns the message of a formatted decision, empty for the bare
// sentinel.
func reason(decision error) string {
	if decision == Deny {
		return ""
	}
	return strings.TrimSuffix(decision.Error(), ": "+Deny.Error())
}
