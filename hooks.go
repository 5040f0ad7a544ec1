package quill

import (
	"context"
	"fmt"
)

// HookPoint is a stage of query processing at which hooks run.
type HookPoint uint8

// Hook points, in the order they are reached.
const (
	// BeforeQueryPreparation runs after validation and the field
	// pipeline, before the statement is compiled.
	BeforeQueryPreparation HookPoint = iota
	// BeforeQueryExecution runs after compilation, with Query.Statement
	// set.
	BeforeQueryExecution
	// AfterQueryExecution runs once the query ends, successfully or not.
	// Its errors are logged and never change the result.
	AfterQueryExecution

	numHookPoints
)

// String returns the hook point name.
func (p HookPoint) String() string {
	switch p {
	case BeforeQueryPreparation:
		return "beforeQueryPreparation"
	case BeforeQueryExecution:
		return "beforeQueryExecution"
	case AfterQueryExecution:
		return "afterQueryExecution"
	}
	return fmt.Sprintf("HookPoint(%d)", p)
}

// Hook observes or rewrites a query. A non-nil error from a before hook
// aborts the query with a runtime error.
type Hook func(context.Context, *Query) error

// On returns a hook that runs h only for the given operations.
//
//	quill.On(quill.OpInsert|quill.OpUpdate, audit)
func On(op Op, h Hook) Hook {
	return func(ctx context.Context, q *Query) error {
		if !q.Op.Is(op) {
			return nil
		}
		return h(ctx, q)
	}
}

// ForCollection returns a hook that runs h only for the named
// collections.
func ForCollection(h Hook, names ...string) Hook {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(ctx context.Context, q *Query) error {
		if _, ok := set[q.Collection]; !ok {
			return nil
		}
		return h(ctx, q)
	}
}

// Chain returns a hook that runs hooks in order and stops at the first
// error.
func Chain(hooks ...Hook) Hook {
	return func(ctx context.Context, q *Query) error {
		for _, h := range hooks {
			if err := h(ctx, q); err != nil {
				return err
			}
		}
		return nil
	}
}

// hooks holds the registered hooks per point.
type hooks [numHookPoints][]Hook

// run runs the hooks of p in registration order.
func (hs *hooks) run(ctx context.Context, p HookPoint, q *Query) error {
	for _, h := range hs[p] {
		if err := h(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// runAll runs every hook of p and collects their errors.
func (hs *hooks) runAll(ctx context.Context, p HookPoint, q *Query) error {
	var errs []error
	for _, h := range hs[p] {
		errs = append(errs, h(ctx, q))
	}
	return NewAggregateError(errs...)
}
