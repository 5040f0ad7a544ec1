// Package conditional decides which fields are active for an input using
// CEL expressions.
//
// An expression sees the sanitized item as the map variable input:
//
//	field.String("counterSpell").When(`has(input.type) && input.type == "curse"`)
//
// Fields without an expression are always active. An expression that
// fails at evaluation time, for example by reading a missing key,
// deactivates its field.
package conditional

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/syssam/quill/schema/field"
)

// Resolver evaluates field expressions. Compiled programs are cached per
// expression. It is safe for concurrent use.
type Resolver struct {
	env      *cel.Env
	programs sync.Map // map[string]cel.Program
}

// NewResolver creates a Resolver with the standard environment.
func NewResolver() (*Resolver, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("conditional: %w", err)
	}
	return &Resolver{env: env}, nil
}

// Compile checks expr and caches its program.
func (r *Resolver) Compile(expr string) (cel.Program, error) {
	if p, ok := r.programs.Load(expr); ok {
		return p.(cel.Program), nil
	}
	ast, issues := r.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("conditional: compiling %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, fmt.Errorf("conditional: %q must return bool, not %s", expr, ast.OutputType())
	}
	p, err := r.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("conditional: %q: %w", expr, err)
	}
	r.programs.Store(expr, p)
	return p, nil
}

// Eval reports whether expr holds for input.
func (r *Resolver) Eval(ctx context.Context, expr string, input map[string]any) (bool, error) {
	p, err := r.Compile(expr)
	if err != nil {
		return false, err
	}
	if input == nil {
		input = map[string]any{}
	}
	out, _, err := p.ContextEval(ctx, map[string]any{"input": input})
	if err != nil {
		return false, nil
	}
	active, ok := out.Value().(bool)
	return ok && active, nil
}

// Active returns the activity of every field for input.
func (r *Resolver) Active(ctx context.Context, fields []*field.Descriptor, input map[string]any) (map[string]bool, error) {
	active := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Conditional == "" {
			active[f.Name] = true
			continue
		}
		ok, err := r.Eval(ctx, f.Conditional, input)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		active[f.Name] = ok
	}
	return active, nil
}
