// Package pipeline runs the field processing stages applied to items
// before they are written: filters, sanitizers, dependency checks,
// conditional activation, defaults and validators.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/quill/i18n"
	"github.com/syssam/quill/schema/field"
)

// Op is the write operation items are prepared for.
type Op uint8

// Write operations.
const (
	OpInsert Op = iota + 1
	OpUpdate
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	}
	return fmt.Sprintf("Op(%d)", o)
}

// FieldErrors maps field names to messages.
type FieldErrors map[string]string

// Filter rewrites the value of a present field. Returning keep=false
// deletes the value.
type Filter func(ctx context.Context, op Op, f *field.Descriptor, v any) (out any, keep bool)

// Filters are applied at three points of the pipeline.
type Filters struct {
	PreSanitize []Filter
	PreValidate []Filter
	PreExecute  []Filter
}

// Resolver reports which fields are active for an input.
type Resolver interface {
	Active(ctx context.Context, fields []*field.Descriptor, input map[string]any) (map[string]bool, error)
}

// Runner processes items for one collection.
type Runner struct {
	Fields []*field.Descriptor
	// Resolver decides conditional activation. Nil leaves every field
	// active.
	Resolver   Resolver
	Filters    Filters
	Translator i18n.Translator
	Language   string
}

// item is the working state of one input item.
type item struct {
	values map[string]any
	errs   FieldErrors
	// skip holds fields excluded from validation.
	skip map[string]bool
	// results holds one validation message slot per field.
	results []string
}

// Insert runs the pipeline over items. It returns the processed items and
// one FieldErrors per item; any non-empty FieldErrors means the insert
// must not proceed. A non-nil error is a runtime failure.
func (r *Runner) Insert(ctx context.Context, items []map[string]any) ([]map[string]any, []FieldErrors, error) {
	return r.run(ctx, OpInsert, items)
}

// Update runs the pipeline over the single update item.
func (r *Runner) Update(ctx context.Context, values map[string]any) (map[string]any, FieldErrors, error) {
	out, errs, err := r.run(ctx, OpUpdate, []map[string]any{values})
	if err != nil {
		return nil, nil, err
	}
	return out[0], errs[0], nil
}

// HasErrors reports whether any of errs holds a message.
func HasErrors(errs []FieldErrors) bool {
	for _, e := range errs {
		if len(e) > 0 {
			return true
		}
	}
	return false
}

func (r *Runner) run(ctx context.Context, op Op, inputs []map[string]any) ([]map[string]any, []FieldErrors, error) {
	items := make([]*item, len(inputs))
	// Sanitizing is sequential across items.
	for i, in := range inputs {
		it, err := r.prepare(ctx, op, in)
		if err != nil {
			return nil, nil, err
		}
		items[i] = it
	}
	// Validation of every field of every item is one concurrent batch.
	g, gctx := errgroup.WithContext(ctx)
	for _, it := range items {
		it.results = make([]string, len(r.Fields))
		for j, f := range r.Fields {
			v, ok := it.values[f.Name]
			if !ok || v == nil || it.skip[f.Name] || len(f.Validators) == 0 {
				continue
			}
			g.Go(func() error {
				it.results[j] = r.validate(gctx, f, v)
				return nil
			})
		}
	}
	_ = g.Wait()
	out := make([]map[string]any, len(items))
	errs := make([]FieldErrors, len(items))
	for i, it := range items {
		for j, f := range r.Fields {
			if msg := it.results[j]; msg != "" {
				it.errs[f.Name] = msg
			}
		}
		r.filter(ctx, op, it.values, r.Filters.PreExecute)
		out[i], errs[i] = it.values, it.errs
	}
	return out, errs, nil
}

// prepare runs every stage before validation for one item.
func (r *Runner) prepare(ctx context.Context, op Op, in map[string]any) (*item, error) {
	it := &item{
		values: make(map[string]any, len(in)),
		errs:   FieldErrors{},
		skip:   make(map[string]bool),
	}
	for k, v := range in {
		it.values[k] = v
	}
	r.filter(ctx, op, it.values, r.Filters.PreSanitize)
	for _, f := range r.Fields {
		v, ok := it.values[f.Name]
		if !ok {
			continue
		}
		switch {
		case op == OpUpdate && f.Immutable:
			r.reject(it, f, field.MsgImmutable)
			continue
		case v == nil && !f.Nullable:
			r.reject(it, f, field.MsgNotNull)
			continue
		}
		if v == nil {
			continue
		}
		for _, s := range f.Sanitizers {
			v = s(ctx, v)
		}
		it.values[f.Name] = v
	}
	for _, f := range r.Fields {
		if _, ok := it.values[f.Name]; !ok || it.skip[f.Name] {
			continue
		}
		for _, dep := range f.Dependencies {
			if _, ok := Lookup(it.values, dep); !ok {
				r.reject(it, f, field.MsgDependency, dep)
				break
			}
		}
	}
	active := make(map[string]bool, len(r.Fields))
	if r.Resolver != nil {
		var err error
		if active, err = r.Resolver.Active(ctx, r.Fields, it.values); err != nil {
			return nil, err
		}
	} else {
		for _, f := range r.Fields {
			active[f.Name] = true
		}
	}
	for _, f := range r.Fields {
		_, present := it.values[f.Name]
		switch {
		case !active[f.Name]:
			it.skip[f.Name] = true
			if !present && f.Required && f.HasDefault() {
				it.values[f.Name] = f.DefaultValue()
			}
		case present:
		case op == OpInsert && f.Required:
			r.reject(it, f, field.MsgRequired)
		case op == OpInsert && f.HasDefault():
			it.values[f.Name] = f.DefaultValue()
		case op == OpUpdate && f.UpdateDefault != nil:
			it.values[f.Name] = f.UpdateDefaultValue()
		}
	}
	r.filter(ctx, op, it.values, r.Filters.PreValidate)
	return it, nil
}

func (r *Runner) reject(it *item, f *field.Descriptor, key string, args ...any) {
	it.errs[f.Name] = r.translate(key, args...)
	it.skip[f.Name] = true
}

// filter applies filters to every present field value.
func (r *Runner) filter(ctx context.Context, op Op, values map[string]any, filters []Filter) {
	if len(filters) == 0 {
		return
	}
	for _, f := range r.Fields {
		for _, fn := range filters {
			v, ok := values[f.Name]
			if !ok {
				break
			}
			if v, ok = fn(ctx, op, f, v); ok {
				values[f.Name] = v
			} else {
				delete(values, f.Name)
			}
		}
	}
}

// validate runs the validator chain of f and returns the message of the
// first failure.
func (r *Runner) validate(ctx context.Context, f *field.Descriptor, v any) string {
	for _, fn := range f.Validators {
		err := fn(ctx, v)
		switch {
		case err == nil:
			continue
		case errors.Is(err, field.ErrSkipValidation):
			return ""
		}
		var ve *field.ValidationError
		if errors.As(err, &ve) {
			return r.translate(ve.Key, ve.Args...)
		}
		return err.Error()
	}
	return ""
}

func (r *Runner) translate(key string, args ...any) string {
	t := r.Translator
	if t == nil {
		t = i18n.English
	}
	return t.Translate(r.Language, key, args...)
}

// Lookup resolves a dotted path in values. Intermediate values must be
// objects.
func Lookup(values map[string]any, path string) (any, bool) {
	var cur any = values
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Populate replaces every populated column of rows with its populator
// output. All calls run concurrently; the first error is returned.
func (r *Runner) Populate(ctx context.Context, rows []map[string]any) error {
	var populated []*field.Descriptor
	for _, f := range r.Fields {
		if f.Populator != nil {
			populated = append(populated, f)
		}
	}
	if len(populated) == 0 || len(rows) == 0 {
		return nil
	}
	out := make([][]any, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	for i, row := range rows {
		out[i] = make([]any, len(populated))
		for j, f := range populated {
			v, ok := row[f.Name]
			if !ok {
				continue
			}
			g.Go(func() error {
				pv, err := f.Populator(gctx, v)
				if err != nil {
					return fmt.Errorf("populating %q: %w", f.Name, err)
				}
				out[i][j] = pv
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, row := range rows {
		for j, f := range populated {
			if _, ok := row[f.Name]; ok {
				row[f.Name] = out[i][j]
			}
		}
	}
	return nil
}
