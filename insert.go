package quill

import (
	"context"
	"maps"

	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/dialect/sql"
	"github.com/syssam/quill/pipeline"
	ql "github.com/syssam/quill/querylanguage"
	"github.com/syssam/quill/schema"
)

// InsertBuilder builds and runs inserts.
type InsertBuilder struct {
	base[*InsertBuilder]
	items []Row
}

// Clone returns an independent copy of the builder.
func (b *InsertBuilder) Clone() *InsertBuilder {
	c := &InsertBuilder{items: make([]Row, len(b.items))}
	for i, item := range b.items {
		c.items[i] = maps.Clone(item)
	}
	c.base = b.base.clone(c)
	return c
}

// Values adds items to insert, one row each.
func (b *InsertBuilder) Values(items ...Row) *InsertBuilder {
	b.items = append(b.items, items...)
	return b
}

// Returning sets the fields returned for every inserted row.
func (b *InsertBuilder) Returning(fields ...string) *InsertBuilder {
	b.st.returning = append(b.st.returning, fields...)
	return b
}

// ReturningAll returns every column of the inserted rows.
func (b *InsertBuilder) ReturningAll() *InsertBuilder {
	b.st.returningAll = true
	return b
}

// FromQueryString applies the returning and populate parameters of a
// query string.
func (b *InsertBuilder) FromQueryString(qs string) *InsertBuilder {
	p, err := ql.ParseQueryString(qs)
	if err != nil {
		b.st.fail(err)
		return b
	}
	return b.ApplyParams(p)
}

// ApplyParams applies decoded query-string parameters.
func (b *InsertBuilder) ApplyParams(p *ql.Params) *InsertBuilder {
	applyReturning(b.st, p)
	return b
}

// Run inserts the items and returns the rows selected by Returning.
// Without Returning the data is empty.
func (b *InsertBuilder) Run(ctx context.Context) Result[[]Row, []FieldErrors] {
	e, errs, err := b.exec(ctx)
	switch {
	case err != nil:
		return failure[[]Row, []FieldErrors](b.st, OpInsert, err)
	case errs != nil:
		return inputFailure[[]Row](errs, &InputError{Collection: b.st.collection, Op: OpInsert, Errors: errs})
	}
	return succeed[[]Row, []FieldErrors](rowsOrEmpty(e))
}

// Count inserts the items and returns the number of inserted rows.
func (b *InsertBuilder) Count(ctx context.Context) Result[int64, []FieldErrors] {
	e, errs, err := b.exec(ctx)
	switch {
	case err != nil:
		return failure[int64, []FieldErrors](b.st, OpInsert, err)
	case errs != nil:
		return inputFailure[int64](errs, &InputError{Collection: b.st.collection, Op: OpInsert, Errors: errs})
	}
	return succeed[int64, []FieldErrors](e.RowsAffected)
}

// exec validates and inserts the items. Input errors are returned as
// errs, one entry per item.
func (b *InsertBuilder) exec(ctx context.Context) (*cacheEntry, []FieldErrors, error) {
	col, err := b.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(b.items) == 0 {
		return nil, nil, ErrNoValues
	}
	if err := checkFields(col, b.st.returning); err != nil {
		return nil, nil, err
	}
	if err := checkKeys(col, b.items); err != nil {
		return nil, nil, err
	}
	r, err := b.st.runner(col)
	if err != nil {
		return nil, nil, err
	}
	items, errs, err := r.Insert(ctx, b.items)
	if err != nil {
		return nil, nil, err
	}
	if pipeline.HasErrors(errs) {
		return nil, errs, nil
	}
	q := b.st.newQuery(OpInsert, nil)
	q.Values = items
	d := b.st.client.storage.Dialect()
	e, err := b.st.exec(ctx, col, q, "", func(q *Query) (sql.Statement, error) {
		columns, rows, err := insertRows(d, col, q.Values)
		if err != nil {
			return sql.Statement{}, err
		}
		return sql.InsertStatement(d, col.TableIdent(), columns, rows, b.st.returning, b.st.returningAll, b.st.raw)
	})
	if err != nil {
		return nil, nil, err
	}
	b.st.invalidate(ctx)
	return e, nil, nil
}

// insertRows returns the columns present in any item, in declaration
// order, and the serialized rows. A column missing from an item takes the
// database default where the dialect allows DEFAULT in a values row, and
// null on the sqlite family.
func insertRows(d string, col *schema.Collection, items []Row) ([]string, [][]any, error) {
	var missing any
	if dialect.SupportsDefaultKeyword(d) {
		missing = sql.DefaultValue
	}
	var columns []string
	fields := col.Descriptors()
	for _, f := range fields {
		for _, item := range items {
			if _, ok := item[f.Name]; ok {
				columns = append(columns, f.Name)
				break
			}
		}
	}
	rows := make([][]any, len(items))
	for i, item := range items {
		row := make([]any, len(columns))
		for j, name := range columns {
			v, ok := item[name]
			if !ok {
				row[j] = missing
				continue
			}
			f, _ := col.Field(name)
			sv, err := serialize(f, v)
			if err != nil {
				return nil, nil, err
			}
			row[j] = sv
		}
		rows[i] = row
	}
	return columns, rows, nil
}

// applyReturning applies the returning and populate parameters shared by
// the write builders.
func applyReturning(st *state, p *ql.Params) {
	if p.ReturningAll {
		st.returningAll = true
	}
	st.returning = append(st.returning, p.Returning...)
	if p.Populate != nil {
		st.populate = *p.Populate
	}
}
