package quill

import (
	"context"
	"maps"

	"github.com/syssam/quill/dialect/sql"
	ql "github.com/syssam/quill/querylanguage"
	"github.com/syssam/quill/schema"
)

// UpdateBuilder builds and runs updates.
type UpdateBuilder struct {
	whereBase[*UpdateBuilder]
	values Row
}

// Clone returns an independent copy of the builder.
func (b *UpdateBuilder) Clone() *UpdateBuilder {
	c := &UpdateBuilder{values: maps.Clone(b.values)}
	c.whereBase = b.whereBase.clone(c)
	return c
}

// Set adds values to write. Later calls override earlier keys.
func (b *UpdateBuilder) Set(values Row) *UpdateBuilder {
	if b.values == nil {
		b.values = make(Row, len(values))
	}
	maps.Copy(b.values, values)
	return b
}

// Returning sets the fields returned for every updated row.
func (b *UpdateBuilder) Returning(fields ...string) *UpdateBuilder {
	b.st.returning = append(b.st.returning, fields...)
	return b
}

// ReturningAll returns every column of the updated rows.
func (b *UpdateBuilder) ReturningAll() *UpdateBuilder {
	b.st.returningAll = true
	return b
}

// FromQueryString applies the where, returning and populate parameters
// of a query string.
func (b *UpdateBuilder) FromQueryString(qs string) *UpdateBuilder {
	p, err := ql.ParseQueryString(qs)
	if err != nil {
		b.st.fail(err)
		return b
	}
	return b.ApplyParams(p)
}

// ApplyParams applies decoded query-string parameters.
func (b *UpdateBuilder) ApplyParams(p *ql.Params) *UpdateBuilder {
	b.WhereConditions(p.Where...)
	applyReturning(b.st, p)
	return b
}

// Run updates the matched rows and returns the rows selected by
// Returning.
func (b *UpdateBuilder) Run(ctx context.Context) Result[[]Row, FieldErrors] {
	e, errs, err := b.exec(ctx)
	switch {
	case err != nil:
		return failure[[]Row, FieldErrors](b.st, OpUpdate, err)
	case errs != nil:
		return inputFailure[[]Row](errs, &InputError{Collection: b.st.collection, Op: OpUpdate, Errors: []FieldErrors{errs}})
	}
	return succeed[[]Row, FieldErrors](rowsOrEmpty(e))
}

// Count updates the matched rows and returns their number.
func (b *UpdateBuilder) Count(ctx context.Context) Result[int64, FieldErrors] {
	e, errs, err := b.exec(ctx)
	switch {
	case err != nil:
		return failure[int64, FieldErrors](b.st, OpUpdate, err)
	case errs != nil:
		return inputFailure[int64](errs, &InputError{Collection: b.st.collection, Op: OpUpdate, Errors: []FieldErrors{errs}})
	}
	return succeed[int64, FieldErrors](e.RowsAffected)
}

func (b *UpdateBuilder) exec(ctx context.Context) (*cacheEntry, FieldErrors, error) {
	col, err := b.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(b.values) == 0 {
		return nil, nil, ErrNoValues
	}
	if err := checkFields(col, b.st.returning); err != nil {
		return nil, nil, err
	}
	if err := checkKeys(col, []Row{b.values}); err != nil {
		return nil, nil, err
	}
	w, err := where(col, b.st.where)
	if err != nil {
		return nil, nil, err
	}
	r, err := b.st.runner(col)
	if err != nil {
		return nil, nil, err
	}
	values, errs, err := r.Update(ctx, b.values)
	if err != nil {
		return nil, nil, err
	}
	if len(errs) > 0 {
		return nil, errs, nil
	}
	q := b.st.newQuery(OpUpdate, w)
	q.Values = []Row{values}
	d := b.st.client.storage.Dialect()
	e, err := b.st.exec(ctx, col, q, "", func(q *Query) (sql.Statement, error) {
		set, err := assignments(col, q.Values[0])
		if err != nil {
			return sql.Statement{}, err
		}
		sq := &sql.Query{Table: col.TableIdent(), Where: q.Where, Raw: b.st.raw}
		return sql.UpdateStatement(d, set, sq, b.st.returning, b.st.returningAll)
	})
	if err != nil {
		return nil, nil, err
	}
	b.st.invalidate(ctx)
	return e, nil, nil
}

// assignments returns the serialized set list of values in declaration
// order.
func assignments(col *schema.Collection, values Row) ([]sql.Assignment, error) {
	var set []sql.Assignment
	for _, f := range col.Descriptors() {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		sv, err := serialize(f, v)
		if err != nil {
			return nil, err
		}
		set = append(set, sql.Assignment{Column: f.Name, Value: sv})
	}
	if len(set) == 0 {
		return nil, ErrNoValues
	}
	return set, nil
}
