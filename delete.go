package quill

import (
	"context"

	"github.com/syssam/quill/dialect/sql"
	ql "github.com/syssam/quill/querylanguage"
)

// DeleteBuilder builds and runs deletes.
type DeleteBuilder struct {
	whereBase[*DeleteBuilder]
}

// Clone returns an independent copy of the builder.
func (b *DeleteBuilder) Clone() *DeleteBuilder {
	c := &DeleteBuilder{}
	c.whereBase = b.whereBase.clone(c)
	return c
}

// Returning sets the fields returned for every deleted row.
func (b *DeleteBuilder) Returning(fields ...string) *DeleteBuilder {
	b.st.returning = append(b.st.returning, fields...)
	return b
}

// ReturningAll returns every column of the deleted rows.
func (b *DeleteBuilder) ReturningAll() *DeleteBuilder {
	b.st.returningAll = true
	return b
}

// FromQueryString applies the where, returning and populate parameters
// of a query string.
func (b *DeleteBuilder) FromQueryString(qs string) *DeleteBuilder {
	p, err := ql.ParseQueryString(qs)
	if err != nil {
		b.st.fail(err)
		return b
	}
	return b.ApplyParams(p)
}

// ApplyParams applies decoded query-string parameters.
func (b *DeleteBuilder) ApplyParams(p *ql.Params) *DeleteBuilder {
	b.WhereConditions(p.Where...)
	applyReturning(b.st, p)
	return b
}

// Run deletes the matched rows and returns the rows selected by
// Returning.
func (b *DeleteBuilder) Run(ctx context.Context) Result[[]Row, NoInputErrors] {
	e, err := b.exec(ctx)
	if err != nil {
		return failure[[]Row, NoInputErrors](b.st, OpDelete, err)
	}
	return succeed[[]Row, NoInputErrors](rowsOrEmpty(e))
}

// Count deletes the matched rows and returns their number.
func (b *DeleteBuilder) Count(ctx context.Context) Result[int64, NoInputErrors] {
	e, err := b.exec(ctx)
	if err != nil {
		return failure[int64, NoInputErrors](b.st, OpDelete, err)
	}
	return succeed[int64, NoInputErrors](e.RowsAffected)
}

func (b *DeleteBuilder) exec(ctx context.Context) (*cacheEntry, error) {
	col, err := b.begin(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkFields(col, b.st.returning); err != nil {
		return nil, err
	}
	w, err := where(col, b.st.where)
	if err != nil {
		return nil, err
	}
	q := b.st.newQuery(OpDelete, w)
	d := b.st.client.storage.Dialect()
	e, err := b.st.exec(ctx, col, q, "", func(q *Query) (sql.Statement, error) {
		sq := &sql.Query{Table: col.TableIdent(), Where: q.Where, Raw: b.st.raw}
		return sql.DeleteStatement(d, sq, b.st.returning, b.st.returningAll)
	})
	if err != nil {
		return nil, err
	}
	b.st.invalidate(ctx)
	return e, nil
}
