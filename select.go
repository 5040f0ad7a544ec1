package quill

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/syssam/quill/dialect/sql"
	ql "github.com/syssam/quill/querylanguage"
	"github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

// SelectBuilder builds and runs selects.
type SelectBuilder struct {
	whereBase[*SelectBuilder]
	columns   []string
	search    []ql.SearchTerm
	relevance ql.Relevance
	groupBy   []string
	orderBy   []ql.Order
	limit     *int
	offset    *int
}

// Clone returns an independent copy of the builder.
func (b *SelectBuilder) Clone() *SelectBuilder {
	c := &SelectBuilder{
		columns:   slices.Clone(b.columns),
		relevance: b.relevance,
		groupBy:   slices.Clone(b.groupBy),
		orderBy:   slices.Clone(b.orderBy),
		limit:     clonePtr(b.limit),
		offset:    clonePtr(b.offset),
	}
	for _, t := range b.search {
		c.search = append(c.search, ql.SearchTerm{Keywords: slices.Clone(t.Keywords), Fields: slices.Clone(t.Fields)})
	}
	c.whereBase = b.whereBase.clone(c)
	return c
}

// Select adds fields to the selection. An empty selection selects
// every column.
func (b *SelectBuilder) Select(fields ...string) *SelectBuilder {
	b.columns = append(b.columns, fields...)
	return b
}

// SelectAll clears the selection.
func (b *SelectBuilder) SelectAll() *SelectBuilder {
	b.columns = nil
	return b
}

// Search matches rows where every whitespace-separated keyword appears
// in at least one of fields.
func (b *SelectBuilder) Search(keywords string, fields ...string) *SelectBuilder {
	if kw := strings.Fields(keywords); len(kw) > 0 {
		b.search = append(b.search, ql.SearchTerm{Keywords: kw, Fields: fields})
	}
	return b
}

// SearchString parses s with the search grammar and adds the result.
//
//	b.SearchString("harry potter[in][name,bio]")
func (b *SelectBuilder) SearchString(s string) *SelectBuilder {
	terms, err := ql.ParseSearch(s)
	if err != nil {
		b.st.fail(err)
		return b
	}
	b.search = append(b.search, terms...)
	return b
}

// GroupBy adds grouping fields.
func (b *SelectBuilder) GroupBy(fields ...string) *SelectBuilder {
	b.groupBy = append(b.groupBy, fields...)
	return b
}

// OrderBy adds a sort key.
func (b *SelectBuilder) OrderBy(field string, desc bool) *SelectBuilder {
	b.orderBy = append(b.orderBy, ql.Order{Field: field, Desc: desc})
	return b
}

// Order adds sort keys with explicit null placement.
func (b *SelectBuilder) Order(orders ...ql.Order) *SelectBuilder {
	b.orderBy = append(b.orderBy, orders...)
	return b
}

// OrderByRelevance sorts by search relevance before the other keys.
func (b *SelectBuilder) OrderByRelevance(r ql.Relevance) *SelectBuilder {
	b.relevance = r
	return b
}

// Limit sets the maximum number of rows.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	if n < 0 {
		b.st.fail(fmt.Errorf("%w: limit %d", ErrPagination, n))
		return b
	}
	b.limit = &n
	return b
}

// Offset sets the number of rows skipped.
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	if n < 0 {
		b.st.fail(fmt.Errorf("%w: offset %d", ErrPagination, n))
		return b
	}
	b.offset = &n
	return b
}

// Page sets limit and offset for the 1-based page of perPage rows.
func (b *SelectBuilder) Page(page, perPage int) *SelectBuilder {
	if page < 1 || perPage < 1 {
		b.st.fail(fmt.Errorf("%w: page %d of %d", ErrPagination, page, perPage))
		return b
	}
	return b.Limit(perPage).Offset((page - 1) * perPage)
}

// FromQueryString applies a query string such as
// "select=name&where=points[>][50]&orderBy=points:desc&limit=10".
func (b *SelectBuilder) FromQueryString(qs string) *SelectBuilder {
	p, err := ql.ParseQueryString(qs)
	if err != nil {
		b.st.fail(err)
		return b
	}
	return b.ApplyParams(p)
}

// ApplyParams applies decoded query-string parameters.
func (b *SelectBuilder) ApplyParams(p *ql.Params) *SelectBuilder {
	b.Select(p.Select...)
	b.WhereConditions(p.Where...)
	b.search = append(b.search, p.Search...)
	b.GroupBy(p.GroupBy...)
	b.Order(p.OrderBy...)
	if p.OrderByRelevance != ql.RelevanceNone {
		b.relevance = p.OrderByRelevance
	}
	if p.Limit != nil {
		b.Limit(*p.Limit)
	}
	if p.Offset != nil {
		b.Offset(*p.Offset)
	}
	switch {
	case p.Page != nil && p.PerPage != nil:
		b.Page(*p.Page, *p.PerPage)
	case p.Page != nil && b.limit != nil:
		b.Page(*p.Page, *b.limit)
	case p.Page != nil:
		b.st.fail(fmt.Errorf("%w: page without perPage", ErrPagination))
	case p.PerPage != nil:
		b.Limit(*p.PerPage)
	}
	if p.Populate != nil {
		b.Populate(*p.Populate)
	}
	return b
}

// prepared is a validated select ready for compilation.
type prepared struct {
	col   *schema.Collection
	where []ql.Condition
}

// validate runs the callbacks and checks the builder against its collection.
func (b *SelectBuilder) validate(ctx context.Context) (*prepared, error) {
	col, err := b.begin(ctx)
	if err != nil {
		return nil, err
	}
	for _, names := range [][]string{b.columns, b.groupBy} {
		if err := checkFields(col, names); err != nil {
			return nil, err
		}
	}
	for _, t := range b.search {
		if err := checkFields(col, t.Fields); err != nil {
			return nil, err
		}
	}
	for _, o := range b.orderBy {
		if _, err := lookup(col, o.Field); err != nil {
			return nil, err
		}
	}
	w, err := where(col, b.st.where)
	if err != nil {
		return nil, err
	}
	return &prepared{col: col, where: w}, nil
}

// query returns the statement description of the builder for the
// conditions of q.
func (b *SelectBuilder) query(col *schema.Collection, q *Query) *sql.Query {
	return &sql.Query{
		Table:     col.TableIdent(),
		Where:     q.Where,
		Search:    b.search,
		Relevance: b.relevance,
		GroupBy:   b.groupBy,
		OrderBy:   b.orderBy,
		Limit:     b.limit,
		Offset:    b.offset,
		Raw:       b.st.raw,
	}
}

// rows runs a row select. limit overrides the builder limit when set.
func (b *SelectBuilder) rows(ctx context.Context, p *prepared, kind string, limit *int) (*cacheEntry, error) {
	d := b.st.client.storage.Dialect()
	q := b.st.newQuery(OpSelect, p.where)
	return b.st.exec(ctx, p.col, q, kind, func(q *Query) (sql.Statement, error) {
		sq := b.query(p.col, q)
		if limit != nil {
			sq.Limit = limit
		}
		return sql.SelectStatement(d, b.columns, sq)
	})
}

// count runs a count of the rows matched by the builder.
func (b *SelectBuilder) count(ctx context.Context, p *prepared) (int64, error) {
	d := b.st.client.storage.Dialect()
	q := b.st.newQuery(OpSelect, p.where)
	e, err := b.st.exec(ctx, p.col, q, "count", func(q *Query) (sql.Statement, error) {
		return sql.CountStatement(d, b.query(p.col, q))
	})
	if err != nil {
		return 0, err
	}
	v, err := scalar(e, "count")
	if err != nil {
		return 0, err
	}
	n, ok := field.ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("quill: unexpected count %v (%T)", v, v)
	}
	return int64(n), nil
}

// All returns the matched rows.
func (b *SelectBuilder) All(ctx context.Context) Result[[]Row, NoInputErrors] {
	p, err := b.validate(ctx)
	if err != nil {
		return failure[[]Row, NoInputErrors](b.st, OpSelect, err)
	}
	e, err := b.rows(ctx, p, "all", nil)
	if err != nil {
		return failure[[]Row, NoInputErrors](b.st, OpSelect, err)
	}
	return succeed[[]Row, NoInputErrors](rowsOrEmpty(e))
}

// First returns the first matched row, or nil when nothing matches.
func (b *SelectBuilder) First(ctx context.Context) Result[Row, NoInputErrors] {
	p, err := b.validate(ctx)
	if err != nil {
		return failure[Row, NoInputErrors](b.st, OpSelect, err)
	}
	one := 1
	e, err := b.rows(ctx, p, "first", &one)
	if err != nil {
		return failure[Row, NoInputErrors](b.st, OpSelect, err)
	}
	if len(e.Rows) == 0 {
		return succeed[Row, NoInputErrors](nil)
	}
	return succeed[Row, NoInputErrors](e.Rows[0])
}

// Count returns the number of matched rows, or of groups when grouped.
func (b *SelectBuilder) Count(ctx context.Context) Result[int64, NoInputErrors] {
	p, err := b.validate(ctx)
	if err != nil {
		return failure[int64, NoInputErrors](b.st, OpSelect, err)
	}
	n, err := b.count(ctx, p)
	if err != nil {
		return failure[int64, NoInputErrors](b.st, OpSelect, err)
	}
	return succeed[int64, NoInputErrors](n)
}

// aggregate runs fn over the named field, which must have one of types.
func (b *SelectBuilder) aggregate(ctx context.Context, fn sql.Aggregate, name string, types ...field.Type) (any, *field.Descriptor, error) {
	p, err := b.validate(ctx)
	if err != nil {
		return nil, nil, err
	}
	f, err := lookup(p.col, name)
	if err != nil {
		return nil, nil, err
	}
	if !slices.Contains(types, f.Type) {
		return nil, nil, NewValidationError(name, fmt.Errorf("%w %s for %s fields", ErrOperator, fn, f.Type))
	}
	d := b.st.client.storage.Dialect()
	q := b.st.newQuery(OpSelect, p.where)
	e, err := b.st.exec(ctx, p.col, q, string(fn), func(q *Query) (sql.Statement, error) {
		return sql.AggregateStatement(d, fn, name, b.query(p.col, q))
	})
	if err != nil {
		return nil, nil, err
	}
	v, err := scalar(e, "value")
	return v, f, err
}

// Min returns the smallest value of a number or string field, or nil
// when nothing matches.
func (b *SelectBuilder) Min(ctx context.Context, field string) Result[any, NoInputErrors] {
	return b.extreme(ctx, sql.Min, field)
}

// Max returns the largest value of a number or string field.
func (b *SelectBuilder) Max(ctx context.Context, field string) Result[any, NoInputErrors] {
	return b.extreme(ctx, sql.Max, field)
}

func (b *SelectBuilder) extreme(ctx context.Context, fn sql.Aggregate, name string) Result[any, NoInputErrors] {
	v, f, err := b.aggregate(ctx, fn, name, field.TypeNumber, field.TypeString)
	if err != nil {
		return failure[any, NoInputErrors](b.st, OpSelect, err)
	}
	if dv, err := f.Deserialize(v); err == nil {
		v = dv
	}
	return succeed[any, NoInputErrors](v)
}

// Sum returns the sum of a number field; zero when nothing matches.
func (b *SelectBuilder) Sum(ctx context.Context, field string) Result[float64, NoInputErrors] {
	return b.numeric(ctx, sql.Sum, field)
}

// Avg returns the average of a number field; zero when nothing matches.
func (b *SelectBuilder) Avg(ctx context.Context, field string) Result[float64, NoInputErrors] {
	return b.numeric(ctx, sql.Avg, field)
}

func (b *SelectBuilder) numeric(ctx context.Context, fn sql.Aggregate, name string) Result[float64, NoInputErrors] {
	v, _, err := b.aggregate(ctx, fn, name, field.TypeNumber)
	if err != nil {
		return failure[float64, NoInputErrors](b.st, OpSelect, err)
	}
	if v == nil {
		return succeed[float64, NoInputErrors](0)
	}
	n, isNum := field.ToFloat(v)
	if !isNum {
		return failure[float64, NoInputErrors](b.st, OpSelect, fmt.Errorf("quill: unexpected %s %v (%T)", fn, v, v))
	}
	return succeed[float64, NoInputErrors](n)
}

// Paginate returns the matched rows with the total count and the page
// position. Two statements are executed: the row select and a count
// with the same conditions.
func (b *SelectBuilder) Paginate(ctx context.Context) Result[Page, NoInputErrors] {
	p, err := b.validate(ctx)
	if err != nil {
		return failure[Page, NoInputErrors](b.st, OpSelect, err)
	}
	e, err := b.rows(ctx, p, "paginate", nil)
	if err != nil {
		return failure[Page, NoInputErrors](b.st, OpSelect, err)
	}
	total, err := b.count(ctx, p)
	if err != nil {
		return failure[Page, NoInputErrors](b.st, OpSelect, err)
	}
	rows := rowsOrEmpty(e)
	perPage := len(rows)
	if b.limit != nil {
		perPage = *b.limit
	}
	return succeed[Page, NoInputErrors](Page{
		Data:        rows,
		Total:       total,
		PerPage:     perPage,
		CurrentPage: currentPage(b.offset, perPage),
		LastPage:    lastPage(total, perPage),
	})
}

// currentPage is floor(offset/perPage)+1, or 1 without an offset.
func currentPage(offset *int, perPage int) int {
	if offset == nil || perPage <= 0 {
		return 1
	}
	return *offset/perPage + 1
}

// lastPage is ceil(total/perPage), or 0 when perPage is not positive.
func lastPage(total int64, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(perPage)))
}

// scalar returns the named column of the single row of e.
func scalar(e *cacheEntry, column string) (any, error) {
	if len(e.Rows) == 0 {
		return nil, errNoRows
	}
	return e.Rows[0][column], nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
