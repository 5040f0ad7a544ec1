package sql

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/quill/dialect"
	ql "github.com/syssam/quill/querylanguage"
)

// ErrReturningUnsupported is returned when returning fields are requested
// from a dialect without a RETURNING clause.
var ErrReturningUnsupported = errors.New("dialect/sql: returning is not supported by this dialect")

// ErrRawPosition is returned when a raw fragment targets a clause the
// statement does not have.
var ErrRawPosition = errors.New("dialect/sql: raw position is not supported by this statement")

// RawPosition is a clause position where raw SQL may be injected.
type RawPosition uint8

// Raw injection positions, in clause order.
const (
	RawBeforeWhere RawPosition = iota
	RawAfterWhere
	RawAfterGroupBy
	RawAfterOrderBy
	RawEnd
)

// String implements fmt.Stringer.
func (p RawPosition) String() string {
	switch p {
	case RawBeforeWhere:
		return "beforeWhere"
	case RawAfterWhere:
		return "afterWhere"
	case RawAfterGroupBy:
		return "afterGroupBy"
	case RawAfterOrderBy:
		return "afterOrderBy"
	case RawEnd:
		return "end"
	}
	return "RawPosition(" + strconv.Itoa(int(p)) + ")"
}

// Query describes the shared parts of every statement.
type Query struct {
	Table     string
	Where     []ql.Condition
	Search    []ql.SearchTerm
	Relevance ql.Relevance
	GroupBy   []string
	OrderBy   []ql.Order
	Limit     *int
	Offset    *int
	Raw       map[RawPosition][]Fragment
}

// Aggregate is an aggregate function.
type Aggregate string

// Aggregate functions.
const (
	Min Aggregate = "min"
	Max Aggregate = "max"
	Sum Aggregate = "sum"
	Avg Aggregate = "avg"
)

// stmt accumulates one statement.
type stmt struct {
	*compiler
	b strings.Builder
	q *Query
}

func newStmt(d string, q *Query) *stmt {
	if q == nil {
		q = &Query{}
	}
	return &stmt{compiler: newCompiler(d, 0), q: q}
}

// accept fails the statement when a raw fragment targets a position
// outside positions.
func (s *stmt) accept(kind string, positions ...RawPosition) {
	for pos := RawBeforeWhere; pos <= RawEnd; pos++ {
		if slices.Contains(positions, pos) {
			continue
		}
		for _, f := range s.q.Raw[pos] {
			if f.SQL != "" && s.err == nil {
				s.err = fmt.Errorf("%w: %s in %s", ErrRawPosition, pos, kind)
			}
		}
	}
}

// scoped returns a copy of q keeping only the raw fragments at positions.
// Statements derived from a select, like counts, drop the clauses they do
// not emit.
func scoped(q *Query, positions ...RawPosition) *Query {
	if q == nil {
		return nil
	}
	c := *q
	c.Raw = make(map[RawPosition][]Fragment, len(positions))
	for _, pos := range positions {
		if frags, ok := q.Raw[pos]; ok {
			c.Raw[pos] = frags
		}
	}
	return &c
}

func (s *stmt) inject(pos RawPosition) {
	for _, f := range s.q.Raw[pos] {
		if f.SQL == "" {
			continue
		}
		s.merge(f.Params)
		s.b.WriteByte(' ')
		s.b.WriteString(f.SQL)
	}
}

func (s *stmt) where() {
	s.inject(RawBeforeWhere)
	var parts []string
	if w := s.and(s.q.Where); w != "" {
		parts = append(parts, w)
	}
	parts = append(parts, s.search(s.q.Search)...)
	if len(parts) > 0 {
		s.b.WriteString(" where ")
		s.b.WriteString(strings.Join(parts, " and "))
	}
	s.inject(RawAfterWhere)
}

func (s *stmt) groupBy() {
	if len(s.q.GroupBy) > 0 {
		s.b.WriteString(" group by ")
		s.b.WriteString(s.columns(s.q.GroupBy))
	}
	s.inject(RawAfterGroupBy)
}

func (s *stmt) orderBy() {
	var keys []string
	if s.q.Relevance != ql.RelevanceNone {
		if rel := s.relevance(s.q.Search); rel != "" {
			dir := " desc"
			if s.q.Relevance == ql.RelevanceLow {
				dir = " asc"
			}
			keys = append(keys, rel+dir)
		}
	}
	for _, o := range s.q.OrderBy {
		col := s.quote(o.Field)
		dir := ""
		if o.Desc {
			dir = " desc"
		}
		switch {
		case o.Nulls == ql.NullsDefault:
			keys = append(keys, col+dir)
		case dialect.SupportsNullsOrder(s.dialect):
			nulls := " nulls first"
			if o.Nulls == ql.NullsLast {
				nulls = " nulls last"
			}
			keys = append(keys, col+dir+nulls)
		default:
			// is null sorts 0 before 1, so nulls come last ascending.
			nullKey := col + " is null"
			if o.Nulls == ql.NullsFirst {
				nullKey += " desc"
			}
			keys = append(keys, nullKey, col+dir)
		}
	}
	if len(keys) > 0 {
		s.b.WriteString(" order by ")
		s.b.WriteString(strings.Join(keys, ", "))
	}
	s.inject(RawAfterOrderBy)
}

func (s *stmt) limitOffset() {
	switch {
	case s.q.Limit != nil:
		s.b.WriteString(" limit " + strconv.Itoa(*s.q.Limit))
		if s.q.Offset != nil {
			s.b.WriteString(" offset " + strconv.Itoa(*s.q.Offset))
		}
	case s.q.Offset != nil:
		if dialect.OffsetRequiresLimit(s.dialect) {
			s.b.WriteString(" limit " + dialect.NoLimit(s.dialect))
		}
		s.b.WriteString(" offset " + strconv.Itoa(*s.q.Offset))
	}
}

func (s *stmt) returning(fields []string, all bool) {
	switch {
	case all:
		s.b.WriteString(" returning *")
	case len(fields) > 0:
		s.b.WriteString(" returning ")
		s.b.WriteString(s.columns(fields))
	}
}

func (s *stmt) columns(fields []string) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = s.quote(f)
	}
	return strings.Join(cols, ", ")
}

func (s *stmt) done(returns bool) (Statement, error) {
	s.inject(RawEnd)
	if s.err != nil {
		return Statement{}, s.err
	}
	return Statement{Query: s.b.String(), Params: s.params, Returns: returns}, nil
}

// SelectStatement compiles a row query. Empty columns select every column.
func SelectStatement(d string, columns []string, q *Query) (Statement, error) {
	s := newStmt(d, q)
	s.b.WriteString("select ")
	if len(columns) == 0 {
		s.b.WriteString("*")
	} else {
		s.b.WriteString(s.columns(columns))
	}
	s.b.WriteString(" from ")
	s.b.WriteString(s.quote(s.q.Table))
	s.where()
	s.groupBy()
	s.orderBy()
	s.limitOffset()
	return s.done(true)
}

// CountStatement compiles a count of the rows matched by q. Ordering,
// limit, offset and the raw fragments after group by are ignored; a
// grouped query counts its groups.
func CountStatement(d string, q *Query) (Statement, error) {
	s := newStmt(d, scoped(q, RawBeforeWhere, RawAfterWhere, RawAfterGroupBy))
	if len(s.q.GroupBy) == 0 {
		s.b.WriteString("select count(*) as " + s.quote("count") + " from " + s.quote(s.q.Table))
		s.where()
		s.groupBy()
		return s.done(true)
	}
	s.b.WriteString("select count(*) as " + s.quote("count") + " from (select 1 from " + s.quote(s.q.Table))
	s.where()
	s.groupBy()
	s.b.WriteString(") as " + s.quote("grouped"))
	return s.done(true)
}

// AggregateStatement compiles fn over field for the rows matched by q.
// The result column is named value. Only the raw fragments around the
// where clause are kept.
func AggregateStatement(d string, fn Aggregate, field string, q *Query) (Statement, error) {
	s := newStmt(d, scoped(q, RawBeforeWhere, RawAfterWhere))
	switch fn {
	case Min, Max, Sum, Avg:
	default:
		s.fail("unknown aggregate %q", fn)
	}
	s.b.WriteString("select " + string(fn) + "(" + s.quote(field) + ") as " + s.quote("value") + " from " + s.quote(s.q.Table))
	s.where()
	return s.done(true)
}

// InsertStatement compiles a multi-row insert. rows[i][j] is the value of
// columns[j] for row i; a DefaultValue cell renders as the default keyword.
// Raw fragments are only accepted at RawEnd.
func InsertStatement(d string, table string, columns []string, rows [][]any, returning []string, returningAll bool, raw map[RawPosition][]Fragment) (Statement, error) {
	s := newStmt(d, &Query{Table: table, Raw: raw})
	if (returningAll || len(returning) > 0) && !dialect.SupportsReturning(d) {
		return Statement{}, ErrReturningUnsupported
	}
	if len(rows) == 0 {
		return Statement{}, errors.New("dialect/sql: insert without rows")
	}
	s.accept("insert", RawEnd)
	s.b.WriteString("insert into " + s.quote(table))
	if len(columns) == 0 {
		if len(rows) > 1 {
			return Statement{}, errors.New("dialect/sql: multi-row insert without columns")
		}
		s.b.WriteString(" default values")
	} else {
		s.b.WriteString(" (" + s.columns(columns) + ") values ")
		for i, row := range rows {
			if len(row) != len(columns) {
				return Statement{}, errors.New("dialect/sql: insert row width does not match columns")
			}
			if i > 0 {
				s.b.WriteString(", ")
			}
			refs := make([]string, len(row))
			for j, v := range row {
				if _, ok := v.(defaultValue); ok {
					if !dialect.SupportsDefaultKeyword(d) {
						return Statement{}, fmt.Errorf("dialect/sql: %s has no default keyword in values", d)
					}
					refs[j] = "default"
					continue
				}
				refs[j] = s.param(v)
			}
			s.b.WriteString("(" + strings.Join(refs, ", ") + ")")
		}
	}
	s.returning(returning, returningAll)
	return s.done(returningAll || len(returning) > 0)
}

type defaultValue struct{}

// DefaultValue is an insert cell filled by the column's database default.
var DefaultValue any = defaultValue{}

// Assignment is one column of an update's set list.
type Assignment struct {
	Column string
	Value  any
}

// UpdateStatement compiles an update of the rows matched by q.
func UpdateStatement(d string, set []Assignment, q *Query, returning []string, returningAll bool) (Statement, error) {
	if (returningAll || len(returning) > 0) && !dialect.SupportsReturning(d) {
		return Statement{}, ErrReturningUnsupported
	}
	if len(set) == 0 {
		return Statement{}, errors.New("dialect/sql: update without values")
	}
	s := newStmt(d, q)
	s.accept("update", RawBeforeWhere, RawAfterWhere, RawEnd)
	s.b.WriteString("update " + s.quote(s.q.Table) + " set ")
	for i, a := range set {
		if i > 0 {
			s.b.WriteString(", ")
		}
		s.b.WriteString(s.quote(a.Column) + " = " + s.param(a.Value))
	}
	s.where()
	s.returning(returning, returningAll)
	return s.done(returningAll || len(returning) > 0)
}

// DeleteStatement compiles a delete of the rows matched by q.
func DeleteStatement(d string, q *Query, returning []string, returningAll bool) (Statement, error) {
	if (returningAll || len(returning) > 0) && !dialect.SupportsReturning(d) {
		return Statement{}, ErrReturningUnsupported
	}
	s := newStmt(d, q)
	s.accept("delete", RawBeforeWhere, RawAfterWhere, RawEnd)
	s.b.WriteString("delete from " + s.quote(s.q.Table))
	s.where()
	s.returning(returning, returningAll)
	return s.done(returningAll || len(returning) > 0)
}
