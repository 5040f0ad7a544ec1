package quill

import (
	"context"
	"maps"
	"slices"

	"github.com/syssam/quill/dialect/sql"
	ql "github.com/syssam/quill/querylanguage"
	"github.com/syssam/quill/schema"
)

// state is the part of a builder shared by every operation.
type state struct {
	client       *Client
	collection   string
	language     string
	verbose      *bool
	context      map[string]any
	where        []ql.Condition
	raw          map[sql.RawPosition][]sql.Fragment
	returning    []string
	returningAll bool
	populate     bool
	useCache     bool
	// err is the first error raised by a setter. It is reported by the
	// terminal call.
	err error
}

func (s *state) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *state) clone() *state {
	c := *s
	c.context = maps.Clone(s.context)
	c.where = ql.Clone(s.where)
	c.returning = slices.Clone(s.returning)
	if s.raw != nil {
		c.raw = make(map[sql.RawPosition][]sql.Fragment, len(s.raw))
		for pos, frags := range s.raw {
			cf := make([]sql.Fragment, len(frags))
			for i, f := range frags {
				cf[i] = sql.Fragment{SQL: f.SQL, Params: maps.Clone(f.Params)}
			}
			c.raw[pos] = cf
		}
	}
	if s.verbose != nil {
		v := *s.verbose
		c.verbose = &v
	}
	return &c
}

func (s *state) lang() string {
	if s.language != "" {
		return s.language
	}
	return s.client.language
}

func (s *state) isVerbose() bool {
	if s.verbose != nil {
		return *s.verbose
	}
	return s.client.verbose
}

func (s *state) translate(key string, args ...any) string {
	return s.client.translator.Translate(s.lang(), key, args...)
}

// base holds the setters shared by every builder. B is the concrete
// builder returned for chaining.
type base[B any] struct {
	st      *state
	self    B
	prepare []func(context.Context, B) error
}

func (b *base[B]) init(c *Client, collection string, self B) {
	b.st = &state{client: c, collection: collection, useCache: c.cache != nil}
	b.self = self
}

func (b base[B]) clone(self B) base[B] {
	return base[B]{st: b.st.clone(), self: self, prepare: slices.Clone(b.prepare)}
}

// Collection returns the target collection name.
func (b *base[B]) Collection() string {
	return b.st.collection
}

// Err returns the first error raised by a setter.
func (b *base[B]) Err() error {
	return b.st.err
}

// Language sets the language of error messages.
func (b *base[B]) Language(lang string) B {
	b.st.language = lang
	return b.self
}

// Verbose makes storage failures report the underlying error.
func (b *base[B]) Verbose(v bool) B {
	b.st.verbose = &v
	return b.self
}

// Context adds values passed to hooks in Query.Context.
func (b *base[B]) Context(values map[string]any) B {
	if b.st.context == nil {
		b.st.context = make(map[string]any, len(values))
	}
	maps.Copy(b.st.context, values)
	return b.self
}

// Prepare registers a callback run before validation. Callbacks run in
// registration order and may modify the builder; an error aborts the
// query.
func (b *base[B]) Prepare(fn func(context.Context, B) error) B {
	b.prepare = append(b.prepare, fn)
	return b.self
}

// Populate enables the field populators on returned rows.
func (b *base[B]) Populate(on bool) B {
	b.st.populate = on
	return b.self
}

// UseCache enables or disables the result cache for this builder.
// Caching is on by default when the client has a cache.
func (b *base[B]) UseCache(on bool) B {
	b.st.useCache = on && b.st.client.cache != nil
	return b.self
}

// Raw injects a SQL fragment at pos. Params are referenced from text as
// $name.
//
//	b.Raw(sql.RawEnd, "for update", nil)
func (b *base[B]) Raw(pos sql.RawPosition, text string, params map[string]any) B {
	if b.st.raw == nil {
		b.st.raw = make(map[sql.RawPosition][]sql.Fragment)
	}
	b.st.raw[pos] = append(b.st.raw[pos], sql.Fragment{SQL: text, Params: params})
	return b.self
}

// begin runs the preparation callbacks and resolves the collection.
func (b *base[B]) begin(ctx context.Context) (*schema.Collection, error) {
	for _, fn := range b.prepare {
		if err := fn(ctx, b.self); err != nil {
			return nil, err
		}
	}
	if b.st.err != nil {
		return nil, b.st.err
	}
	col, ok := b.st.client.registry.Collection(b.st.collection)
	if !ok {
		return nil, NewNotFoundError(b.st.collection)
	}
	return col, nil
}

// whereBase adds the condition setters.
type whereBase[B any] struct {
	base[B]
}

func (b whereBase[B]) clone(self B) whereBase[B] {
	return whereBase[B]{base: b.base.clone(self)}
}

// Where adds a field condition, AND-combined with the others.
//
//	b.Where("points", ">=", 50)
//	b.Where("house", ql.OpIn, []string{"Gryffindor", "Slytherin"})
func (b *whereBase[B]) Where(field string, op ql.Op, value any) B {
	b.st.where = append(b.st.where, ql.Where(field, op, value))
	return b.self
}

// WhereRaw adds a raw SQL condition. Params are referenced as $name.
func (b *whereBase[B]) WhereRaw(sql string, params map[string]any) B {
	b.st.where = append(b.st.where, ql.Raw(sql, params))
	return b.self
}

// OrGroup adds a group matching when any branch matches. Each function
// fills one branch; conditions within a branch are AND-combined.
//
//	b.Where("firstName", "=", "Harry").OrGroup(
//	    func(br *quill.Branch) { br.Where("lastName", "=", "Potter") },
//	    func(br *quill.Branch) { br.Where("lastName", "=", "Weasley") },
//	)
func (b *whereBase[B]) OrGroup(branches ...func(*Branch)) B {
	if g := orGroup(branches); len(g.Branches) > 0 {
		b.st.where = append(b.st.where, g)
	}
	return b.self
}

// WhereConditions adds parsed conditions.
func (b *whereBase[B]) WhereConditions(conds ...ql.Condition) B {
	b.st.where = append(b.st.where, conds...)
	return b.self
}

// WhereString parses s with the condition grammar and adds the result.
//
//	b.WhereString("age[>][20],orGroup[house[=][Gryffindor],house[=][Ravenclaw]]")
func (b *whereBase[B]) WhereString(s string) B {
	conds, err := ql.Parse(s)
	if err != nil {
		b.st.fail(err)
		return b.self
	}
	return b.WhereConditions(conds...)
}

// Conditions returns a copy of the where tree.
func (b *whereBase[B]) Conditions() []ql.Condition {
	return ql.Clone(b.st.where)
}

// Branch collects the conditions of one OrGroup branch.
type Branch struct {
	conds []ql.Condition
}

// Where adds a field condition to the branch.
func (br *Branch) Where(field string, op ql.Op, value any) *Branch {
	br.conds = append(br.conds, ql.Where(field, op, value))
	return br
}

// WhereRaw adds a raw SQL condition to the branch.
func (br *Branch) WhereRaw(sql string, params map[string]any) *Branch {
	br.conds = append(br.conds, ql.Raw(sql, params))
	return br
}

// OrGroup nests a group in the branch.
func (br *Branch) OrGroup(branches ...func(*Branch)) *Branch {
	if g := orGroup(branches); len(g.Branches) > 0 {
		br.conds = append(br.conds, g)
	}
	return br
}

func orGroup(fns []func(*Branch)) *ql.OrGroup {
	branches := make([][]ql.Condition, 0, len(fns))
	for _, fn := range fns {
		br := &Branch{}
		fn(br)
		branches = append(branches, br.conds)
	}
	return ql.Or(branches...)
}
