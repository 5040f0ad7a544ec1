package quill

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/syssam/quill/dialect/sql"
	"github.com/syssam/quill/pipeline"
	ql "github.com/syssam/quill/querylanguage"
	"github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

// newQuery returns the hook payload of one terminal call.
func (s *state) newQuery(op Op, where []ql.Condition) *Query {
	return &Query{
		Op:         op,
		Collection: s.collection,
		Language:   s.lang(),
		Context:    maps.Clone(s.context),
		Where:      where,
	}
}

// runner returns the field pipeline of col.
func (s *state) runner(col *schema.Collection) (*pipeline.Runner, error) {
	r := &pipeline.Runner{
		Fields:     col.Descriptors(),
		Filters:    s.client.filters,
		Translator: s.client.translator,
		Language:   s.lang(),
	}
	for _, f := range r.Fields {
		if f.Conditional == "" {
			continue
		}
		resolver, err := s.client.resolver()
		if err != nil {
			return nil, fmt.Errorf("quill: conditional resolver: %w", err)
		}
		r.Resolver = resolver
		break
	}
	return r, nil
}

// message returns the runtime error text reported for err. Storage
// failures are replaced by a generic message unless verbose.
func (s *state) message(err error) string {
	if IsStorageError(err) && !s.isVerbose() {
		return s.translate(field.MsgUnexpected)
	}
	return err.Error()
}

// failure converts err into a failed result.
func failure[T, E any](s *state, op Op, err error) Result[T, E] {
	msg := s.message(err)
	return runtimeFailure[T, E](msg, &QueryError{Collection: s.collection, Op: op, Message: msg, Err: err})
}

// storageError wraps an error returned by the storage backend.
func storageError(err error) error {
	if sql.IsConstraintError(err) {
		err = NewConstraintError(err.Error(), err)
	}
	return &StorageError{Err: err}
}

// compiler builds the statement of q once the before-preparation hooks
// have run.
type compiler func(q *Query) (sql.Statement, error)

// exec runs the hook chain around the execution of one statement. kind
// names the cache entry; selects with an empty kind and mutations are
// not cached. After-execution hooks run however exec returns.
func (s *state) exec(ctx context.Context, col *schema.Collection, q *Query, kind string, compile compiler) (entry *cacheEntry, err error) {
	c := s.client
	defer func() {
		q.Err = err
		if entry != nil {
			q.Rows, q.RowsAffected = entry.Rows, entry.RowsAffected
		}
		if herr := c.hooks.runAll(ctx, AfterQueryExecution, q); herr != nil {
			c.logger.WarnContext(ctx, "quill: after execution hook failed",
				"collection", q.Collection, "op", q.Op, "error", herr)
		}
	}()
	if err := c.hooks.run(ctx, BeforeQueryPreparation, q); err != nil {
		return nil, err
	}
	st, err := compile(q)
	if err != nil {
		return nil, err
	}
	q.Statement = &st
	if err := c.hooks.run(ctx, BeforeQueryExecution, q); err != nil {
		return nil, err
	}
	if kind == "" || !s.useCache || c.cache == nil {
		return s.fetch(ctx, col, q)
	}
	key, err := NewCacheKey(q.Collection, kind, c.storage.Dialect(), *q.Statement, s.populate)
	if err != nil {
		c.logger.WarnContext(ctx, "quill: cache key", "collection", q.Collection, "error", err)
		return s.fetch(ctx, col, q)
	}
	k := key.String()
	if e := s.cached(ctx, k); e != nil {
		q.Cached = true
		return e, nil
	}
	v, err, _ := c.flight.Do(k, func() (any, error) {
		e, err := s.fetch(ctx, col, q)
		if err != nil {
			return nil, err
		}
		s.store(ctx, k, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cacheEntry).copy(), nil
}

// fetch executes the statement of q and prepares the returned rows.
func (s *state) fetch(ctx context.Context, col *schema.Collection, q *Query) (*cacheEntry, error) {
	c := s.client
	res, err := c.storage.ExecWithDuration(NewQueryContext(ctx, q), *q.Statement)
	if err != nil {
		c.logger.ErrorContext(ctx, "quill: query failed",
			"collection", q.Collection, "op", q.Op, "query", q.Statement.Query, "error", err)
		return nil, storageError(err)
	}
	q.Duration = res.Duration
	c.logger.DebugContext(ctx, "quill: query executed",
		"collection", q.Collection, "op", q.Op, "query", q.Statement.Query,
		"duration", res.Duration, "rows", len(res.Rows))
	rows := make([]Row, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = deserialize(col, r)
	}
	if s.populate && len(rows) > 0 {
		r, err := s.runner(col)
		if err != nil {
			return nil, err
		}
		if err := r.Populate(ctx, rows); err != nil {
			return nil, fmt.Errorf("quill: %w", err)
		}
	}
	return &cacheEntry{Rows: rows, RowsAffected: res.RowsAffected}, nil
}

// cached returns the entry stored under key. Cache failures are logged
// and read as misses.
func (s *state) cached(ctx context.Context, key string) *cacheEntry {
	c := s.client
	b, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "quill: cache get", "key", key, "error", err)
		return nil
	}
	if b == nil {
		return nil
	}
	e, err := decodeEntry(b)
	if err != nil {
		c.logger.WarnContext(ctx, "quill: cache decode", "key", key, "error", err)
		return nil
	}
	c.logger.DebugContext(ctx, "quill: cache hit", "key", key)
	return e
}

func (s *state) store(ctx context.Context, key string, e *cacheEntry) {
	c := s.client
	b, err := encodeEntry(e)
	if err == nil {
		err = c.cache.Set(ctx, key, b, c.ttl)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "quill: cache set", "key", key, "error", err)
	}
}

// invalidate drops the cached selects of the collection after a write.
func (s *state) invalidate(ctx context.Context) {
	c := s.client
	if c.cache == nil {
		return
	}
	if err := c.cache.DeletePrefix(ctx, CachePrefix(s.collection)); err != nil {
		c.logger.WarnContext(ctx, "quill: cache invalidation", "collection", s.collection, "error", err)
	}
}

// copy returns an entry whose rows can be modified independently.
func (e *cacheEntry) copy() *cacheEntry {
	rows := make([]Row, len(e.Rows))
	for i, r := range e.Rows {
		rows[i] = maps.Clone(r)
	}
	return &cacheEntry{Rows: rows, RowsAffected: e.RowsAffected}
}

// deserialize converts the stored columns of row that are fields of
// col. A value that fails to deserialize falls back to the field
// default.
func deserialize(col *schema.Collection, row map[string]any) Row {
	out := make(Row, len(row))
	for k, v := range row {
		f, ok := col.Field(k)
		if !ok {
			out[k] = v
			continue
		}
		dv, err := f.Deserialize(v)
		if err != nil {
			dv = f.DefaultValue()
		}
		out[k] = dv
	}
	return out
}

// serialize converts the values of item to their storage form.
func serialize(f *field.Descriptor, v any) (any, error) {
	sv, err := f.Serialize(v)
	if err != nil {
		return nil, NewValidationError(f.Name, err)
	}
	return sv, nil
}

// rowsOrEmpty returns rows, or an empty slice for nil.
func rowsOrEmpty(e *cacheEntry) []Row {
	if e == nil || e.Rows == nil {
		return []Row{}
	}
	return e.Rows
}

var errNoRows = errors.New("quill: statement returned no rows")
