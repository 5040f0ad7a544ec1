package quill

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/quill/dialect/sql"
	ql "github.com/syssam/quill/querylanguage"
)

// Op represents the operation of a query. An Op can be a combination of
// multiple operations when used as a hook filter.
type Op uint

// Operations.
const (
	OpSelect Op = 1 << iota
	OpInsert
	OpUpdate
	OpDelete

	// OpMutation matches every write.
	OpMutation = OpInsert | OpUpdate | OpDelete
	// OpAll matches every operation.
	OpAll = OpSelect | OpMutation
)

var opNames = []string{"OpSelect", "OpInsert", "OpUpdate", "OpDelete"}

// Is reports whether i includes any of the operations in o.
func (i Op) Is(o Op) bool { return i&o != 0 }

// String returns the operation name. Combined operations are joined
// with '|'.
func (i Op) String() string {
	var names []string
	for j, name := range opNames {
		if i&(1<<j) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 || i>>len(opNames) != 0 {
		return "Op(" + strconv.FormatUint(uint64(i), 10) + ")"
	}
	return strings.Join(names, "|")
}

// Query is the state of one terminal call, shared with hooks. Hooks
// that run before execution may replace Where, Values or Statement;
// conditions added by hooks are compiled without field validation.
type Query struct {
	Op         Op
	Collection string
	Language   string
	// Context holds the values set with the builder's Context method.
	Context map[string]any
	Where   []ql.Condition
	// Values holds the insert items, or the single update item, after the
	// field pipeline.
	Values []Row
	// Statement is set once the query is compiled.
	Statement *sql.Statement
	// Set after execution.
	Rows         []Row
	RowsAffected int64
	Duration     time.Duration
	Cached       bool
	Err          error
}

// Value returns the context value stored under key.
func (q *Query) Value(key string) (any, bool) {
	v, ok := q.Context[key]
	return v, ok
}

// queryCtxKey is the context key for the running query.
type queryCtxKey struct{}

// NewQueryContext returns a new context with the given Query attached.
func NewQueryContext(parent context.Context, q *Query) context.Context {
	return context.WithValue(parent, queryCtxKey{}, q)
}

// QueryFromContext returns the Query value stored in ctx, if any.
func QueryFromContext(ctx context.Context) *Query {
	q, _ := ctx.Value(queryCtxKey{}).(*Query)
	return q
}
