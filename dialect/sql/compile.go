package sql

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/syssam/quill/dialect"
	ql "github.com/syssam/quill/querylanguage"
)

// Fragment is a compiled SQL fragment with its named parameters.
type Fragment struct {
	SQL    string
	Params map[string]any
}

// CompileConditions compiles a where tree for dialect d. Generated
// parameters are named p<index>, p<index+1>, ... and the next free index
// is returned so that later clauses keep names unique.
func CompileConditions(d string, conds []ql.Condition, index int) (Fragment, int, error) {
	c := newCompiler(d, index)
	s := c.and(conds)
	if c.err != nil {
		return Fragment{}, index, c.err
	}
	return Fragment{SQL: s, Params: c.params}, c.index, nil
}

// CompileSearch compiles search terms into a where fragment. Fields of a
// term are OR-ed; keywords and terms are AND-ed.
func CompileSearch(d string, terms []ql.SearchTerm, index int) (Fragment, int, error) {
	c := newCompiler(d, index)
	s := strings.Join(c.search(terms), " and ")
	if c.err != nil {
		return Fragment{}, index, c.err
	}
	return Fragment{SQL: s, Params: c.params}, c.index, nil
}

// CompileRelevance compiles a relevance score for search terms. Each
// keyword/field pair scores 3 on an exact match, 2 on a prefix match and 1
// when it is contained.
func CompileRelevance(d string, terms []ql.SearchTerm, index int) (Fragment, int, error) {
	c := newCompiler(d, index)
	s := c.relevance(terms)
	if c.err != nil {
		return Fragment{}, index, c.err
	}
	return Fragment{SQL: s, Params: c.params}, c.index, nil
}

type compiler struct {
	dialect string
	index   int
	params  map[string]any
	raw     map[string]struct{}
	err     error
}

func newCompiler(d string, index int) *compiler {
	return &compiler{dialect: d, index: index, params: make(map[string]any)}
}

func (c *compiler) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf("dialect/sql: "+format, args...)
	}
}

func (c *compiler) quote(ident string) string { return dialect.Quote(c.dialect, ident) }

func (c *compiler) escapeChar() string {
	if c.dialect == dialect.MySQL {
		return `'\\'`
	}
	return `'\'`
}

// param registers v under the next generated name and returns its
// reference. Booleans are stored as 1/0.
func (c *compiler) param(v any) string {
	name := "p" + strconv.Itoa(c.index)
	c.index++
	if _, ok := c.raw[name]; ok {
		c.fail("raw parameter %q collides with a generated parameter", name)
	}
	if b, ok := v.(bool); ok {
		v = 0
		if b {
			v = 1
		}
	}
	c.params[name] = v
	return "$" + name
}

// merge adds the declared parameters of a raw fragment.
func (c *compiler) merge(params map[string]any) {
	if c.raw == nil {
		c.raw = make(map[string]struct{}, len(params))
	}
	for k, v := range params {
		if prev, ok := c.params[k]; ok {
			if _, isRaw := c.raw[k]; !isRaw || !reflect.DeepEqual(prev, v) {
				c.fail("raw parameter %q collides with another parameter", k)
				continue
			}
		}
		c.raw[k] = struct{}{}
		c.params[k] = v
	}
}

// search returns one predicate per keyword. A keyword shares a single
// parameter across the fields it is matched against.
func (c *compiler) search(terms []ql.SearchTerm) []string {
	var parts []string
	for _, t := range terms {
		for _, kw := range t.Keywords {
			p := c.param("%" + likeEscape(strings.ToLower(kw)) + "%")
			ors := make([]string, len(t.Fields))
			for i, f := range t.Fields {
				ors[i] = "lower(" + c.quote(f) + ") like " + p + " escape " + c.escapeChar()
			}
			parts = append(parts, paren(ors, " or "))
		}
	}
	return parts
}

func (c *compiler) relevance(terms []ql.SearchTerm) string {
	var scores []string
	for _, t := range terms {
		for _, kw := range t.Keywords {
			kw = strings.ToLower(kw)
			exact := c.param(kw)
			prefix := c.param(likeEscape(kw) + "%")
			contains := c.param("%" + likeEscape(kw) + "%")
			for _, f := range t.Fields {
				col := "lower(" + c.quote(f) + ")"
				scores = append(scores, fmt.Sprintf(
					"case when %s = %s then 3 when %s like %s escape %s then 2 when %s like %s escape %s then 1 else 0 end",
					col, exact, col, prefix, c.escapeChar(), col, contains, c.escapeChar(),
				))
			}
		}
	}
	if len(scores) == 0 {
		return ""
	}
	return "(" + strings.Join(scores, " + ") + ")"
}

func (c *compiler) and(conds []ql.Condition) string {
	parts := make([]string, 0, len(conds))
	for _, cond := range conds {
		if s := c.condition(cond); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " and ")
}

func (c *compiler) condition(cond ql.Condition) string {
	switch cond := cond.(type) {
	case *ql.FieldCondition:
		return c.field(cond)
	case *ql.RawCondition:
		c.merge(cond.Params)
		return cond.SQL
	case *ql.OrGroup:
		var branches []string
		for _, br := range cond.Branches {
			s := c.and(br)
			if s == "" {
				continue
			}
			if len(br) > 1 {
				s = "(" + s + ")"
			}
			branches = append(branches, s)
		}
		return paren(branches, " or ")
	default:
		c.fail("unexpected condition %T", cond)
		return ""
	}
}

func (c *compiler) field(f *ql.FieldCondition) string {
	col := c.quote(f.Field)
	if f.Value == nil {
		switch f.Op {
		case ql.OpEQ:
			return col + " is null"
		case ql.OpNEQ:
			return col + " is not null"
		}
		c.fail("operator %s on %q does not accept null", f.Op, f.Field)
		return ""
	}
	switch f.Op {
	case ql.OpEQ, ql.OpNEQ, ql.OpLT, ql.OpLTE, ql.OpGT, ql.OpGTE:
		return col + " " + string(f.Op) + " " + c.param(f.Value)
	case ql.OpIn, ql.OpNotIn:
		list := toList(f.Value)
		if len(list) == 0 {
			if f.Op == ql.OpIn {
				return "1 = 0"
			}
			return "1 = 1"
		}
		refs := make([]string, len(list))
		for i, v := range list {
			refs[i] = c.param(v)
		}
		kw := " in ("
		if f.Op == ql.OpNotIn {
			kw = " not in ("
		}
		return col + kw + strings.Join(refs, ", ") + ")"
	case ql.OpLike:
		return col + " like " + c.param(f.Value)
	case ql.OpNotLike:
		return col + " not like " + c.param(f.Value)
	case ql.OpILike, ql.OpNotILike:
		not := ""
		if f.Op == ql.OpNotILike {
			not = "not "
		}
		if dialect.SupportsILike(c.dialect) {
			return col + " " + not + "ilike " + c.param(f.Value)
		}
		return "lower(" + col + ") " + not + "like lower(" + c.param(f.Value) + ")"
	case ql.OpBetween, ql.OpNotBetween:
		pair := toList(f.Value)
		if len(pair) != 2 {
			c.fail("operator %s on %q requires two values", f.Op, f.Field)
			return ""
		}
		kw := " between "
		if f.Op == ql.OpNotBetween {
			kw = " not between "
		}
		return col + kw + c.param(pair[0]) + " and " + c.param(pair[1])
	case ql.OpIncludes, ql.OpIncludesAny, ql.OpExcludes, ql.OpExcludesAny:
		return c.array(col, f.Op, toList(f.Value))
	default:
		c.fail("unknown operator %q", f.Op)
		return ""
	}
}

// array tests membership in a JSON-array-encoded column with LIKE.
func (c *compiler) array(col string, op ql.Op, values []any) string {
	neg := op == ql.OpExcludes || op == ql.OpExcludesAny
	all := op == ql.OpIncludes || op == ql.OpExcludes
	if len(values) == 0 {
		if all {
			return "1 = 1"
		}
		return "1 = 0"
	}
	tests := make([]string, len(values))
	for i, v := range values {
		tests[i] = c.element(col, v, neg)
	}
	if all {
		return paren(tests, " and ")
	}
	return paren(tests, " or ")
}

// element matches one array element. Strings are matched with their JSON
// quotes; other scalars are bounded by the array delimiters. A string that
// reads as a number or boolean, as every grammar value does, is matched
// both ways.
func (c *compiler) element(col string, v any, neg bool) string {
	like, join := " like ", " or "
	if neg {
		like, join = " not like ", " and "
	}
	var tests []string
	tok, scalar := scalarToken(v), true
	if s, ok := v.(string); ok {
		enc, _ := json.Marshal(s)
		tests = append(tests, col+like+c.param("%"+likeEscape(string(enc))+"%")+" escape "+c.escapeChar())
		tok, scalar = scalarString(s)
		if !scalar {
			return tests[0]
		}
	}
	tests = append(tests,
		col+like+c.param("["+tok+"]"),
		col+like+c.param("["+tok+",%"),
		col+like+c.param("%,"+tok+",%"),
		col+like+c.param("%,"+tok+"]"),
	)
	return paren(tests, join)
}

// scalarString returns the JSON token of a string holding a number or a
// boolean.
func scalarString(s string) (string, bool) {
	switch s {
	case "true", "false":
		return s, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

func scalarToken(v any) string {
	switch v := v.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// toList converts list-shaped values into []any.
func toList(v any) []any {
	switch v := v.(type) {
	case nil:
		return nil
	case []any:
		return v
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeEscape escapes LIKE wildcards with a backslash.
func likeEscape(s string) string { return likeEscaper.Replace(s) }

// paren joins parts with sep and wraps multi-part results in parentheses.
func paren(parts []string, sep string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, sep) + ")"
}
