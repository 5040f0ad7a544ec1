// Package querylanguage implements the bracket-delimited condition language
// used by where and search clauses, and the query-string wire format that
// carries it.
//
// A where clause is a comma-separated list of terms:
//
//	firstName[=][Harry],orGroup[lastName[=][Potter],lastName[=][Weasley]]
//
// A term is either field[operator][value] or orGroup[operand,...], where an
// operand is a single term or a bracketed AND-group:
//
//	orGroup[[house[=][Gryffindor],year[>=][5]],role[=][prefect]]
//
// The characters [, ] and $ are literal inside a value only when prefixed
// with $ (a backslash works as well): title[=][Chapter $[1$]].
package querylanguage

import (
	"fmt"
	"strings"
)

// Op is a condition operator.
type Op string

// Supported operators.
const (
	OpEQ          Op = "="
	OpNEQ         Op = "!="
	OpLT          Op = "<"
	OpLTE         Op = "<="
	OpGT          Op = ">"
	OpGTE         Op = ">="
	OpIn          Op = "in"
	OpNotIn       Op = "notIn"
	OpLike        Op = "like"
	OpNotLike     Op = "notLike"
	OpILike       Op = "ilike"
	OpNotILike    Op = "notIlike"
	OpIncludes    Op = "includes"
	OpIncludesAny Op = "includesAny"
	OpExcludes    Op = "excludes"
	OpExcludesAny Op = "excludesAny"
	OpBetween     Op = "between"
	OpNotBetween  Op = "notBetween"
)

// Ops lists every supported operator.
var Ops = []Op{
	OpEQ, OpNEQ, OpLT, OpLTE, OpGT, OpGTE,
	OpIn, OpNotIn,
	OpLike, OpNotLike, OpILike, OpNotILike,
	OpIncludes, OpIncludesAny, OpExcludes, OpExcludesAny,
	OpBetween, OpNotBetween,
}

// ValueShape describes the value an operator accepts.
type ValueShape uint8

// Value shapes.
const (
	ShapeScalar ValueShape = iota
	ShapeList
	ShapePair
)

// ParseOp resolves an operator token. Word operators are matched
// case-insensitively, symbol operators must match exactly.
func ParseOp(s string) (Op, bool) {
	for _, op := range Ops {
		if op.IsWord() {
			if strings.EqualFold(s, string(op)) {
				return op, true
			}
		} else if s == string(op) {
			return op, true
		}
	}
	return "", false
}

// Valid reports whether op belongs to the supported set.
func (o Op) Valid() bool {
	for _, op := range Ops {
		if op == o {
			return true
		}
	}
	return false
}

// IsWord reports whether the operator is spelled with letters.
func (o Op) IsWord() bool {
	if o == "" {
		return false
	}
	c := o[0] | 0x20
	return c >= 'a' && c <= 'z'
}

// Shape returns the value shape accepted by the operator.
func (o Op) Shape() ValueShape {
	switch o {
	case OpIn, OpNotIn, OpIncludes, OpIncludesAny, OpExcludes, OpExcludesAny:
		return ShapeList
	case OpBetween, OpNotBetween:
		return ShapePair
	default:
		return ShapeScalar
	}
}

// Negated reports whether the operator is the negative form of another.
func (o Op) Negated() bool {
	switch o {
	case OpNEQ, OpNotIn, OpNotLike, OpNotILike, OpExcludes, OpExcludesAny, OpNotBetween:
		return true
	}
	return false
}

// Condition is a node of a where tree: *FieldCondition, *RawCondition or
// *OrGroup.
type Condition interface {
	// String returns the condition in the bracket grammar.
	String() string
	condition()
}

// FieldCondition compares a field against a value.
type FieldCondition struct {
	Field string
	Op    Op
	Value any
}

// RawCondition is a SQL fragment spliced into the where clause verbatim.
// Params are referenced from SQL as $name.
type RawCondition struct {
	SQL    string
	Params map[string]any
}

// OrGroup matches when any of its branches match. Each branch is an
// AND-group of conditions.
type OrGroup struct {
	Branches [][]Condition
}

func (*FieldCondition) condition() {}
func (*RawCondition) condition()   {}
func (*OrGroup) condition()        {}

// String implements Condition.
func (c *FieldCondition) String() string { return Serialize([]Condition{c}) }

// String implements Condition. Raw conditions have no grammar form.
func (c *RawCondition) String() string { return fmt.Sprintf("raw(%s)", c.SQL) }

// String implements Condition.
func (g *OrGroup) String() string { return Serialize([]Condition{g}) }

// Where returns a field condition.
func Where(field string, op Op, value any) *FieldCondition {
	return &FieldCondition{Field: field, Op: op, Value: value}
}

// Raw returns a raw SQL condition.
func Raw(sql string, params map[string]any) *RawCondition {
	return &RawCondition{SQL: sql, Params: params}
}

// Or returns an OrGroup of the given branches. Empty branches are dropped.
func Or(branches ...[]Condition) *OrGroup {
	g := &OrGroup{}
	for _, b := range branches {
		if len(b) > 0 {
			g.Branches = append(g.Branches, b)
		}
	}
	return g
}

// And is a convenience for building a branch.
func And(conds ...Condition) []Condition { return conds }

// Walk calls fn for every field condition in conds, descending into
// OrGroup branches in order.
func Walk(conds []Condition, fn func(*FieldCondition) error) error {
	for _, c := range conds {
		switch c := c.(type) {
		case *FieldCondition:
			if err := fn(c); err != nil {
				return err
			}
		case *OrGroup:
			for _, b := range c.Branches {
				if err := Walk(b, fn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Clone returns a deep copy of conds.
func Clone(conds []Condition) []Condition {
	if conds == nil {
		return nil
	}
	out := make([]Condition, len(conds))
	for i, c := range conds {
		switch c := c.(type) {
		case *FieldCondition:
			out[i] = &FieldCondition{Field: c.Field, Op: c.Op, Value: cloneValue(c.Value)}
		case *RawCondition:
			var params map[string]any
			if c.Params != nil {
				params = make(map[string]any, len(c.Params))
				for k, v := range c.Params {
					params[k] = cloneValue(v)
				}
			}
			out[i] = &RawCondition{SQL: c.SQL, Params: params}
		case *OrGroup:
			g := &OrGroup{Branches: make([][]Condition, len(c.Branches))}
			for j, b := range c.Branches {
				g.Branches[j] = Clone(b)
			}
			out[i] = g
		}
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case []any:
		out := make([]any, len(v))
		copy(out, v)
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	}
	return v
}

// SearchTerm matches rows where every keyword appears in at least one of
// the fields.
type SearchTerm struct {
	Keywords []string
	Fields   []string
}
