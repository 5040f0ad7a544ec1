package quill

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	ql "github.com/syssam/quill/querylanguage"
	"github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

// operatorTypes lists the data types each operator applies to.
var operatorTypes = map[ql.Op][]field.Type{
	ql.OpEQ:          {field.TypeString, field.TypeNumber, field.TypeBoolean, field.TypeArray, field.TypeObject},
	ql.OpNEQ:         {field.TypeString, field.TypeNumber, field.TypeBoolean, field.TypeArray, field.TypeObject},
	ql.OpLT:          {field.TypeNumber, field.TypeString},
	ql.OpLTE:         {field.TypeNumber, field.TypeString},
	ql.OpGT:          {field.TypeNumber, field.TypeString},
	ql.OpGTE:         {field.TypeNumber, field.TypeString},
	ql.OpIn:          {field.TypeString, field.TypeNumber, field.TypeBoolean},
	ql.OpNotIn:       {field.TypeString, field.TypeNumber, field.TypeBoolean},
	ql.OpLike:        {field.TypeString},
	ql.OpNotLike:     {field.TypeString},
	ql.OpILike:       {field.TypeString},
	ql.OpNotILike:    {field.TypeString},
	ql.OpIncludes:    {field.TypeArray},
	ql.OpIncludesAny: {field.TypeArray},
	ql.OpExcludes:    {field.TypeArray},
	ql.OpExcludesAny: {field.TypeArray},
	ql.OpBetween:     {field.TypeNumber},
	ql.OpNotBetween:  {field.TypeNumber},
}

// supports reports whether op applies to fields of type t.
func supports(op ql.Op, t field.Type) bool {
	for _, typ := range operatorTypes[op] {
		if typ == t {
			return true
		}
	}
	return false
}

// lookup returns the named field of col.
func lookup(col *schema.Collection, name string) (*field.Descriptor, error) {
	f, ok := col.Field(name)
	if !ok {
		return nil, NewValidationError(name, fmt.Errorf("%w in collection %q", ErrUnknownField, col.Name))
	}
	return f, nil
}

// checkFields verifies that every name is a field of col.
func checkFields(col *schema.Collection, names []string) error {
	for _, name := range names {
		if _, err := lookup(col, name); err != nil {
			return err
		}
	}
	return nil
}

// checkKeys verifies that every key of every item is a field of col.
func checkKeys(col *schema.Collection, items []Row) error {
	for _, item := range items {
		for _, k := range slices.Sorted(maps.Keys(item)) {
			if _, err := lookup(col, k); err != nil {
				return err
			}
		}
	}
	return nil
}

// where returns a copy of conds with every field condition checked
// against col and its value coerced to the field's data type.
func where(col *schema.Collection, conds []ql.Condition) ([]ql.Condition, error) {
	out := ql.Clone(conds)
	err := ql.Walk(out, func(c *ql.FieldCondition) error {
		f, err := lookup(col, c.Field)
		if err != nil {
			return err
		}
		v, err := coerce(f, c.Op, c.Value)
		if err != nil {
			return NewValidationError(c.Field, err)
		}
		c.Value = v
		return nil
	})
	return out, err
}

// coerce checks that op applies to f and converts v to the shape and
// type the compiler expects.
func coerce(f *field.Descriptor, op ql.Op, v any) (any, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w %q", ErrOperator, op)
	}
	if !supports(op, f.Type) {
		return nil, fmt.Errorf("%w %q for %s fields", ErrOperator, op, f.Type)
	}
	switch op.Shape() {
	case ql.ShapePair:
		list := toList(v)
		if len(list) != 2 {
			return nil, fmt.Errorf("%w: %s requires two values", ErrOperator, op)
		}
		pair := make([]any, 2)
		for i, e := range list {
			n, ok := field.ToFloat(e)
			if !ok {
				return nil, fmt.Errorf("%w: %s requires numeric values, got %v", ErrOperator, op, e)
			}
			pair[i] = n
		}
		return pair, nil
	case ql.ShapeList:
		list := toList(v)
		if op == ql.OpIn || op == ql.OpNotIn {
			for i, e := range list {
				if e == nil {
					return nil, fmt.Errorf("%w: %s does not accept null elements", ErrOperator, op)
				}
				c, err := f.Coerce(e)
				if err != nil {
					return nil, err
				}
				list[i] = c
			}
		}
		return list, nil
	}
	if v == nil {
		if op != ql.OpEQ && op != ql.OpNEQ {
			return nil, fmt.Errorf("%w: %s does not accept null", ErrOperator, op)
		}
		if !f.Nullable {
			return nil, ErrNullValue
		}
		return nil, nil
	}
	switch op {
	case ql.OpLike, ql.OpNotLike, ql.OpILike, ql.OpNotILike:
		if _, ok := v.(string); !ok {
			return nil, fmt.Errorf("%w: %s requires a string pattern", ErrOperator, op)
		}
		return v, nil
	}
	c, err := f.Coerce(v)
	if err != nil {
		return nil, err
	}
	if f.Type == field.TypeArray || f.Type == field.TypeObject {
		return f.Serialize(c)
	}
	return c, nil
}

// toList returns the elements of a slice value, or v as a single
// element.
func toList(v any) []any {
	switch v := v.(type) {
	case nil:
		return nil
	case []any:
		return append([]any(nil), v...)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list
}
