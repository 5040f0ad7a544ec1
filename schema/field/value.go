package field

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ToFloat converts numeric values and numeric strings to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// number returns integral values as int64 and the rest as float64.
func number(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// Coerce converts v to the field's data type. Strings coming from the
// condition language are parsed; nil passes through.
func (d *Descriptor) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch d.Type {
	case TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case fmt.Stringer:
			return s.String(), nil
		}
	case TypeNumber:
		if f, ok := ToFloat(v); ok {
			return number(f), nil
		}
	case TypeBoolean:
		if b, ok := toBool(v); ok {
			return b, nil
		}
	case TypeArray:
		if a, err := toArray(v); err == nil {
			return a, nil
		}
	case TypeObject:
		if m, err := toObject(v); err == nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("field %q: cannot use %v (%T) as %s", d.Name, v, v, d.Type)
}

// Serialize converts v to its storage representation. Booleans become
// 1 or 0; arrays and objects are JSON encoded.
func (d *Descriptor) Serialize(v any) (any, error) {
	if d.Serializer != nil {
		return d.Serializer(v)
	}
	if v == nil {
		return nil, nil
	}
	switch d.Type {
	case TypeBoolean:
		b, ok := toBool(v)
		if !ok {
			return nil, fmt.Errorf("field %q: cannot serialize %T as boolean", d.Name, v)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case TypeArray, TypeObject:
		if s, ok := v.(string); ok && json.Valid([]byte(s)) {
			return s, nil
		}
		buf, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", d.Name, err)
		}
		return string(buf), nil
	}
	return v, nil
}

// Deserialize converts a stored value back to the field's data type.
func (d *Descriptor) Deserialize(v any) (any, error) {
	if d.Deserializer != nil {
		return d.Deserializer(v)
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil, nil
	}
	switch d.Type {
	case TypeBoolean:
		if b, ok := toBool(v); ok {
			return b, nil
		}
		return nil, fmt.Errorf("field %q: cannot deserialize %v as boolean", d.Name, v)
	case TypeNumber:
		switch n := v.(type) {
		case int64, float64:
			return n, nil
		}
		if f, ok := ToFloat(v); ok {
			return number(f), nil
		}
		return nil, fmt.Errorf("field %q: cannot deserialize %v as number", d.Name, v)
	case TypeArray:
		return toArray(v)
	case TypeObject:
		return toObject(v)
	}
	return v, nil
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(b) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
		return false, false
	}
	if f, ok := ToFloat(v); ok && (f == 0 || f == 1) {
		return f == 1, true
	}
	return false, false
}

func toArray(v any) ([]any, error) {
	switch a := v.(type) {
	case []any:
		return a, nil
	case string:
		var out []any
		if err := json.Unmarshal([]byte(a), &out); err != nil {
			return nil, err
		}
		if out == nil {
			out = []any{}
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("field: %T is not an array", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func toObject(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(m), &out); err != nil {
			return nil, err
		}
		if out == nil {
			return nil, fmt.Errorf("field: %q is not an object", m)
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("field: %T is not an object", v)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, nil
}
