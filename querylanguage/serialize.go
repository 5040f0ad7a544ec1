package querylanguage

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Serialize renders conds in the bracket grammar. Raw conditions have no
// grammar form and are omitted.
func Serialize(conds []Condition) string {
	var b strings.Builder
	writeTerms(&b, conds)
	return b.String()
}

func writeTerms(b *strings.Builder, conds []Condition) {
	n := 0
	for _, c := range conds {
		if _, ok := c.(*RawCondition); ok {
			continue
		}
		if n > 0 {
			b.WriteByte(',')
		}
		writeCondition(b, c)
		n++
	}
}

func writeCondition(b *strings.Builder, c Condition) {
	switch c := c.(type) {
	case *FieldCondition:
		b.WriteString(escape(c.Field))
		b.WriteByte('[')
		b.WriteString(string(c.Op))
		b.WriteString("][")
		b.WriteString(FormatValue(c.Op, c.Value))
		b.WriteByte(']')
	case *OrGroup:
		b.WriteString("orGroup[")
		n := 0
		for _, br := range c.Branches {
			br = withoutRaw(br)
			if len(br) == 0 {
				continue
			}
			if n > 0 {
				b.WriteByte(',')
			}
			if len(br) == 1 {
				writeCondition(b, br[0])
			} else {
				b.WriteByte('[')
				writeTerms(b, br)
				b.WriteByte(']')
			}
			n++
		}
		b.WriteByte(']')
	}
}

func withoutRaw(conds []Condition) []Condition {
	for _, c := range conds {
		if _, ok := c.(*RawCondition); ok {
			out := make([]Condition, 0, len(conds))
			for _, c := range conds {
				if _, ok := c.(*RawCondition); !ok {
					out = append(out, c)
				}
			}
			return out
		}
	}
	return conds
}

// FormatValue renders a condition value with reserved characters escaped.
// List and pair values are joined with commas; nil renders as null.
func FormatValue(op Op, v any) string {
	if v == nil {
		return "null"
	}
	if op.Shape() != ShapeScalar {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			parts := make([]string, rv.Len())
			for i := range parts {
				parts[i] = formatElement(rv.Index(i).Interface())
			}
			return strings.Join(parts, ",")
		}
	}
	return formatElement(v)
}

func formatElement(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return escapeValue(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return escapeValue(v.String())
	default:
		return escapeValue(fmt.Sprint(v))
	}
}

// SerializeSearch renders search terms in the bracket grammar.
func SerializeSearch(terms []SearchTerm) string {
	var b strings.Builder
	for i, t := range terms {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escape(strings.Join(t.Keywords, " ")))
		b.WriteString("[in][")
		for j, f := range t.Fields {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escape(f))
		}
		b.WriteByte(']')
	}
	return b.String()
}
