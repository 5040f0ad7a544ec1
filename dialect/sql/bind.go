package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/quill/dialect"
)

// Bind rewrites the $name references of st.Query into the placeholders of
// the dialect and returns the arguments in placeholder order. Postgres
// receives $1..$n with repeated names sharing one argument; the other
// dialects receive ? per reference. References inside quoted literals and
// identifiers are left alone, as is $ followed by a digit.
func Bind(name string, st Statement) (string, []any, error) {
	var (
		b     strings.Builder
		args  []any
		index map[string]int
		q     = st.Query
	)
	if name == dialect.Postgres {
		index = make(map[string]int)
	}
	b.Grow(len(q))
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := skipQuoted(q, i, name)
			b.WriteString(q[i:end])
			i = end - 1
		case c == '$' && i+1 < len(q) && isIdentStart(q[i+1]):
			j := i + 1
			for j < len(q) && isIdentPart(q[j]) {
				j++
			}
			ref := q[i+1 : j]
			v, ok := st.Params[ref]
			if !ok {
				return "", nil, fmt.Errorf("dialect/sql: missing parameter %q", ref)
			}
			if index != nil {
				n, seen := index[ref]
				if !seen {
					args = append(args, v)
					n = len(args)
					index[ref] = n
				}
				b.WriteByte('$')
				b.WriteString(strconv.Itoa(n))
			} else {
				args = append(args, v)
				b.WriteByte('?')
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	if args == nil {
		args = []any{}
	}
	return b.String(), args, nil
}

// skipQuoted returns the index just past the quoted span starting at i.
// Doubled quotes continue the span; MySQL also honors backslash escapes in
// string literals.
func skipQuoted(q string, i int, name string) int {
	quote := q[i]
	for j := i + 1; j < len(q); j++ {
		switch q[j] {
		case '\\':
			if quote == '\'' && name == dialect.MySQL {
				j++
			}
		case quote:
			if j+1 < len(q) && q[j+1] == quote {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(q)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c|0x20) >= 'a' && (c|0x20) <= 'z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
