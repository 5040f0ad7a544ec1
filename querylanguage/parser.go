package querylanguage

import (
	"fmt"
	"strconv"
	"strings"
)

// maxDepth bounds bracket nesting of untrusted input.
const maxDepth = 32

// ParseError reports malformed grammar input.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("querylanguage: parse error at offset %d: %s", e.Offset, e.Message)
}

func errorf(pos int, format string, args ...any) error {
	return &ParseError{Offset: pos, Message: fmt.Sprintf(format, args...)}
}

// node is a text run or a bracketed span of nodes.
type node struct {
	text     string
	children []node
	group    bool
	pos      int
}

// render returns the literal text of nodes, keeping nested brackets.
func render(nodes []node) string {
	var sb strings.Builder
	for _, n := range nodes {
		if n.group {
			sb.WriteByte('[')
			sb.WriteString(render(n.children))
			sb.WriteByte(']')
		} else {
			sb.WriteString(n.text)
		}
	}
	return sb.String()
}

// tree groups the token stream into nested bracket spans.
func tree(input string) ([]node, error) {
	toks := tokenize(input)
	i := 0
	var seq func(depth int) ([]node, error)
	seq = func(depth int) ([]node, error) {
		if depth > maxDepth {
			return nil, errorf(toks[i-1].pos, "nesting deeper than %d levels", maxDepth)
		}
		var out []node
		for i < len(toks) {
			t := toks[i]
			switch t.kind {
			case tokText:
				out = append(out, node{text: t.text, pos: t.pos})
				i++
			case tokOpen:
				i++
				children, err := seq(depth + 1)
				if err != nil {
					return nil, err
				}
				if i >= len(toks) {
					return nil, errorf(t.pos, "unclosed '['")
				}
				i++
				out = append(out, node{children: children, group: true, pos: t.pos})
			case tokClose:
				if depth == 0 {
					return nil, errorf(t.pos, "unexpected ']'")
				}
				return out, nil
			}
		}
		return out, nil
	}
	return seq(0)
}

// Parse parses a where clause into a condition list.
func Parse(input string) ([]Condition, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	seq, err := tree(input)
	if err != nil {
		return nil, err
	}
	return terms(seq)
}

// MustParse is like Parse but panics on error.
func MustParse(input string) []Condition {
	conds, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return conds
}

// item reads the next list item of seq starting at i. It returns the term
// name, or an empty name when the item is a bracketed span at seq[next].
// done is set when only trailing whitespace remains.
func item(seq []node, i int, first bool) (name string, next int, done bool, err error) {
	n := seq[i]
	if n.group {
		if !first {
			return "", 0, false, errorf(n.pos, "expected ','")
		}
		return "", i, false, nil
	}
	txt := n.text
	if !first {
		trimmed := strings.TrimLeft(txt, " \t\r\n")
		if trimmed == "" && i == len(seq)-1 {
			return "", 0, true, nil
		}
		if !strings.HasPrefix(trimmed, ",") {
			return "", 0, false, errorf(n.pos, "expected ','")
		}
		txt = trimmed[1:]
	}
	name = strings.TrimSpace(txt)
	if name == "" {
		if i+1 >= len(seq) {
			return "", 0, false, errorf(n.pos+len(n.text), "unexpected end of input")
		}
		return "", i + 1, false, nil
	}
	if strings.Contains(name, ",") {
		return "", 0, false, errorf(n.pos, "unexpected ',' in %q", name)
	}
	return name, i + 1, false, nil
}

// terms parses a comma-separated list of terms.
func terms(seq []node) ([]Condition, error) {
	var out []Condition
	for i := 0; i < len(seq); {
		name, next, done, err := item(seq, i, len(out) == 0)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		if name == "" {
			return nil, errorf(seq[next].pos, "unexpected '['")
		}
		c, after, err := term(name, seq, next)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		i = after
	}
	return out, nil
}

// operands parses the operand list of an orGroup. Each operand becomes one
// branch; empty branches are dropped.
func operands(seq []node) ([][]Condition, error) {
	var out [][]Condition
	first := true
	for i := 0; i < len(seq); {
		name, next, done, err := item(seq, i, first)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		first = false
		if name == "" {
			branch, err := terms(seq[next].children)
			if err != nil {
				return nil, err
			}
			if len(branch) > 0 {
				out = append(out, branch)
			}
			i = next + 1
			continue
		}
		c, after, err := term(name, seq, next)
		if err != nil {
			return nil, err
		}
		out = append(out, []Condition{c})
		i = after
	}
	return out, nil
}

// term parses the bracketed parts following a term name at seq[i].
func term(name string, seq []node, i int) (Condition, int, error) {
	if strings.EqualFold(name, "orGroup") {
		if i >= len(seq) || !seq[i].group {
			return nil, 0, errorf(posAt(seq, i), "orGroup requires a bracketed operand list")
		}
		branches, err := operands(seq[i].children)
		if err != nil {
			return nil, 0, err
		}
		return &OrGroup{Branches: branches}, i + 1, nil
	}
	if i+1 >= len(seq) || !seq[i].group || !seq[i+1].group {
		return nil, 0, errorf(posAt(seq, i), "term %q requires [operator][value]", name)
	}
	opNode, valNode := seq[i], seq[i+1]
	if len(opNode.children) != 1 || opNode.children[0].group {
		return nil, 0, errorf(opNode.pos, "malformed operator for field %q", name)
	}
	op, ok := ParseOp(strings.TrimSpace(opNode.children[0].text))
	if !ok {
		return nil, 0, errorf(opNode.pos, "unknown operator %q", opNode.children[0].text)
	}
	v, err := coerce(op, render(valNode.children))
	if err != nil {
		return nil, 0, errorf(valNode.pos, "%s", err)
	}
	return &FieldCondition{Field: name, Op: op, Value: v}, i + 2, nil
}

func posAt(seq []node, i int) int {
	if i < len(seq) {
		return seq[i].pos
	}
	if len(seq) > 0 {
		last := seq[len(seq)-1]
		return last.pos + len(last.text)
	}
	return 0
}

// coerce converts the raw value text into the shape op expects.
func coerce(op Op, raw string) (any, error) {
	switch op.Shape() {
	case ShapePair:
		parts := strings.Split(raw, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("operator %s requires exactly two numeric values", op)
		}
		pair := make([]any, 2)
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("operator %s requires numeric values, got %q", op, p)
			}
			pair[i] = f
		}
		return pair, nil
	case ShapeList:
		if raw == "" {
			return []any{}, nil
		}
		parts := strings.Split(raw, ",")
		list := make([]any, len(parts))
		for i, p := range parts {
			list[i] = p
		}
		return list, nil
	}
	if (op == OpEQ || op == OpNEQ) && (raw == "null" || raw == "NULL") {
		return nil, nil
	}
	return raw, nil
}

// ParseSearch parses a search clause: keywords[in][field,field],...
func ParseSearch(input string) ([]SearchTerm, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	seq, err := tree(input)
	if err != nil {
		return nil, err
	}
	var out []SearchTerm
	for i := 0; i < len(seq); {
		name, next, done, err := item(seq, i, len(out) == 0)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		if name == "" {
			return nil, errorf(seq[next].pos, "unexpected '['")
		}
		if next+1 >= len(seq) || !seq[next].group || !seq[next+1].group {
			return nil, errorf(posAt(seq, next), "search term %q requires [in][fields]", name)
		}
		if op := strings.TrimSpace(render(seq[next].children)); !strings.EqualFold(op, "in") {
			return nil, errorf(seq[next].pos, "unknown search operator %q", op)
		}
		var fields []string
		for _, f := range strings.Split(render(seq[next+1].children), ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
		if len(fields) == 0 {
			return nil, errorf(seq[next+1].pos, "search term %q has no fields", name)
		}
		out = append(out, SearchTerm{Keywords: strings.Fields(name), Fields: fields})
		i = next + 2
	}
	return out, nil
}
