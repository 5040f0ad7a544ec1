package querylanguage

import "strings"

type tokenKind uint8

const (
	tokText tokenKind = iota
	tokOpen
	tokClose
)

type token struct {
	kind tokenKind
	text string
	pos  int // byte offset in the input
}

// escapable reports whether esc followed by c denotes the literal c.
func escapable(esc, c byte) bool {
	switch c {
	case '[', ']', '$':
		return true
	case '\\':
		return esc == '$'
	}
	return false
}

// tokenize scans input once, left to right, and emits text tokens and
// bracket delimiters. Escape sequences are resolved into text tokens.
func tokenize(input string) []token {
	var (
		toks  []token
		sb    strings.Builder
		start int
	)
	flush := func() {
		if sb.Len() > 0 {
			toks = append(toks, token{kind: tokText, text: sb.String(), pos: start})
			sb.Reset()
		}
	}
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case (c == '$' || c == '\\') && i+1 < len(input) && escapable(c, input[i+1]):
			if sb.Len() == 0 {
				start = i
			}
			sb.WriteByte(input[i+1])
			i++
		case c == '[':
			flush()
			toks = append(toks, token{kind: tokOpen, text: "[", pos: i})
		case c == ']':
			flush()
			toks = append(toks, token{kind: tokClose, text: "]", pos: i})
		default:
			if sb.Len() == 0 {
				start = i
			}
			sb.WriteByte(c)
		}
	}
	flush()
	return toks
}

// escape prefixes reserved characters with $.
func escape(s string) string {
	if !strings.ContainsAny(s, `[]$\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', ']', '$', '\\':
			sb.WriteByte('$')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// escapeValue escapes a value. A value that is itself bracket-delimited
// keeps its outer brackets literal.
func escapeValue(s string) string {
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		return "[" + escape(s[1:len(s)-1]) + "]"
	}
	return escape(s)
}
