// Package cypher provides safety validation for generated Cypher queries.
package cypher

import (
	"strings"
	"unicode/utf8"
)

// scanResult separates executable text from quoted content.
type scanResult struct {
	// code is the query with string literals, quoted identifiers and comments
	// blanked out, so keyword checks only see executable text.
	code string
	// literals holds the contents of single and double quoted strings in order.
	literals []string
	// firstSemicolon is the byte offset of the first statement separator, or -1.
	firstSemicolon int
}

const (
	stateNormal = iota
	stateSingleQuote
	stateDoubleQuote
	stateBacktick
	stateLineComment
	stateBlockComment
)

// scan walks the query once, tracking quoting and comment state.
// Cypher strings use backslash escapes; backticks quote identifiers.
func scan(query string) scanResult {
	var code, literal strings.Builder
	code.Grow(len(query))

	res := scanResult{firstSemicolon: -1}
	state := stateNormal
	escaped := false

	next := func(i int) byte {
		if i+1 < len(query) {
			return query[i+1]
		}
		return 0
	}

	for i := 0; i < len(query); {
		ch, width := utf8.DecodeRuneInString(query[i:])

		switch state {
		case stateNormal:
			switch {
			case ch == '\'':
				state = stateSingleQuote
				literal.Reset()
				code.WriteByte(' ')
			case ch == '"':
				state = stateDoubleQuote
				literal.Reset()
				code.WriteByte(' ')
			case ch == '`':
				state = stateBacktick
				code.WriteByte(' ')
			case ch == '/' && next(i) == '/':
				state = stateLineComment
				code.WriteString("  ")
				width = 2
			case ch == '/' && next(i) == '*':
				state = stateBlockComment
				code.WriteString("  ")
				width = 2
			case ch == ';':
				if res.firstSemicolon < 0 {
					res.firstSemicolon = i
				}
				code.WriteRune(ch)
			default:
				code.WriteRune(ch)
			}

		case stateSingleQuote, stateDoubleQuote:
			quote := '\''
			if state == stateDoubleQuote {
				quote = '"'
			}
			switch {
			case escaped:
				escaped = false
				literal.WriteRune(ch)
			case ch == '\\':
				escaped = true
			case ch == quote:
				res.literals = append(res.literals, literal.String())
				state = stateNormal
			default:
				literal.WriteRune(ch)
			}
			code.WriteByte(' ')

		case stateBacktick:
			if ch == '`' {
				state = stateNormal
			}
			code.WriteByte(' ')

		case stateLineComment:
			if ch == '\n' {
				state = stateNormal
				code.WriteByte('\n')
			} else {
				code.WriteByte(' ')
			}

		case stateBlockComment:
			if ch == '*' && next(i) == '/' {
				state = stateNormal
				code.WriteByte(' ')
				width = 2
			}
			code.WriteByte(' ')
		}

		i += width
	}

	// An unterminated literal still counts as quoted content.
	if state == stateSingleQuote || state == stateDoubleQuote {
		res.literals = append(res.literals, literal.String())
	}

	res.code = code.String()
	return res
}

// tokens splits executable text into identifier-like words.
func tokens(code string) []string {
	return strings.FieldsFunc(code, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
}
