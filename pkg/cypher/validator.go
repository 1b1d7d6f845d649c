package cypher

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyQuery indicates there is no query text left after normalization.
	ErrEmptyQuery = errors.New("query is empty")
)

// writeKeywords are clauses that modify the graph or reach outside it.
// create, delete, merge, set and remove are the core write verbs; the rest
// only appear in write or file-loading statements.
var writeKeywords = map[string]bool{
	"create":  true,
	"delete":  true,
	"merge":   true,
	"set":     true,
	"remove":  true,
	"detach":  true,
	"drop":    true,
	"foreach": true,
	"load":    true,
}

// WriteKeywordError reports a write-intent keyword found outside quoted text.
type WriteKeywordError struct {
	Keyword string
}

func (e *WriteKeywordError) Error() string {
	return fmt.Sprintf("write operation %q is not allowed; only read-only queries may run", strings.ToUpper(e.Keyword))
}

// ValidationResult contains the normalized query and what was stripped from it.
type ValidationResult struct {
	Query string
	// ExtraStatements is true when statements after the first were discarded.
	ExtraStatements bool
	// Literals are the string literals of the kept statement.
	Literals []string
}

// Validate normalizes a generated query and enforces read-only semantics.
//
// The order is:
//  1. Trim whitespace and keep only the first statement
//  2. Reject empty text
//  3. Reject write keywords appearing outside literals, quoted identifiers and comments
func Validate(query string) (ValidationResult, error) {
	stmt, extra := FirstStatement(query)
	if stmt == "" {
		return ValidationResult{}, ErrEmptyQuery
	}

	res := scan(stmt)
	if kw, ok := findWriteKeyword(res.code); ok {
		return ValidationResult{}, &WriteKeywordError{Keyword: kw}
	}

	return ValidationResult{
		Query:           stmt,
		ExtraStatements: extra,
		Literals:        res.literals,
	}, nil
}

// FirstStatement returns the first statement of a possibly multi-statement batch,
// trimmed and without its terminating semicolon. extra reports whether any
// non-empty statement followed it.
func FirstStatement(query string) (stmt string, extra bool) {
	query = strings.TrimSpace(query)
	res := scan(query)
	if res.firstSemicolon < 0 {
		return query, false
	}

	stmt = strings.TrimSpace(query[:res.firstSemicolon])
	rest := strings.Trim(query[res.firstSemicolon+1:], " \t\r\n;")
	return stmt, rest != ""
}

// HasWriteKeyword reports whether the query contains a write keyword as a
// standalone token outside quoted text.
func HasWriteKeyword(query string) bool {
	_, ok := findWriteKeyword(scan(query).code)
	return ok
}

func findWriteKeyword(code string) (string, bool) {
	for _, tok := range tokens(code) {
		lower := strings.ToLower(tok)
		if writeKeywords[lower] {
			return lower, true
		}
	}
	return "", false
}
