package cypher

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a string literal that matches an injection pattern.
type InjectionCheckResult struct {
	Literal     string
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckLiterals screens string literals of a generated query with libinjection.
// A model that copies hostile user text into a literal tends to produce the same
// token shapes libinjection fingerprints for SQL, e.g. ' OR 1=1 //.
// Returns nil when every literal is clean.
func CheckLiterals(literals []string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, lit := range literals {
		if lit == "" {
			continue
		}
		isSQLi, fingerprint := libinjection.IsSQLi(lit)
		if isSQLi {
			results = append(results, &InjectionCheckResult{
				Literal:     lit,
				Fingerprint: string(fingerprint),
			})
		}
	}
	return results
}
