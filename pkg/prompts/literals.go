package prompts

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// NumericLiteral is a number mentioned in a question together with the value
// the query should compare against.
type NumericLiteral struct {
	Text  string
	Value string
}

var (
	// $1M, $2.5 million, 500k, $1,200,000, 3 billion
	amountPattern = regexp.MustCompile(`(?i)(\$\s*)?(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(billion|million|thousand|bn|b|m|k)?\b`)
	yearPattern   = regexp.MustCompile(`^(19|20)\d{2}$`)
)

var multipliers = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"million":  1e6,
	"b":        1e9,
	"bn":       1e9,
	"billion":  1e9,
}

// ExtractNumericLiterals finds amounts and years in a question. Amounts with a
// magnitude suffix are expanded ("$1M" becomes 1000000); four-digit years are
// kept verbatim. Bare numbers without a currency sign or suffix are skipped
// unless they look like a year.
func ExtractNumericLiterals(question string) []NumericLiteral {
	var out []NumericLiteral
	seen := make(map[string]bool)

	for _, m := range amountPattern.FindAllStringSubmatch(question, -1) {
		text := strings.TrimSpace(m[0])
		currency, digits, suffix := m[1] != "", m[2], strings.ToLower(m[3])

		var value string
		switch {
		case yearPattern.MatchString(digits) && !currency && suffix == "":
			value = digits
		case currency || suffix != "":
			v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
			if err != nil {
				continue
			}
			if mult, ok := multipliers[suffix]; ok {
				v = math.Round(v * mult)
			}
			value = strconv.FormatFloat(v, 'f', -1, 64)
		case strings.Contains(digits, ","):
			value = strings.ReplaceAll(digits, ",", "")
		default:
			continue
		}

		if seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, NumericLiteral{Text: text, Value: value})
	}
	return out
}
