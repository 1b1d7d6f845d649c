// Package format renders query results as text: cell values, markdown tables
// and the template summary used when no model is available.
package format

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

var currencyColumns = map[string]bool{
	"amount":          true,
	"funding":         true,
	"total_funding":   true,
	"avg_funding":     true,
	"average_funding": true,
	"max_funding":     true,
	"min_funding":     true,
	"budget":          true,
	"grant_amount":    true,
	"funding_amount":  true,
	"total_amount":    true,
}

// IsCurrencyColumn reports whether values in the named column are dollar
// amounts. Qualified names such as "g.amount" match on the property part.
func IsCurrencyColumn(column string) bool {
	name := strings.ToLower(strings.TrimSpace(column))
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if currencyColumns[name] {
		return true
	}
	return strings.HasSuffix(name, "_amount") || strings.HasSuffix(name, "_funding")
}

// Currency renders a dollar amount rounded to whole dollars with thousands
// separators, e.g. $1,200,000.
func Currency(amount float64) string {
	rounded := int64(math.Round(amount))
	if rounded < 0 {
		return printer.Sprintf("-$%d", -rounded)
	}
	return printer.Sprintf("$%d", rounded)
}

// ParseAmount coerces a stored amount to a number. Strings may carry a dollar
// sign and separators.
func ParseAmount(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(s))
		if s == "" {
			return 0, false
		}
		v = s
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Value renders a single cell. Nil renders as an empty string.
func Value(column string, v any) string {
	if v == nil {
		return ""
	}
	if IsCurrencyColumn(column) {
		if f, ok := ParseAmount(v); ok {
			return Currency(f)
		}
	}

	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return cast.ToString(int64(val))
		}
		return cast.ToString(val)
	case float32:
		return Value(column, float64(val))
	case time.Time:
		return val.Format(time.RFC3339)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := Value("", item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+Value(k, val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}

	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
