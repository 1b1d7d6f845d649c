package format

import (
	"strings"
	"unicode/utf8"
)

// MaxCellLength caps a rendered table cell in runes.
const MaxCellLength = 120

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

// Table renders rows as a markdown table with the given column order. At most
// maxRows rows are rendered; maxRows <= 0 renders all of them.
func Table(columns []string, rows []map[string]any, maxRows int) string {
	if len(columns) == 0 {
		return ""
	}
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	var sb strings.Builder
	sb.WriteString("|")
	for _, c := range columns {
		sb.WriteString(" " + cell(c) + " |")
	}
	sb.WriteString("\n|")
	for range columns {
		sb.WriteString(" --- |")
	}
	for _, row := range rows {
		sb.WriteString("\n|")
		for _, c := range columns {
			sb.WriteString(" " + cell(Value(c, row[c])) + " |")
		}
	}
	return sb.String()
}

func cell(s string) string {
	s = cellEscaper.Replace(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) > MaxCellLength {
		r := []rune(s)
		s = string(r[:MaxCellLength-3]) + "..."
	}
	return s
}
