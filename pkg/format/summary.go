package format

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/spf13/cast"

	"github.com/ekaya-inc/grantgraph/pkg/models"
)

// MaxSummaryGrants caps the grants listed in a template summary.
const MaxSummaryGrants = 5

// Field aliases the summary looks up, in priority order.
var (
	TitleFields       = []string{"grant_title", "title", "g.title"}
	AmountFields      = []string{"amount", "g.amount", "funding", "total_funding"}
	ResearcherFields  = []string{"researcher_name", "researcher", "r.name", "pi_name", "ci_name", "investigator_name"}
	InstitutionFields = []string{"institution_name", "institution", "i.name"}
	YearFields        = []string{"start_year", "g.start_year", "year"}
	IDFields          = []string{"application_id", "g.application_id"}
	FunderFields      = []string{"funding_body", "g.funding_body"}
)

var titleStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "into": true,
	"study": true, "research": true, "analysis": true, "project": true, "grant": true,
	"funding": true, "investigation": true, "development": true, "characterisation": true,
	"understanding": true, "role": true, "mechanism": true, "using": true,
}

// Lookup returns the first non-empty value among the given fields of a row.
func Lookup(row map[string]any, fields []string) (any, bool) {
	for _, f := range fields {
		if v, ok := row[f]; ok && v != nil && strings.TrimSpace(cast.ToString(v)) != "" {
			return v, true
		}
	}
	return nil, false
}

func lookupString(row map[string]any, fields []string) string {
	v, ok := Lookup(row, fields)
	if !ok {
		return ""
	}
	return strings.TrimSpace(Value("", v))
}

type grantLine struct {
	title       string
	id          string
	funder      string
	amount      float64
	hasAmount   bool
	year        string
	researcher  string
	institution string
}

// FallbackSummary renders a markdown summary from the results alone. It never
// fails and returns identical output for identical input.
func FallbackSummary(question string, results *models.ResultSet, refs []models.ExternalReference) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("> Grant Analysis: %s\n\n", question))
	sb.WriteString("## Overview\n\n")

	if results.IsEmpty() {
		sb.WriteString(fmt.Sprintf("No results found for query: %s\n\n", question))
		sb.WriteString("No matching grants, researchers, or institutions were found in the database.\n")
		writeReferences(&sb, refs)
		return sb.String()
	}

	rows := results.Rows
	count := results.RowCount
	if count < len(rows) {
		count = len(rows)
	}
	sb.WriteString(fmt.Sprintf("Found %d %s for query: %s", count, plural("result", count), question))
	if results.Truncated {
		sb.WriteString(" (more results exist; only the first ones were returned)")
	}
	sb.WriteString("\n")

	var (
		grants       []grantLine
		seenGrants   = make(map[string]bool)
		researchers  []string
		institutions []string
		seenPeople   = make(map[string]bool)
		seenInst     = make(map[string]bool)
		total        float64
		minYear      = 0
		maxYear      = 0
	)
	for _, row := range rows {
		g := grantLine{
			title:       lookupString(row, TitleFields),
			id:          lookupString(row, IDFields),
			funder:      lookupString(row, FunderFields),
			year:        lookupString(row, YearFields),
			researcher:  lookupString(row, ResearcherFields),
			institution: lookupString(row, InstitutionFields),
		}
		if v, ok := Lookup(row, AmountFields); ok {
			g.amount, g.hasAmount = ParseAmount(v)
		}

		if g.researcher != "" && !seenPeople[g.researcher] {
			seenPeople[g.researcher] = true
			researchers = append(researchers, g.researcher)
		}
		if g.institution != "" && !seenInst[g.institution] {
			seenInst[g.institution] = true
			institutions = append(institutions, g.institution)
		}
		if y, err := strconv.Atoi(g.year); err == nil && y > 0 {
			if minYear == 0 || y < minYear {
				minYear = y
			}
			if y > maxYear {
				maxYear = y
			}
		}

		if g.title == "" {
			continue
		}
		key := strings.ToLower(g.title) + "|" + strconv.FormatFloat(g.amount, 'f', -1, 64) + "|" + g.year
		if seenGrants[key] {
			continue
		}
		seenGrants[key] = true
		if g.hasAmount && g.amount > 0 {
			total += g.amount
		}
		grants = append(grants, g)
	}

	if len(researchers) > 0 || len(institutions) > 0 {
		sb.WriteString("\nThis analysis covers research conducted")
		if len(researchers) > 0 {
			sb.WriteString(" by **" + joinLimited(researchers, 3, "other") + "**")
		}
		if len(institutions) > 0 {
			sb.WriteString(" at **" + joinLimited(institutions, 2, "other institution") + "**")
		}
		sb.WriteString(".\n")
	}
	if total > 0 {
		sb.WriteString(fmt.Sprintf("\nTotal funding identified: **%s**.\n", Currency(total)))
	}
	if minYear > 0 {
		if minYear == maxYear {
			sb.WriteString(fmt.Sprintf("\nResearch activity in **%d**.\n", minYear))
		} else {
			sb.WriteString(fmt.Sprintf("\nResearch activity spans **%d-%d**.\n", minYear, maxYear))
		}
	}

	if len(grants) > 0 {
		sb.WriteString("\n## Grants\n\n")
		for i, g := range grants {
			if i == MaxSummaryGrants {
				more := len(grants) - MaxSummaryGrants
				sb.WriteString(fmt.Sprintf("... and %d additional %s\n", more, plural("grant", more)))
				break
			}
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, g.render()))
		}
	} else {
		sb.WriteString("\n## Results\n\n")
		sb.WriteString(Table(results.Columns, rows, 10))
		sb.WriteString("\n")
	}

	writeReferences(&sb, refs)
	return sb.String()
}

func (g grantLine) render() string {
	title := g.title
	if r := []rune(title); len(r) > 80 {
		title = string(r[:80]) + "..."
	}

	var details []string
	if g.id != "" {
		details = append(details, "ID: "+g.id)
	}
	if g.funder != "" {
		details = append(details, "Funder: "+g.funder)
	}
	if g.hasAmount && g.amount > 0 {
		details = append(details, Currency(g.amount))
	}
	if g.year != "" {
		details = append(details, g.year)
	}

	line := "**" + title + "**"
	if len(details) > 0 {
		line += " (" + strings.Join(details, ", ") + ")"
	}
	return line + " ([Google Scholar](" + ScholarURL(g.title, g.researcher, g.institution) + "))"
}

// ScholarURL builds a Google Scholar search link from the significant words of
// a grant title plus the researcher and institution names.
func ScholarURL(title, researcher, institution string) string {
	var terms []string
	for _, w := range strings.Fields(title) {
		clean := strings.Trim(strings.ToLower(w), ".,()[]:-")
		if len(clean) <= 3 || titleStopwords[clean] {
			continue
		}
		terms = append(terms, w)
		if len(terms) == 6 {
			break
		}
	}
	if researcher != "" {
		terms = append(terms, researcher)
	}
	if institution != "" {
		terms = append(terms, institution)
	}
	return "https://scholar.google.com/scholar?q=" + url.QueryEscape(strings.Join(terms, " "))
}

func writeReferences(sb *strings.Builder, refs []models.ExternalReference) {
	if len(refs) == 0 {
		return
	}
	sb.WriteString("\n## References\n\n")
	for _, ref := range refs {
		title := ref.Title
		if title == "" {
			title = ref.URL
		}
		sb.WriteString(fmt.Sprintf("- [%s](%s)\n", linkEscaper.Replace(title), ref.URL))
	}
}

var linkEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func joinLimited(items []string, limit int, otherNoun string) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	rest := len(items) - limit
	return fmt.Sprintf("%s and %d %s", strings.Join(items[:limit], ", "), rest, pluralPhrase(otherNoun, rest))
}

func plural(noun string, n int) string {
	if n == 1 {
		return noun
	}
	return inflection.Plural(noun)
}

// pluralPhrase pluralizes the last word of a phrase.
func pluralPhrase(phrase string, n int) string {
	i := strings.LastIndexByte(phrase, ' ')
	return phrase[:i+1] + plural(phrase[i+1:], n)
}
