package llm

import (
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> blocks emitted by reasoning models.
var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// unclosedThinkPattern matches a trailing <think> block that was cut off.
var unclosedThinkPattern = regexp.MustCompile(`(?s)<think>.*$`)

// fencePattern matches the first fenced code block. A language tag is only
// taken as such when the rest of its line is empty, so "``` cypher" and
// "```MATCH ...```" both work.
var fencePattern = regexp.MustCompile("(?s)```(?:[ \t]*[A-Za-z0-9_+-]*[ \t]*\n)?(.*?)```")

// clauseStartPattern matches a line that begins a read query.
var clauseStartPattern = regexp.MustCompile(`(?im)^\s*(MATCH|OPTIONAL\s+MATCH|WITH|UNWIND|CALL|RETURN)\b`)

// queryLinePattern matches a line that continues a query: a clause or
// expression keyword, a line opening with a bracket, literal, parameter or
// relationship arrow, or an identifier used as an expression (g.title,
// count(g), total DESC). Markdown bullets and sentences do not match.
var queryLinePattern = regexp.MustCompile(`(?i)^\s*(?:` +
	`(?:OPTIONAL\s+MATCH|MATCH|WHERE|WITH|UNWIND|CALL|YIELD|RETURN|ORDER\s+BY|SKIP|LIMIT|UNION|` +
	`AND|OR|XOR|NOT|CASE|WHEN|THEN|ELSE|END|AS|DISTINCT|EXISTS)\b` +
	`|[(){}\[\],'"$0-9|<:]|-[\[>-]|//` +
	`|[A-Za-z_][A-Za-z0-9_]*(?:[.(\[]|\s*[=<>+*/%]|\s+(?:AS|ASC|DESC)\b|\s*$))`)

// StripThinking removes <think>...</think> blocks from a response.
func StripThinking(response string) string {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")
	cleaned = unclosedThinkPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// ExtractQueryText pulls the query out of a model response that may contain
// thinking blocks, markdown fences or explanatory prose. Returns "" when
// nothing resembling a query remains.
func ExtractQueryText(response string) string {
	cleaned := StripThinking(response)

	if m := fencePattern.FindStringSubmatch(cleaned); m != nil {
		return strings.TrimSpace(m[1])
	}

	// No fence: drop any prose before the first clause and after the query.
	if loc := clauseStartPattern.FindStringIndex(cleaned); loc != nil {
		cleaned = cutTrailingProse(cleaned[loc[0]:])
	}

	return strings.TrimSpace(strings.Trim(cleaned, "`"))
}

// cutTrailingProse keeps the leading run of query lines. It stops at the first
// blank line or the first line that reads as prose.
func cutTrailingProse(text string) string {
	lines := strings.Split(text, "\n")
	end := len(lines)
	for i, line := range lines {
		if i == 0 {
			continue
		}
		if strings.TrimSpace(line) == "" || !queryLinePattern.MatchString(line) {
			end = i
			break
		}
	}
	return strings.Join(lines[:end], "\n")
}
