package logging

import (
	"net/url"
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log
	MaxQueryLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Bearer tokens in echoed request headers
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_.=]+`)

	// key=value style API keys in URLs (Google CSE, SerpAPI)
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9\-_]{16,}`)

	// Provider secret keys: sk-..., sk-ant-..., sk-or-v1-...
	secretKeyPattern = regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{16,}`)

	// Google API keys
	googleKeyPattern = regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{30,}`)

	// user:pass@host credentials in bolt://, neo4j+s://, redis:// URIs
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`)
)

// SanitizeText redacts credentials from free text such as error messages.
// Use this before logging or returning any text that came from a collaborator.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = apiKeyPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = secretKeyPattern.ReplaceAllString(s, RedactedText)
	s = googleKeyPattern.ReplaceAllString(s, RedactedText)
	s = connStringPattern.ReplaceAllString(s, "://"+RedactedText+"@")
	return s
}

// SanitizeError sanitizes error messages that might contain sensitive data.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error())
}

// SanitizeURI drops the userinfo part of a connection URI.
func SanitizeURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return SanitizeText(uri)
	}
	u.User = nil
	return u.String()
}

// TruncateQuery shortens a query for logging and redacts sensitive patterns.
func TruncateQuery(query string) string {
	return SanitizeText(TruncateString(query, MaxQueryLogLength))
}

// TruncateString truncates a string to maxLen bytes and adds ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
