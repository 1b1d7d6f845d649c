// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/middleware"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventUnsafeQuery is logged when a generated query contains a write operation.
	EventUnsafeQuery SecurityEventType = "unsafe_query_rejected"
	// EventInjectionPattern is logged when libinjection flags a string literal in a generated query.
	EventInjectionPattern SecurityEventType = "injection_pattern_detected"
	// EventExtraStatements is logged when a generated query carried more than one statement.
	EventExtraStatements SecurityEventType = "extra_statements_dropped"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	RequestID string            `json:"request_id,omitempty"`
	Model     string            `json:"model,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// UnsafeQueryDetails describes a rejected query.
type UnsafeQueryDetails struct {
	Question string `json:"question"`
	Query    string `json:"query"`
	Keyword  string `json:"keyword"`
}

// InjectionDetails describes a flagged literal.
type InjectionDetails struct {
	Literal     string `json:"literal"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Query       string `json:"query"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogUnsafeQuery records a generated query that was refused because it would
// modify the graph. Logged at ERROR with "critical" severity: a model writing
// to the store usually means prompt injection through the question.
func (a *SecurityAuditor) LogUnsafeQuery(ctx context.Context, model string, details UnsafeQueryDetails) {
	details.Query = logging.TruncateQuery(details.Query)
	details.Question = logging.TruncateString(details.Question, logging.MaxQueryLogLength)
	event := a.event(ctx, EventUnsafeQuery, model, details, "critical")

	a.logger.Error("Unsafe query rejected",
		zap.String("event_json", marshal(event)),
		zap.String("request_id", event.RequestID),
		zap.String("model", model),
		zap.String("keyword", details.Keyword),
		zap.String("severity", event.Severity),
	)
}

// LogInjectionPattern records a string literal that matched an injection
// fingerprint. The query still runs; this is logged at WARN for review.
func (a *SecurityAuditor) LogInjectionPattern(ctx context.Context, model string, details InjectionDetails) {
	details.Query = logging.TruncateQuery(details.Query)
	details.Literal = logging.SanitizeText(logging.TruncateString(details.Literal, logging.MaxQueryLogLength))
	event := a.event(ctx, EventInjectionPattern, model, details, "warning")

	a.logger.Warn("Injection pattern in query literal",
		zap.String("event_json", marshal(event)),
		zap.String("request_id", event.RequestID),
		zap.String("model", model),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("severity", event.Severity),
	)
}

// LogExtraStatements records that statements after the first were dropped.
func (a *SecurityAuditor) LogExtraStatements(ctx context.Context, model, query string) {
	event := a.event(ctx, EventExtraStatements, model, map[string]string{
		"query": logging.TruncateQuery(query),
	}, "info")

	a.logger.Info("Extra statements dropped from generated query",
		zap.String("event_json", marshal(event)),
		zap.String("request_id", event.RequestID),
		zap.String("model", model),
		zap.String("severity", event.Severity),
	)
}

func (a *SecurityAuditor) event(ctx context.Context, typ SecurityEventType, model string, details any, severity string) SecurityEvent {
	return SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: typ,
		RequestID: middleware.RequestIDFromContext(ctx),
		Model:     model,
		Details:   details,
		Severity:  severity,
	}
}

// marshal ignores errors; the event types are plain structs.
func marshal(event SecurityEvent) string {
	b, _ := json.Marshal(event)
	return string(b)
}
