// Package apperrors defines the error kinds that cross pipeline stage boundaries.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindValidation        Kind = "validation_failed"
	KindSchemaUnavailable Kind = "schema_unavailable"
	KindGenerationFailed  Kind = "generation_failed"
	KindUnsafeQuery       Kind = "unsafe_query"
	KindQueryExecution    Kind = "query_execution_error"
	KindStoreUnavailable  Kind = "store_unavailable"
	KindEnrichmentFailed  Kind = "enrichment_failed"
	KindSynthesisDegraded Kind = "synthesis_degraded"
)

// Sentinels for errors.Is checks against a kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrSchemaUnavailable = &Error{Kind: KindSchemaUnavailable}
	ErrGenerationFailed  = &Error{Kind: KindGenerationFailed}
	ErrUnsafeQuery       = &Error{Kind: KindUnsafeQuery}
	ErrQueryExecution    = &Error{Kind: KindQueryExecution}
	ErrStoreUnavailable  = &Error{Kind: KindStoreUnavailable}
	ErrEnrichmentFailed  = &Error{Kind: KindEnrichmentFailed}
	ErrSynthesisDegraded = &Error{Kind: KindSynthesisDegraded}
)

// Error is a classified pipeline error.
type Error struct {
	Kind    Kind
	Message string // short description, safe to show to a caller
	Detail  string // diagnostic from the failing collaborator (store message, offending keyword)
	Cause   error
}

// New creates a classified error.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetail returns a copy of e carrying a diagnostic detail.
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the failure is transient. Only an unreachable
// store or schema source is worth another attempt.
func (e *Error) IsRetryable() bool {
	return e.Kind == KindStoreUnavailable || e.Kind == KindSchemaUnavailable
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrUnsafeQuery) works
// regardless of message or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage converts an error into the non-technical string returned to callers.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "The question could not be answered due to an internal error."
	}

	switch e.Kind {
	case KindValidation:
		return e.Message
	case KindSchemaUnavailable:
		return "The grant database schema is currently unavailable. Please try again shortly."
	case KindGenerationFailed:
		return "A database query could not be generated for this question. Try rephrasing it."
	case KindUnsafeQuery:
		return "The generated query was rejected because it attempted to modify data."
	case KindQueryExecution:
		if e.Detail != "" {
			return "The generated query could not be executed: " + e.Detail
		}
		return "The generated query could not be executed."
	case KindStoreUnavailable:
		return "The grant database is currently unreachable. Please try again shortly."
	default:
		return "The question could not be answered due to an internal error."
	}
}
