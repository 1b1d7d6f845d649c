// Package models defines the request, result and response types that flow
// through the question answering pipeline.
package models

import (
	"time"

	"github.com/ekaya-inc/grantgraph/pkg/llm"
)

// QueryRequest is a user's natural-language question.
type QueryRequest struct {
	Question     string      `json:"question" validate:"required,max=2000"`
	Model        llm.ModelID `json:"model" validate:"required,model_id"`
	EnableSearch bool        `json:"enable_search"`
}

// GeneratedQuery is a read-only graph query produced for a question.
type GeneratedQuery struct {
	Text          string      `json:"text"`
	Model         llm.ModelID `json:"model"`
	SchemaVersion string      `json:"schema_version"`
	// Repaired is set when the text came from a repair attempt after the store rejected the first query.
	Repaired bool `json:"repaired"`
}

// ResultSet is the tabular result of executing a query.
type ResultSet struct {
	// Columns are in the order the store returned them.
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Elapsed  time.Duration    `json:"-"`
	// Truncated is set when the store had more rows than the row limit.
	Truncated bool `json:"truncated"`
}

// IsEmpty reports whether the result has no rows.
func (r *ResultSet) IsEmpty() bool {
	return r == nil || len(r.Rows) == 0
}

// ExternalReference is a web search result related to the question.
type ExternalReference struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// QueryResponse is the outcome of a pipeline run. Error is nil on success;
// on failure Results is empty and Summary is omitted.
type QueryResponse struct {
	Question       string              `json:"question"`
	GeneratedQuery string              `json:"generated_query"`
	Results        []map[string]any    `json:"results"`
	Columns        []string            `json:"columns"`
	RowCount       int                 `json:"row_count"`
	Truncated      bool                `json:"truncated"`
	Summary        string              `json:"summary,omitempty"`
	References     []ExternalReference `json:"references"`
	Model          llm.ModelID         `json:"model"`
	Repaired       bool                `json:"repaired"`
	// SummaryDegraded is set when the summary came from the template fallback.
	SummaryDegraded bool    `json:"summary_degraded"`
	ElapsedMS       int64   `json:"elapsed_ms"`
	Error           *string `json:"error"`
	// ErrorKind classifies Error for programmatic callers.
	ErrorKind string `json:"error_kind,omitempty"`
}

// Succeeded reports whether the response carries no error.
func (r *QueryResponse) Succeeded() bool {
	return r.Error == nil
}
