package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/retry"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      apperrors.Kind
		detail    string
		retryable bool
	}{
		{
			name:   "syntax error",
			err:    &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "Invalid input 'RETRUN'"},
			kind:   apperrors.KindQueryExecution,
			detail: "Invalid input 'RETRUN'",
		},
		{
			name:   "unknown function",
			err:    fmt.Errorf("run: %w", &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SemanticError", Msg: "Unknown function 'foo'"}),
			kind:   apperrors.KindQueryExecution,
			detail: "Unknown function 'foo'",
		},
		{
			name:      "transient",
			err:       &neo4j.Neo4jError{Code: "Neo.TransientError.General.DatabaseUnavailable", Msg: "db unavailable"},
			kind:      apperrors.KindStoreUnavailable,
			retryable: true,
		},
		{
			name:      "auth",
			err:       &neo4j.Neo4jError{Code: "Neo.ClientError.Security.Unauthorized", Msg: "bad credentials"},
			kind:      apperrors.KindStoreUnavailable,
			retryable: true,
		},
		{
			name:   "other client error",
			err:    &neo4j.Neo4jError{Code: "Neo.ClientError.Procedure.ProcedureNotFound", Msg: "no such procedure"},
			kind:   apperrors.KindQueryExecution,
			detail: "no such procedure",
		},
		{
			name:      "connectivity",
			err:       &neo4j.ConnectivityError{Inner: errors.New("dial tcp: connection refused")},
			kind:      apperrors.KindStoreUnavailable,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify(tt.err)
			assert.Equal(t, tt.kind, apperrors.KindOf(classified))
			assert.Equal(t, tt.retryable, retry.IsRetryable(classified))
			if tt.detail != "" {
				var appErr *apperrors.Error
				assert.ErrorAs(t, classified, &appErr)
				assert.Equal(t, tt.detail, appErr.Detail)
			}
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Same(t, context.Canceled, Classify(context.Canceled))

	already := apperrors.New(apperrors.KindStoreUnavailable, "x", nil)
	assert.Same(t, already, Classify(already))
}
