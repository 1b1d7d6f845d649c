package graph

import (
	"context"
	"errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
)

// statementErrorPrefix covers syntax, semantic, type and unknown-entity errors
// raised while planning or running a query.
const statementErrorPrefix = "Neo.ClientError.Statement."

// Classify maps a driver error onto the pipeline error kinds:
//   - statement errors become query_execution_error with the server message as detail
//   - connectivity, transient and database-unavailable errors become store_unavailable
//   - context errors are returned unchanged
//
// Anything else is treated as an execution error.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		switch {
		case strings.HasPrefix(neoErr.Code, statementErrorPrefix):
			return apperrors.New(apperrors.KindQueryExecution, "query rejected by graph store", err).
				WithDetail(neoErr.Msg)
		case strings.HasPrefix(neoErr.Code, "Neo.TransientError."),
			strings.HasPrefix(neoErr.Code, "Neo.DatabaseError."),
			strings.Contains(neoErr.Code, "DatabaseUnavailable"):
			return apperrors.New(apperrors.KindStoreUnavailable, "graph store unavailable", err)
		case strings.HasPrefix(neoErr.Code, "Neo.ClientError.Security."):
			return apperrors.New(apperrors.KindStoreUnavailable, "graph store rejected credentials", err)
		default:
			return apperrors.New(apperrors.KindQueryExecution, "query failed", err).
				WithDetail(neoErr.Msg)
		}
	}

	if neo4j.IsConnectivityError(err) || neo4j.IsRetryable(err) {
		return apperrors.New(apperrors.KindStoreUnavailable, "graph store unavailable", err)
	}

	return apperrors.New(apperrors.KindQueryExecution, "query failed", err).WithDetail(err.Error())
}
