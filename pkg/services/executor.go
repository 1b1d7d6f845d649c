package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/config"
	"github.com/ekaya-inc/grantgraph/pkg/graph"
	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/models"
	"github.com/ekaya-inc/grantgraph/pkg/retry"
)

// DefaultRowLimit applies when the caller passes a non-positive limit.
const DefaultRowLimit = 100

// QueryExecutor runs validated queries against the graph store.
type QueryExecutor interface {
	// Execute runs query and returns at most rowLimit rows. Limits above
	// config.MaxRowLimit are lowered to it.
	Execute(ctx context.Context, query string, rowLimit int) (*models.ResultSet, error)
}

type queryExecutor struct {
	runner graph.Runner
	retry  *retry.Config
	logger *zap.Logger
}

// NewQueryExecutor creates an executor. Store connectivity failures are
// retried according to rc; query errors are returned at once.
func NewQueryExecutor(runner graph.Runner, rc *retry.Config, logger *zap.Logger) QueryExecutor {
	return &queryExecutor{
		runner: runner,
		retry:  rc,
		logger: logger.Named("query-executor"),
	}
}

var _ QueryExecutor = (*queryExecutor)(nil)

// EffectiveRowLimit clamps a requested limit to (0, config.MaxRowLimit].
func EffectiveRowLimit(rowLimit int) int {
	switch {
	case rowLimit <= 0:
		return DefaultRowLimit
	case rowLimit > config.MaxRowLimit:
		return config.MaxRowLimit
	}
	return rowLimit
}

func (e *queryExecutor) Execute(ctx context.Context, query string, rowLimit int) (*models.ResultSet, error) {
	limit := EffectiveRowLimit(rowLimit)
	start := time.Now()

	rows, err := retry.DoWithResult(ctx, e.retry, func(ctx context.Context) (*graph.Rows, error) {
		return e.runner.Run(ctx, query, nil, limit)
	}, func(attempt int, err error, wait time.Duration) {
		e.logger.Warn("Graph store unavailable, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.String("error", logging.SanitizeError(err)))
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, classifyExecutionError(ctx, err)
	}

	records := rows.Records
	truncated := rows.Truncated
	if len(records) > limit {
		records = records[:limit]
		truncated = true
	}
	if records == nil {
		records = []map[string]any{}
	}

	e.logger.Debug("Query executed",
		zap.Int("rows", len(records)),
		zap.Bool("truncated", truncated),
		zap.Duration("elapsed", elapsed))

	return &models.ResultSet{
		Columns:   rows.Columns,
		Rows:      records,
		RowCount:  len(records),
		Elapsed:   elapsed,
		Truncated: truncated,
	}, nil
}

func classifyExecutionError(ctx context.Context, err error) error {
	if apperrors.KindOf(err) != "" {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.New(apperrors.KindStoreUnavailable, "query was cancelled or timed out", err)
	}
	return apperrors.New(apperrors.KindQueryExecution, "query failed", err).WithDetail(logging.SanitizeError(err))
}
