package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/audit"
	"github.com/ekaya-inc/grantgraph/pkg/cypher"
	"github.com/ekaya-inc/grantgraph/pkg/llm"
	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/models"
	"github.com/ekaya-inc/grantgraph/pkg/prompts"
	"github.com/ekaya-inc/grantgraph/pkg/schema"
)

// QueryGenerator turns a question into a validated read-only Cypher query.
type QueryGenerator interface {
	// Generate asks the model for a query answering question against desc.
	Generate(ctx context.Context, question string, desc *schema.Descriptor, model llm.ModelID) (*models.GeneratedQuery, error)

	// Repair asks the model to fix prior given the store's rejection. The
	// result has Repaired set.
	Repair(ctx context.Context, question string, desc *schema.Descriptor, model llm.ModelID, prior *models.GeneratedQuery, storeErr error) (*models.GeneratedQuery, error)
}

type queryGenerator struct {
	completer llm.Completer
	auditor   *audit.SecurityAuditor
	examples  []prompts.Example
	logger    *zap.Logger
}

// NewQueryGenerator creates a generator. A nil examples slice uses the
// built-in few-shot pairs.
func NewQueryGenerator(completer llm.Completer, auditor *audit.SecurityAuditor, examples []prompts.Example, logger *zap.Logger) QueryGenerator {
	if auditor == nil {
		auditor = audit.NewSecurityAuditor(logger)
	}
	return &queryGenerator{
		completer: completer,
		auditor:   auditor,
		examples:  examples,
		logger:    logger.Named("query-generator"),
	}
}

var _ QueryGenerator = (*queryGenerator)(nil)

func (g *queryGenerator) Generate(ctx context.Context, question string, desc *schema.Descriptor, model llm.ModelID) (*models.GeneratedQuery, error) {
	prompt := prompts.BuildGenerationPrompt(prompts.GenerationInput{
		Question: question,
		Schema:   desc.PromptText(),
		Examples: g.examples,
	})

	text, err := g.produce(ctx, question, prompt, model)
	if err != nil {
		return nil, err
	}
	return &models.GeneratedQuery{
		Text:          text,
		Model:         model,
		SchemaVersion: desc.Version(),
	}, nil
}

func (g *queryGenerator) Repair(ctx context.Context, question string, desc *schema.Descriptor, model llm.ModelID, prior *models.GeneratedQuery, storeErr error) (*models.GeneratedQuery, error) {
	prompt := prompts.BuildRepairPrompt(prompts.RepairInput{
		Question:    question,
		Schema:      desc.PromptText(),
		FailedQuery: prior.Text,
		StoreError:  storeDiagnostic(storeErr),
	})

	text, err := g.produce(ctx, question, prompt, model)
	if err != nil {
		return nil, err
	}
	return &models.GeneratedQuery{
		Text:          text,
		Model:         model,
		SchemaVersion: desc.Version(),
		Repaired:      true,
	}, nil
}

// produce calls the model, isolates the query text and validates it.
func (g *queryGenerator) produce(ctx context.Context, question, prompt string, model llm.ModelID) (string, error) {
	response, err := g.complete(ctx, prompt, model)
	if err != nil {
		return "", err
	}

	result, err := cypher.Validate(llm.ExtractQueryText(response))
	if err != nil {
		var writeErr *cypher.WriteKeywordError
		switch {
		case errors.As(err, &writeErr):
			g.auditor.LogUnsafeQuery(ctx, model.String(), audit.UnsafeQueryDetails{
				Question: question,
				Query:    llm.ExtractQueryText(response),
				Keyword:  writeErr.Keyword,
			})
			return "", apperrors.New(apperrors.KindUnsafeQuery, writeErr.Error(), nil).WithDetail(writeErr.Keyword)
		case errors.Is(err, cypher.ErrEmptyQuery):
			g.logger.Warn("Model returned no query text",
				zap.String("model", model.String()),
				zap.String("response", logging.TruncateString(logging.SanitizeText(response), logging.MaxQueryLogLength)))
			return "", apperrors.New(apperrors.KindGenerationFailed, "the model returned no query", err)
		default:
			return "", apperrors.New(apperrors.KindGenerationFailed, "generated query is invalid", err)
		}
	}

	if result.ExtraStatements {
		g.auditor.LogExtraStatements(ctx, model.String(), llm.ExtractQueryText(response))
	}
	for _, hit := range cypher.CheckLiterals(result.Literals) {
		g.auditor.LogInjectionPattern(ctx, model.String(), audit.InjectionDetails{
			Literal:     hit.Literal,
			Fingerprint: hit.Fingerprint,
			Query:       result.Query,
		})
	}

	g.logger.Debug("Generated query",
		zap.String("model", model.String()),
		zap.String("query", logging.TruncateQuery(result.Query)))
	return result.Query, nil
}

// complete retries a provider failure exactly once with the same prompt.
func (g *queryGenerator) complete(ctx context.Context, prompt string, model llm.ModelID) (string, error) {
	response, err := g.completer.Complete(ctx, prompt, model)
	if err == nil {
		return response, nil
	}
	if ctx.Err() != nil {
		return "", apperrors.New(apperrors.KindGenerationFailed, "query generation was cancelled", ctx.Err())
	}

	g.logger.Warn("Query generation call failed, retrying once",
		zap.String("model", model.String()),
		zap.String("error", logging.SanitizeError(err)))

	response, err = g.completer.Complete(ctx, prompt, model)
	if err != nil {
		return "", apperrors.New(apperrors.KindGenerationFailed, "the language model did not return a query", err)
	}
	return response, nil
}

// storeDiagnostic extracts the store's message for the repair prompt.
func storeDiagnostic(err error) string {
	if err == nil {
		return "unknown error"
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Detail != "" {
		return logging.SanitizeText(appErr.Detail)
	}
	return logging.SanitizeError(err)
}
