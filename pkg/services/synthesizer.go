package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/format"
	"github.com/ekaya-inc/grantgraph/pkg/llm"
	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/metrics"
	"github.com/ekaya-inc/grantgraph/pkg/models"
	"github.com/ekaya-inc/grantgraph/pkg/prompts"
)

// SynthesizerConfig bounds the result data sent to the model.
type SynthesizerConfig struct {
	SampleRows  int // rows rendered into the prompt table
	TokenBudget int // upper bound on prompt tokens
}

// DefaultSynthesizerConfig returns the standard limits.
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{SampleRows: 25, TokenBudget: 6000}
}

// Synthesis is the outcome of the synthesis stage. Degraded is set when the
// markdown came from the template fallback; Err then records why.
type Synthesis struct {
	Markdown string
	Degraded bool
	Err      error
}

// AnswerSynthesizer writes the markdown answer for a question.
type AnswerSynthesizer interface {
	// Synthesize never fails; model problems yield a degraded Synthesis.
	Synthesize(ctx context.Context, question string, query *models.GeneratedQuery, results *models.ResultSet, refs []models.ExternalReference, model llm.ModelID) Synthesis
}

type answerSynthesizer struct {
	completer llm.Completer
	cfg       SynthesizerConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewAnswerSynthesizer creates a synthesizer. A nil completer always uses the
// template fallback.
func NewAnswerSynthesizer(completer llm.Completer, cfg SynthesizerConfig, m *metrics.Metrics, logger *zap.Logger) AnswerSynthesizer {
	def := DefaultSynthesizerConfig()
	if cfg.SampleRows <= 0 {
		cfg.SampleRows = def.SampleRows
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = def.TokenBudget
	}
	return &answerSynthesizer{
		completer: completer,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.Named("answer-synthesizer"),
	}
}

var _ AnswerSynthesizer = (*answerSynthesizer)(nil)

func (s *answerSynthesizer) Synthesize(ctx context.Context, question string, query *models.GeneratedQuery, results *models.ResultSet, refs []models.ExternalReference, model llm.ModelID) Synthesis {
	if s.completer == nil {
		return s.fallback(question, results, refs, apperrors.New(apperrors.KindSynthesisDegraded, "no language model configured", nil))
	}

	prompt := s.buildPrompt(question, query, results, refs)
	response, err := s.completer.Complete(ctx, prompt, model)
	if err != nil {
		return s.fallback(question, results, refs, apperrors.New(apperrors.KindSynthesisDegraded, "summary model call failed", err))
	}

	markdown := strings.TrimSpace(llm.StripThinking(response))
	if markdown == "" {
		return s.fallback(question, results, refs, apperrors.New(apperrors.KindSynthesisDegraded, "summary model returned no text", nil))
	}
	return Synthesis{Markdown: markdown}
}

func (s *answerSynthesizer) fallback(question string, results *models.ResultSet, refs []models.ExternalReference, cause error) Synthesis {
	s.metrics.IncSynthesisFallback()
	s.logger.Info("Using template summary",
		zap.String("reason", logging.SanitizeError(cause)))
	return Synthesis{
		Markdown: format.FallbackSummary(question, results, refs),
		Degraded: true,
		Err:      cause,
	}
}

// buildPrompt renders up to SampleRows rows, dropping rows from the end until
// the prompt fits the token budget.
func (s *answerSynthesizer) buildPrompt(question string, query *models.GeneratedQuery, results *models.ResultSet, refs []models.ExternalReference) string {
	var (
		columns []string
		rows    []map[string]any
		total   int
	)
	if results != nil {
		columns, rows, total = results.Columns, results.Rows, results.RowCount
		if total < len(rows) {
			total = len(rows)
		}
	}
	queryText := ""
	if query != nil {
		queryText = query.Text
	}

	promptRefs := make([]prompts.Reference, len(refs))
	for i, r := range refs {
		promptRefs[i] = prompts.Reference{Title: r.Title, URL: r.URL, Snippet: r.Snippet}
	}

	sample := min(len(rows), s.cfg.SampleRows)
	for {
		prompt := prompts.BuildSynthesisPrompt(prompts.SynthesisInput{
			Question:   question,
			Query:      queryText,
			TotalRows:  total,
			SampleRows: sample,
			Table:      format.Table(columns, rows, sample),
			References: promptRefs,
		})
		if sample <= 1 || llm.CountTokens(prompt) <= s.cfg.TokenBudget {
			return prompt
		}
		// Drop a quarter of the sample per pass.
		sample -= max(1, sample/4)
	}
}
