package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/llm"
	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/metrics"
	"github.com/ekaya-inc/grantgraph/pkg/middleware"
	"github.com/ekaya-inc/grantgraph/pkg/models"
	"github.com/ekaya-inc/grantgraph/pkg/schema"
)

// Stage is a state of one pipeline run.
type Stage string

const (
	StageStart           Stage = "START"
	StageSchemaReady     Stage = "SCHEMA_READY"
	StageQueryGenerated  Stage = "QUERY_GENERATED"
	StageRepairAttempted Stage = "REPAIR_ATTEMPTED"
	StageExecuted        Stage = "EXECUTED"
	StageEnriched        Stage = "ENRICHED"
	StageSynthesized     Stage = "SYNTHESIZED"
	StageDone            Stage = "DONE"
	StageError           Stage = "ERROR"
)

// transitions lists the legal successors of each stage. ERROR is reachable
// from every non-terminal stage.
var transitions = map[Stage][]Stage{
	StageStart:           {StageSchemaReady},
	StageSchemaReady:     {StageQueryGenerated},
	StageQueryGenerated:  {StageExecuted, StageRepairAttempted},
	StageRepairAttempted: {StageExecuted},
	StageExecuted:        {StageEnriched, StageSynthesized},
	StageEnriched:        {StageSynthesized},
	StageSynthesized:     {StageDone},
}

// CanTransition reports whether a run may move from one stage to another.
func CanTransition(from, to Stage) bool {
	if from == StageDone || from == StageError {
		return false
	}
	if to == StageError {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Trace records the stages a run passed through.
type Trace struct {
	Stages []Stage
	// Durations holds the time spent reaching each stage, parallel to Stages.
	Durations []time.Duration
	last      time.Time
}

func newTrace() *Trace {
	return &Trace{Stages: []Stage{StageStart}, Durations: []time.Duration{0}, last: time.Now()}
}

// Current returns the latest stage.
func (t *Trace) Current() Stage {
	return t.Stages[len(t.Stages)-1]
}

func (t *Trace) advance(to Stage) time.Duration {
	if !CanTransition(t.Current(), to) {
		panic("illegal pipeline transition " + string(t.Current()) + " -> " + string(to))
	}
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	t.Stages = append(t.Stages, to)
	t.Durations = append(t.Durations, d)
	return d
}

// SchemaSource supplies the current schema descriptor. *schema.Cache
// implements it.
type SchemaSource interface {
	Get(ctx context.Context) (*schema.Descriptor, error)
}

var _ SchemaSource = (*schema.Cache)(nil)

// PipelineConfig holds per-request policy.
type PipelineConfig struct {
	RowLimit       int
	RequestTimeout time.Duration
	DefaultModel   llm.ModelID
}

// QueryPipeline answers questions end to end.
type QueryPipeline interface {
	// Run never returns an error: failures come back as a response with
	// Error set and no results.
	Run(ctx context.Context, req models.QueryRequest) *models.QueryResponse

	// RunWithTrace is Run plus the stages visited.
	RunWithTrace(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, *Trace)
}

type queryPipeline struct {
	schema      SchemaSource
	generator   QueryGenerator
	executor    QueryExecutor
	enricher    ContextEnricher
	synthesizer AnswerSynthesizer
	cfg         PipelineConfig
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewQueryPipeline wires the pipeline stages together.
func NewQueryPipeline(
	schemaSource SchemaSource,
	generator QueryGenerator,
	executor QueryExecutor,
	enricher ContextEnricher,
	synthesizer AnswerSynthesizer,
	cfg PipelineConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) QueryPipeline {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = llm.DefaultModel
	}
	if enricher == nil {
		enricher = NewContextEnricher(nil, nil, DefaultEnricherConfig(), m, logger)
	}
	return &queryPipeline{
		schema:      schemaSource,
		generator:   generator,
		executor:    executor,
		enricher:    enricher,
		synthesizer: synthesizer,
		cfg:         cfg,
		metrics:     m,
		logger:      logger.Named("pipeline"),
	}
}

var _ QueryPipeline = (*queryPipeline)(nil)

func (p *queryPipeline) Run(ctx context.Context, req models.QueryRequest) *models.QueryResponse {
	resp, _ := p.RunWithTrace(ctx, req)
	return resp
}

// run carries the state of one request through the stages.
type run struct {
	p     *queryPipeline
	trace *Trace
	resp  *models.QueryResponse
	start time.Time
}

func (r *run) advance(to Stage) {
	d := r.trace.advance(to)
	r.p.metrics.ObserveStage(string(to), d)
}

func (r *run) fail(err error) *models.QueryResponse {
	r.trace.advance(StageError)
	msg := logging.SanitizeText(apperrors.UserMessage(err))
	kind := apperrors.KindOf(err)

	r.resp.Error = &msg
	r.resp.ErrorKind = string(kind)
	r.resp.Results = []map[string]any{}
	r.resp.Columns = []string{}
	r.resp.RowCount = 0
	r.resp.Truncated = false
	r.resp.Summary = ""
	r.resp.References = []models.ExternalReference{}
	r.resp.ElapsedMS = time.Since(r.start).Milliseconds()

	outcome := string(kind)
	if outcome == "" {
		outcome = "internal_error"
	}
	r.p.metrics.ObserveQuery(outcome)
	return r.resp
}

func (p *queryPipeline) RunWithTrace(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, *Trace) {
	r := &run{p: p, trace: newTrace(), start: time.Now()}
	req.Normalize(p.cfg.DefaultModel)
	r.resp = &models.QueryResponse{
		Question:   req.Question,
		Model:      req.Model,
		Results:    []map[string]any{},
		Columns:    []string{},
		References: []models.ExternalReference{},
	}
	logger := p.logger.With(zap.String("request_id", middleware.RequestIDFromContext(ctx)))

	if err := req.Validate(); err != nil {
		logger.Debug("Rejected request", zap.Error(err))
		return r.fail(err), r.trace
	}

	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}

	desc, err := p.schema.Get(ctx)
	if err != nil {
		logger.Warn("Schema unavailable", zap.String("error", logging.SanitizeError(err)))
		return r.fail(asKind(err, apperrors.KindSchemaUnavailable, "schema could not be loaded")), r.trace
	}
	r.advance(StageSchemaReady)

	query, err := p.generator.Generate(ctx, req.Question, desc, req.Model)
	if err != nil {
		logger.Warn("Query generation failed",
			zap.String("model", req.Model.String()),
			zap.String("error", logging.SanitizeError(err)))
		return r.fail(asKind(err, apperrors.KindGenerationFailed, "query generation failed")), r.trace
	}
	r.advance(StageQueryGenerated)
	r.resp.GeneratedQuery = query.Text

	results, err := p.executor.Execute(ctx, query.Text, p.cfg.RowLimit)
	if err != nil && apperrors.KindOf(err) == apperrors.KindQueryExecution {
		logger.Info("Query rejected by store, attempting repair",
			zap.String("query", logging.TruncateQuery(query.Text)),
			zap.String("error", logging.SanitizeError(err)))
		r.advance(StageRepairAttempted)

		repaired, genErr := p.generator.Repair(ctx, req.Question, desc, req.Model, query, err)
		if genErr != nil {
			p.metrics.ObserveRepair(false)
			return r.fail(asKind(genErr, apperrors.KindGenerationFailed, "query repair failed")), r.trace
		}
		query = repaired
		r.resp.GeneratedQuery = query.Text
		r.resp.Repaired = true

		results, err = p.executor.Execute(ctx, query.Text, p.cfg.RowLimit)
		p.metrics.ObserveRepair(err == nil)
	}
	if err != nil {
		logger.Warn("Query execution failed",
			zap.String("query", logging.TruncateQuery(query.Text)),
			zap.String("error", logging.SanitizeError(err)))
		return r.fail(asKind(err, apperrors.KindQueryExecution, "query execution failed")), r.trace
	}
	r.advance(StageExecuted)

	refs := []models.ExternalReference{}
	if req.EnableSearch {
		enrichment := p.enricher.Enrich(ctx, req.Question, results)
		if len(enrichment.References) > 0 {
			refs = enrichment.References
		}
		r.advance(StageEnriched)
	}

	synthesis := p.synthesizer.Synthesize(ctx, req.Question, query, results, refs, req.Model)
	r.advance(StageSynthesized)

	r.resp.Results = results.Rows
	r.resp.Columns = results.Columns
	r.resp.RowCount = results.RowCount
	r.resp.Truncated = results.Truncated
	r.resp.Summary = synthesis.Markdown
	r.resp.SummaryDegraded = synthesis.Degraded
	r.resp.References = refs
	r.resp.ElapsedMS = time.Since(r.start).Milliseconds()
	r.advance(StageDone)
	p.metrics.ObserveQuery("success")

	logger.Info("Question answered",
		zap.String("model", req.Model.String()),
		zap.Int("rows", results.RowCount),
		zap.Bool("repaired", r.resp.Repaired),
		zap.Bool("summary_degraded", synthesis.Degraded),
		zap.Int("references", len(refs)),
		zap.Int64("elapsed_ms", r.resp.ElapsedMS))
	return r.resp, r.trace
}

// asKind wraps err in the given kind unless it already carries one.
func asKind(err error, kind apperrors.Kind, message string) error {
	if apperrors.KindOf(err) != "" {
		return err
	}
	return apperrors.New(kind, message, err)
}
