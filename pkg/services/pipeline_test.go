package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/graph"
	"github.com/ekaya-inc/grantgraph/pkg/llm"
	"github.com/ekaya-inc/grantgraph/pkg/metrics"
	"github.com/ekaya-inc/grantgraph/pkg/models"
	"github.com/ekaya-inc/grantgraph/pkg/schema"
	"github.com/ekaya-inc/grantgraph/pkg/search"
)

type pipelineFixture struct {
	completer *llm.MockCompleter
	runner    *fakeRunner
	searcher  *fakeSearcher
	schema    *fakeSchemaSource
	metrics   *metrics.Metrics
	pipeline  QueryPipeline
}

func newPipelineFixture(t *testing.T, completer *llm.MockCompleter, runner *fakeRunner) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		completer: completer,
		runner:    runner,
		searcher: &fakeSearcher{fallback: []search.Result{
			{Title: "CRISPR lab", URL: "https://example.org/crispr", Snippet: "Gene editing"},
		}},
		schema:  &fakeSchemaSource{desc: schema.Default()},
		metrics: metrics.New(),
	}
	logger := zap.NewNop()
	f.pipeline = NewQueryPipeline(
		f.schema,
		NewQueryGenerator(completer, nil, nil, logger),
		NewQueryExecutor(runner, fastRetry(), logger),
		NewContextEnricher(f.searcher, nil, DefaultEnricherConfig(), f.metrics, logger),
		NewAnswerSynthesizer(completer, DefaultSynthesizerConfig(), f.metrics, logger),
		PipelineConfig{RowLimit: 100},
		f.metrics,
		logger,
	)
	return f
}

func crisprRunner() *fakeRunner {
	return &fakeRunner{RunFunc: func(int, string, map[string]any, int) (*graph.Rows, error) {
		return rowsOf([]string{"grant_title", "amount"}, map[string]any{
			"grant_title": "CRISPR gene editing for inherited blindness",
			"amount":      int64(1500000),
		}), nil
	}}
}

func TestQueryPipeline_AnswersQuestion(t *testing.T) {
	completer := scriptedCompleter(map[string][]llm.MockResponse{
		"generation": {{Text: "```cypher\n" + crisprQuery + "\n```"}},
		"synthesis":  {{Text: "> Grant Analysis: CRISPR grants over $1M\n\n## Overview\nOne grant found."}},
	})
	f := newPipelineFixture(t, completer, crisprRunner())

	resp, trace := f.pipeline.RunWithTrace(context.Background(), models.QueryRequest{Question: "CRISPR grants over $1M"})

	require.True(t, resp.Succeeded(), "unexpected error: %v", resp.Error)
	assert.Equal(t, crisprQuery, resp.GeneratedQuery)
	assert.Equal(t, 1, resp.RowCount)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, []string{"grant_title", "amount"}, resp.Columns)
	assert.Equal(t, llm.DefaultModel, resp.Model)
	assert.False(t, resp.Repaired)
	assert.False(t, resp.SummaryDegraded)
	assert.Contains(t, resp.Summary, "## Overview")
	assert.Empty(t, resp.References)

	assert.Contains(t, completer.Prompts()[0], `"$1M" means 1000000`)
	assert.Empty(t, f.searcher.Terms(), "search disabled by default")
	assert.Equal(t, []Stage{StageStart, StageSchemaReady, StageQueryGenerated, StageExecuted, StageSynthesized, StageDone}, trace.Stages)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QueriesTotal.WithLabelValues("success")))
}

func TestQueryPipeline_WithSearch(t *testing.T) {
	completer := scriptedCompleter(map[string][]llm.MockResponse{
		"generation": {{Text: crisprQuery}},
		"synthesis":  {{Text: "summary"}},
	})
	f := newPipelineFixture(t, completer, crisprRunner())

	resp, trace := f.pipeline.RunWithTrace(context.Background(), models.QueryRequest{Question: "CRISPR grants", EnableSearch: true})

	require.True(t, resp.Succeeded())
	assert.NotEmpty(t, f.searcher.Terms())
	require.Len(t, resp.References, 1)
	assert.Equal(t, "https://example.org/crispr", resp.References[0].URL)
	assert.Contains(t, trace.Stages, StageEnriched)

	synthesisPrompt := completer.Prompts()[1]
	assert.Contains(t, synthesisPrompt, "## Web Context")
}

func TestQueryPipeline_SearchFailureStillAnswers(t *testing.T) {
	completer := scriptedCompleter(map[string][]llm.MockResponse{
		"generation": {{Text: crisprQuery}},
		"synthesis":  {{Text: "summary"}},
	})
	f := newPipelineFixture(t, completer, crisprRunner())
	f.searcher.errs = map[string]error{"crispr gene editing inherited": errors.New("timeout")}

	resp := f.pipeline.Run(context.Background(), models.QueryRequest{Question: "CRISPR grants", EnableSearch: true})

	require.True(t, resp.Succeeded())
	assert.Equal(t, 1, resp.RowCount)
	assert.Empty(t, resp.References)
	assert.NotNil(t, resp.References)
}

func TestQueryPipeline_ValidationFailsBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name    string
		req     models.QueryRequest
		wantMsg string
	}{
		{name: "empty question", req: models.QueryRequest{Question: ""}, wantMsg: "question is required"},
		{name: "blank question", req: models.QueryRequest{Question: "   \n\t"}, wantMsg: "question is required"},
		{name: "unknown model", req: models.QueryRequest{Question: "CRISPR grants", Model: "gpt-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := llm.NewMockCompleter(crisprQuery)
			f := newPipelineFixture(t, completer, crisprRunner())

			resp, trace := f.pipeline.RunWithTrace(context.Background(), tt.req)

			require.False(t, resp.Succeeded())
			assert.Equal(t, string(apperrors.KindValidation), resp.ErrorKind)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, *resp.Error)
			}
			assert.Empty(t, resp.Results)
			assert.Empty(t, resp.Summary)
			assert.Equal(t, 0, completer.Calls())
			assert.Equal(t, 0, f.runner.Calls())
			assert.Equal(t, 0, f.schema.calls)
			assert.Equal(t, []Stage{StageStart, StageError}, trace.Stages)
		})
	}
}

func TestQueryPipeline_RepairSucceeds(t *testing.T) {
	fixed := "MATCH (g:Grant) WHERE toLower(g.title) CONTAINS 'crispr' RETURN g.title AS grant_title, g.amount AS amount"
	completer := scriptedCompleter(map[string][]llm.MockResponse{
		"generation": {{Text: "MATCH (g:Grants) RETURN g.titel"}},
		"repair":     {{Text: fixed}},
		"synthesis":  {{Text: "summary"}},
	})
	runner := &fakeRunner{RunFunc: func(call int, query string, _ map[string]any, _ int) (*graph.Rows, error) {
		if call == 0 {
			return nil, apperrors.New(apperrors.KindQueryExecution, "query failed", nil).WithDetail("Unknown label Grants")
		}
		return crisprRunner().RunFunc(call, query, nil, 0)
	}}
	f := newPipelineFixture(t, completer, runner)

	resp, trace := f.pipeline.RunWithTrace(context.Background(), models.QueryRequest{Question: "CRISPR grants"})

	require.True(t, resp.Succeeded(), "unexpected error: %v", resp.Error)
	assert.True(t, resp.Repaired)
	assert.Equal(t, fixed, resp.GeneratedQuery)
	assert.Equal(t, 1, resp.RowCount)
	assert.Equal(t, 2, runner.Calls())
	assert.Equal(t, 1, countKind(completer, "repair"))
	assert.Contains(t, trace.Stages, StageRepairAttempted)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RepairAttempts.WithLabelValues("succeeded")))
}

func TestQueryPipeline_RepairFailsIsTerminal(t *testing.T) {
	completer := scriptedCompleter(map[string][]llm.MockResponse{
		"generation": {{Text: "MATCH (g:Grants) RETURN g.titel"}},
		"repair":     {{Text: "MATCH (g:Grantz) RETURN g.title"}},
		"synthesis":  {{Text: "summary"}},
	})
	runner := &fakeRunner{RunFunc: func(int, string, map[string]any, int) (*graph.Rows, error) {
		return nil, apperrors.New(apperrors.KindQueryExecution, "query failed", nil).WithDetail("Unknown label")
	}}
	f := newPipelineFixture(t, completer, runner)

	resp := f.pipeline.Run(context.Background(), models.QueryRequest{Question: "CRISPR grants"})

	require.False(t, resp.Succeeded())
	assert.Equal(t, string(apperrors.KindQueryExecution), resp.ErrorKind)
	assert.Contains(t, *resp.Error, "Unknown label")
	assert.Equal(t, 1, countKind(completer, "generation"))
	assert.Equal(t, 1, countKind(completer, "repair"))
	assert.Equal(t, 0, countKind(completer, "synthesis"))
	assert.Equal(t, 2, runner.Calls())
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.Summary)
}

func TestQueryPipeline_UnsafeQueryIsTerminal(t *testing.T) {
	completer := scriptedCompleter(map[string][]llm.MockResponse{
		"generation": {{Text: "MATCH (g:Grant) SET g.amount = 0 RETURN g"}},
	})
	f := newPipelineFixture(t, completer, crisprRunner())

	resp := f.pipeline.Run(context.Background(), models.QueryRequest{Question: "zero all grant amounts"})

	require.False(t, resp.Succeeded())
	assert.Equal(t, string(apperrors.KindUnsafeQuery), resp.ErrorKind)
	assert.Equal(t, 1, completer.Calls())
	assert.Equal(t, 0, f.runner.Calls())
	assert.Empty(t, resp.GeneratedQuery)
}

func TestQueryPipeline_SchemaUnavailable(t *testing.T) {
	completer := llm.NewMockCompleter(crisprQuery)
	f := newPipelineFixture(t, completer, crisprRunner())
	f.schema.desc = nil
	f.schema.err = errors.New("connection refused")

	resp := f.pipeline.Run(context.Background(), models.QueryRequest{Question: "CRISPR grants"})

	require.False(t, resp.Succeeded())
	assert.Equal(t, string(apperrors.KindSchemaUnavailable), resp.ErrorKind)
	assert.Equal(t, 0, completer.Calls())
}

func TestQueryPipeline_StoreUnavailableSkipsRepair(t *testing.T) {
	completer := scriptedCompleter(map[string][]llm.MockResponse{
		"generation": {{Text: crisprQuery}},
	})
	runner := &fakeRunner{RunFunc: func(int, string, map[string]any, int) (*graph.Rows, error) {
		return nil, apperrors.New(apperrors.KindStoreUnavailable, "connection refused", nil)
	}}
	f := newPipelineFixture(t, completer, runner)

	resp := f.pipeline.Run(context.Background(), models.QueryRequest{Question: "CRISPR grants"})

	require.False(t, resp.Succeeded())
	assert.Equal(t, string(apperrors.KindStoreUnavailable), resp.ErrorKind)
	assert.Equal(t, 0, countKind(completer, "repair"))
	assert.Equal(t, fastRetry().MaxAttempts, runner.Calls())
}

func TestQueryPipeline_SynthesisFallback(t *testing.T) {
	completer := scriptedCompleter(map[string][]llm.MockResponse{
		"generation": {{Text: crisprQuery}},
		"synthesis":  {{Err: errors.New("503")}},
	})
	f := newPipelineFixture(t, completer, crisprRunner())

	resp := f.pipeline.Run(context.Background(), models.QueryRequest{Question: "CRISPR grants"})

	require.True(t, resp.Succeeded())
	assert.True(t, resp.SummaryDegraded)
	assert.Contains(t, resp.Summary, "> Grant Analysis: CRISPR grants")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SynthesisFallbacks))
}

func TestQueryPipeline_RowCap(t *testing.T) {
	completer := scriptedCompleter(map[string][]llm.MockResponse{
		"generation": {{Text: crisprQuery}},
		"synthesis":  {{Text: "summary"}},
	})
	runner := &fakeRunner{RunFunc: func(int, string, map[string]any, int) (*graph.Rows, error) {
		return rowsOf([]string{"grant_title", "amount"}, grantRows(250)...), nil
	}}
	f := newPipelineFixture(t, completer, runner)

	resp := f.pipeline.Run(context.Background(), models.QueryRequest{Question: "all grants"})

	require.True(t, resp.Succeeded())
	assert.Equal(t, 100, resp.RowCount)
	assert.Len(t, resp.Results, 100)
	assert.True(t, resp.Truncated)
}

func TestQueryPipeline_RequestTimeoutCancelsInFlight(t *testing.T) {
	var sawCancel atomic.Bool
	completer := &llm.MockCompleter{
		CompleteFunc: func(ctx context.Context, _ string, _ llm.ModelID) (string, error) {
			<-ctx.Done()
			sawCancel.Store(true)
			return "", ctx.Err()
		},
	}
	runner := crisprRunner()
	logger := zap.NewNop()
	m := metrics.New()
	pipeline := NewQueryPipeline(
		&fakeSchemaSource{desc: schema.Default()},
		NewQueryGenerator(completer, nil, nil, logger),
		NewQueryExecutor(runner, fastRetry(), logger),
		nil,
		NewAnswerSynthesizer(completer, DefaultSynthesizerConfig(), m, logger),
		PipelineConfig{RowLimit: 100, RequestTimeout: 100 * time.Millisecond},
		m,
		logger,
	)

	start := time.Now()
	resp := pipeline.Run(context.Background(), models.QueryRequest{Question: "CRISPR grants over $1M"})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second, "request must not outlive its timeout")
	require.False(t, resp.Succeeded())
	assert.Equal(t, string(apperrors.KindGenerationFailed), resp.ErrorKind)
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.Summary)
	assert.True(t, sawCancel.Load(), "in-flight completion must observe the deadline")
	assert.Equal(t, 1, completer.Calls(), "a cancelled completion is not retried")
	assert.Equal(t, 0, runner.Calls())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StageStart, StageSchemaReady, true},
		{StageStart, StageQueryGenerated, false},
		{StageQueryGenerated, StageExecuted, true},
		{StageQueryGenerated, StageRepairAttempted, true},
		{StageRepairAttempted, StageExecuted, true},
		{StageRepairAttempted, StageRepairAttempted, false},
		{StageExecuted, StageEnriched, true},
		{StageExecuted, StageSynthesized, true},
		{StageEnriched, StageExecuted, false},
		{StageSynthesized, StageDone, true},
		{StageStart, StageError, true},
		{StageEnriched, StageError, true},
		{StageDone, StageError, false},
		{StageError, StageStart, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}
