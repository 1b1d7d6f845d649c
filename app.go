package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/audit"
	"github.com/ekaya-inc/grantgraph/pkg/config"
	"github.com/ekaya-inc/grantgraph/pkg/database"
	"github.com/ekaya-inc/grantgraph/pkg/graph"
	"github.com/ekaya-inc/grantgraph/pkg/llm"
	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/metrics"
	"github.com/ekaya-inc/grantgraph/pkg/prompts"
	"github.com/ekaya-inc/grantgraph/pkg/schema"
	"github.com/ekaya-inc/grantgraph/pkg/search"
	"github.com/ekaya-inc/grantgraph/pkg/services"
	"github.com/ekaya-inc/grantgraph/pkg/workerpool"
)

// app holds the long-lived collaborators shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	graph     *graph.Client
	redis     *redis.Client
	schema    *schema.Cache
	router    *llm.Router
	pipeline  services.QueryPipeline
	analytics services.AnalyticsService
}

// loadConfig reads configuration and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(configFile, Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// newApp connects to the graph store and wires the pipeline stages.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	m := metrics.New()

	graphClient, err := graph.NewClient(cfg.Neo4j, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph client: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		graph:   graphClient,
	}

	provider, err := newSchemaProvider(cfg, graphClient, logger)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.schema = schema.NewCache(provider, cfg.Schema.TTL, m, logger)

	a.router, err = llm.NewRouter(cfg.LLM.RouterConfig(), m, logger)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to create LLM router: %w", err)
	}

	a.redis, err = database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		// The search cache falls back to process memory.
		logger.Warn("Redis unavailable, using in-process search cache", zap.Error(err))
		a.redis = nil
	}

	searcher, err := search.New(&cfg.Search, a.redis, logger)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to create web searcher: %w", err)
	}

	generator := services.NewQueryGenerator(a.router, audit.NewSecurityAuditor(logger), prompts.DefaultExamples, logger)
	executor := services.NewQueryExecutor(graphClient, &cfg.Retry, logger)
	enricher := services.NewContextEnricher(
		searcher,
		workerpool.New(cfg.Search.Workers, logger),
		services.EnricherConfig{
			MaxTerms:      cfg.Pipeline.MaxSearchTerms,
			MaxReferences: cfg.Pipeline.MaxReferences,
		},
		m,
		logger,
	)
	synthesizer := services.NewAnswerSynthesizer(
		a.router,
		services.SynthesizerConfig{
			SampleRows:  cfg.Pipeline.SummaryRowSample,
			TokenBudget: cfg.Pipeline.SummaryTokenBudget,
		},
		m,
		logger,
	)

	a.pipeline = services.NewQueryPipeline(
		a.schema,
		generator,
		executor,
		enricher,
		synthesizer,
		services.PipelineConfig{
			RowLimit:       cfg.Pipeline.RowLimit,
			RequestTimeout: cfg.Pipeline.RequestTimeout,
			DefaultModel:   a.defaultModel(),
		},
		m,
		logger,
	)
	a.analytics = services.NewAnalyticsService(graphClient, &cfg.Retry, logger)

	return a, nil
}

func newSchemaProvider(cfg *config.Config, introspector graph.Introspector, logger *zap.Logger) (schema.Provider, error) {
	if cfg.Schema.Source == "static" {
		p, err := schema.NewStaticProvider(cfg.Schema.StaticFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load static schema: %w", err)
		}
		return p, nil
	}
	return schema.NewLiveProvider(introspector, &cfg.Retry, logger), nil
}

func (a *app) defaultModel() llm.ModelID {
	id, _ := llm.ParseModelID(a.cfg.LLM.DefaultModel)
	return id
}

func (a *app) close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if a.graph != nil {
		if err := a.graph.Close(ctx); err != nil {
			a.logger.Warn("Failed to close graph client", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
