package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/metrics"
)

// RouterConfig lists provider credentials. Providers without an API key are
// left unconfigured and their models report as unavailable.
type RouterConfig struct {
	Anthropic      ProviderConfig
	OpenAI         ProviderConfig
	Gemini         ProviderConfig
	DeepSeek       ProviderConfig
	MaxTokens      int
	CircuitBreaker CircuitBreakerConfig
}

// Router dispatches completions to the backend serving each model and guards
// every provider with its own circuit breaker.
type Router struct {
	backends map[Provider]Backend
	breakers map[Provider]*CircuitBreaker
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewRouter creates backends for every provider that has credentials.
func NewRouter(cfg RouterConfig, m *metrics.Metrics, logger *zap.Logger) (*Router, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	var backends []Backend
	if cfg.Anthropic.APIKey != "" {
		b, err := NewAnthropicBackend(cfg.Anthropic, cfg.MaxTokens, logger)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	for provider, pc := range map[Provider]ProviderConfig{
		ProviderOpenAI:   cfg.OpenAI,
		ProviderGemini:   cfg.Gemini,
		ProviderDeepSeek: cfg.DeepSeek,
	} {
		if pc.APIKey == "" {
			continue
		}
		b, err := NewOpenAIBackend(provider, pc, cfg.MaxTokens, logger)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}

	r := NewRouterWithBackends(cfg.CircuitBreaker, logger, backends...)
	r.metrics = m
	return r, nil
}

// NewRouterWithBackends creates a router over explicit backends.
func NewRouterWithBackends(cb CircuitBreakerConfig, logger *zap.Logger, backends ...Backend) *Router {
	r := &Router{
		backends: make(map[Provider]Backend, len(backends)),
		breakers: make(map[Provider]*CircuitBreaker, len(backends)),
		logger:   logger.Named("llm-router"),
	}
	for _, b := range backends {
		r.backends[b.Provider()] = b
		r.breakers[b.Provider()] = NewCircuitBreaker(b.Provider(), cb)
	}
	return r
}

// IsConfigured reports whether a backend exists for the model's provider.
func (r *Router) IsConfigured(model ModelID) bool {
	_, ok := r.backends[model.Provider()]
	return ok
}

// CircuitState returns the breaker state for a provider.
func (r *Router) CircuitState(p Provider) (CircuitState, bool) {
	cb, ok := r.breakers[p]
	if !ok {
		return CircuitClosed, false
	}
	return cb.State(), true
}

// Complete implements Completer.
func (r *Router) Complete(ctx context.Context, prompt string, model ModelID) (string, error) {
	info, ok := Lookup(model)
	if !ok {
		e := NewError(ErrorTypeModel, fmt.Sprintf("unknown model %q", model), false, nil)
		e.Model = model
		return "", e
	}

	backend, ok := r.backends[info.Provider]
	if !ok {
		e := NewError(ErrorTypeUnconfigured, "no API key configured for provider", false, nil)
		e.Provider, e.Model = info.Provider, model
		return "", e
	}

	cb := r.breakers[info.Provider]
	if err := cb.Allow(); err != nil {
		r.metrics.ObserveLLMCall(string(info.Provider), "circuit_open", 0)
		return "", err
	}

	start := time.Now()
	text, err := backend.Complete(ctx, prompt, info)
	elapsed := time.Since(start)
	if err != nil {
		// Only availability failures count against the provider; a bad key or
		// a cancelled request says nothing about its health.
		if IsRetryable(err) {
			cb.RecordFailure()
		}
		r.metrics.ObserveLLMCall(string(info.Provider), "error", elapsed)
		r.logger.Warn("Completion failed",
			zap.String("model", string(model)),
			zap.String("error_type", string(GetErrorType(err))),
			zap.Int("consecutive_failures", cb.ConsecutiveFailures()))
		return "", err
	}

	cb.RecordSuccess()
	r.metrics.ObserveLLMCall(string(info.Provider), "success", elapsed)
	return text, nil
}
