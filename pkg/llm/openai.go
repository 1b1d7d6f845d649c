package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	geminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai/"
	deepSeekBaseURL   = "https://api.deepseek.com"
	openRouterBaseURL = "https://openrouter.ai/api/v1"

	// openRouterKeyPrefix marks DeepSeek keys issued by OpenRouter.
	openRouterKeyPrefix = "sk-or-"
)

// ProviderConfig holds credentials and endpoint overrides for one provider.
type ProviderConfig struct {
	APIKey  string
	BaseURL string // Optional; the provider's public endpoint is used when empty
}

// OpenAIBackend serves every provider that speaks the OpenAI chat API:
// OpenAI itself, Gemini through its compatibility endpoint, and DeepSeek
// either directly or through OpenRouter.
type OpenAIBackend struct {
	client     *openai.Client
	provider   Provider
	endpoint   string
	openRouter bool
	maxTokens  int
	logger     *zap.Logger
}

// NewOpenAIBackend creates a backend for an OpenAI-compatible provider.
func NewOpenAIBackend(provider Provider, cfg ProviderConfig, maxTokens int, logger *zap.Logger) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is required", provider)
	}

	endpoint := cfg.BaseURL
	openRouter := false
	if endpoint == "" {
		switch provider {
		case ProviderOpenAI:
			endpoint = openAIBaseURL
		case ProviderGemini:
			endpoint = geminiBaseURL
		case ProviderDeepSeek:
			if strings.HasPrefix(cfg.APIKey, openRouterKeyPrefix) {
				endpoint = openRouterBaseURL
				openRouter = true
			} else {
				endpoint = deepSeekBaseURL
			}
		default:
			return nil, fmt.Errorf("provider %q is not OpenAI-compatible", provider)
		}
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(endpoint, "/")

	return &OpenAIBackend{
		client:     openai.NewClientWithConfig(clientConfig),
		provider:   provider,
		endpoint:   endpoint,
		openRouter: openRouter,
		maxTokens:  maxTokens,
		logger:     logger.Named("llm-" + string(provider)),
	}, nil
}

// Provider implements Backend.
func (b *OpenAIBackend) Provider() Provider {
	return b.provider
}

// Endpoint returns the base URL requests are sent to.
func (b *OpenAIBackend) Endpoint() string {
	return b.endpoint
}

// apiModel resolves the provider-side model name.
func (b *OpenAIBackend) apiModel(model ModelInfo) string {
	if b.openRouter {
		if name, ok := openRouterModels[model.ID]; ok {
			return name
		}
	}
	return model.APIModel
}

// Complete implements Backend.
func (b *OpenAIBackend) Complete(ctx context.Context, prompt string, model ModelInfo) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: b.apiModel(model),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	// Reasoning models reject max_tokens and want max_completion_tokens.
	if model.Reasoning && model.Provider == ProviderOpenAI {
		req.MaxCompletionTokens = b.maxTokens
	} else {
		req.MaxTokens = b.maxTokens
	}

	b.logger.Debug("LLM request",
		zap.String("model", req.Model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		b.logger.Error("LLM request failed",
			zap.String("model", req.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", b.classify(err, model.ID)
	}

	if len(resp.Choices) == 0 {
		e := NewError(ErrorTypeEmpty, "no choices in response", true, nil)
		e.Provider, e.Model = b.provider, model.ID
		return "", e
	}

	b.logger.Info("LLM request completed",
		zap.String("model", req.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

func (b *OpenAIBackend) classify(err error, model ModelID) *Error {
	e := *ClassifyError(err)
	e.Provider, e.Model = b.provider, model
	return &e
}
