package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicBackend serves Claude models through the Messages API.
type AnthropicBackend struct {
	client    *anthropic.Client
	maxTokens int
	logger    *zap.Logger
}

// NewAnthropicBackend creates a Claude backend.
func NewAnthropicBackend(cfg ProviderConfig, maxTokens int, logger *zap.Logger) (*AnthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is required", ProviderAnthropic)
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}

	return &AnthropicBackend{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		maxTokens: maxTokens,
		logger:    logger.Named("llm-anthropic"),
	}, nil
}

// Provider implements Backend.
func (b *AnthropicBackend) Provider() Provider {
	return ProviderAnthropic
}

// Complete implements Backend.
func (b *AnthropicBackend) Complete(ctx context.Context, prompt string, model ModelInfo) (string, error) {
	b.logger.Debug("LLM request",
		zap.String("model", model.APIModel),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := b.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(model.APIModel),
		MaxTokens: b.maxTokens,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		b.logger.Error("LLM request failed",
			zap.String("model", model.APIModel),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		e := *ClassifyError(err)
		e.Provider, e.Model = ProviderAnthropic, model.ID
		return "", &e
	}

	text := extractText(resp)
	if text == "" {
		e := NewError(ErrorTypeEmpty, "no text content in response", true, nil)
		e.Provider, e.Model = ProviderAnthropic, model.ID
		return "", e
	}

	b.logger.Info("LLM request completed",
		zap.String("model", model.APIModel),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return text, nil
}

// extractText joins the text blocks of a response.
func extractText(resp anthropic.MessagesResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}
	return sb.String()
}
