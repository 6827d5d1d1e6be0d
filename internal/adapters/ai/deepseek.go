package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/adapters/config"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/metrics"
)

// DeepSeekClient talks to DeepSeek through its OpenAI-compatible API
type DeepSeekClient struct {
	client *openai.Client
	model  string
}

// NewDeepSeekClient creates new DeepSeek client
func NewDeepSeekClient(cfg *config.AIConfig) *DeepSeekClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = "deepseek-chat"
	}

	return &DeepSeekClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// Complete returns the content of the first choice
func (d *DeepSeekClient) Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	startTime := time.Now()
	resp, err := d.client.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("deepseek").Inc()

		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("deepseek API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("deepseek request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	logger.Debug("DeepSeek response",
		zap.Duration("latency", time.Since(startTime)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return resp.Choices[0].Message.Content, nil
}
