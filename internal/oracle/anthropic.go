package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/engage-agent/pkg/logger"
	"github.com/engage-agent/pkg/ratelimit"
)

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// AnthropicTransport talks to the Messages API over HTTP
type AnthropicTransport struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	timeout     time.Duration
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewAnthropicTransport creates the HTTP transport
func NewAnthropicTransport(cfg AnthropicConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *AnthropicTransport {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &AnthropicTransport{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		rateLimiter: limiter,
		log:         log.WithComponent("oracle-http"),
	}
}

// Name identifies the transport
func (t *AnthropicTransport) Name() string { return "anthropic-http" }

// TryRun sends the prompt to Claude and returns the raw response text
func (t *AnthropicTransport) TryRun(ctx context.Context, prompt string) (string, error) {
	// Wait for rate limiter
	if err := t.rateLimiter.Wait(ctx, ratelimit.LimiterOracle); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	t.log.Debug().
		Str("model", t.model).
		Int("max_tokens", t.maxTokens).
		Msg("Sending request to Claude")

	message, err := t.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(t.model),
		MaxTokens: int64(t.maxTokens),
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(prompt),
				},
			},
		},
	})

	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	// Extract text from response
	var response string
	for _, block := range message.Content {
		textBlock := block.AsText()
		if textBlock.Text != "" {
			response += textBlock.Text
		}
	}

	t.log.Debug().
		Int("input_tokens", int(message.Usage.InputTokens)).
		Int("output_tokens", int(message.Usage.OutputTokens)).
		Msg("Received Claude response")

	return response, nil
}

// Ensure AnthropicTransport implements Transport
var _ Transport = (*AnthropicTransport)(nil)
