package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"commit-message-refiner/internal/config"
	httputil "commit-message-refiner/internal/http"
	llmerrors "commit-message-refiner/internal/llm/errors"
)

// OpenAIClient wraps the go-openai SDK behind the provider interface.
// Also serves OpenAI-compatible gateways (set CMR_OPENAI_MODEL_API to the
// gateway base URL).
type OpenAIClient struct {
	config *config.Config
	client *openai.Client
}

func NewOpenAI(cfg *config.Config) Client {
	clientConfig := openai.DefaultConfig(cfg.ModelUserKey)
	clientConfig.BaseURL = cfg.ModelAPI
	clientConfig.HTTPClient = httputil.NewClient(
		time.Duration(cfg.ModelTimeoutSeconds)*time.Second,
		cfg.ModelSkipSSLVerify,
	)

	return &OpenAIClient{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (o *OpenAIClient) Metadata() Metadata {
	return Metadata{
		ProviderName:     "OpenAI",
		ModelID:          o.config.ModelID,
		MaxContextTokens: o.config.ModelContextTokens,
		MaxOutputTokens:  o.config.ModelMaxResponseTokens,
	}
}

func (o *OpenAIClient) Send(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	cfg := o.config

	slog.Debug("Sending rewrite request to LLM", "provider", "OpenAI", "model", cfg.ModelID)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: cfg.ModelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   cfg.ModelMaxResponseTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &llmerrors.MalformedResponseError{
			Provider: "OpenAI",
			Cause:    fmt.Errorf("no choices in response"),
		}
	}

	slog.Debug("OpenAI API token usage",
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens)

	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError maps SDK errors to the error taxonomy. The SDK
// surfaces HTTP failures as *openai.APIError with the status code and the
// server's message; anything else is a transport-level failure.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llmerrors.ClassifyHTTP("OpenAI", apiErr.HTTPStatusCode, []byte(apiErr.Message))
	}
	return &llmerrors.TransientError{Provider: "OpenAI", Cause: err}
}
