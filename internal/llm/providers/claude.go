package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"commit-message-refiner/internal/config"
	httputil "commit-message-refiner/internal/http"
	llmerrors "commit-message-refiner/internal/llm/errors"
)

type ClaudeClient struct {
	config     *config.Config
	httpClient *http.Client
}

type ClaudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Messages         []ClaudeMessage `json:"messages"`
	System           string          `json:"system"`
	Temperature      float64         `json:"temperature"`
}

type ClaudeMessage struct {
	Content []ClaudeContent `json:"content"`
	Role    string          `json:"role"`
}

type ClaudeResponse struct {
	Content []ClaudeContent `json:"content"`
	Usage   ClaudeUsage     `json:"usage"`
}

type ClaudeContent struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type ClaudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func NewClaude(cfg *config.Config) Client {
	return &ClaudeClient{
		config: cfg,
		httpClient: httputil.NewClient(
			time.Duration(cfg.ModelTimeoutSeconds)*time.Second,
			cfg.ModelSkipSSLVerify,
		),
	}
}

func (c *ClaudeClient) Metadata() Metadata {
	return Metadata{
		ProviderName:     "Claude",
		ModelID:          c.config.ModelID,
		MaxContextTokens: c.config.ModelContextTokens,
		MaxOutputTokens:  c.config.ModelMaxResponseTokens,
	}
}

func (c *ClaudeClient) Send(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	cfg := c.config

	endpoint := fmt.Sprintf("%s/v1/messages", cfg.ModelAPI)

	req := ClaudeRequest{
		AnthropicVersion: "2023-06-01",
		System:           systemPrompt,
		Messages: []ClaudeMessage{{
			Role: "user",
			Content: []ClaudeContent{{
				Type: "text",
				Text: userPrompt,
			}},
		}},
		MaxTokens:   cfg.ModelMaxResponseTokens,
		Temperature: 0,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.ModelUserKey)

	slog.Debug("Sending rewrite request to LLM", "provider", "Claude", "model", cfg.ModelID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &llmerrors.TransientError{Provider: "Claude", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &llmerrors.TransientError{Provider: "Claude", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", llmerrors.ClassifyHTTP("Claude", resp.StatusCode, body)
	}

	var response ClaudeResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &llmerrors.MalformedResponseError{Provider: "Claude", Raw: string(body), Cause: err}
	}

	if len(response.Content) == 0 {
		return "", &llmerrors.MalformedResponseError{
			Provider: "Claude",
			Raw:      string(body),
			Cause:    fmt.Errorf("no content in response"),
		}
	}

	slog.Debug("Claude API token usage",
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
		"total_tokens", response.Usage.InputTokens+response.Usage.OutputTokens)

	return response.Content[0].Text, nil
}
