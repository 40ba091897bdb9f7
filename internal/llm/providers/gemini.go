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

type GeminiClient struct {
	config     *config.Config
	httpClient *http.Client
}

type GeminiRequest struct {
	MaxTokens   int             `json:"max_tokens"`
	Messages    []GeminiMessage `json:"messages"`
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature"`
}

type GeminiMessage struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type GeminiResponse struct {
	Choices []GeminiChoice `json:"choices"`
	Usage   GeminiUsage    `json:"usage"`
}

type GeminiChoice struct {
	Message GeminiMessage `json:"message"`
}

type GeminiUsage struct {
	CompletionTokens int `json:"completion_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func NewGemini(cfg *config.Config) Client {
	return &GeminiClient{
		config: cfg,
		httpClient: httputil.NewClient(
			time.Duration(cfg.ModelTimeoutSeconds)*time.Second,
			cfg.ModelSkipSSLVerify,
		),
	}
}

func (g *GeminiClient) Metadata() Metadata {
	return Metadata{
		ProviderName:     "Gemini",
		ModelID:          g.config.ModelID,
		MaxContextTokens: g.config.ModelContextTokens,
		MaxOutputTokens:  g.config.ModelMaxResponseTokens,
	}
}

func (g *GeminiClient) Send(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	cfg := g.config

	// Gemini's OpenAI-compatible endpoint takes system and user as
	// separate chat messages
	req := GeminiRequest{
		Model: cfg.ModelID,
		Messages: []GeminiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   cfg.ModelMaxResponseTokens,
		Temperature: 0,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := cfg.ModelAPI + "/v1beta/openai/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.ModelUserKey)

	slog.Debug("Sending rewrite request to LLM", "provider", "Gemini", "model", cfg.ModelID)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &llmerrors.TransientError{Provider: "Gemini", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &llmerrors.TransientError{Provider: "Gemini", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", llmerrors.ClassifyHTTP("Gemini", resp.StatusCode, body)
	}

	var response GeminiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &llmerrors.MalformedResponseError{Provider: "Gemini", Raw: string(body), Cause: err}
	}

	if len(response.Choices) == 0 {
		return "", &llmerrors.MalformedResponseError{
			Provider: "Gemini",
			Raw:      string(body),
			Cause:    fmt.Errorf("no choices in response"),
		}
	}

	slog.Debug("Gemini API token usage",
		"input_tokens", response.Usage.PromptTokens,
		"output_tokens", response.Usage.CompletionTokens,
		"total_tokens", response.Usage.TotalTokens)

	return response.Choices[0].Message.Content, nil
}
