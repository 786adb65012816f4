// Package feedback asks an OpenAI-compatible model for advice on an exam result.
// Generation is advisory: every failure degrades to a fixed fallback message.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/eduquest/internal/model"
)

var fallbacks = map[string]struct{ empty, failed string }{
	"en": {
		empty:  "AI feedback is not available right now.",
		failed: "Could not reach the AI service for feedback.",
	},
	"vi": {
		empty:  "Không thể nhận phản hồi từ AI lúc này.",
		failed: "Đã xảy ra lỗi khi kết nối với AI.",
	},
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
	lang  string
}

// New creates a feedback client answering in lang.
func New(baseURL, apiKey, modelName, lang string) (*Client, error) {
	if !IsSupportedLanguage(lang) {
		return nil, fmt.Errorf("unsupported feedback language %q", lang)
	}
	if err := loadTemplates(); err != nil {
		return nil, err
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
		lang:  lang,
	}, nil
}

// Ping checks that the endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// FallbackEmpty is returned when the model answers with no text.
func (c *Client) FallbackEmpty() string { return fallbacks[c.lang].empty }

// FallbackFailed is returned when the request fails.
func (c *Client) FallbackFailed() string { return fallbacks[c.lang].failed }

// GenerateFeedback returns advice for a finished exam. It never fails; errors
// are logged and replaced by a fallback message.
func (c *Client) GenerateFeedback(ctx context.Context, e model.Exam, res model.ExamResult) string {
	text, err := c.generate(ctx, e, res)
	if err != nil {
		slog.Warn("feedback generation failed", "exam_id", e.ID, "error", err)
		return c.FallbackFailed()
	}
	if text == "" {
		return c.FallbackEmpty()
	}
	return text
}

func (c *Client) generate(ctx context.Context, e model.Exam, res model.ExamResult) (string, error) {
	prompt, err := buildPrompt(c.lang, e, res)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("feedback response", "exam_id", e.ID, "chars", len(text))
	return text, nil
}
