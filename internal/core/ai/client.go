package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Completer is the text/vision completion capability consumed by the
// extraction and structuring stages. There is no guarantee the returned text
// is well-formed JSON; callers must validate and fall back.
type Completer interface {
	Complete(ctx context.Context, prompt string, images [][]byte) (string, error)
}

// Client is the OpenRouter API client.
type Client struct {
	config *config.Config
	client *resty.Client
}

// NewClient creates a new OpenRouter client.
func NewClient(cfg *config.Config) *Client {
	client := resty.New().
		SetBaseURL("https://openrouter.ai/api/v1").
		SetTimeout(cfg.OpenRouter.Timeout).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.OpenRouter.APIKey)).
		SetHeader("HTTP-Referer", "https://recipe-importer.app").
		SetHeader("X-Title", "Recipe Importer")

	return &Client{
		config: cfg,
		client: client,
	}
}

// Complete sends a completion request. Images, when present, switch the call
// to the configured vision model and are attached as data URIs.
func (c *Client) Complete(ctx context.Context, prompt string, images [][]byte) (string, error) {
	model := c.config.OpenRouter.Model
	if len(images) > 0 {
		model = c.config.OpenRouter.VisionModel
	}

	msgContent := []map[string]interface{}{
		{
			"type": "text",
			"text": prompt,
		},
	}
	for _, img := range images {
		if len(img) == 0 {
			continue
		}
		b64 := base64.StdEncoding.EncodeToString(img)
		msgContent = append(msgContent, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]string{
				"url": fmt.Sprintf("data:image/png;base64,%s", b64),
			},
		})
	}

	req := map[string]interface{}{
		"model": model,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": msgContent,
			},
		},
		"max_tokens":  c.config.OpenRouter.MaxTokens,
		"temperature": 0,
	}

	common.LogInfo("Sending request to OpenRouter",
		zap.String("model", model),
		zap.Int("images", len(images)),
		zap.Int("prompt_length", len(prompt)),
	)

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")
	common.LogAICall(time.Since(start), err)

	if err != nil {
		return "", fmt.Errorf("failed to send request to OpenRouter: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("OpenRouter API returned status %d: %s", resp.StatusCode(), resp.String())
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := common.ParseJSONBytes(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("failed to parse OpenRouter response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenRouter response")
	}

	content := result.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty content in OpenRouter response")
	}

	common.LogDebug("OpenRouter response received",
		zap.String("model", model),
		zap.Int("content_length", len(content)),
	)

	return content, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}
