package provider

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ubuntu/decorate"
)

const anthropicVersion = "2023-06-01"

type anthropicRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// AnthropicClient calls the Anthropic messages endpoint.
type AnthropicClient struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// GenerateText implements Client.
func (c *AnthropicClient) GenerateText(ctx context.Context, req Request) (text string, err error) {
	defer decorate.OnError(&err, "anthropic completion failed")

	temp := c.cfg.Temperature
	body := anthropicRequest{
		Model:       c.cfg.Model,
		System:      systemPrompt,
		Messages:    []openAIMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: &temp,
	}

	header := http.Header{}
	header.Set("x-api-key", c.cfg.Key)
	header.Set("anthropic-version", anthropicVersion)

	var resp anthropicResponse
	url := strings.TrimSuffix(c.cfg.URL, "/") + "/v1/messages"
	if err := postJSON(ctx, c.http, c.log, url, header, body, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
