package provider

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ubuntu/decorate"
)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIClient calls an OpenAI compatible chat completions endpoint.
type OpenAIClient struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// GenerateText implements Client.
func (c *OpenAIClient) GenerateText(ctx context.Context, req Request) (text string, err error) {
	defer decorate.OnError(&err, "openai completion failed")

	temp := c.cfg.Temperature
	body := openAIRequest{
		Model: c.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: &temp,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.Key)

	var resp openAIResponse
	url := strings.TrimSuffix(c.cfg.URL, "/") + "/chat/completions"
	if err := postJSON(ctx, c.http, c.log, url, header, body, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
