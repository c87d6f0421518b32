// Package provider talks to the text generation services that turn a prompt into schema JSON.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/datasynth/datasynth/internal/constants"
)

var (
	// ErrRateLimited is returned when the upstream service throttles the request.
	ErrRateLimited = errors.New("provider rate limit exceeded")
	// ErrConnection is returned when the upstream service cannot be reached or answers with an error.
	ErrConnection = errors.New("provider connection failure")
	// ErrTimeout is returned when the upstream service does not answer in time.
	ErrTimeout = errors.New("provider request timed out")
	// ErrEmptyResponse is returned when the upstream service answers without any text.
	ErrEmptyResponse = errors.New("provider returned an empty response")
	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Names of the supported providers.
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Demo      = "demo"
)

const systemPrompt = "You are a data schema generator specializing in Faker-compatible schemas."

// Request is a single schema generation request.
type Request struct {
	// Description is the user's dataset description, before any prompt templating.
	Description string
	// Prompt is the full text sent to the model.
	Prompt string
}

// Client generates text for a prompt.
type Client interface {
	GenerateText(ctx context.Context, req Request) (string, error)
}

// Config selects and parameterizes a provider.
type Config struct {
	Name        string
	Model       string
	Key         string
	URL         string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

type options struct {
	httpClient *http.Client
	log        *slog.Logger
}

// Option overrides provider defaults.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for remote providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New returns the client named by cfg.Name.
func New(cfg Config, args ...Option) (Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultTimeout
	}
	opts := options{
		httpClient: &http.Client{Timeout: timeout},
		log:        slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = constants.DefaultMaxTokens
	}

	switch strings.ToLower(cfg.Name) {
	case OpenAI, "":
		if cfg.Model == "" {
			cfg.Model = constants.DefaultOpenAIModel
		}
		if cfg.URL == "" {
			cfg.URL = "https://api.openai.com/v1"
		}
		return &OpenAIClient{cfg: cfg, http: opts.httpClient, log: opts.log}, nil
	case Anthropic:
		if cfg.Model == "" {
			cfg.Model = constants.DefaultClaudeModel
		}
		if cfg.URL == "" {
			cfg.URL = "https://api.anthropic.com"
		}
		return &AnthropicClient{cfg: cfg, http: opts.httpClient, log: opts.log}, nil
	case Demo:
		return NewDemo(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Name)
	}
}

// postJSON sends body to url and decodes a successful answer into out.
func postJSON(ctx context.Context, c *http.Client, log *slog.Logger, url string, header http.Header, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug("Sending request to provider", "url", url, "bytes", len(data))
	start := time.Now()
	resp, err := c.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return classify(err)
	}
	log.Debug("Provider answered", "status", resp.StatusCode, "elapsed", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrTimeout, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: unexpected status code: %d", ErrConnection, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: invalid response body: %v", ErrConnection, err)
	}
	return nil
}

// classify maps a transport error onto the provider sentinels.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
