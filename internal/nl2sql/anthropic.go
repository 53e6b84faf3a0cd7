package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicCompleter(cfg AnthropicConfig) (*AnthropicCompleter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultAnthropicModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	opts := []anthropic.ClientOption{
		anthropic.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	return &AnthropicCompleter{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}, nil
}

func (c *AnthropicCompleter) Provider() string {
	return "anthropic"
}

func (c *AnthropicCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	temperature := float32(req.Sampling.Temperature)
	topP := float32(req.Sampling.TopP)
	user := req.User

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      req.System,
		MaxTokens:   req.Sampling.MaxTokens,
		Temperature: &temperature,
		TopP:        &topP,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &user},
			}},
		},
	})
	if err != nil {
		return "", c.mapError(err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", &UpstreamError{
		Kind:     UpstreamUnexpected,
		Provider: c.Provider(),
		Message:  "unexpected error during AI call: response has no text content",
	}
}

func (c *AnthropicCompleter) mapError(err error) *UpstreamError {
	upstream := &UpstreamError{Provider: c.Provider(), Err: err}

	var apiErr *anthropic.APIError
	var reqErr *anthropic.RequestError
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.Type {
		case anthropic.ErrTypeAuthentication, anthropic.ErrTypePermission:
			upstream.Kind = UpstreamAuthenticationFailed
			upstream.Message = "Anthropic Authentication Error (Server Side)"
		case anthropic.ErrTypeRateLimit:
			upstream.Kind = UpstreamRateLimited
			upstream.Message = "Anthropic Rate Limit Error (Server Side)"
		default:
			upstream.Kind = UpstreamAPIError
			upstream.Message = fmt.Sprintf("Anthropic API Error: %s: %s", apiErr.Type, apiErr.Message)
		}
	case isTimeout(err):
		upstream.Kind = UpstreamTimeout
		upstream.Message = "Anthropic Timeout Error"
	case errors.As(err, &reqErr):
		upstream.Kind = UpstreamAPIError
		upstream.Message = fmt.Sprintf("Anthropic API Error: status %d", reqErr.StatusCode)
	default:
		upstream.Kind = UpstreamConnectionFailed
		upstream.Message = fmt.Sprintf("Anthropic Connection Error: %v", err)
	}
	return upstream
}
