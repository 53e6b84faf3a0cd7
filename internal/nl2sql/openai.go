package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-4o-mini"
)

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAICompleter calls an OpenAI-compatible chat completions endpoint.
type OpenAICompleter struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAICompleter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *OpenAICompleter) Provider() string {
	return "openai"
}

func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := json.Marshal(buildOpenAIPayload(c.model, req))
	if err != nil {
		return "", c.upstreamError(UpstreamUnexpected, fmt.Sprintf("marshal chat payload: %v", err), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", c.upstreamError(UpstreamUnexpected, fmt.Sprintf("build chat request: %v", err), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return "", c.upstreamError(UpstreamTimeout, "OpenAI Timeout Error", err)
		}
		return "", c.upstreamError(UpstreamConnectionFailed, fmt.Sprintf("OpenAI Connection Error: %v", err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return "", c.upstreamError(UpstreamTimeout, "OpenAI Timeout Error", err)
		}
		return "", c.upstreamError(UpstreamConnectionFailed, fmt.Sprintf("OpenAI Connection Error: read response body: %v", err), err)
	}
	if resp.StatusCode >= 400 {
		return "", c.statusError(resp.StatusCode, rawRespBody)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", c.upstreamError(UpstreamUnexpected, fmt.Sprintf("unexpected error during AI call: decode chat completion response: %v", err), err)
	}
	if len(parsed.Choices) == 0 {
		return "", c.upstreamError(UpstreamUnexpected, "unexpected error during AI call: empty chat completion choices", nil)
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *OpenAICompleter) statusError(status int, body []byte) error {
	message := apiErrorMessage(body)
	cause := fmt.Errorf("chat completion failed status=%d body=%s", status, string(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return c.upstreamError(UpstreamAuthenticationFailed, "OpenAI Authentication Error (Server Side)", cause)
	case status == http.StatusTooManyRequests:
		return c.upstreamError(UpstreamRateLimited, "OpenAI Rate Limit Error (Server Side)", cause)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return c.upstreamError(UpstreamTimeout, "OpenAI Timeout Error", cause)
	default:
		return c.upstreamError(UpstreamAPIError, fmt.Sprintf("OpenAI API Error: status %d: %s", status, message), cause)
	}
}

func (c *OpenAICompleter) upstreamError(kind UpstreamKind, message string, err error) *UpstreamError {
	return &UpstreamError{Kind: kind, Provider: c.Provider(), Message: message, Err: err}
}

func buildOpenAIPayload(model string, req CompletionRequest) map[string]any {
	return map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"temperature": req.Sampling.Temperature,
		"max_tokens":  req.Sampling.MaxTokens,
		"top_p":       req.Sampling.TopP,
	}
}

// apiErrorMessage extracts error.message from an OpenAI error body, falling
// back to the trimmed body.
func apiErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
