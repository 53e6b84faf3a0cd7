package nl2sql

import (
	"context"
	"errors"
)

// Sampling holds the generation parameters sent with every completion call.
type Sampling struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
}

func DefaultSampling() Sampling {
	return Sampling{Temperature: 0.1, MaxTokens: 700, TopP: 1.0}
}

type CompletionRequest struct {
	System   string
	User     string
	Sampling Sampling
}

// Completer turns an instruction pair into the model's raw text. Failures are
// returned as *UpstreamError.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ErrCompletionUnavailable is returned before any network call when no
// completion credential is configured.
var ErrCompletionUnavailable = errors.New("completion service API key not configured on the server")

type UpstreamKind string

const (
	UpstreamAuthenticationFailed UpstreamKind = "UPSTREAM_AUTHENTICATION_FAILED"
	UpstreamRateLimited          UpstreamKind = "UPSTREAM_RATE_LIMITED"
	UpstreamConnectionFailed     UpstreamKind = "UPSTREAM_CONNECTION_FAILED"
	UpstreamTimeout              UpstreamKind = "UPSTREAM_TIMEOUT"
	UpstreamAPIError             UpstreamKind = "UPSTREAM_API_ERROR"
	UpstreamUnexpected           UpstreamKind = "UNEXPECTED_ERROR"
)

type UpstreamError struct {
	Kind     UpstreamKind
	Provider string
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// DeclinedError carries the model's own explanation when it refused to
// produce a statement.
type DeclinedError struct {
	Message string
}

func (e *DeclinedError) Error() string {
	return "AI Assistant: " + e.Message
}

// providerNamer is implemented by completers that report a provider label
// for metrics.
type providerNamer interface {
	Provider() string
}

func providerOf(c Completer) string {
	if named, ok := c.(providerNamer); ok {
		return named.Provider()
	}
	return "custom"
}
