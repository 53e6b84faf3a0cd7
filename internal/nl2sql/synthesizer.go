package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tsqlgen/tsqlgen/internal/observability"
	"github.com/tsqlgen/tsqlgen/internal/schema"
)

type SchemaFetcher interface {
	FetchSchema(ctx context.Context, database string) (schema.Snapshot, error)
}

// Synthesizer turns a natural-language request into one T-SQL statement. It
// keeps no per-request state and is safe for concurrent use.
type Synthesizer struct {
	schemas   SchemaFetcher
	completer Completer
	sampling  Sampling
	logger    *slog.Logger
}

// NewSynthesizer builds a Synthesizer. A nil completer makes every call fail
// with ErrCompletionUnavailable.
func NewSynthesizer(schemas SchemaFetcher, completer Completer, sampling Sampling, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synthesizer{
		schemas:   schemas,
		completer: completer,
		sampling:  sampling,
		logger:    logger,
	}
}

// Synthesize returns the generated statement. Errors are ErrCompletionUnavailable,
// the inspector's *schema.DiagnosticError, *UpstreamError or *DeclinedError.
func (s *Synthesizer) Synthesize(ctx context.Context, database, prompt string) (Statement, error) {
	statement, err := s.synthesize(ctx, database, prompt)
	observability.ObserveGeneration(generationOutcome(statement, err))
	return statement, err
}

func (s *Synthesizer) synthesize(ctx context.Context, database, prompt string) (Statement, error) {
	if s.completer == nil {
		return Statement{}, ErrCompletionUnavailable
	}

	snapshot, err := s.schemas.FetchSchema(ctx, database)
	if err != nil {
		return Statement{}, err
	}

	req := CompletionRequest{
		System:   buildSystemPrompt(RenderSchema(snapshot)),
		User:     prompt,
		Sampling: s.sampling,
	}
	provider := providerOf(s.completer)
	start := time.Now()
	raw, err := s.completer.Complete(ctx, req)
	observability.ObserveCompletion(provider, time.Since(start))
	if err != nil {
		var upstream *UpstreamError
		if !errors.As(err, &upstream) {
			upstream = &UpstreamError{
				Kind:     UpstreamUnexpected,
				Provider: provider,
				Message:  fmt.Sprintf("unexpected error during AI call: %v", err),
				Err:      err,
			}
		}
		s.logger.ErrorContext(ctx, "completion call failed",
			observability.TraceAttr(ctx),
			slog.String("provider", provider),
			slog.String("kind", string(upstream.Kind)),
			slog.Any("error", err),
		)
		return Statement{}, upstream
	}

	cleaned := Sanitize(raw)
	if cleaned == "" {
		s.logger.ErrorContext(ctx, "model returned an empty statement",
			observability.TraceAttr(ctx),
			slog.String("provider", provider),
			slog.String("database", database),
		)
		return Statement{}, &UpstreamError{
			Kind:     UpstreamUnexpected,
			Provider: provider,
			Message:  "SQL generation failed: the model returned an empty statement",
		}
	}
	statement, err := ClassifyResponse(cleaned)
	if err != nil {
		s.logger.InfoContext(ctx, "model declined to generate a statement",
			observability.TraceAttr(ctx),
			slog.String("database", database),
			slog.String("response", cleaned),
		)
		return Statement{}, err
	}
	if !statement.Recognized {
		s.logger.WarnContext(ctx, "model output does not start with a statement keyword",
			observability.TraceAttr(ctx),
			slog.String("database", database),
			slog.String("response", truncate(cleaned, 200)),
		)
	}
	return statement, nil
}

func generationOutcome(statement Statement, err error) string {
	var (
		diag     *schema.DiagnosticError
		upstream *UpstreamError
		declined *DeclinedError
	)
	switch {
	case err == nil && statement.Recognized:
		return "ok"
	case err == nil:
		return "unrecognized"
	case errors.Is(err, ErrCompletionUnavailable):
		return "completion_unavailable"
	case errors.As(err, &diag):
		return strings.ToLower(string(diag.Category))
	case errors.As(err, &upstream):
		return strings.ToLower(string(upstream.Kind))
	case errors.As(err, &declined):
		return "declined"
	default:
		return "error"
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
