package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tsqlgen/tsqlgen/internal/nl2sql"
	"github.com/tsqlgen/tsqlgen/internal/observability"
	"github.com/tsqlgen/tsqlgen/internal/schema"
)

type errorResponse struct {
	status    int
	code      string
	detail    string
	retryable bool
}

var categoryStatus = map[schema.Category]int{
	schema.CategoryNetworkUnreachable:   http.StatusGatewayTimeout,
	schema.CategoryAuthenticationFailed: http.StatusUnauthorized,
	schema.CategoryPermissionDenied:     http.StatusForbidden,
	schema.CategoryDatabaseNotFound:     http.StatusNotFound,
	schema.CategoryDatabaseEmpty:        http.StatusNotFound,
	schema.CategoryUnknown:              http.StatusInternalServerError,
}

func classifyError(err error) errorResponse {
	var (
		diag     *schema.DiagnosticError
		upstream *nl2sql.UpstreamError
		declined *nl2sql.DeclinedError
	)
	switch {
	case errors.Is(err, nl2sql.ErrCompletionUnavailable):
		return errorResponse{status: http.StatusServiceUnavailable, code: "COMPLETION_SERVICE_UNAVAILABLE", detail: err.Error()}
	case errors.As(err, &diag):
		status, ok := categoryStatus[diag.Category]
		if !ok {
			status = http.StatusInternalServerError
		}
		return errorResponse{
			status:    status,
			code:      string(diag.Category),
			detail:    diag.Message,
			retryable: diag.Category == schema.CategoryNetworkUnreachable,
		}
	case errors.As(err, &declined):
		return errorResponse{status: http.StatusBadRequest, code: "AI_DECLINED", detail: declined.Error()}
	case errors.As(err, &upstream):
		resp := errorResponse{status: http.StatusServiceUnavailable, code: string(upstream.Kind), detail: upstream.Message}
		switch upstream.Kind {
		case nl2sql.UpstreamUnexpected:
			resp.status = http.StatusInternalServerError
		case nl2sql.UpstreamRateLimited, nl2sql.UpstreamConnectionFailed, nl2sql.UpstreamTimeout:
			resp.retryable = true
		}
		return resp
	default:
		return errorResponse{status: http.StatusInternalServerError, code: "INTERNAL", detail: "an unexpected server error occurred"}
	}
}

func writeClassifiedError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	resp := classifyError(err)
	if logger != nil && resp.status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed",
			observability.TraceAttr(ctx),
			slog.String("error_code", resp.code),
			slog.Int("status", resp.status),
			slog.Any("error", err),
		)
	}
	writeError(ctx, w, resp.status, resp.code, resp.detail, resp.retryable)
}
