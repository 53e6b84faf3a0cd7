package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsqlgen/tsqlgen/internal/config"
	"github.com/tsqlgen/tsqlgen/internal/nl2sql"
	"github.com/tsqlgen/tsqlgen/internal/observability"
	"github.com/tsqlgen/tsqlgen/internal/schema"
)

type ReadinessCheck func(ctx context.Context) error

type Synthesizer interface {
	Synthesize(ctx context.Context, database, prompt string) (nl2sql.Statement, error)
}

type SchemaInspector interface {
	FetchSchema(ctx context.Context, database string) (schema.Snapshot, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Synthesizer       Synthesizer
	Schemas           SchemaInspector
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "T-SQL generator API is running. Use the /v1/generate-sql endpoint.",
		})
	})

	health := func(w http.ResponseWriter, r *http.Request) {
		handleHealth(cfg, w, r)
	}
	mux.HandleFunc("GET /v1/health", health)
	mux.HandleFunc("GET /health", health)

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	generate := func(w http.ResponseWriter, r *http.Request) {
		handleGenerateSQL(deps, w, r)
	}
	mux.HandleFunc("POST /v1/generate-sql", generate)
	mux.HandleFunc("POST /generate-sql", generate)

	mux.HandleFunc("GET /v1/databases/{database}/schema", func(w http.ResponseWriter, r *http.Request) {
		handleGetSchema(deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	middlewares = append(middlewares,
		middleware.Recoverer,
		CORSMiddleware(cfg.HTTP.AllowedOrigins()),
	)
	return chain(mux, middlewares...)
}

func handleHealth(cfg config.Config, w http.ResponseWriter, r *http.Request) {
	var missing []string
	if cfg.Database.Host == "" {
		missing = append(missing, "TSQLGEN_DB_HOST")
	}
	if cfg.AI.APIKey == "" {
		missing = append(missing, "TSQLGEN_AI_API_KEY")
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":     "unavailable",
			"detail":     "health check failed: essential configuration keys missing",
			"missing":    missing,
			"error_code": "CONFIG_INCOMPLETE",
			"retryable":  false,
			"trace_id":   observability.TraceIDFromContext(r.Context()),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"service":     cfg.Service.Name,
		"auth_method": cfg.Database.AuthMethod(),
		"ai_provider": cfg.AI.Provider,
		"message":     "Configuration loaded. Auth Method: " + cfg.Database.AuthMethod() + ".",
	})
}

func CheckDatabaseConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Database.Host == "" {
			return errors.New("sql server host is not configured")
		}
		return nil
	}
}

func CheckCompletionConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.AI.APIKey == "" {
			return errors.New("completion service api key is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, detail string, retryable bool) {
	writeJSON(w, status, map[string]any{
		"detail":     detail,
		"error_code": code,
		"retryable":  retryable,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
