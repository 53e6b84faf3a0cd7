package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tsqlgen/tsqlgen/internal/api"
	"github.com/tsqlgen/tsqlgen/internal/config"
	"github.com/tsqlgen/tsqlgen/internal/nl2sql"
	"github.com/tsqlgen/tsqlgen/internal/observability"
	"github.com/tsqlgen/tsqlgen/internal/schema"
)

func main() {
	cfg, err := config.LoadFromEnv("tsqlgen-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	for _, warning := range cfg.Warnings() {
		logger.Warn(warning)
	}
	logger.Info("settings loaded",
		slog.String("db_host", cfg.Database.Host),
		slog.String("auth_method", cfg.Database.AuthMethod()),
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("ai_provider", cfg.AI.Provider),
	)

	connector, err := schema.NewSQLServerConnector(schema.SQLServerConfig{
		Host:                   cfg.Database.Host,
		Port:                   cfg.Database.Port,
		Instance:               cfg.Database.Instance,
		UseWindowsAuth:         cfg.Database.UseWindowsAuth,
		User:                   cfg.Database.User,
		Password:               cfg.Database.Password,
		Driver:                 cfg.Database.Driver,
		Encrypt:                cfg.Database.Encrypt,
		TrustServerCertificate: cfg.Database.TrustServerCertificate,
		ConnectTimeout:         cfg.Database.ConnectTimeout,
		AppName:                cfg.Service.Name,
		Kerberos: schema.KerberosConfig{
			ConfigFile:    cfg.Database.Kerberos.ConfigFile,
			Realm:         cfg.Database.Kerberos.Realm,
			KeytabFile:    cfg.Database.Kerberos.KeytabFile,
			CredCacheFile: cfg.Database.Kerberos.CredCacheFile,
		},
	})
	if err != nil {
		logger.Error("failed to configure sql server connector", slog.Any("error", err))
		os.Exit(1)
	}
	inspector := schema.NewInspector(connector, schema.InspectorConfig{
		Host:           cfg.Database.Host,
		UseWindowsAuth: cfg.Database.UseWindowsAuth,
		User:           cfg.Database.User,
	}, logger)

	completer, err := newCompleter(cfg.AI)
	if err != nil {
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	}
	synthesizer := nl2sql.NewSynthesizer(inspector, completer, nl2sql.Sampling{
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		TopP:        cfg.AI.TopP,
	}, logger)

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:      logger,
		Synthesizer: synthesizer,
		Schemas:     inspector,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabaseConfig(cfg),
			api.CheckCompletionConfig(cfg),
		),
		DependencyTimeout: time.Second,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("api server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// newCompleter returns nil without an api key so generation fails with
// nl2sql.ErrCompletionUnavailable instead of calling the provider.
func newCompleter(cfg config.AIConfig) (nl2sql.Completer, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return nl2sql.NewAnthropicCompleter(nl2sql.AnthropicConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	default:
		return nl2sql.NewOpenAICompleter(nl2sql.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	}
}
