package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/analysis"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/config"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/reports"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/service"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"
)

func resolveApiKey(ctx context.Context, env *config.ServiceEnv) (string, error) {
	if env.ApiKey != "" || env.ApiKeySecret == "" {
		return env.ApiKey, nil
	}

	client, err := config.NewSecretManagerClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	key, err := config.ResolveSecret(ctx, client, env.Project(), env.ApiKeySecret)
	if err != nil {
		return "", err
	}
	slog.Info("loaded api key from secret manager", "secret", env.ApiKeySecret, "code", logging.AUTH)
	return key, nil
}

func runApp() error {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	flag.Parse()

	env, err := config.LoadServiceEnv(*envFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logging.ParseLevel(env.LogLevel)
	if err != nil {
		return err
	}
	logging.InitLogging(os.Stdout, level, env.LogFormat, "sales_intel")

	ctx := context.Background()

	apiKey, err := resolveApiKey(ctx, env)
	if err != nil {
		return fmt.Errorf("error resolving api key: %w", err)
	}

	store, err := reports.Open(env.DatabaseUri)
	if err != nil {
		return fmt.Errorf("error opening report store: %w", err)
	}
	defer store.Close()

	generator, err := analysis.NewGenerator(ctx, analysis.GeneratorConfig{
		Project:           env.Project(),
		Location:          env.VertexLocation,
		Model:             env.Model,
		ApiKey:            env.GeminiApiKey,
		SystemInstruction: analysis.SystemInstruction,
	})
	if err != nil {
		return fmt.Errorf("error creating model client: %w", err)
	}

	validator, err := analysis.NewValidator()
	if err != nil {
		return fmt.Errorf("error compiling report schema: %w", err)
	}

	analyzer := analysis.NewAnalyzer(generator, validator, store, analysis.AnalyzerOptions{
		CacheTTL:          env.ReportCacheTTL,
		GenerationTimeout: env.GenerationTimeout,
	})

	svc := service.NewSalesIntelService(analyzer, store, service.Options{
		ApiKey:             apiKey,
		RateLimitPerMinute: env.RateLimitPerMinute,
		CorsAllowedOrigins: env.CorsAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", env.Port),
		Handler:           svc.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// analyze requests block on the model for up to GenerationTimeout
		WriteTimeout: env.GenerationTimeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutdown signal received", "code", logging.SYSTEM)
		// cloud run allows 10s between SIGTERM and SIGKILL
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 9*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server Shutdown", "err", err, "code", logging.SYSTEM)
		}
		close(idleConnsClosed)
	}()

	slog.Info("starting server", "port", env.Port, "model", generator.Model(), "project", env.Project(), "location", env.VertexLocation, "code", logging.SYSTEM)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve returned error: %w", err)
	}

	<-idleConnsClosed
	slog.Info("server stopped", "code", logging.SYSTEM)
	return nil
}

func main() {
	if err := runApp(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}
