// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sline-ai/agent-gateway/internal/config"
	"github.com/sline-ai/agent-gateway/internal/handler"
	"github.com/sline-ai/agent-gateway/internal/llm"
	"github.com/sline-ai/agent-gateway/internal/middleware"
	natsbus "github.com/sline-ai/agent-gateway/internal/nats"
	"github.com/sline-ai/agent-gateway/internal/runtime"
	"github.com/sline-ai/agent-gateway/internal/service"
	"github.com/sline-ai/agent-gateway/internal/store"
	"github.com/sline-ai/agent-gateway/pkg/logger"
	"github.com/sline-ai/agent-gateway/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting agent gateway")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "agent-gateway", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", "error", err)
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Conversation store
	st, err := store.NewSQLiteStore(cfg.DatabasePath, log)
	if err != nil {
		log.Error("failed to open conversation store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Optional event fan-out bus
	var natsClient *natsbus.Client
	var publisher *natsbus.Publisher
	if cfg.NATSEnabled {
		natsClient, err = natsbus.Connect(natsbus.Config{
			URL:   cfg.NATSURL,
			Token: cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = natsbus.NewPublisher(natsClient)
	}

	// Agent runtime producer
	producer := buildProducer(cfg, log)

	// Services
	runSvc := service.NewRunService(st, producer, publisher, log)
	threadSvc := service.NewThreadService(st, log)

	// Handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	chatHandler := handler.NewChatHandler(runSvc, threadSvc, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/chat", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/", chatHandler.Submit)
		r.Get("/info", chatHandler.Info)
		r.Get("/threads", chatHandler.ListThreads)
		r.Get("/thread/{threadID}", chatHandler.Reload)
		r.Delete("/thread/{threadID}", chatHandler.DeleteThread)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// buildProducer selects the trace producer: an LLM-backed one when
// credentials are configured, the echo fallback otherwise.
func buildProducer(cfg *config.Config, log *logger.Logger) runtime.Producer {
	var client llm.Client
	var err error

	switch {
	case cfg.DefaultLLM == string(llm.ProviderOpenAI) && cfg.OpenAIAPIKey != "":
		client, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	case cfg.AnthropicAPIKey != "":
		client, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		client, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	}
	if err != nil {
		log.Warn("failed to create LLM client, falling back to echo mode", "error", err)
	}

	if client == nil {
		log.Warn("no LLM credentials configured, running in echo mode")
		return runtime.EchoProducer{}
	}

	log.Info("agent runtime ready", "provider", client.Name())
	return runtime.NewModelProducer(client, "", log)
}
