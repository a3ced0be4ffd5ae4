package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"promptforge/internal/adapter/clingo"
	pfhttp "promptforge/internal/adapter/http"
	"promptforge/internal/adapter/litellm"
	pfnats "promptforge/internal/adapter/nats"
	"promptforge/internal/adapter/otel"
	"promptforge/internal/adapter/postgres"
	"promptforge/internal/adapter/ristretto"
	"promptforge/internal/config"
	"promptforge/internal/logger"
	"promptforge/internal/port/messagequeue"
	"promptforge/internal/resilience"
	"promptforge/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"solver", cfg.Solver.Binary,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	// Run migrations
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool)

	// NATS is optional; an empty URL disables event publishing.
	var queue messagequeue.Queue
	if cfg.NATS.URL != "" {
		q, err := pfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = q.Drain() }()
		queue = q
	}

	// Result cache
	resultCache, err := ristretto.New(cfg.Cache.MaxCostBytes)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer resultCache.Close()

	// Meta-LLM client behind a circuit breaker
	llm := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LiteLLM.Model)
	llm.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Services ---

	efficacyStore := service.NewEfficacyStore(cfg.Engine.LearningRate, store)
	if err := efficacyStore.Warm(ctx); err != nil {
		slog.Warn("efficacy warm-up incomplete, continuing with priors", "error", err)
	}

	rules := service.NewRuleSet(cfg.Engine.MaxComponents, cfg.Engine.MaxExamples)
	facts := service.NewFactGenerator()
	fallback := service.NewFallback(rules)
	asp := clingo.New(cfg.Solver.Binary, cfg.Solver.Timeout)

	optimizerSvc := service.NewOptimizerService(
		efficacyStore, facts, rules, asp, fallback,
		resultCache, cfg.Cache.TTL, cfg.Solver.MaxModels,
		service.OptimizerOptions{Store: store, Gen: llm, Queue: queue},
	)
	analyzerSvc := service.NewAnalyzerService(llm)
	feedbackSvc := service.NewFeedbackService(efficacyStore, queue)

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- HTTP ---

	handlers := &pfhttp.Handlers{
		Optimizer: optimizerSvc,
		Analyzer:  analyzerSvc,
		Feedback:  feedbackSvc,
		Metrics:   metrics,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(pfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(pfhttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))

	// Health endpoint with service status
	r.Get("/health", healthHandler(cfg, queue))

	// API routes
	pfhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler returns an http.HandlerFunc that reports service health.
func healthHandler(cfg *config.Config, queue messagequeue.Queue) http.HandlerFunc {
	type healthStatus struct {
		Status  string `json:"status"`
		Solver  string `json:"solver"`
		NATS    string `json:"nats"`
		LiteLLM string `json:"litellm"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		natsState := "disabled"
		if queue != nil {
			natsState = "disconnected"
			if queue.IsConnected() {
				natsState = "connected"
			}
		}

		status := healthStatus{
			Status:  "ok",
			Solver:  cfg.Solver.Binary,
			NATS:    natsState,
			LiteLLM: cfg.LiteLLM.URL,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
