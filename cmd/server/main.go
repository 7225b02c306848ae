package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/volbet/settlement-engine/internal/ledger"
	"github.com/volbet/settlement-engine/internal/metrics"
	"github.com/volbet/settlement-engine/internal/oracle"
	"github.com/volbet/settlement-engine/internal/pool"
	"github.com/volbet/settlement-engine/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	adminToken := os.Getenv("ADMIN_TOKEN")
	oracleToken := os.Getenv("ORACLE_TOKEN")
	if adminToken == "" || oracleToken == "" {
		slog.Error("ADMIN_TOKEN and ORACLE_TOKEN must be set")
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pgPool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pgPool.Close)
		st = store.NewPostgresStore(pgPool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (events will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- External collaborators ---
	var transferer ledger.Transferer = ledger.LogTransferer{}
	if url := os.Getenv("TRANSFER_URL"); url != "" {
		transferer = ledger.NewWebhookTransferer(url)
		slog.Info("payout service configured", "url", url)
	}

	var dispatcher oracle.Dispatcher = oracle.LogDispatcher{}
	if url := os.Getenv("ORACLE_URL"); url != "" {
		dispatcher = oracle.NewHTTPDispatcher(url)
		slog.Info("oracle endpoint configured", "url", url)
	}

	// --- WebSocket hub ---
	hub := pool.NewWSHub()
	go hub.Run()

	// --- Settlement service ---
	svc := pool.NewService(pool.Config{
		Store:       st,
		Transferer:  transferer,
		Dispatcher:  dispatcher,
		Hub:         hub,
		Window:      envDuration("BETTING_WINDOW", pool.DefaultWindow),
		OracleStall: envDuration("ORACLE_STALL_AFTER", 5*time.Minute),
		AdminToken:  adminToken,
		OracleToken: oracleToken,
	})

	if err := svc.Replay(context.Background()); err != nil {
		slog.Error("event log replay failed", "err", err)
		os.Exit(1)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(pool.RateLimit(rate.Limit(envInt("RATE_LIMIT_RPS", 50)), envInt("RATE_LIMIT_BURST", 100)))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"settlement-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for the live audit event feed.
		r.Get("/ws", hub.HandleWS)

		// Queries.
		r.Get("/status", svc.HandleStatus)
		r.Get("/balances/{participant}", svc.HandleBalance)

		// Participant operations.
		r.Post("/deposit", svc.HandleDeposit)
		r.Post("/withdraw", svc.HandleWithdraw)
		r.Post("/predictions", svc.HandleSubmitPrediction)

		// Oracle round-trip.
		r.Post("/oracle/request", svc.HandleRequestReport)
		r.Post("/oracle/fulfill", svc.HandleFulfill)

		// Admin operations.
		r.Post("/resolve", svc.HandleDeclareWinner)
		r.Post("/sweep", svc.HandleSweep)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("settlement-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down settlement-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("settlement-engine stopped")
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", def)
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("invalid integer, using default", "key", key, "value", v, "default", def)
	}
	return def
}
