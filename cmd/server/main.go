package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/quotagate/api"
	"github.com/yourusername/quotagate/config"
	"github.com/yourusername/quotagate/logging"
	"github.com/yourusername/quotagate/middleware"
	"github.com/yourusername/quotagate/quota"
	"github.com/yourusername/quotagate/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		bucketStore quota.Store
		pinger      api.Pinger
		closeStore  func() error
	)
	switch cfg.Store.Backend {
	case config.BackendMemory:
		ms := store.NewMemoryStore()
		bucketStore, pinger = ms, ms
		logging.Warn().Msg("using in-memory bucket store; budgets are not shared across instances")
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		rs, err := store.NewRedisStore(ctx, client, "")
		if err != nil {
			logging.Fatal().Err(err).Str("addr", cfg.Store.Redis.Addr).Msg("failed to connect to redis")
		}
		bucketStore, pinger, closeStore = rs, rs, rs.Close
		logging.Info().Str("addr", cfg.Store.Redis.Addr).Msg("connected to redis")
	}

	logger := logging.Logger()
	eval := quota.NewEvaluator(quota.EvaluatorConfig{
		Store:    bucketStore,
		FailOpen: cfg.FailOpen(),
		Logger:   &logger,
	})

	tiers, err := cfg.Tiers()
	if err != nil {
		logging.Fatal().Err(err).Msg("bad tier configuration")
	}
	routes, err := cfg.Routes()
	if err != nil {
		logging.Fatal().Err(err).Msg("bad route configuration")
	}

	q := middleware.NewQuota(middleware.QuotaConfig{
		Evaluator: eval,
		Tiers:     tiers,
		Routes:    routes,
	})
	h := api.NewHandler(eval, q, pinger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	// Status does its own zero-cost evaluation, so it sits outside the
	// enforcement group and never spends the caller's budget.
	r.Get("/v1/quota/status", h.Status)

	r.Group(func(r chi.Router) {
		r.Use(q.Middleware)
		r.Get("/v1/ping", pingHandler)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()
	logging.Info().Str("addr", srv.Addr).Bool("fail_open", cfg.FailOpen()).Msg("quotagate listening")

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown")
	}
	if closeStore != nil {
		if err := closeStore(); err != nil {
			logging.Error().Err(err).Msg("store close")
		}
	}
	logging.Info().Msg("shutdown complete")
}

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"message":"pong"}`))
}
