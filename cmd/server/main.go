package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatepass/internal/assets"
	credhandler "gatepass/internal/credential/handler"
	credmetrics "gatepass/internal/credential/metrics"
	"gatepass/internal/credential/service"
	"gatepass/internal/credential/store"
	"gatepass/internal/directory"
	"gatepass/internal/gate"
	"gatepass/internal/gatelog"
	jwttoken "gatepass/internal/jwt_token"
	"gatepass/internal/notify"
	"gatepass/internal/platform/config"
	"gatepass/internal/platform/httpserver"
	"gatepass/internal/platform/logger"
	"gatepass/internal/platform/metrics"
	platformredis "gatepass/internal/platform/redis"
	"gatepass/internal/verifycache"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx := context.Background()

	var (
		credStore store.CredentialStore
		scanStore gatelog.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("apply credential schema", "error", err)
			os.Exit(1)
		}
		credStore = pg

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("open scan log pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		scanPG := gatelog.NewPostgres(pool)
		if err := scanPG.EnsureSchema(ctx); err != nil {
			log.Error("apply scan log schema", "error", err)
			os.Exit(1)
		}
		scanStore = scanPG
	} else {
		log.Warn("no database configured, using in-memory stores")
		credStore = store.NewInMemory()
		scanStore = gatelog.NewInMemory()
	}

	var renderer assets.Renderer
	if cfg.AssetBaseURL != "" {
		renderer = assets.NewHTTPRenderer(cfg.AssetBaseURL, cfg.AssetAPIKey, cfg.AssetTimeout)
	} else {
		log.Warn("no asset renderer configured, using in-memory fake")
		renderer = assets.NewInMemoryRenderer()
	}

	var cache verifycache.Cache = verifycache.Noop{}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = verifycache.NewRedis(redisClient.Client, verifycache.WithTTL(cfg.VerifyCacheTTL))
	}

	var dispatcher notify.Dispatcher = notify.NewLogDispatcher(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		dispatcher = kafka
	}

	// TODO: replace the in-memory directory and device registry with clients
	// for the community-management service once its API is published.
	dir := directory.NewInMemory()
	devices := gate.NewInMemory()

	httpMetrics := metrics.New()
	credMetrics := credmetrics.New()

	svc := service.New(credStore, renderer, dir, log,
		service.WithDispatcher(dispatcher),
		service.WithScanLog(scanStore),
		service.WithVerifyCache(cache),
		service.WithMetrics(credMetrics),
		service.WithAssetTimeout(cfg.AssetTimeout),
		service.WithSingleEntryGuestPasses(cfg.SingleEntryGuestPasses),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	if cfg.DevSeed {
		seedDev(log, dir, devices, jwtService)
	}

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	credhandler.New(svc, log, httpMetrics, jwtService, devices, scanStore).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting gatepass", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
