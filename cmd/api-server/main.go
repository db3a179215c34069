package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-appointment-scheduling/internal/api"
	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
	"github.com/hackgods/clinic-appointment-scheduling/internal/seed"
	"github.com/hackgods/clinic-appointment-scheduling/pkg/logger"
	"github.com/hackgods/clinic-appointment-scheduling/pkg/tracer"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("lock_backend", cfg.LockBackend),
		zap.Duration("lock_ttl", cfg.LockTTL),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracer.Init(rootCtx, tracer.Config{
		ServiceName: "clinic-api",
		Endpoint:    cfg.OTELEndpoint,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		lg.Fatal("tracing init error", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			lg.Error("tracing shutdown failed", zap.Error(err))
		}
	}()
	if cfg.OTELEndpoint != "" {
		lg.Info("exporting traces", zap.String("otlp_endpoint", cfg.OTELEndpoint))
	}

	var (
		store     appointment.Store
		directory appointment.Directory
		pgPool    *pgxpool.Pool
		rdb       *redis.Client
	)

	switch cfg.StoreBackend {
	case config.StorePostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{AppName: "clinic-api", MaxConns: int32(cfg.PostgresMaxConn)})
		cancelPg()
		if err != nil {
			lg.Fatal("postgres connection error", zap.Error(err))
		}
		defer pgPool.Close()
		lg.Info("connected to Postgres")

		repo := appointment.NewPgRepository(pgPool)
		store, directory = repo, repo
	default:
		mem := appointment.NewMemoryDirectory()
		catalog := seed.LoadMemory(mem, seed.Generate(uint64(time.Now().UnixNano()), 10, 50))
		store, directory = appointment.NewMemoryStore(), mem
		lg.Warn("using in-memory store, data is lost on restart",
			zap.Int("doctors", len(catalog.Doctors)),
			zap.Int("patients", len(catalog.Patients)),
		)
	}

	var locker redisclient.Locker
	switch cfg.LockBackend {
	case config.LockRedis:
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:       cfg.RedisAddr,
			Username:   cfg.RedisUsername,
			Password:   cfg.RedisPassword,
			ClientName: "clinic-api",
		})
		if err != nil {
			lg.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				lg.Error("error closing redis", zap.Error(err))
			}
		}()
		lg.Info("connected to Redis")
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	default:
		locker = redisclient.NewLocalLocker()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := appointment.NewService(store, directory, locker,
		appointment.WithMetrics(metrics.NewSchedulingMetrics(reg)),
		appointment.WithLogger(lg.Named("appointment")),
	)

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		Auth:     api.NewAuthenticator(cfg.JWTSecret),
		PgPool:   pgPool,
		Redis:    rdb,
		Gatherer: reg,
		Logger:   lg.Named("http"),
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	lg.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
