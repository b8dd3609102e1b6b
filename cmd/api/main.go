package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/db"
	httpx "github.com/geocoder89/userhub/internal/http"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/redisclient"
	"github.com/geocoder89/userhub/internal/repo/memory"
	"github.com/geocoder89/userhub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if cfg.IsDevelopment() {
		log.Debug("configuration loaded", "config", cfg.Summary())
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTelEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	prom := observability.NewProm(prometheus.NewRegistry())

	var (
		users   httpx.UserRepository
		ping    func(context.Context) error
		closers []func()
	)

	switch cfg.Storage {
	case config.StorageMemory:
		repo := memory.NewUsersRepo()
		users, ping = repo, repo.Ping
		log.Warn("using in-memory storage; data is lost on restart")

	default:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		closers = append(closers, pool.Close)

		gdb, err := db.OpenGorm(pool, log)
		if err != nil {
			log.Error("gorm open failed", "err", err)
			os.Exit(1)
		}

		if err := postgres.AutoMigrate(gdb); err != nil {
			log.Error("migration failed", "err", err)
			os.Exit(1)
		}

		repo := postgres.NewUsersRepo(gdb, prom)
		users, ping = repo, repo.Ping
	}

	seedCtx, cancelSeed := config.WithTimeout(ctx, 5*time.Second)
	created, err := db.EnsureAdminUser(seedCtx, users, cfg)
	cancelSeed()
	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}
	if created {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	var limiter middlewares.Limiter = middlewares.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancelPing := config.WithTimeout(ctx, 2*time.Second)
		err := rc.Ping(pingCtx)
		cancelPing()
		if err != nil {
			log.Error("redis unavailable", "err", err)
			os.Exit(1)
		}

		closers = append(closers, func() { _ = rc.Close() })
		limiter = middlewares.NewRedisRateLimiter(rc.Scripter(), cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Users:   users,
		Tokens:  auth.NewManager(cfg.JWTSecret, cfg.JWTExpiresIn),
		Limiter: limiter,
		Prom:    prom,
		Ping:    ping,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.Storage, "prefix", cfg.APIPrefix)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if err := shutdownTracer(sctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}

		for _, c := range closers {
			c()
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
