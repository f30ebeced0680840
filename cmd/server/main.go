package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"storestock/backend/internal/cache"
	"storestock/backend/internal/cart"
	"storestock/backend/internal/config"
	"storestock/backend/internal/httpapi"
	"storestock/backend/internal/logger"
	"storestock/backend/internal/metrics"
	"storestock/backend/internal/revenue"
	"storestock/backend/internal/service"
	"storestock/backend/internal/store"
	"storestock/backend/internal/store/memory"
	pgstore "storestock/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: !cfg.Production()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m := metrics.New()

	var (
		repo  store.Repository
		ready httpapi.ReadinessCheck
	)
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalw("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", "error", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalw("schema migration failed", "error", err)
		}
		repo = pg
		ready = pg.Ping
		closers = append(closers, func() error { pg.Close(); return nil })
		log.Infow("repository ready", "backend", "postgres")
	} else {
		repo = memory.NewSeeded()
		log.Infow("repository ready", "backend", "memory")
	}

	var (
		reportCache cache.ReportCache = cache.NoopReportCache{}
		carts       cart.Store
	)
	cartTTL := time.Duration(cfg.CartTTLHours) * time.Hour
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warnw("redis unavailable, using local cart storage and no report cache", "error", err)
			_ = redisCache.Close()
		} else {
			reportCache = redisCache
			carts = redisCache.CartStore("cart:", cartTTL)
			closers = append(closers, redisCache.Close)
			log.Infow("cache ready", "backend", "redis")
		}
	}
	if carts == nil {
		carts, err = localCartStore(cfg)
		if err != nil {
			log.Fatalw("cart storage unavailable", "error", err)
		}
	}

	reporter := revenue.NewReporter(reportCache, time.Duration(cfg.ReportCacheTTLSeconds)*time.Second, cfg.TimezoneOffsetHours, m)
	svc := service.New(repo, service.Options{
		Reporter:     reporter,
		Carts:        carts,
		Metrics:      m,
		RankingLimit: cfg.RankingDefaultLimit,
	})
	api := httpapi.New(svc, m, cfg.AllowedOrigin, ready)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infow("storestock backend listening", "addr", cfg.Address(), "timezone_offset_hours", cfg.TimezoneOffsetHours)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server error", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("shutdown error", "error", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Errorw("close error", "error", err)
		}
	}

	log.Info("server stopped")
}

func localCartStore(cfg config.Config) (cart.Store, error) {
	if cfg.CartFileDir == "" {
		return cart.NewMemoryStore(), nil
	}
	return cart.NewFileStore(cfg.CartFileDir)
}

func validateConfig(cfg config.Config) error {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", cfg.Port)
	}
	if cfg.TimezoneOffsetHours < -12 || cfg.TimezoneOffsetHours > 14 {
		return fmt.Errorf("TIMEZONE_OFFSET_HOURS must be between -12 and 14, got %d", cfg.TimezoneOffsetHours)
	}
	if cfg.ReportCacheTTLSeconds < 1 {
		return fmt.Errorf("REPORT_CACHE_TTL_SECONDS must be positive")
	}
	if cfg.CartTTLHours < 1 {
		return fmt.Errorf("CART_TTL_HOURS must be positive")
	}
	if cfg.RankingDefaultLimit < 1 {
		return fmt.Errorf("RANKING_DEFAULT_LIMIT must be positive")
	}
	if cfg.Production() && cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN cannot be * in production")
	}
	return nil
}
