package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adlens/internal/delivery"
	"adlens/internal/domain"
	"adlens/internal/infrastructure"
	"adlens/internal/usecase"
	"adlens/pkg/config"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const historyPurgeInterval = 10 * time.Minute

type brandStore interface {
	domain.BrandCache
	delivery.BrandDirectory
	Init(ctx context.Context)
	Flush(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.LogLevel)
	log.WithField("env", cfg.App.Env).Info("Starting adlens server")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	actorClient := infrastructure.NewActorHTTPClient(
		cfg.Actor.BaseURL,
		cfg.Actor.Token,
		cfg.Actor.HTTPTimeout,
		cfg.Actor.RateLimitPerSecond,
		cfg.Actor.PollInterval,
		log,
		m,
	)

	retry := usecase.NewRetryController(actorClient, usecase.RetryPolicy{
		MaxAttempts:         cfg.Retry.MaxAttempts,
		BaseDelay:           cfg.Retry.BaseDelay,
		MaxDelay:            cfg.Retry.MaxDelay,
		RateLimitMultiplier: cfg.Retry.RateLimitMultiplier,
	}, log, m)

	caches := map[domain.Provider]brandStore{
		domain.ProviderMeta:   infrastructure.NewBrandCacheStore(cfg.Cache.MetaPath, string(domain.ProviderMeta), log, m),
		domain.ProviderGoogle: infrastructure.NewBrandCacheStore(cfg.Cache.GooglePath, string(domain.ProviderGoogle), log, m),
	}
	for _, cache := range caches {
		cache.Init(ctx)
	}

	history, pool, err := initHistory(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize search history")
	}
	if pool != nil {
		defer pool.Close()
	}

	settings := usecase.FetchSettings{
		DefaultMaxAds:    cfg.Fetch.DefaultMaxAds,
		OverFetchFactor:  cfg.Fetch.OverFetchFactor,
		MaxUpstreamItems: cfg.Fetch.MaxUpstreamItems,
		RunTimeout:       cfg.Actor.RunTimeout,
	}

	services := []*usecase.FetchService{
		usecase.NewFetchService(usecase.NewMetaStrategy(cfg.Actor.MetaActorID), retry, caches[domain.ProviderMeta], history, settings, log, m),
		usecase.NewFetchService(usecase.NewGoogleStrategy(cfg.Actor.GoogleActorID), retry, caches[domain.ProviderGoogle], history, settings, log, m),
	}

	fetchers := make([]domain.AdFetcher, 0, len(services))
	for _, s := range services {
		fetchers = append(fetchers, s)
	}
	directories := make(map[domain.Provider]delivery.BrandDirectory, len(caches))
	for provider, cache := range caches {
		directories[provider] = cache
	}

	handlers := delivery.NewHTTPHandlers(fetchers, directories, history, cfg.Fetch.DefaultMaxAds, log, m, cfg.IsProduction())
	router := delivery.NewHTTPRouter(handlers, log, m, cfg.Server.RequestTimeout).SetupRoutes()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	for _, s := range services {
		s.Wait()
	}
	for provider, cache := range caches {
		if err := cache.Flush(shutdownCtx); err != nil {
			log.WithProvider(shutdownCtx, string(provider)).WithError(err).Error("Failed to flush brand cache")
		}
	}

	log.Info("Server exited")
}

// initHistory builds the configured search history backend and starts its
// expiry loop. The pool is nil for the memory backend.
func initHistory(ctx context.Context, cfg *config.Config, log *logger.Logger) (domain.SearchHistoryStore, *pgxpool.Pool, error) {
	switch cfg.History.Backend {
	case "postgres":
		pool, err := infrastructure.NewPostgresPool(ctx, cfg.History.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := infrastructure.NewPostgresSearchHistory(pool, cfg.History.TTL, log)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		go purgeLoop(ctx, func(ctx context.Context) {
			if _, err := store.Purge(ctx); err != nil {
				log.WithContext(ctx).WithError(err).Warn("Failed to purge search history")
			}
		})
		log.Info("Using postgres search history")
		return store, pool, nil

	default:
		store := infrastructure.NewSearchHistoryRepository(cfg.History.TTL, log)
		go purgeLoop(ctx, func(ctx context.Context) { store.Purge(ctx) })
		log.Info("Using in-memory search history")
		return store, nil, nil
	}
}

func purgeLoop(ctx context.Context, purge func(context.Context)) {
	ticker := time.NewTicker(historyPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge(ctx)
		}
	}
}
