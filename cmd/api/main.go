package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"campaignsvc/internal/campaign"
	"campaignsvc/internal/http/handlers"
	httpapi "campaignsvc/internal/http/httpapi"
	"campaignsvc/internal/infra"
	"campaignsvc/internal/infra/geoip"
	"campaignsvc/internal/ingest"
	"campaignsvc/internal/middleware"
	"campaignsvc/internal/storage"
)

func main() {
	// Muat .env (opsional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogFile)

	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := infra.NewMetrics(reg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	// Campaign record store (postgres / mongo / memory)
	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.CampaignStore).Msg("failed to open campaign store")
	}
	defer repo.close()
	store := campaign.NewStore(repo.repo, campaign.WithLogger(logger))

	// Object store (s3 / filesystem)
	backend, staticDir, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to open object store")
	}
	objects, err := storage.NewClient(backend, storage.Options{
		Endpoint:          cfg.StorageEndpoint,
		PublicBaseURL:     cfg.StorageBaseURL,
		SinglePutMaxBytes: cfg.SinglePutMaxBytes,
		MultipartTimeout:  cfg.MultipartTimeout,
		Logger:            logger,
		Metrics:           metrics,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build object store client")
	}

	svc := ingest.NewService(store, objects, ingest.Options{
		UploadConcurrency: cfg.UploadConcurrency,
		Logger:            logger,
		Metrics:           metrics,
	})

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		cached, err := geoip.NewCachedResolver(resolver, 4096)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build geoip cache")
		}
		lookup = cached.CountryCode
		if closer, ok := resolver.(*geoip.Resolver); ok {
			defer closer.Close()
		}
	}

	app := &handlers.App{
		Ingest:         svc,
		Campaigns:      store,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Ready:          repo.ping,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   "en",
		CountryLookup:   lookup,
		Gatherer:        reg,
		Logger:          logger,
		StaticDir:       staticDir,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("store", cfg.CampaignStore).
			Str("backend", cfg.StorageBackend).
			Str("bucket", objects.Bucket()).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
