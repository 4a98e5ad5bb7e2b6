package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"campaignsvc/internal/adapter/repo"
	"campaignsvc/internal/adapter/repo/memory"
	"campaignsvc/internal/domain"
	"campaignsvc/internal/infra"
	"campaignsvc/internal/storage"
)

type openedRepository struct {
	repo  domain.CampaignRepository
	ping  func(ctx context.Context) error
	close func()
}

func openRepository(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*openedRepository, error) {
	switch cfg.CampaignStore {
	case infra.CampaignStorePostgres:
		pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		pg := repo.NewCampaignRepository(infra.NewSQLRunner(pool, logger))
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure campaign schema: %w", err)
		}
		return &openedRepository{repo: pg, ping: pool.Ping, close: pool.Close}, nil

	case infra.CampaignStoreMongo:
		client, err := infra.NewMongoClient(ctx, cfg.MongoURI, logger)
		if err != nil {
			return nil, err
		}
		mongoRepo := repo.NewCampaignRepositoryMongo(client.Database(cfg.MongoDatabase))
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure campaign indexes: %w", err)
		}
		return &openedRepository{
			repo:  mongoRepo,
			ping:  func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close: func() { _ = client.Disconnect(context.Background()) },
		}, nil

	case infra.CampaignStoreMemory:
		logger.Warn().Msg("campaign store is in-memory; records are lost on restart")
		return &openedRepository{
			repo:  memory.NewCampaignRepository(),
			ping:  func(context.Context) error { return nil },
			close: func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown campaign store %q", cfg.CampaignStore)
}

// openBackend returns the object store backend and, for the filesystem
// backend, the directory to serve under /static.
func openBackend(ctx context.Context, cfg *infra.Config) (storage.Backend, string, error) {
	switch cfg.StorageBackend {
	case infra.StorageBackendS3:
		client, err := infra.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		backend, err := storage.NewS3Backend(client, cfg.StorageBucket)
		return backend, "", err
	case infra.StorageBackendFilesystem:
		fs, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBucket)
		if err != nil {
			return nil, "", err
		}
		return fs, fs.BasePath(), nil
	}
	return nil, "", fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
