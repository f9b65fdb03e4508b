package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/illmade-knight/go-postcache/pkg/cache"
	"github.com/illmade-knight/go-postcache/pkg/config"
	"github.com/illmade-knight/go-postcache/pkg/feed"
	"github.com/illmade-knight/go-postcache/pkg/microservice"
	"github.com/illmade-knight/go-postcache/pkg/snapshot"
	"github.com/illmade-knight/go-postcache/pkg/types"
	"github.com/illmade-knight/go-postcache/pkg/upstream"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

func main() {
	configPath := flag.String("config", os.Getenv("POSTCACHE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "postcache").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration.")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info.")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	itemCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create cache.")
	}
	defer func() { _ = itemCache.Close() }()

	store, closeStore, err := newSnapshotStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create snapshot store.")
	}
	defer closeStore()

	client, err := upstream.NewClient(&upstream.Config{
		BaseURL:         cfg.Upstream.BaseURL,
		Account:         cfg.Upstream.Account,
		FallbackAccount: cfg.Upstream.FallbackAccount,
		MaxResults:      cfg.Upstream.MaxResults,
		Timeout:         cfg.Upstream.Timeout,
	}, cfg.Credentials, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create upstream client.")
	}
	if client.AuthMode() == upstream.AuthNone {
		logger.Warn().Msg("No upstream credentials configured, serving demo items.")
	}

	svc, err := feed.NewService(&feed.Config{
		CacheKey:    cfg.Cache.Key,
		TTL:         cfg.Cache.TTL,
		FallbackTTL: cfg.Cache.FallbackTTL,
		MaxStaleAge: cfg.Snapshot.MaxStaleAge,
	}, client, itemCache, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create feed service.")
	}

	server := microservice.NewFeedServer(&microservice.FeedServerConfig{
		HTTPPort:    cfg.HTTPPort,
		DebugRoutes: cfg.DebugRoutes,
	}, svc, logger)
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start HTTP server.")
	}

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed.")
	}
}

func newCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Cache[string, []types.Item], error) {
	if cfg.Cache.Backend == config.CacheRedis {
		rc, err := cache.NewRedisCache[string, []types.Item](ctx, &cache.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	return cache.NewInMemoryCache[string, []types.Item](nil), nil
}

// newSnapshotStore returns a nil store when snapshots are disabled.
func newSnapshotStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (snapshot.Store, func(), error) {
	noop := func() {}
	var opts []option.ClientOption
	if cfg.Snapshot.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Snapshot.CredentialsFile))
	}
	switch cfg.Snapshot.Backend {
	case config.SnapshotGCS:
		if cfg.Snapshot.ProjectID != "" {
			opts = append(opts, option.WithQuotaProject(cfg.Snapshot.ProjectID))
		}
		gcs, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, noop, err
		}
		store, err := snapshot.NewGCSStore(snapshot.NewGCSClientAdapter(gcs), snapshot.GCSStoreConfig{
			BucketName: cfg.Snapshot.Bucket,
			ObjectName: cfg.Snapshot.Object,
		}, nil, logger)
		if err != nil {
			_ = gcs.Close()
			return nil, noop, err
		}
		return store, func() { _ = gcs.Close() }, nil
	case config.SnapshotFirestore:
		fs, err := firestore.NewClient(ctx, cfg.Snapshot.ProjectID, opts...)
		if err != nil {
			return nil, noop, err
		}
		store, err := snapshot.NewFirestoreStore(snapshot.NewFirestoreClientAdapter(fs), snapshot.FirestoreStoreConfig{
			CollectionName: cfg.Snapshot.Collection,
			DocumentID:     cfg.Snapshot.Document,
		}, nil, logger)
		if err != nil {
			_ = fs.Close()
			return nil, noop, err
		}
		return store, func() { _ = fs.Close() }, nil
	case config.SnapshotFile:
		store, err := snapshot.NewFileStore(cfg.Snapshot.Path, nil, logger)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		return nil, noop, nil
	}
}
