// Package main wires together the crawl engine service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/api"
	"github.com/imeepos/crawl-engine/internal/clock/system"
	"github.com/imeepos/crawl-engine/internal/config"
	"github.com/imeepos/crawl-engine/internal/content"
	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/dispatcher"
	"github.com/imeepos/crawl-engine/internal/fetch"
	"github.com/imeepos/crawl-engine/internal/hash/sha256"
	"github.com/imeepos/crawl-engine/internal/id/uuid"
	"github.com/imeepos/crawl-engine/internal/logging"
	"github.com/imeepos/crawl-engine/internal/metrics"
	memorypublisher "github.com/imeepos/crawl-engine/internal/publisher/memory"
	pubsubpublisher "github.com/imeepos/crawl-engine/internal/publisher/pubsub"
	queuememory "github.com/imeepos/crawl-engine/internal/queue/memory"
	queuepubsub "github.com/imeepos/crawl-engine/internal/queue/pubsub"
	"github.com/imeepos/crawl-engine/internal/rankedset/redisset"
	"github.com/imeepos/crawl-engine/internal/render"
	"github.com/imeepos/crawl-engine/internal/session"
	gcsstorage "github.com/imeepos/crawl-engine/internal/storage/gcs"
	localstorage "github.com/imeepos/crawl-engine/internal/storage/local"
	memorystorage "github.com/imeepos/crawl-engine/internal/storage/memory"
	"github.com/imeepos/crawl-engine/internal/storage/postgres"
	"github.com/imeepos/crawl-engine/internal/task"
	"github.com/imeepos/crawl-engine/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	sessionRecords, contentRecords, closeDB, err := buildRecords(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	rankedSet, closeSet, err := buildRankedSet(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSet()

	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	pool := session.New(rankedSet, sessionRecords, session.Config{
		RankedSetKey: cfg.Session.RankedSetKey,
		MaxAttempts:  cfg.Session.MaxAttempts,
	}, logger.Named("session"))

	guard := render.New(render.Config{
		Enabled:            cfg.Render.Enabled,
		Headless:           cfg.Render.Headless,
		UserAgent:          cfg.Crawler.UserAgent,
		NavTimeout:         cfg.NavTimeout(),
		InteractionTimeout: cfg.InteractionTimeout(),
		WarmupURL:          cfg.Render.WarmupURL,
	}, logger.Named("render"))
	defer guard.Close()

	static := fetch.NewStatic(fetch.StaticConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	router := fetch.NewRouter(static, guard, logger.Named("fetch"))

	store := content.New(
		contentRecords,
		blobStore,
		sha256.New(),
		uuid.New(),
		system.New(),
		buildPublisherFactory(cfg, logger),
		content.Config{
			Topic:       cfg.PubSub.ReadyTopic,
			BlobPrefix:  cfg.Storage.Prefix,
			ContentType: cfg.Storage.ContentType,
		},
		logger.Named("content"),
	)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("content store close failed", zap.Error(err))
		}
	}()

	factory := task.NewFactory(task.Deps{
		Sessions:     pool,
		Fetcher:      router,
		Store:        store,
		Penalty:      cfg.Session.Penalty,
		Platform:     cfg.Platform,
		PlatformName: cfg.Crawler.Platform,
		Logger:       logger.Named("task"),
	})

	queue := queuememory.NewQueue(cfg.Crawler.QueueDepth)
	defer queue.Close()

	var workers []*worker.Worker
	for i := 0; i < cfg.Crawler.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			factory,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TaskSubscription != "" {
		consumer, err := queuepubsub.NewConsumer(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TaskSubscription, queue, logger.Named("consumer"))
		if err != nil {
			return fmt.Errorf("init task consumer: %w", err)
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Warn("consumer close failed", zap.Error(err))
			}
		}()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("task consumer stopped", zap.Error(err))
			}
		}()
	}

	apiServer := api.NewServer(dispatch, guard, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", len(workers)))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

// buildRecords selects Postgres when a DSN is configured, otherwise the
// in-memory tables suitable for local development.
func buildRecords(ctx context.Context, cfg config.Config, logger *zap.Logger) (session.SessionRecords, crawler.ContentRecords, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn unset, using in-memory records")
		return memorystorage.NewSessionRecords(), memorystorage.NewContentRecords(), func() {}, nil
	}
	contentRecords, err := postgres.NewContentRecords(ctx, postgres.ContentRecordsConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.ContentTable,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init content records: %w", err)
	}
	sessionRecords, err := postgres.NewSessionRecordsFromDSN(ctx, cfg.DB.DSN, cfg.DB.SessionTable)
	if err != nil {
		contentRecords.Close()
		return nil, nil, nil, fmt.Errorf("init session records: %w", err)
	}
	closeAll := func() {
		sessionRecords.Close()
		contentRecords.Close()
	}
	return sessionRecords, contentRecords, closeAll, nil
}

func buildRankedSet(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.RankedSet, func(), error) {
	set, err := redisset.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger.Named("redis"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	closeSet := func() {
		if err := set.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
	}
	return set, closeSet, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (crawler.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		return gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Storage.GCSBucket})
	case "local":
		return localstorage.New(localstorage.Config{BaseDir: cfg.Storage.LocalDir})
	default:
		return memorystorage.NewBlobStore(), nil
	}
}

// buildPublisherFactory defers the Pub/Sub connection to the first
// unique payload. Without a project id, ready events stay in process.
func buildPublisherFactory(cfg config.Config, logger *zap.Logger) content.PublisherFactory {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.ReadyTopic == "" {
		logger.Warn("pubsub unset, ready events use an in-memory publisher")
		return func(context.Context) (crawler.Publisher, error) {
			return memorypublisher.New(), nil
		}
	}
	return func(ctx context.Context) (crawler.Publisher, error) {
		return pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.ReadyTopic)
	}
}
