package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"news_crawler/internal/api"
	"news_crawler/internal/cache"
	"news_crawler/internal/config"
	"news_crawler/internal/enrich"
	"news_crawler/internal/notify"
	"news_crawler/internal/publisher"
	"news_crawler/internal/scheduler"
	"news_crawler/internal/service"
	"news_crawler/internal/source/aitimes"
	"news_crawler/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// The page cache is an optimization; run without it if Redis is down.
	var pageCache *cache.PageCache
	rdb, err := cache.NewClient(cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, page caching disabled", "error", err)
	} else {
		defer rdb.Close()
		pageCache = cache.NewPageCache(rdb, cfg.Redis.PageTTL, logger)
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	rabbitMQ, err := publisher.NewRabbitMQ(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	articleStore := postgres.NewArticleStore(db)
	txManager := postgres.NewTransactionManager(db)

	source := aitimes.New(aitimes.Config{
		BaseURL:   cfg.Source.BaseURL,
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.Source.Timeout,
	}, logger)

	gemini := enrich.NewGeminiClient(enrich.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.Timeout,
	}, logger)

	hub := notify.NewHub(logger)
	dedup := service.NewDeduplicator(articleStore, txManager, logger)

	var crawlCache service.PageCache
	if pageCache != nil {
		crawlCache = pageCache
	}

	crawlService := service.NewCrawlService(
		source,
		articleStore,
		dedup,
		txManager,
		gemini,
		rabbitMQ,
		hub,
		crawlCache,
		logger,
		cfg.Crawl,
	)

	sched := scheduler.NewScheduler(crawlService, cfg.Crawl.Interval, logger)

	var apiCache api.PageCache
	if pageCache != nil {
		apiCache = pageCache
	}
	handler := api.NewHandler(articleStore, apiCache, hub, gemini, logger)
	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewRouter(handler),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("starting news crawler",
		"interval", cfg.Crawl.Interval,
		"start_index", cfg.Crawl.StartIndex,
	)

	schedErr := sched.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if schedErr != nil && !errors.Is(schedErr, context.Canceled) {
		logger.Error("scheduler error", "error", schedErr)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
