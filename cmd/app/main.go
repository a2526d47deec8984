package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pixzen-bot/internal/ai"
	"pixzen-bot/internal/cache"
	"pixzen-bot/internal/config"
	"pixzen-bot/internal/handlers"
	"pixzen-bot/internal/httpserver"
	"pixzen-bot/internal/logging"
	"pixzen-bot/internal/media"
	"pixzen-bot/internal/metrics"
	"pixzen-bot/internal/processor"
	"pixzen-bot/internal/repo"
	"pixzen-bot/internal/templates"
	"pixzen-bot/internal/webhook"
	"pixzen-bot/internal/wpp"
	"pixzen-bot/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.AppEnv)
	slog.SetDefault(logger)
	logger.Info("starting pixzen bot", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	store, err := repo.New(ctx, cfg.DatabaseURL, cfg.DBSchema, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close()

	if err := store.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	redisCache := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis unreachable, webhook dedup disabled", "error", err)
	}

	aiClient := ai.NewClient(ai.ClientConfig{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Timeout: cfg.OpenAITimeout,
	}, logger, metricRegistry)
	extractor := ai.NewExtractor(aiClient, store, logger, cfg.Timezone)

	wppClient := wpp.New(wpp.Config{
		BaseURL:  cfg.WppBaseURL,
		APIToken: cfg.WppAPIToken,
		Timeout:  cfg.WppTimeout,
	}, logger, metricRegistry)

	downloader := media.NewDownloader(media.Config{
		Timeout:  cfg.MediaTimeout,
		APIToken: cfg.WppAPIToken,
	}, logger, metricRegistry)

	templateService := templates.New(store, logger)

	handler := handlers.New(store, extractor, wppClient, downloader, templateService, logger, metricRegistry)
	normalizer := webhook.New(logger)
	proc := processor.New(store, normalizer, handler, wppClient, templateService, redisCache, logger, metricRegistry)

	queue := processor.NewQueue(proc, cfg.WorkerCount, cfg.QueueSize, logger)
	queue.Start(ctx)

	server := httpserver.New(httpserver.Config{
		ListenAddr:     cfg.HTTPListenAddr,
		BasePath:       cfg.PublicBasePath,
		WebhookSecret:  cfg.WebhookSecret,
		InternalAPIKey: cfg.InternalAPIKey,
	}, store, queue, wppClient, logger,
		templateService.Invalidate,
		extractor.InvalidateConfig,
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	queue.Wait()
	logger.Info("pixzen bot stopped")
	return nil
}
