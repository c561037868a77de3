package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"briefly/internal/app"
	"briefly/internal/config"
	"briefly/internal/metrics"
	"briefly/internal/server"
	"briefly/internal/util"
	"briefly/pkg/ai"
	"briefly/pkg/export"
	"briefly/pkg/queue"
	"briefly/pkg/store"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	generator, err := ai.NewGenerator(ai.Config{
		Provider: cfg.Provider,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
	})
	if err != nil {
		util.Fatal("failed to init generator", "err", err)
	}

	var dataStore store.Store
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			util.Fatal("failed to init database store", "err", err)
		}
		dataStore = gormStore
	} else {
		slog.Warn("no databaseURL configured, conversations are kept in memory")
		dataStore = store.NewMemoryStore()
	}

	var settings store.SettingsStore
	if cfg.RedisAddr != "" {
		settings = store.NewRedisSettingsStore(cfg.RedisAddr, "", 0)
	} else if s, ok := dataStore.(store.SettingsStore); ok {
		settings = s
	} else {
		settings = store.NewMemoryStore()
	}

	var objects export.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = export.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			util.Fatal("failed to init object store", "err", err)
		}
	}

	var jobQueue *queue.RedisJobQueue
	if cfg.RedisAddr != "" && objects != nil {
		jobQueue, err = queue.NewRedisJobQueue(queue.RedisQueueConfig{Addr: cfg.RedisAddr, Stream: "briefly:exports"})
		if err != nil {
			util.Fatal("failed to init export queue", "err", err)
		}
	}

	var m metrics.Metrics = metrics.Noop{}
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		prom := metrics.NewProm("briefly")
		reg := prometheus.NewRegistry()
		prom.Register(reg)
		m = prom
		metricsHandler = metrics.Handler(reg)
	}

	appCore, err := app.New(app.Config{
		Generator:           generator,
		Store:               dataStore,
		Settings:            settings,
		Objects:             objects,
		Queue:               jobQueue,
		Metrics:             m,
		SummarySystemPrompt: cfg.SummarySystemPrompt,
		MinTokens:           cfg.MinTokens,
		MaxTokens:           cfg.MaxTokens,
		DefaultTokens:       cfg.DefaultTokens,
		MaxInputChars:       cfg.MaxInputChars,
		Temperature:         cfg.Temperature,
		TopP:                cfg.TopP,
		RepetitionPenalty:   cfg.RepetitionPenalty,
		GenerationTimeout:   time.Duration(cfg.GenerationTimeoutS) * time.Second,
		BatchConcurrency:    cfg.BatchConcurrency,
		PresignExpiry:       time.Duration(cfg.PresignExpiryHours) * time.Hour,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if jobQueue != nil {
		go appCore.StartExportWorker(ctx, cfg.ExportWorkers)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		MetricsHandler: metricsHandler,
		ServiceName:    "briefly",
		TrustForwarded: cfg.TrustForwarded,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("briefly server listening", "addr", addr, "provider", cfg.Provider, "model", cfg.Model)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
