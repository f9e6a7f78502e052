package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/iconidentify/clipbatch/internal/api"
	"github.com/iconidentify/clipbatch/internal/api/handler"
	"github.com/iconidentify/clipbatch/internal/config"
	"github.com/iconidentify/clipbatch/internal/downloader"
	"github.com/iconidentify/clipbatch/internal/repository"
	"github.com/iconidentify/clipbatch/internal/service"
	"github.com/iconidentify/clipbatch/internal/spreadsheet"
	"github.com/iconidentify/clipbatch/internal/storage"
	"github.com/iconidentify/clipbatch/pkg/ffmpeg"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("clipbatch-server %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Server.Level(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting clipbatch",
		"version", Version,
		"build_time", BuildTime,
	)

	// Ensure storage root exists
	if err := os.MkdirAll(cfg.Storage.BasePath, 0755); err != nil {
		logger.Error("failed to create storage directory", "error", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancelStart()

	// Initialize dependencies
	store, err := repository.NewStore(startCtx, cfg.Store, cfg.Server.SessionTTL, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}

	fetcher := downloader.NewYTDLPFetcher(cfg.Fetcher, logger)
	if err := fetcher.Install(startCtx); err != nil {
		logger.Error("failed to install yt-dlp", "error", err)
		os.Exit(1)
	}

	probe := ffmpeg.NewProbe(cfg.Fetcher.FFmpegPath)
	if version, err := probe.Version(startCtx); err != nil {
		logger.Warn("ffmpeg unavailable; split-stream downloads will fail", "error", err)
	} else {
		logger.Info("ffmpeg ready", "version", version)
	}

	library := storage.NewLibrary(afero.NewOsFs(), cfg.Storage.BasePath)

	// Initialize services
	batchSvc := service.NewBatchService(store, fetcher, library, cfg.Batch, cfg.Storage, logger)
	linkSvc := service.NewLinkService(store, spreadsheet.NewExcelReader(), logger)

	// Setup router
	router := api.NewRouter(api.Handlers{
		Health:  handler.NewHealthHandler(store, probe, cfg.Storage.BasePath),
		UI:      handler.NewUIHandler(),
		Links:   handler.NewLinksHandler(linkSvc, cfg.Storage.MaxUploadBytes, logger),
		Batch:   handler.NewBatchHandler(batchSvc, linkSvc, logger),
		History: handler.NewHistoryHandler(batchSvc, logger),
		Files:   handler.NewFilesHandler(library, logger),
	}, cfg.Server.APIKey, cfg.Server.SessionTTL)

	if cfg.Server.APIKey == "" {
		logger.Warn("API_KEY not set; /api/v1 is unauthenticated")
	}

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Let background batches finish their in-flight downloads
	if err := batchSvc.Wait(25 * time.Second); err != nil {
		logger.Error("background batches still running", "error", err)
	}

	if err := store.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
