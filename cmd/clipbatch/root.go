package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/iconidentify/clipbatch/internal/config"
	"github.com/iconidentify/clipbatch/internal/domain"
	"github.com/iconidentify/clipbatch/internal/downloader"
	"github.com/iconidentify/clipbatch/internal/repository"
	"github.com/iconidentify/clipbatch/internal/service"
	"github.com/iconidentify/clipbatch/internal/spreadsheet"
	"github.com/iconidentify/clipbatch/internal/storage"
)

// defaultSession namespaces CLI runs apart from browser sessions.
const defaultSession = "local"

type rootOptions struct {
	configPath string
	session    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "clipbatch",
		Short:         "Download videos listed in a spreadsheet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.session, "session", defaultSession, "Session whose directory and history to use")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))

	return cmd
}

// app holds the services a command works with.
type app struct {
	cfg     *config.Config
	store   repository.Store
	library *storage.Library
	batches *service.BatchService
	links   *service.LinkService
	session domain.SessionID
}

// newApp wires the services from configuration. install fetches a yt-dlp
// binary first when auto install is enabled.
func newApp(ctx context.Context, opts *rootOptions, install bool) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.Level(),
	}))

	store, err := repository.NewStore(ctx, cfg.Store, cfg.Server.SessionTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fetcher := downloader.NewYTDLPFetcher(cfg.Fetcher, logger)
	if install {
		if err := fetcher.Install(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}

	library := storage.NewLibrary(afero.NewOsFs(), cfg.Storage.BasePath)

	return &app{
		cfg:     cfg,
		store:   store,
		library: library,
		batches: service.NewBatchService(store, fetcher, library, cfg.Batch, cfg.Storage, logger),
		links:   service.NewLinkService(store, spreadsheet.NewExcelReader(), logger),
		session: domain.SessionID(opts.session),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
