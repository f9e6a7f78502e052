package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/iconidentify/clipbatch/internal/config"
	"github.com/iconidentify/clipbatch/internal/domain"
)

// Errors yt-dlp reports for content that will never become available.
var permanentFailures = []string{
	"Unsupported URL",
	"Private video",
	"Video unavailable",
	"HTTP Error 404",
	"This video is only available for registered users",
}

type runFunc func(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.Result, error)

// YTDLPFetcher implements Fetcher using the yt-dlp binary.
type YTDLPFetcher struct {
	cfg    config.FetcherConfig
	retry  RetryConfig
	logger *slog.Logger
	run    runFunc
}

// NewYTDLPFetcher creates a new yt-dlp backed fetcher.
func NewYTDLPFetcher(cfg config.FetcherConfig, logger *slog.Logger) *YTDLPFetcher {
	return &YTDLPFetcher{
		cfg:    cfg,
		retry:  RetryConfigFrom(cfg),
		logger: logger,
		run: func(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.Result, error) {
			return cmd.Run(ctx, url)
		},
	}
}

// Install downloads a yt-dlp binary into the user cache when none is
// available on PATH. It is a no-op unless auto install is enabled.
func (f *YTDLPFetcher) Install(ctx context.Context) error {
	if !f.cfg.AutoInstall {
		return nil
	}

	resolved, err := Retry(ctx, f.retry, func() (*ytdlp.ResolvedInstall, error) {
		return ytdlp.Install(ctx, nil)
	})
	if err != nil {
		return fmt.Errorf("install yt-dlp: %w", err)
	}

	f.logger.Info("yt-dlp ready",
		"executable", resolved.Executable,
		"version", resolved.Version,
	)
	return nil
}

// Fetch runs yt-dlp for a single URL.
func (f *YTDLPFetcher) Fetch(ctx context.Context, url string, opts Options) error {
	logger := f.logger.With("url", url, "format", opts.Format)

	attempt := 0
	_, err := RetryWithCheck(ctx, f.retry, func() (struct{}, error) {
		attempt++
		if attempt > 1 {
			logger.Warn("retrying fetch", "attempt", attempt)
		}
		return struct{}{}, f.fetchOnce(ctx, url, opts)
	}, isRetryable)
	if err != nil {
		return domain.NewFetchError(url, "yt-dlp", err)
	}

	logger.Debug("fetch finished", "attempts", attempt)
	return nil
}

func (f *YTDLPFetcher) fetchOnce(ctx context.Context, url string, opts Options) error {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := f.run(ctx, f.command(opts), url)
	if err == nil {
		return nil
	}

	detail := ""
	if res != nil {
		detail = errorLine(res.Stderr)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w after %s: %w", domain.ErrFetchFailed, time.Since(start).Round(time.Second), ctxErr)
	}
	if detail != "" {
		return fmt.Errorf("%w: %s", domain.ErrFetchFailed, detail)
	}
	return fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
}

// command translates Options into a yt-dlp invocation.
func (f *YTDLPFetcher) command(opts Options) *ytdlp.Command {
	cmd := ytdlp.New().
		Format(opts.Format).
		Output(opts.OutputTemplate).
		Retries(strconv.Itoa(opts.Retries)).
		FragmentRetries(strconv.Itoa(opts.FragmentRetries))

	if opts.MergeFormat != "" {
		cmd = cmd.MergeOutputFormat(opts.MergeFormat)
	}
	if opts.SkipUnavailableFragments {
		cmd = cmd.SkipUnavailableFragments()
	}
	if opts.NoPlaylist {
		cmd = cmd.NoPlaylist()
	}
	if f.cfg.FFmpegPath != "" {
		cmd = cmd.FFmpegLocation(f.cfg.FFmpegPath)
	}

	keys := make([]string, 0, len(opts.Headers))
	for k := range opts.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd = cmd.AddHeaders(k + ":" + opts.Headers[k])
	}

	return cmd
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := err.Error()
	for _, s := range permanentFailures {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}

// errorLine picks the last "ERROR:" line of yt-dlp output, falling back
// to the last non-empty line.
func errorLine(stderr string) string {
	fallback := ""
	lines := strings.Split(stderr, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			return line
		}
		if fallback == "" {
			fallback = line
		}
	}
	return fallback
}
