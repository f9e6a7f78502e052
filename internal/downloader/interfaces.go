package downloader

import (
	"context"
)

// Fetcher retrieves the media behind a URL.
type Fetcher interface {
	// Fetch writes every file it produces under opts.OutputDir.
	// A nil error does not guarantee that a file was written; callers
	// verify the output directory themselves.
	Fetch(ctx context.Context, url string, opts Options) error
}
