package downloader

import (
	"path/filepath"

	"github.com/iconidentify/clipbatch/internal/domain"
)

// Format expressions handed to yt-dlp.
const (
	// Instagram serves video and audio as separate streams.
	FormatSplitStreams = "bestvideo[height<=720]+bestaudio/best[height<=720]"
	FormatSingleStream = "best[height<=720]"
)

const (
	defaultMergeFormat     = "mp4"
	defaultRetries         = 20
	defaultFragmentRetries = 20
	titleTemplate          = "%(title)s.%(ext)s"

	// DesktopUserAgent is sent with every fetch.
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Options configures a single fetch.
type Options struct {
	Format                   string
	MergeFormat              string
	OutputDir                string
	OutputTemplate           string
	Retries                  int
	FragmentRetries          int
	SkipUnavailableFragments bool
	NoPlaylist               bool
	Headers                  map[string]string
}

// BuildOptions returns the fetch options for a platform writing into
// outputDir. The result shares no state with previous calls.
func BuildOptions(platform domain.Platform, outputDir string) Options {
	format := FormatSingleStream
	if platform == domain.PlatformInstagram {
		format = FormatSplitStreams
	}

	return Options{
		Format:                   format,
		MergeFormat:              defaultMergeFormat,
		OutputDir:                outputDir,
		OutputTemplate:           filepath.Join(outputDir, titleTemplate),
		Retries:                  defaultRetries,
		FragmentRetries:          defaultFragmentRetries,
		SkipUnavailableFragments: true,
		NoPlaylist:               true,
		Headers: map[string]string{
			"User-Agent": DesktopUserAgent,
		},
	}
}
