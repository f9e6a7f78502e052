// Package ffmpeg locates the ffmpeg binary that yt-dlp uses to merge
// separate audio and video streams.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotFound is returned when no ffmpeg binary can be resolved.
var ErrNotFound = errors.New("ffmpeg not found")

const defaultBinary = "ffmpeg"

// Probe resolves and checks an ffmpeg binary.
type Probe struct {
	binary string
}

// NewProbe creates a probe for the given binary. An empty path falls back
// to ffmpeg on PATH.
func NewProbe(path string) *Probe {
	if path == "" {
		path = defaultBinary
	}
	return &Probe{binary: path}
}

// Path returns the absolute location of the binary.
func (p *Probe) Path() (string, error) {
	resolved, err := exec.LookPath(p.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, p.binary, err)
	}
	return resolved, nil
}

// Available reports whether the binary can be resolved.
func (p *Probe) Available() bool {
	_, err := p.Path()
	return err == nil
}

// Version returns the first line of `ffmpeg -version`.
func (p *Probe) Version(ctx context.Context) (string, error) {
	path, err := p.Path()
	if err != nil {
		return "", err
	}

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version: %w", err)
	}

	line, _, _ := strings.Cut(string(output), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "unknown", nil
	}
	return line, nil
}
