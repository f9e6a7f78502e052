// Package storage manages the per-session download directories: layout,
// quota enforcement and placing finished files under their final names.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/iconidentify/clipbatch/internal/domain"
)

const stagingDirName = ".staging"

// FileEntry describes one finished file in a session directory.
type FileEntry struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Library resolves and reads session directories under a storage root.
type Library struct {
	fs       afero.Fs
	basePath string
}

// NewLibrary creates a Library rooted at basePath.
func NewLibrary(fs afero.Fs, basePath string) *Library {
	return &Library{
		fs:       fs,
		basePath: basePath,
	}
}

// Fs returns the underlying filesystem.
func (l *Library) Fs() afero.Fs {
	return l.fs
}

// BasePath returns the storage root.
func (l *Library) BasePath() string {
	return l.basePath
}

// SessionDir returns the directory owned by a session without creating it.
func (l *Library) SessionDir(id domain.SessionID) (string, error) {
	s := id.String()
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return "", domain.ErrInvalidSession
	}
	return filepath.Join(l.basePath, s), nil
}

// EnsureSessionDir returns the session directory, creating it if needed.
func (l *Library) EnsureSessionDir(id domain.SessionID) (string, error) {
	dir, err := l.SessionDir(id)
	if err != nil {
		return "", err
	}
	if err := l.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create session directory: %w", err)
	}
	return dir, nil
}

// StagingDir returns the private directory one fetch writes into.
func StagingDir(sessionDir, unit string) string {
	return filepath.Join(sessionDir, stagingDirName, unit)
}

// List returns the finished files of a session, newest first.
func (l *Library) List(id domain.SessionID) ([]FileEntry, error) {
	dir, err := l.SessionDir(id)
	if err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []FileEntry{}, nil
		}
		return nil, fmt.Errorf("read session directory: %w", err)
	}

	entries := make([]FileEntry, 0, len(infos))
	for _, info := range infos {
		if !info.Mode().IsRegular() {
			continue
		}
		entries = append(entries, FileEntry{
			Name:       info.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModifiedAt.After(entries[j].ModifiedAt)
	})

	return entries, nil
}

// Open opens a finished file of a session for reading.
func (l *Library) Open(id domain.SessionID, name string) (afero.File, os.FileInfo, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, nil, domain.ErrInvalidFilename
	}

	dir, err := l.SessionDir(id)
	if err != nil {
		return nil, nil, err
	}

	path := filepath.Join(dir, name)
	info, err := l.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, domain.ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, domain.ErrFileNotFound
	}

	f, err := l.fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	return f, info, nil
}
