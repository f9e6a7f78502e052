package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/iconidentify/clipbatch/internal/domain"
)

// Leftovers of an interrupted yt-dlp run; never moved into the session.
var partialSuffixes = []string{".part", ".ytdl", ".temp"}

// Finalizer moves the files a fetch produced in its staging directory into
// the session directory under sanitized, collision-free names.
type Finalizer struct {
	fs afero.Fs
	mu sync.Mutex // serializes name selection across concurrent fetches
}

// NewFinalizer creates a new finalizer.
func NewFinalizer(fs afero.Fs) *Finalizer {
	return &Finalizer{fs: fs}
}

// Finalize verifies that stagingDir holds at least one finished file and
// moves every such file into sessionDir. It returns the final file names.
// The staging directory is removed afterwards. On error no file of this
// fetch is left in sessionDir.
func (f *Finalizer) Finalize(stagingDir, sessionDir string) ([]string, error) {
	defer f.Discard(stagingDir)

	infos, err := afero.ReadDir(f.fs, stagingDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNoOutputFile
		}
		return nil, fmt.Errorf("read staging directory: %w", err)
	}

	var produced []os.FileInfo
	for _, info := range infos {
		if info.Mode().IsRegular() && !isPartial(info.Name()) {
			produced = append(produced, info)
		}
	}
	if len(produced) == 0 {
		return nil, domain.ErrNoOutputFile
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(produced))
	for _, info := range produced {
		name, err := f.uniqueName(sessionDir, SanitizeFilename(info.Name()))
		if err != nil {
			f.rollback(sessionDir, names)
			return nil, err
		}
		src := filepath.Join(stagingDir, info.Name())
		dst := filepath.Join(sessionDir, name)
		if err := f.fs.Rename(src, dst); err != nil {
			f.rollback(sessionDir, names)
			return nil, fmt.Errorf("move %s: %w", info.Name(), err)
		}
		names = append(names, name)
	}

	return names, nil
}

// rollback removes the files a failed Finalize already moved.
func (f *Finalizer) rollback(sessionDir string, names []string) {
	for _, name := range names {
		_ = f.fs.Remove(filepath.Join(sessionDir, name))
	}
}

// Discard removes a staging directory and anything left in it.
func (f *Finalizer) Discard(stagingDir string) {
	_ = f.fs.RemoveAll(stagingDir)
}

// uniqueName appends _1, _2, ... before the extension until the name is free.
func (f *Finalizer) uniqueName(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; ; i++ {
		_, err := f.fs.Stat(filepath.Join(dir, candidate))
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		candidate = base + "_" + strconv.Itoa(i) + ext
	}
}

func isPartial(name string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
