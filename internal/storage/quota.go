package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// QuotaEnforcer keeps a directory under a byte ceiling by deleting the
// oldest files first.
type QuotaEnforcer struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewQuotaEnforcer creates a new quota enforcer.
func NewQuotaEnforcer(fs afero.Fs, logger *slog.Logger) *QuotaEnforcer {
	return &QuotaEnforcer{
		fs:     fs,
		logger: logger,
	}
}

// Usage returns the total size of the regular files directly inside dir.
func (q *QuotaEnforcer) Usage(dir string) (int64, error) {
	files, err := q.regularFiles(dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range files {
		total += f.Size()
	}
	return total, nil
}

// Enforce deletes files from dir, oldest modification time first, until
// the total size is at or below maxBytes. Errors are logged, not returned.
func (q *QuotaEnforcer) Enforce(dir string, maxBytes int64) {
	logger := q.logger.With("dir", dir, "max_bytes", maxBytes)

	if err := q.fs.MkdirAll(dir, 0755); err != nil {
		logger.Warn("quota: cannot create directory", "error", err)
		return
	}

	files, err := q.regularFiles(dir)
	if err != nil {
		logger.Warn("quota: cannot list directory", "error", err)
		return
	}

	var total int64
	for _, f := range files {
		total += f.Size()
	}
	if total <= maxBytes {
		return
	}

	// ReadDir sorts by name, so equal timestamps keep name order.
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime().Before(files[j].ModTime())
	})

	deleted := 0
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		path := filepath.Join(dir, f.Name())
		if err := q.fs.Remove(path); err != nil {
			logger.Warn("quota: cannot delete file", "file", f.Name(), "error", err)
			continue
		}
		total -= f.Size()
		deleted++
		logger.Info("quota: deleted file", "file", f.Name(), "size", f.Size())
	}

	if total > maxBytes {
		logger.Warn("quota: directory still over limit", "total_bytes", total)
	}
	logger.Info("quota enforced", "deleted", deleted, "total_bytes", total)
}

func (q *QuotaEnforcer) regularFiles(dir string) ([]os.FileInfo, error) {
	infos, err := afero.ReadDir(q.fs, dir)
	if err != nil {
		return nil, err
	}
	files := infos[:0]
	for _, info := range infos {
		if info.Mode().IsRegular() {
			files = append(files, info)
		}
	}
	return files, nil
}
