//go:build !windows

package storage

import (
	"golang.org/x/sys/unix"
)

// DiskUsage reports capacity of the filesystem holding path.
func DiskUsage(path string) (DiskStats, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return DiskStats{}, err
	}

	total := int64(fs.Blocks) * int64(fs.Bsize)
	free := int64(fs.Bavail) * int64(fs.Bsize)
	return DiskStats{
		TotalBytes: total,
		FreeBytes:  free,
		UsedBytes:  total - free,
	}, nil
}
