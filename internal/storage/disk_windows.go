//go:build windows

package storage

import (
	"golang.org/x/sys/windows"
)

// DiskUsage reports capacity of the volume holding path.
func DiskUsage(path string) (DiskStats, error) {
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return DiskStats{}, err
	}

	var freeBytes, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeBytes, &totalBytes, &totalFreeBytes); err != nil {
		return DiskStats{}, err
	}

	return DiskStats{
		TotalBytes: int64(totalBytes),
		FreeBytes:  int64(freeBytes),
		UsedBytes:  int64(totalBytes) - int64(freeBytes),
	}, nil
}
