package storage

// DiskStats describes the filesystem under the storage root.
type DiskStats struct {
	TotalBytes int64 `json:"total_bytes"`
	FreeBytes  int64 `json:"free_bytes"`
	UsedBytes  int64 `json:"used_bytes"`
}
