package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/iconidentify/clipbatch/internal/storage"
)

var startTime = time.Now()

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BinaryProbe reports whether an external binary can be resolved.
type BinaryProbe interface {
	Available() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store       Pinger
	ffmpeg      BinaryProbe // optional
	storagePath string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store Pinger, ffmpeg BinaryProbe, storagePath string) *HealthHandler {
	return &HealthHandler{
		store:       store,
		ffmpeg:      ffmpeg,
		storagePath: storagePath,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. The store must answer;
// a missing ffmpeg is reported but does not fail readiness since
// single-stream downloads work without it.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    map[string]string{"store": "ok"},
	}

	if err := h.store.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		resp.Status = "error"
		resp.Checks["store"] = err.Error()
	}

	if h.ffmpeg != nil {
		if h.ffmpeg.Available() {
			resp.Checks["ffmpeg"] = "ok"
		} else {
			resp.Checks["ffmpeg"] = "missing"
		}
	}

	writeJSON(w, status, resp)
}

// SystemStats contains system resource statistics.
type SystemStats struct {
	Uptime         int64   `json:"uptime_seconds"`
	UptimeHuman    string  `json:"uptime_human"`
	MemAllocMB     int64   `json:"mem_alloc_mb"`
	MemSysMB       int64   `json:"mem_sys_mb"`
	NumGoroutines  int     `json:"num_goroutines"`
	NumCPU         int     `json:"num_cpu"`
	DiskUsedBytes  int64   `json:"disk_used_bytes"`
	DiskFreeBytes  int64   `json:"disk_free_bytes"`
	DiskTotalBytes int64   `json:"disk_total_bytes"`
	DiskUsedPct    float64 `json:"disk_used_pct"`
	StoragePath    string  `json:"storage_path"`
}

// Stats handles GET /api/v1/stats - system statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		StoragePath:   h.storagePath,
	}

	// Storage root may not exist yet before the first batch.
	if disk, err := storage.DiskUsage(h.storagePath); err == nil {
		stats.DiskTotalBytes = disk.TotalBytes
		stats.DiskFreeBytes = disk.FreeBytes
		stats.DiskUsedBytes = disk.UsedBytes
		if disk.TotalBytes > 0 {
			stats.DiskUsedPct = float64(disk.UsedBytes) / float64(disk.TotalBytes) * 100
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
