package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/coursegrab/internal/repository"
)

var startTime = time.Now()

// RunStatsSource reports run counts and whether a run owns the browser.
type RunStatsSource interface {
	Stats(ctx context.Context) (*repository.RunStats, error)
	Busy() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	runs        RunStatsSource
	storagePath string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(runs RunStatsSource, storagePath string) *HealthHandler {
	return &HealthHandler{
		runs:        runs,
		storagePath: storagePath,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string               `json:"status"`
	Timestamp string               `json:"timestamp"`
	Busy      bool                 `json:"busy"`
	Runs      *repository.RunStats `json:"runs,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Busy:      h.runs.Busy(),
	})
}

// Ready handles GET /ready - readiness probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.runs.Stats(ctx)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Busy:      h.runs.Busy(),
		Runs:      stats,
	})
}

// SystemStats contains system resource statistics.
type SystemStats struct {
	Uptime         int64   `json:"uptime_seconds"`
	UptimeHuman    string  `json:"uptime_human"`
	MemAllocMB     int64   `json:"mem_alloc_mb"`
	MemSysMB       int64   `json:"mem_sys_mb"`
	MemHeapMB      int64   `json:"mem_heap_mb"`
	NumGoroutines  int     `json:"num_goroutines"`
	NumCPU         int     `json:"num_cpu"`
	CPUPct         float64 `json:"cpu_pct"`
	DiskUsedBytes  int64   `json:"disk_used_bytes"`
	DiskFreeBytes  int64   `json:"disk_free_bytes"`
	DiskTotalBytes int64   `json:"disk_total_bytes"`
	DiskUsedPct    float64 `json:"disk_used_pct"`
	DiskFreeHuman  string  `json:"disk_free_human"`
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
		MemHeapMB:     int64(m.HeapAlloc / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		CPUPct:        getCPUUsage(),
		StoragePath:   h.storagePath,
	}

	stats.DiskTotalBytes, stats.DiskFreeBytes, stats.DiskUsedBytes, stats.DiskUsedPct = getDiskStats(h.storagePath)
	stats.DiskFreeHuman = humanize.Bytes(uint64(stats.DiskFreeBytes))

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
