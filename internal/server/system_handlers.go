package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/runway/internal/database"
	"github.com/aristath/runway/internal/scheduler"
)

// SystemStatusResponse is the payload of GET /api/system/status
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	Goroutines    int     `json:"goroutines"`
	Workers       int     `json:"workers"`
	LastUpdated   string  `json:"last_updated"`

	Jobs []scheduler.JobStatus `json:"jobs"`
}

// SystemHandlers serves process and storage status
type SystemHandlers struct {
	log       zerolog.Logger
	resultsDB *database.DB
	scheduler *scheduler.Scheduler
	workers   int
	startedAt time.Time
	cpuWindow time.Duration
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, resultsDB *database.DB, workers int, sched *scheduler.Scheduler) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("service", "system").Logger(),
		resultsDB: resultsDB,
		scheduler: sched,
		workers:   workers,
		startedAt: time.Now(),
		cpuWindow: 100 * time.Millisecond,
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		Workers:       h.workers,
		LastUpdated:   time.Now().Format(time.RFC3339),
		Jobs:          []scheduler.JobStatus{},
	}
	if h.scheduler != nil {
		response.Jobs = h.scheduler.Jobs()
	}

	// Average over all CPUs; a short window keeps the call responsive
	if cpuPercent, err := cpu.Percent(h.cpuWindow, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		response.CPUPercent = cpuPercent[0]
	}

	if memStat, err := mem.VirtualMemory(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		response.MemoryPercent = memStat.UsedPercent
		response.MemoryUsedMB = float64(memStat.Used) / 1024 / 1024
		response.MemoryTotalMB = float64(memStat.Total) / 1024 / 1024
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if h.resultsDB == nil {
		http.Error(w, "Results database not configured", http.StatusServiceUnavailable)
		return
	}

	if err := h.resultsDB.QuickCheck(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Results database health check failed")
		http.Error(w, "Results database unavailable", http.StatusServiceUnavailable)
		return
	}

	stats, err := h.resultsDB.GetStats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		http.Error(w, "Failed to get database stats", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":  h.resultsDB.Name(),
		"path":  h.resultsDB.Path(),
		"stats": stats,
	})
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
