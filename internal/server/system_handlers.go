package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/arena/internal/database"
	"github.com/aristath/arena/internal/scheduler"
)

// SystemHandlers serves process and database health endpoints plus manual
// job triggers.
type SystemHandlers struct {
	scheduler *scheduler.Scheduler
	databases map[string]*database.DB
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(log zerolog.Logger, sched *scheduler.Scheduler, databases map[string]*database.DB) *SystemHandlers {
	return &SystemHandlers{
		scheduler: sched,
		databases: databases,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory_used_pct"] = vm.UsedPercent
		status["memory_total_mb"] = vm.Total / 1024 / 1024
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status["cpu_pct"] = percents[0]
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	status["heap_alloc_mb"] = memStats.HeapAlloc / 1024 / 1024

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": status,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{}, len(h.databases))
	for name, db := range h.databases {
		dbStats, err := db.GetStats()
		if err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Failed to collect database stats")
			stats[name] = map[string]interface{}{"error": err.Error()}
			continue
		}
		stats[name] = map[string]interface{}{
			"size_bytes":     dbStats.SizeBytes,
			"wal_size_bytes": dbStats.WALSizeBytes,
			"page_count":     dbStats.PageCount,
			"freelist_pages": dbStats.FreelistCount,
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": stats,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	var names []string
	if h.scheduler != nil {
		names = h.scheduler.JobNames()
		sort.Strings(names)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"jobs": names},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		http.Error(w, "Scheduler not available", http.StatusServiceUnavailable)
		return
	}

	name := chi.URLParam(r, "name")
	found, err := h.scheduler.RunNow(name)
	if !found {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manually triggered job failed")
		http.Error(w, "Job failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"job": name, "status": "completed"},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
