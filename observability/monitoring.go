package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// ProcessStats is the latest self sample of the server process.
type ProcessStats struct {
	PID        int32     `json:"pid"`
	Status     string    `json:"status"`
	CPUPercent float64   `json:"cpu_percent"`
	RSSBytes   uint64    `json:"rss_bytes"`
	MemPercent float32   `json:"mem_percent"`
	Goroutines int       `json:"goroutines"`
	AllocMemMb uint64    `json:"alloc_mem_mb"`
	NumGC      uint32    `json:"num_gc"`
	SampledAt  time.Time `json:"sampled_at"`
}

// MonitoringStats aggregates what /health reports.
type MonitoringStats struct {
	Process        ProcessStats `json:"process"`
	LiveSessions   int          `json:"live_sessions"`
	InvitesPending int          `json:"invite_queue_length"`
	Uptime         string       `json:"uptime"`
}

// MonitoringManager keeps the latest stats, written by the health worker and
// read by the HTTP layer.
type MonitoringManager struct {
	log       *slog.Logger
	mu        sync.RWMutex
	latest    ProcessStats
	startedAt time.Time
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, startedAt: time.Now()}
}

// Record stores a process sample, completed with Go runtime figures, and
// exports it as gauges.
func (mm *MonitoringManager) Record(stats ProcessStats) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC
	stats.Goroutines = runtime.NumGoroutine()

	mm.mu.Lock()
	mm.latest = stats
	mm.mu.Unlock()

	ProcessRSS.Set(float64(stats.RSSBytes))
	ProcessCPU.Set(stats.CPUPercent)

	mm.log.Debug("Stats updated",
		"rss_bytes", stats.RSSBytes,
		"cpu_percent", stats.CPUPercent,
		"goroutines", stats.Goroutines,
	)
}

func (mm *MonitoringManager) GetLatest() ProcessStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latest
}

func (mm *MonitoringManager) Uptime() time.Duration {
	return time.Since(mm.startedAt).Truncate(time.Second)
}
