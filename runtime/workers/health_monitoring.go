package workers

import (
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker samples the server process at a fixed interval and
// hands the figures to the monitoring manager.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	monitoring     *observability.MonitoringManager
	metricInterval time.Duration
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	monitoring *observability.MonitoringManager,
	metricInterval time.Duration,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		monitoring:     monitoring,
		metricInterval: metricInterval,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("open own process: %w", err)
	}
	w.sample(p)

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health sampling")
			return nil
		case <-ticker.C:
			w.sample(p)
		}
	}
}

func (w *HealthMonitoringWorker) sample(p *process.Process) {
	stats, err := selfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
		return
	}
	w.monitoring.Record(stats)
}

func selfStats(p *process.Process) (observability.ProcessStats, error) {
	status, err := p.Status()
	if err != nil {
		return observability.ProcessStats{}, fmt.Errorf("process status: %w", err)
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return observability.ProcessStats{}, fmt.Errorf("process cpu usage: %w", err)
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return observability.ProcessStats{}, fmt.Errorf("process memory: %w", err)
	}
	ram, err := p.MemoryPercent()
	if err != nil {
		return observability.ProcessStats{}, fmt.Errorf("process ram usage: %w", err)
	}
	return observability.ProcessStats{
		PID:        p.Pid,
		Status:     status,
		CPUPercent: cpu,
		RSSBytes:   mem.RSS,
		MemPercent: ram,
		SampledAt:  time.Now().UTC(),
	}, nil
}
