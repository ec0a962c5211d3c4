package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// NamedQueue is a bounded queue whose fill level is worth exporting.
type NamedQueue struct {
	Name     string
	Length   func() int
	Capacity int
}

type sessionCounter interface {
	Sessions() int
}

// CapacityWorker periodically exports the fill level of the relay queues and
// the number of sessions with a live connection. Reading the lengths never
// blocks the owners of the queues.
type CapacityWorker struct {
	log              *slog.Logger
	queues           []NamedQueue
	sessions         sessionCounter
	metricInterval   time.Duration
	warnAbovePercent int
}

func NewCapacityWorker(log *slog.Logger, queues []NamedQueue, sessions sessionCounter, metricInterval time.Duration) *CapacityWorker {
	return &CapacityWorker{
		log:              log,
		queues:           queues,
		sessions:         sessions,
		metricInterval:   metricInterval,
		warnAbovePercent: 80,
	}
}

func (w *CapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping capacity sampling")
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *CapacityWorker) sample() {
	observability.LiveSessions.Set(float64(w.sessions.Sessions()))
	for _, q := range w.queues {
		length := q.Length()
		observability.QueueLength.WithLabelValues(q.Name).Set(float64(length))
		if q.Capacity > 0 && length*100 >= q.Capacity*w.warnAbovePercent {
			w.log.Warn("Queue almost full", "queue", q.Name, "length", length, "capacity", q.Capacity)
		}
	}
}
