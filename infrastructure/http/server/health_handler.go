package server

import (
	"chat-relay/observability"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type liveSessions interface {
	Sessions() int
}

type pendingQueue interface {
	Pending() int
}

type check struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                        `json:"status"`
	Checks    map[string]check              `json:"checks"`
	Stats     observability.MonitoringStats `json:"stats"`
	Timestamp string                        `json:"timestamp"`
}

// HealthHandler reports store reachability and the process figures sampled
// by the health worker.
type HealthHandler struct {
	db         *badger.DB
	registry   liveSessions
	mailer     pendingQueue
	monitoring *observability.MonitoringManager
}

func NewHealthHandler(db *badger.DB, registry liveSessions, mailer pendingQueue, monitoring *observability.MonitoringManager) *HealthHandler {
	return &HealthHandler{db: db, registry: registry, mailer: mailer, monitoring: monitoring}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]check)
	healthy := true

	start := time.Now()
	if err := h.pingStore(); err != nil {
		checks["store"] = check{Status: "fail", Message: err.Error()}
		healthy = false
	} else {
		checks["store"] = check{Status: "pass", Latency: time.Since(start).String()}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{
		Status: status,
		Checks: checks,
		Stats: observability.MonitoringStats{
			Process:        h.monitoring.GetLatest(),
			LiveSessions:   h.registry.Sessions(),
			InvitesPending: h.mailer.Pending(),
			Uptime:         h.monitoring.Uptime().String(),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) pingStore() error {
	if h.db.IsClosed() {
		return badger.ErrDBClosed
	}
	return h.db.View(func(txn *badger.Txn) error { return nil })
}
