package metrics

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/iptkeeper/iptkeeper/internal/logging"
)

// HealthChecker tracks readiness signals for the watch daemon.
type HealthChecker struct {
	mu           sync.RWMutex
	fileLoaded   bool
	rulesApplied bool
	logger       *slog.Logger
}

// NewHealthChecker returns a HealthChecker with a logger derived from the shared logging package.
func NewHealthChecker() *HealthChecker {
	logger := logging.GetLogger()
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthChecker{logger: logger}
}

// SetFileLoaded records that the rules file has been parsed at least once.
func (h *HealthChecker) SetFileLoaded() {
	h.mu.Lock()
	h.fileLoaded = true
	h.mu.Unlock()
}

// SetRulesApplied records that a restore has completed at least once.
func (h *HealthChecker) SetRulesApplied() {
	h.mu.Lock()
	h.rulesApplied = true
	h.mu.Unlock()
}

// IsHealthy reports whether both readiness signals have been satisfied.
func (h *HealthChecker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fileLoaded && h.rulesApplied
}

// Handler produces an HTTP handler for the /healthz endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		fileLoaded := h.fileLoaded
		rulesApplied := h.rulesApplied
		h.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		if fileLoaded && rulesApplied {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK\n"))
			return
		}

		h.logger.Warn("health check not yet passing",
			slog.Bool("file_loaded", fileLoaded),
			slog.Bool("rules_applied", rulesApplied),
		)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Service Unavailable\n"))
	})
}
