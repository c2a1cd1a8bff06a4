package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks the liveness of a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health, including the reachability of the
// configured backing stores.
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a HealthHandler. The checks map names each
// dependency ("postgres", "redis") to its pinger; nil values are skipped.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HealthCheck reports overall health. Returns 503 if any dependency is
// unreachable.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	healthy := true
	for name, p := range h.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			deps[name] = "unreachable"
			healthy = false
			continue
		}
		deps[name] = "ok"
	}

	status := http.StatusOK
	body := map[string]any{
		"status":       "ok",
		"dependencies": deps,
	}
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
