package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
)

// readyTimeout bounds the dependency checks of one readiness probe.
const readyTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProbeHandler serves the liveness and readiness probes.
type ProbeHandler struct {
	deps map[string]Pinger
}

// NewProbeHandler creates a probe handler. The database is always checked;
// extra dependencies may be added with Check.
func NewProbeHandler(database Pinger) *ProbeHandler {
	return &ProbeHandler{deps: map[string]Pinger{"database": database}}
}

// Check adds a named dependency to the readiness probe.
func (h *ProbeHandler) Check(name string, p Pinger) {
	h.deps[name] = p
}

// Liveness reports that the process is serving requests.
func (h *ProbeHandler) Liveness(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// Readiness pings every dependency and reports each result. Any failure
// makes the whole probe fail with 503.
func (h *ProbeHandler) Readiness(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), readyTimeout)
	defer cancel()

	checks := make(fiber.Map, len(h.deps))
	ready := true
	for name, dep := range h.deps {
		start := time.Now()
		if err := dep.Ping(ctx); err != nil {
			ready = false
			checks[name] = fiber.Map{"status": "error", "error": name + " unavailable"}
			continue
		}
		checks[name] = fiber.Map{"status": "ok", "latency_ms": time.Since(start).Milliseconds()}
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "error",
			"checks": checks,
		})
	}
	return c.JSON(fiber.Map{
		"status": "ok",
		"checks": checks,
	})
}
