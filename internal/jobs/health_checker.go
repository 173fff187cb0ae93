package jobs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"url2/internal/logger"
	"url2/internal/metrics"
	"url2/internal/models"
	"url2/internal/validation"
)

// redirectError rejects a redirect hop that fails the SSRF guard.
type redirectError struct {
	reason string
}

func (e *redirectError) Error() string { return "redirect refused: " + e.reason }

// HealthStore is the persistence the health checker needs.
type HealthStore interface {
	GetURL2sNeedingHealthCheck(ctx context.Context, maxAge time.Duration, limit int) ([]models.URL2, error)
	UpdateURL2HealthStatus(ctx context.Context, id uuid.UUID, status string, errMsg *string) error
}

// HealthChecker performs background health checks on stored resource links.
type HealthChecker struct {
	store    HealthStore
	interval time.Duration
	maxAge   time.Duration
	client   *http.Client
	resolver validation.Resolver
	log      logger.Logger

	batch int
	pause time.Duration // between checks within a batch
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(store HealthStore, interval, maxAge time.Duration, log logger.Logger) *HealthChecker {
	h := &HealthChecker{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		client:   &http.Client{Timeout: 10 * time.Second},
		resolver: validation.DefaultResolver,
		log:      log.With(logger.String("component", "health_checker")),
		batch:    50,
		pause:    time.Second,
	}
	h.client.CheckRedirect = h.checkRedirect
	return h
}

// checkRedirect applies the SSRF guard to every redirect hop, not just the
// stored URL.
func (h *HealthChecker) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("too many redirects")
	}
	if valid, msg := validation.ValidateURLForHealthCheck(h.resolver, req.URL.String()); !valid {
		return &redirectError{reason: msg}
	}
	return nil
}

// Start begins the background health check loop.
func (h *HealthChecker) Start(ctx context.Context) {
	h.log.Info("health checker started",
		logger.Duration("interval", h.interval),
		logger.Duration("max_age", h.maxAge),
	)

	// Run immediately on start
	h.checkAll(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("health checker stopped")
			return
		case <-ticker.C:
			h.checkAll(ctx)
		}
	}
}

// checkAll checks every link due for a check and returns how many were
// recorded.
func (h *HealthChecker) checkAll(ctx context.Context) int {
	due, err := h.store.GetURL2sNeedingHealthCheck(ctx, h.maxAge, h.batch)
	if err != nil {
		h.log.Error("failed to get links", logger.Error(err))
		return 0
	}

	if len(due) == 0 {
		return 0
	}

	h.log.Info("checking links", logger.Int("count", len(due)))

	checked := 0
	for i := range due {
		// Check context before each link
		select {
		case <-ctx.Done():
			return checked
		default:
		}

		if _, _, err := h.Check(ctx, &due[i]); err != nil {
			h.log.Warn("failed to record health status",
				logger.Stringer("id", due[i].ID),
				logger.Error(err),
			)
			continue
		}
		checked++

		// Delay between checks to avoid overwhelming external servers
		if h.pause > 0 {
			select {
			case <-ctx.Done():
				return checked
			case <-time.After(h.pause):
			}
		}
	}
	return checked
}

// Check probes one resource link and records the outcome on it.
func (h *HealthChecker) Check(ctx context.Context, u *models.URL2) (string, *string, error) {
	status, errMsg := h.checkURL(ctx, u.ExternalURL)
	if err := h.store.UpdateURL2HealthStatus(ctx, u.ID, status, errMsg); err != nil {
		return "", nil, err
	}
	metrics.RecordHealthCheck(status)

	now := time.Now()
	u.HealthStatus = status
	u.HealthCheckedAt = &now
	u.HealthError = errMsg
	return status, errMsg, nil
}

// checkURL performs a HEAD request to check if a URL is healthy.
// Validates URLs before making requests to prevent SSRF attacks.
func (h *HealthChecker) checkURL(ctx context.Context, url string) (string, *string) {
	if valid, msg := validation.ValidateURLForHealthCheck(h.resolver, url); !valid {
		return models.HealthUnhealthy, &msg
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		errMsg := "invalid URL: " + err.Error()
		return models.HealthUnhealthy, &errMsg
	}

	req.Header.Set("User-Agent", "URL2-HealthChecker/1.0")

	resp, err := h.client.Do(req)
	var refused *redirectError
	if errors.As(err, &refused) {
		errMsg := refused.Error()
		return models.HealthUnhealthy, &errMsg
	}
	if err != nil {
		errMsg := "connection failed: " + err.Error()
		return models.HealthUnknown, &errMsg
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return models.HealthHealthy, nil
	}

	errMsg := "HTTP " + resp.Status
	return models.HealthUnhealthy, &errMsg
}
