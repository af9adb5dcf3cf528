// Package health runs periodic integrity checks against the ledger and the
// content store and keeps the latest result for the /healthz endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/jmerrifield20/filechain/internal/contentstore"
	"github.com/jmerrifield20/filechain/internal/ledger"
	"go.uber.org/zap"
)

// Status values reported for each check.
const (
	StatusUnknown  = "unknown"
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Report is the outcome of the most recent check.
type Report struct {
	Ledger    string    `json:"ledger"`
	Store     string    `json:"store"`
	Entries   int       `json:"entries"`
	Root      string    `json:"root"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
}

// Healthy reports whether neither check is degraded.
func (r Report) Healthy() bool {
	return r.Ledger != StatusDegraded && r.Store != StatusDegraded
}

// DegradedFunc is an optional callback invoked once when a check crosses
// the failure threshold.
type DegradedFunc func(ctx context.Context, check string, report Report)

// MetricsRecordFunc is an optional callback for recording check results.
type MetricsRecordFunc func(check string, success bool)

// HealthChecker runs periodic ledger verification and store probes.
type HealthChecker struct {
	ledger     ledger.Ledger
	store      contentstore.Store
	failCounts map[string]int
	report     Report
	mu         sync.Mutex
	cfg        Config
	onDegraded DegradedFunc
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// New creates a new HealthChecker. store may be nil to skip the content probe.
func New(l ledger.Ledger, store contentstore.Store, cfg Config, logger *zap.Logger) *HealthChecker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &HealthChecker{
		ledger:     l,
		store:      store,
		failCounts: make(map[string]int),
		report:     Report{Ledger: StatusUnknown, Store: StatusUnknown},
		cfg:        cfg,
		logger:     logger,
	}
}

// SetDegradedCallback configures the degraded-transition callback.
func (h *HealthChecker) SetDegradedCallback(fn DegradedFunc) {
	h.onDegraded = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *HealthChecker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Report returns the result of the most recent check.
func (h *HealthChecker) Report() Report {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.report
}

// Start runs the check loop until ctx is cancelled. One check runs
// immediately.
func (h *HealthChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	h.CheckAll(ctx)
	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll verifies the ledger and probes the content of the chain tip.
func (h *HealthChecker) CheckAll(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
	defer cancel()

	var r Report
	r.CheckedAt = time.Now().UTC()

	ledgerOK := h.checkLedger(ctx, &r)
	r.Ledger = h.transition(ctx, "ledger", ledgerOK, &r)

	r.Store = StatusUnknown
	if h.store != nil {
		storeOK := h.probeStore(ctx)
		r.Store = h.transition(ctx, "store", storeOK, &r)
	}

	h.mu.Lock()
	h.report = r
	h.mu.Unlock()
	return r
}

func (h *HealthChecker) checkLedger(ctx context.Context, r *Report) bool {
	ok, err := h.ledger.Verify(ctx)
	if err != nil {
		h.logger.Warn("health: ledger verify", zap.Error(err))
		return false
	}
	r.Entries, _ = h.ledger.Len(ctx)
	r.Root, _ = h.ledger.Root(ctx)
	if !ok {
		h.logger.Error("health: ledger integrity check failed", zap.Int("entries", r.Entries))
	}
	return ok
}

// probeStore fetches the content referenced by the newest entry. An empty
// chain has nothing to probe and counts as success.
func (h *HealthChecker) probeStore(ctx context.Context) bool {
	n, err := h.ledger.Len(ctx)
	if err != nil || n < 2 {
		return err == nil
	}
	tip, err := h.ledger.Get(ctx, n-1)
	if err != nil {
		return false
	}
	if _, err := h.store.Get(ctx, tip.ContentID); err != nil {
		h.logger.Warn("health: store probe",
			zap.String("cid", tip.ContentID),
			zap.String("class", contentstore.Classify(err)),
			zap.Error(err),
		)
		return false
	}
	return true
}

// transition updates the failure count for check and returns its status.
func (h *HealthChecker) transition(ctx context.Context, check string, success bool, r *Report) string {
	if h.onMetrics != nil {
		h.onMetrics(check, success)
	}

	h.mu.Lock()
	prevCount := h.failCounts[check]
	if success {
		h.failCounts[check] = 0
	} else {
		h.failCounts[check]++
	}
	count := h.failCounts[check]
	h.mu.Unlock()

	switch {
	case success && prevCount >= h.cfg.FailThreshold:
		h.logger.Info("health: recovered", zap.String("check", check))
		return StatusHealthy
	case success:
		return StatusHealthy
	case count < h.cfg.FailThreshold:
		return StatusHealthy
	}

	if count == h.cfg.FailThreshold {
		h.logger.Warn("health: degraded",
			zap.String("check", check),
			zap.Int("fail_count", count),
		)
		if h.onDegraded != nil {
			h.onDegraded(ctx, check, *r)
		}
	}
	return StatusDegraded
}
