// Package health runs periodic integrity audits of the item ledger and keeps
// the latest verdict for the /healthz endpoint.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmerrifield20/lostfound/internal/itemledger"
	"go.uber.org/zap"
)

// Status values reported by ChainChecker.
const (
	StatusUnknown = "unknown"
	StatusValid   = "valid"
	StatusBroken  = "broken"
)

// Config holds audit configuration.
type Config struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
}

// Verifier checks chain integrity. *itemledger.Store satisfies it.
type Verifier interface {
	Verify(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// MetricsRecordFunc is an optional callback for recording audit verdicts.
type MetricsRecordFunc func(valid bool)

// Report is the outcome of the latest audit.
type Report struct {
	Status     string    `json:"status"`
	Entries    int       `json:"entries"`
	BrokenAt   *int      `json:"broken_at,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
	BrokenRuns int       `json:"broken_runs,omitempty"`
}

// ChainChecker re-verifies the ledger on a fixed interval. A broken chain is
// logged when it first breaks and when it recovers, never acted on.
type ChainChecker struct {
	ledger    Verifier
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger

	mu   sync.RWMutex
	last Report
}

// New creates a new ChainChecker.
func New(ledger Verifier, cfg Config, logger *zap.Logger) *ChainChecker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.CheckTimeout == 0 {
		cfg.CheckTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainChecker{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
		last:   Report{Status: StatusUnknown},
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (h *ChainChecker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs one audit immediately and then one per interval until ctx is
// done.
func (h *ChainChecker) Start(ctx context.Context) {
	h.runOnce(ctx)

	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (h *ChainChecker) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, h.cfg.CheckTimeout)
	defer cancel()
	h.Check(ctx)
}

// Check verifies the ledger once and stores the result.
func (h *ChainChecker) Check(ctx context.Context) Report {
	n, lenErr := h.ledger.Len(ctx)
	err := h.ledger.Verify(ctx)
	now := time.Now().UTC()

	h.mu.Lock()
	prev := h.last
	next := Report{Status: StatusValid, Entries: n, CheckedAt: now}
	if lenErr != nil {
		next.Entries = prev.Entries
	}
	if err != nil {
		next.Status = StatusBroken
		next.Reason = err.Error()
		next.BrokenRuns = prev.BrokenRuns + 1
		var chainErr *itemledger.ChainError
		if errors.As(err, &chainErr) {
			idx := chainErr.Index
			next.BrokenAt = &idx
		}
	}
	h.last = next
	h.mu.Unlock()

	if h.onMetrics != nil {
		h.onMetrics(err == nil)
	}

	switch {
	case err != nil && prev.Status != StatusBroken:
		h.logger.Warn("health: ledger chain broken",
			zap.Int("entries", next.Entries),
			zap.Error(err),
		)
	case err == nil && prev.Status == StatusBroken:
		h.logger.Info("health: ledger chain recovered",
			zap.Int("entries", next.Entries),
			zap.Int("broken_runs", prev.BrokenRuns),
		)
	}
	return next
}

// Last returns the result of the most recent audit.
func (h *ChainChecker) Last() Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r := h.last
	if r.BrokenAt != nil {
		idx := *r.BrokenAt
		r.BrokenAt = &idx
	}
	return r
}
