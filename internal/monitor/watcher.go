// Package monitor periodically recomputes livetime over a trailing
// window so dashboards can track DAQ efficiency during data taking.
package monitor

import (
	"context"
	"time"

	"github.com/dalagero/SBND-RunCo/internal/livetime"
)

// IntervalSource supplies the current DAQ interval list. Implementations
// are re-read on every tick so updated run exports are picked up.
type IntervalSource interface {
	Intervals() ([]livetime.Interval, error)
}

// IntervalFunc adapts a function to the IntervalSource interface.
type IntervalFunc func() ([]livetime.Interval, error)

func (f IntervalFunc) Intervals() ([]livetime.Interval, error) { return f() }

type Logger interface {
	Printf(string, ...any)
}

type Computer interface {
	Compute(ctx context.Context, t0, t1 time.Time, daq []livetime.Interval) (livetime.Report, error)
}

type Config struct {
	// Window is the trailing span each computation covers.
	Window time.Duration
	// Every is the recomputation period.
	Every time.Duration
}

// Watcher drives periodic livetime computations. Failed ticks are
// logged and skipped; the loop keeps running.
type Watcher struct {
	engine    Computer
	intervals IntervalSource
	log       Logger
	cfg       Config
	now       func() time.Time
}

func NewWatcher(engine Computer, intervals IntervalSource, log Logger, cfg Config) *Watcher {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.Every <= 0 {
		cfg.Every = 5 * time.Minute
	}
	return &Watcher{engine: engine, intervals: intervals, log: log, cfg: cfg, now: time.Now}
}

// Run blocks until ctx is cancelled, computing once immediately and
// then once per period.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Every)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Printf("livetime watch tick: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce computes livetime for the trailing window ending now.
func (w *Watcher) RunOnce(ctx context.Context) error {
	daq, err := w.intervals.Intervals()
	if err != nil {
		return err
	}
	now := w.now().UTC()
	report, err := w.engine.Compute(ctx, now.Add(-w.cfg.Window), now, daq)
	if err != nil {
		return err
	}
	w.log.Printf("trailing livetime: fraction=%.4f collected_pot=%.3e delivered_pot=%.3e",
		report.LivetimeFraction, report.CollectedPOT, report.DeliveredPOT)
	return nil
}
