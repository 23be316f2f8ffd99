// Package livetime computes SBND DAQ livetime against beam delivery.
//
// Delivered quantities cover the whole query window; collected
// quantities cover only the portions of the window where the DAQ was
// active. Livetime is the summed overlap between the query window and
// the DAQ-active intervals.
package livetime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dalagero/SBND-RunCo/internal/ifbeam"
)

// ErrZeroWindow is returned when the query window has no positive
// duration; the livetime fraction would divide by zero.
var ErrZeroWindow = errors.New("livetime: query window has no positive duration")

// ErrIntervalMismatch is returned by Pair when the start and end lists
// differ in length.
var ErrIntervalMismatch = errors.New("livetime: start and end lists differ in length")

// Interval is one DAQ-active window [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Report is the outcome of one livetime computation. It is immutable
// once returned.
type Report struct {
	ID    uuid.UUID `json:"id"`
	Start time.Time `json:"t0"`
	End   time.Time `json:"t1"`

	// Livetime is the DAQ-active overlap with the window, in seconds.
	Livetime         float64 `json:"livetime"`
	LivetimeFraction float64 `json:"livetime_fraction"`

	DeliveredSpills int     `json:"delivered_spills"`
	CollectedSpills int     `json:"collected_spills"`
	DeliveredPOT    float64 `json:"delivered_pot"`
	CollectedPOT    float64 `json:"collected_pot"`
}

// POTSource supplies spill/POT totals for a time interval. The
// ifbeam.Client satisfies it.
type POTSource interface {
	POTInterval(ctx context.Context, t0, t1 time.Time) (ifbeam.Sample, error)
}

type Logger interface {
	Printf(string, ...any)
}

// Metrics receives one observation per completed computation.
type Metrics interface {
	ObserveLivetimeRun(duration time.Duration, fraction float64, err error)
}

type Config struct {
	// Concurrency bounds the fan-out of per-interval queries. Values
	// below 2 keep the queries sequential in interval order.
	Concurrency int
}

// Engine aggregates POT queries into livetime reports. It holds no
// state between computations and is safe for concurrent use.
type Engine struct {
	src     POTSource
	log     Logger
	metrics Metrics
	cfg     Config
}

func NewEngine(src POTSource, log Logger, metrics Metrics, cfg Config) *Engine {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Engine{src: src, log: log, metrics: metrics, cfg: cfg}
}

// Pair zips parallel start and end lists into intervals, preserving
// order. The lists must be index-aligned and of equal length.
func Pair(starts, ends []time.Time) ([]Interval, error) {
	if len(starts) != len(ends) {
		return nil, fmt.Errorf("%w: %d starts, %d ends", ErrIntervalMismatch, len(starts), len(ends))
	}
	intervals := make([]Interval, len(starts))
	for i := range starts {
		intervals[i] = Interval{Start: starts[i], End: ends[i]}
	}
	return intervals, nil
}

// Compute queries spill/POT totals for the window [t0, t1] and for the
// portion of each DAQ interval that intersects it, and derives the
// livetime summary. Timestamps must be UTC-normalized; t1 must be
// strictly after t0 or ErrZeroWindow is returned. Any failed query
// aborts the computation with no partial report.
//
// One query is issued per intersecting DAQ interval plus one for the
// full window. Intervals that merely touch the window boundary at t0
// or t1 still count as intersecting and contribute a zero-length
// overlap query.
func (e *Engine) Compute(ctx context.Context, t0, t1 time.Time, daq []Interval) (report Report, err error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveLivetimeRun(time.Since(start), report.LivetimeFraction, err)
		}
	}()

	if !t1.After(t0) {
		return Report{}, ErrZeroWindow
	}

	var overlap time.Duration
	clipped := make([]Interval, 0, len(daq))
	for _, iv := range daq {
		if iv.Start.After(t1) || iv.End.Before(t0) {
			continue
		}
		s0 := maxTime(t0, iv.Start)
		s1 := minTime(t1, iv.End)
		overlap += s1.Sub(s0)
		clipped = append(clipped, Interval{Start: s0, End: s1})
	}

	samples, err := e.querySamples(ctx, clipped)
	if err != nil {
		return Report{}, err
	}

	var collected ifbeam.Sample
	for _, s := range samples {
		collected.Spills += s.Spills
		collected.POT += s.POT
	}

	delivered, err := e.src.POTInterval(ctx, t0, t1)
	if err != nil {
		return Report{}, fmt.Errorf("query full window: %w", err)
	}

	report = Report{
		ID:               uuid.New(),
		Start:            t0,
		End:              t1,
		Livetime:         overlap.Seconds(),
		LivetimeFraction: overlap.Seconds() / t1.Sub(t0).Seconds(),
		DeliveredSpills:  delivered.Spills,
		CollectedSpills:  collected.Spills,
		DeliveredPOT:     delivered.POT,
		CollectedPOT:     collected.POT,
	}

	if e.log != nil {
		e.log.Printf("livetime %s - %s: fraction=%.4f delivered=%d collected=%d",
			t0.Format(time.RFC3339), t1.Format(time.RFC3339),
			report.LivetimeFraction, report.DeliveredSpills, report.CollectedSpills)
	}
	return report, nil
}

// querySamples fetches one sample per clipped interval. The result
// slice is index-aligned with the input, so the later accumulation is
// independent of query completion order.
func (e *Engine) querySamples(ctx context.Context, clipped []Interval) ([]ifbeam.Sample, error) {
	samples := make([]ifbeam.Sample, len(clipped))

	if e.cfg.Concurrency < 2 || len(clipped) < 2 {
		for i, iv := range clipped {
			s, err := e.src.POTInterval(ctx, iv.Start, iv.End)
			if err != nil {
				return nil, fmt.Errorf("query daq interval %d: %w", i, err)
			}
			samples[i] = s
		}
		return samples, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, iv := range clipped {
		i, iv := i, iv
		g.Go(func() error {
			s, err := e.src.POTInterval(ctx, iv.Start, iv.End)
			if err != nil {
				return fmt.Errorf("query daq interval %d: %w", i, err)
			}
			samples[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return samples, nil
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
