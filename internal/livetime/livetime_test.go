package livetime

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dalagero/SBND-RunCo/internal/ifbeam"
)

// fakeSource returns one spill per second of queried interval and
// 1e12 POT per spill, and records every queried window.
type fakeSource struct {
	mu      sync.Mutex
	queries []Interval
	err     error
}

func (f *fakeSource) POTInterval(ctx context.Context, t0, t1 time.Time) (ifbeam.Sample, error) {
	f.mu.Lock()
	f.queries = append(f.queries, Interval{Start: t0, End: t1})
	f.mu.Unlock()
	if f.err != nil {
		return ifbeam.Sample{}, f.err
	}
	seconds := int(t1.Sub(t0).Seconds())
	return ifbeam.Sample{Spills: seconds, POT: float64(seconds) * 1e12}, nil
}

func ts(sec int64) time.Time { return time.Unix(1700000000+sec, 0).UTC() }

func discardLogger() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

func TestComputeNoDAQIntervals(t *testing.T) {
	src := &fakeSource{}
	eng := NewEngine(src, discardLogger(), nil, Config{})

	report, err := eng.Compute(context.Background(), ts(0), ts(100), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Livetime != 0 || report.LivetimeFraction != 0 {
		t.Fatalf("expected zero livetime, got %+v", report)
	}
	if report.CollectedSpills != 0 || report.CollectedPOT != 0 {
		t.Fatalf("expected zero collected stats, got %+v", report)
	}
	if report.DeliveredSpills != 100 {
		t.Fatalf("expected delivered from full-window query, got %d", report.DeliveredSpills)
	}
	if len(src.queries) != 1 {
		t.Fatalf("expected only the full-window query, got %d", len(src.queries))
	}
}

func TestComputeFullCoverage(t *testing.T) {
	src := &fakeSource{}
	eng := NewEngine(src, discardLogger(), nil, Config{})

	report, err := eng.Compute(context.Background(), ts(0), ts(100), []Interval{{Start: ts(0), End: ts(100)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Livetime != 100 {
		t.Fatalf("expected livetime 100s, got %v", report.Livetime)
	}
	if math.Abs(report.LivetimeFraction-1.0) > 1e-12 {
		t.Fatalf("expected fraction 1.0, got %v", report.LivetimeFraction)
	}
	if report.CollectedSpills != report.DeliveredSpills {
		t.Fatalf("collected %d != delivered %d", report.CollectedSpills, report.DeliveredSpills)
	}
	if math.Abs(report.CollectedPOT-report.DeliveredPOT) > 1e-3 {
		t.Fatalf("collected POT %v != delivered POT %v", report.CollectedPOT, report.DeliveredPOT)
	}
}

func TestComputeClipsIntervals(t *testing.T) {
	src := &fakeSource{}
	eng := NewEngine(src, discardLogger(), nil, Config{})

	daq := []Interval{
		{Start: ts(-50), End: ts(20)},  // clipped to [0, 20]
		{Start: ts(40), End: ts(60)},   // inside
		{Start: ts(90), End: ts(150)},  // clipped to [90, 100]
		{Start: ts(200), End: ts(300)}, // disjoint, skipped
		{Start: ts(-30), End: ts(-10)}, // disjoint, skipped
	}
	report, err := eng.Compute(context.Background(), ts(0), ts(100), daq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Livetime != 50 {
		t.Fatalf("expected livetime 50s, got %v", report.Livetime)
	}
	if math.Abs(report.LivetimeFraction-0.5) > 1e-12 {
		t.Fatalf("expected fraction 0.5, got %v", report.LivetimeFraction)
	}

	// 3 intersecting intervals plus the full window; disjoint ones
	// must not generate queries.
	if len(src.queries) != 4 {
		t.Fatalf("expected 4 queries, got %d", len(src.queries))
	}
	for _, q := range src.queries[:3] {
		if q.Start.Before(ts(0)) || q.End.After(ts(100)) || q.End.Before(q.Start) {
			t.Fatalf("clipped window %v-%v escapes the query window", q.Start, q.End)
		}
	}
}

func TestComputeKeepsTouchingIntervals(t *testing.T) {
	src := &fakeSource{}
	eng := NewEngine(src, discardLogger(), nil, Config{})

	// Touches exactly at t0 and at t1: both intersect with zero overlap.
	daq := []Interval{
		{Start: ts(-20), End: ts(0)},
		{Start: ts(100), End: ts(120)},
	}
	report, err := eng.Compute(context.Background(), ts(0), ts(100), daq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Livetime != 0 {
		t.Fatalf("expected zero livetime, got %v", report.Livetime)
	}
	if len(src.queries) != 3 {
		t.Fatalf("expected zero-length interval queries to be issued, got %d queries", len(src.queries))
	}
}

func TestComputeZeroWindow(t *testing.T) {
	src := &fakeSource{}
	eng := NewEngine(src, discardLogger(), nil, Config{})

	if _, err := eng.Compute(context.Background(), ts(0), ts(0), nil); !errors.Is(err, ErrZeroWindow) {
		t.Fatalf("expected ErrZeroWindow for t0 == t1, got %v", err)
	}
	if _, err := eng.Compute(context.Background(), ts(10), ts(0), nil); !errors.Is(err, ErrZeroWindow) {
		t.Fatalf("expected ErrZeroWindow for inverted window, got %v", err)
	}
	if len(src.queries) != 0 {
		t.Fatalf("expected no queries for invalid windows, got %d", len(src.queries))
	}
}

func TestComputeAbortsOnQueryError(t *testing.T) {
	src := &fakeSource{err: &ifbeam.StatusError{StatusCode: http.StatusInternalServerError}}
	eng := NewEngine(src, discardLogger(), nil, Config{})

	_, err := eng.Compute(context.Background(), ts(0), ts(100), []Interval{{Start: ts(10), End: ts(20)}})
	var statusErr *ifbeam.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected wrapped StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", statusErr.StatusCode)
	}
}

func TestComputeConcurrentMatchesSequential(t *testing.T) {
	daq := make([]Interval, 0, 10)
	for i := 0; i < 10; i++ {
		daq = append(daq, Interval{Start: ts(int64(i * 10)), End: ts(int64(i*10 + 7))})
	}

	seqSrc := &fakeSource{}
	seq, err := NewEngine(seqSrc, discardLogger(), nil, Config{}).Compute(context.Background(), ts(0), ts(100), daq)
	if err != nil {
		t.Fatalf("sequential compute: %v", err)
	}

	conSrc := &fakeSource{}
	con, err := NewEngine(conSrc, discardLogger(), nil, Config{Concurrency: 4}).Compute(context.Background(), ts(0), ts(100), daq)
	if err != nil {
		t.Fatalf("concurrent compute: %v", err)
	}

	if seq.CollectedSpills != con.CollectedSpills {
		t.Fatalf("spills diverge: %d vs %d", seq.CollectedSpills, con.CollectedSpills)
	}
	if math.Abs(seq.CollectedPOT-con.CollectedPOT) > 1e-6 {
		t.Fatalf("POT diverges: %v vs %v", seq.CollectedPOT, con.CollectedPOT)
	}
	if seq.Livetime != con.Livetime {
		t.Fatalf("livetime diverges: %v vs %v", seq.Livetime, con.Livetime)
	}
	if len(seqSrc.queries) != len(conSrc.queries) {
		t.Fatalf("query counts diverge: %d vs %d", len(seqSrc.queries), len(conSrc.queries))
	}
}

func TestComputeFractionBounds(t *testing.T) {
	src := &fakeSource{}
	eng := NewEngine(src, discardLogger(), nil, Config{})

	// Non-overlapping subsets of the window keep the fraction in [0, 1].
	daq := []Interval{
		{Start: ts(5), End: ts(15)},
		{Start: ts(30), End: ts(31)},
		{Start: ts(80), End: ts(99)},
	}
	report, err := eng.Compute(context.Background(), ts(0), ts(100), daq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.LivetimeFraction < 0 || report.LivetimeFraction > 1 {
		t.Fatalf("fraction out of bounds: %v", report.LivetimeFraction)
	}
}

func TestPair(t *testing.T) {
	starts := []time.Time{ts(0), ts(20)}
	ends := []time.Time{ts(10), ts(30)}
	intervals, err := Pair(starts, ends)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
	for i := range intervals {
		if !intervals[i].Start.Equal(starts[i]) || !intervals[i].End.Equal(ends[i]) {
			t.Fatalf("interval %d mis-paired: %+v", i, intervals[i])
		}
	}

	if _, err := Pair(starts, ends[:1]); !errors.Is(err, ErrIntervalMismatch) {
		t.Fatalf("expected ErrIntervalMismatch, got %v", err)
	}
}

func TestComputeRecordsMetrics(t *testing.T) {
	src := &fakeSource{}
	rec := &fakeRunMetrics{}
	eng := NewEngine(src, discardLogger(), rec, Config{})

	if _, err := eng.Compute(context.Background(), ts(0), ts(100), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.runs != 1 {
		t.Fatalf("expected 1 observed run, got %d", rec.runs)
	}
	if rec.lastErr != nil {
		t.Fatalf("expected nil error observation, got %v", rec.lastErr)
	}

	if _, err := eng.Compute(context.Background(), ts(0), ts(0), nil); err == nil {
		t.Fatal("expected zero-window error")
	}
	if rec.runs != 2 || rec.lastErr == nil {
		t.Fatalf("expected failed run observation, got runs=%d err=%v", rec.runs, rec.lastErr)
	}
}

type fakeRunMetrics struct {
	runs    int
	lastErr error
}

func (f *fakeRunMetrics) ObserveLivetimeRun(d time.Duration, fraction float64, err error) {
	f.runs++
	f.lastErr = err
}
