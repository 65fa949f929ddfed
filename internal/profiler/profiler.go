/*
PURPOSE:
  Executes one forecasting invocation and measures its wall-clock duration
  and peak heap growth without touching its result.

REQUIREMENTS:
  User-specified:
  - Timer and memory tracing start right before the call and stop right after.
  - Tracing stops exactly once on every path (success, error, panic, timeout).

  Implementation-discovered:
  - Go has no per-call allocator trace, so peak memory is the maximum of the
    live heap (runtime/metrics) sampled during the call, minus a post-GC baseline.
  - Heap sampling is process wide. Measured invocations are serialized so one
    call never pollutes another's peak.
  - Panics in interpreted code surface as Go panics and must be captured.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine

ERROR HANDLING:
  - Errors and panics from the invocation come back as *ExecutionError.
  - A timeout is an *ExecutionError wrapping ErrTimeout.

IMPLEMENTATION RULES:
  - Use the monotonic clock (time.Since).
  - Never alter the returned result.

USAGE:
  p := profiler.New(5*time.Millisecond, 0)
  out, m, err := p.Run(ctx, func() (map[string]interface{}, error) { return unit.Forecast(rows) })

RELATED FILES:
  - internal/engine/pipeline.go
*/

package profiler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTimeout is wrapped by ExecutionError when an invocation exceeds the timeout.
var ErrTimeout = errors.New("invocation timed out")

// ExecutionError is a failure raised by user code during an invocation.
type ExecutionError struct {
	Err   error
	Panic interface{}
	Stack []byte
}

func (e *ExecutionError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("panic: %v", e.Panic)
	}
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Measurement is the cost of one invocation.
type Measurement struct {
	Elapsed   time.Duration
	PeakBytes uint64
}

// PeakMB reports the peak in mebibytes.
func (m Measurement) PeakMB() float64 {
	return float64(m.PeakBytes) / 1024 / 1024
}

// Invocation is the unit of work being measured.
type Invocation func() (map[string]interface{}, error)

// Profiler measures invocations one at a time.
type Profiler struct {
	Interval time.Duration // heap sampling period
	Timeout  time.Duration // zero means no limit

	mu     sync.Mutex
	active atomic.Int32 // running tracers, always 0 between calls
}

// New creates a profiler.
func New(interval, timeout time.Duration) *Profiler {
	if interval <= 0 {
		interval = 5 * time.Millisecond
	}
	return &Profiler{Interval: interval, Timeout: timeout}
}

type result struct {
	out map[string]interface{}
	err error
}

// Run executes fn and measures it. The measurement is valid on every path.
func (p *Profiler) Run(ctx context.Context, fn Invocation) (map[string]interface{}, Measurement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	tr := p.startTracer()
	start := time.Now()

	done := make(chan result, 1)
	go func() {
		done <- invoke(fn)
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		// The goroutine cannot be stopped; its result is discarded.
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrTimeout, p.Timeout)
		}
		res = result{err: &ExecutionError{Err: err}}
	}

	m := Measurement{Elapsed: time.Since(start), PeakBytes: tr.Stop()}
	return res.out, m, res.err
}

func invoke(fn Invocation) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: &ExecutionError{Err: fmt.Errorf("panic: %v", r), Panic: r, Stack: debug.Stack()}}
		}
	}()

	out, err := fn()
	if err != nil {
		return result{err: &ExecutionError{Err: err}}
	}
	return result{out: out}
}

// tracer samples the live heap until stopped.
type tracer struct {
	baseline uint64
	peak     atomic.Uint64
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	active   *atomic.Int32
}

const heapMetric = "/memory/classes/heap/objects:bytes"

func (p *Profiler) startTracer() *tracer {
	runtime.GC()
	t := &tracer{
		baseline: heapBytes(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		active:   &p.active,
	}
	t.peak.Store(t.baseline)
	p.active.Add(1)

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.sample()
			}
		}
	}()
	return t
}

func (t *tracer) sample() {
	cur := heapBytes()
	for {
		old := t.peak.Load()
		if cur <= old || t.peak.CompareAndSwap(old, cur) {
			return
		}
	}
}

// Stop ends sampling and returns the peak growth above baseline in bytes.
func (t *tracer) Stop() uint64 {
	t.once.Do(func() {
		t.sample()
		close(t.stop)
		<-t.done
		t.active.Add(-1)
	})
	peak := t.peak.Load()
	if peak < t.baseline {
		return 0
	}
	return peak - t.baseline
}

func heapBytes() uint64 {
	s := []metrics.Sample{{Name: heapMetric}}
	metrics.Read(s)
	if s[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return s[0].Value.Uint64()
}
