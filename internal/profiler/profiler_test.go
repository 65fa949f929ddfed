package profiler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sink [][]byte

func TestRunReturnsResultUnchanged(t *testing.T) {
	p := New(time.Millisecond, 0)
	want := map[string]interface{}{"forecast": []interface{}{"x"}}

	out, m, err := p.Run(context.Background(), func() (map[string]interface{}, error) {
		time.Sleep(10 * time.Millisecond)
		return want, nil
	})

	require.NoError(t, err)
	assert.Equal(t, want, out)
	assert.GreaterOrEqual(t, m.Elapsed, 10*time.Millisecond)
	assert.Equal(t, int32(0), p.active.Load())
}

func TestRunMeasuresHeapGrowth(t *testing.T) {
	p := New(time.Millisecond, 0)

	_, m, err := p.Run(context.Background(), func() (map[string]interface{}, error) {
		for i := 0; i < 16; i++ {
			sink = append(sink, make([]byte, 1<<20))
		}
		time.Sleep(20 * time.Millisecond)
		return nil, nil
	})
	sink = nil

	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.PeakBytes, uint64(8<<20))
	assert.Greater(t, m.PeakMB(), 8.0)
}

func TestRunCapturesErrors(t *testing.T) {
	p := New(time.Millisecond, 0)
	boom := errors.New("boom")

	_, m, err := p.Run(context.Background(), func() (map[string]interface{}, error) {
		return nil, boom
	})

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, execErr.Panic)
	assert.Greater(t, m.Elapsed, time.Duration(0))
	assert.Equal(t, int32(0), p.active.Load())
}

func TestRunCapturesPanics(t *testing.T) {
	p := New(time.Millisecond, 0)

	_, _, err := p.Run(context.Background(), func() (map[string]interface{}, error) {
		var m map[string]int
		m["x"] = 1
		return nil, nil
	})

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.NotNil(t, execErr.Panic)
	assert.NotEmpty(t, execErr.Stack)
	assert.Contains(t, err.Error(), "panic")
	assert.Equal(t, int32(0), p.active.Load())
}

func TestRunTimeout(t *testing.T) {
	p := New(time.Millisecond, 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	_, m, err := p.Run(context.Background(), func() (map[string]interface{}, error) {
		<-release
		return nil, nil
	})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, m.Elapsed, time.Second)
	assert.Equal(t, int32(0), p.active.Load())
}

func TestRunCancelled(t *testing.T) {
	p := New(time.Millisecond, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	release := make(chan struct{})
	defer close(release)

	_, _, err := p.Run(ctx, func() (map[string]interface{}, error) {
		<-release
		return nil, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestTracerStopIsIdempotent(t *testing.T) {
	p := New(time.Millisecond, 0)
	tr := p.startTracer()
	assert.Equal(t, int32(1), p.active.Load())

	tr.Stop()
	tr.Stop()
	assert.Equal(t, int32(0), p.active.Load())
}
