package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingWorker struct {
	runs atomic.Int32
	err  error
}

func (w *countingWorker) Name() string { return "counting" }

func (w *countingWorker) Run(context.Context) error {
	w.runs.Add(1)
	return w.err
}

func TestPeriodicWorker_RunsImmediatelyAndOnTicks(t *testing.T) {
	w := &countingWorker{err: errors.New("keeps going")}
	ctx, cancel := context.WithCancel(context.Background())

	pw := NewPeriodicWorker(w, 10*time.Millisecond)
	pw.Start(ctx)

	assert.Eventually(t, func() bool { return w.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	pw.Stop(time.Second)
}

func TestPeriodicWorker_WithoutInitialRun(t *testing.T) {
	w := &countingWorker{}
	ctx, cancel := context.WithCancel(context.Background())

	pw := NewPeriodicWorker(w, time.Hour, WithoutInitialRun())
	pw.Start(ctx)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), w.runs.Load())

	cancel()
	pw.Stop(time.Second)
}

func TestWorkerGroup_StartStop(t *testing.T) {
	a, b := &countingWorker{}, &countingWorker{}

	group := NewWorkerGroup(context.Background())
	group.Add(a, time.Hour)
	group.Add(b, time.Hour)
	assert.Equal(t, 2, group.Len())

	group.Start()
	assert.Eventually(t, func() bool { return a.runs.Load() == 1 && b.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	group.Stop(time.Second)
}
