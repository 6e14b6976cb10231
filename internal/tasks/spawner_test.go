package tasks

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSpawnerRunsTasks(t *testing.T) {
	s := NewSpawner(context.Background(), discardLogger())

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		assert.True(t, s.Go("count", func(ctx context.Context) { n.Add(1) }))
	}

	assert.True(t, s.Shutdown(time.Second))
	assert.Equal(t, int32(10), n.Load())
	assert.Zero(t, s.Running())
}

func TestSpawnerRecoversPanics(t *testing.T) {
	s := NewSpawner(context.Background(), discardLogger())

	s.Go("boom", func(ctx context.Context) { panic("boom") })
	assert.True(t, s.Shutdown(time.Second))
}

func TestSpawnerShutdownCancelsAfterGrace(t *testing.T) {
	s := NewSpawner(context.Background(), discardLogger())

	cancelled := make(chan struct{})
	s.Go("slow", func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	})

	start := time.Now()
	assert.False(t, s.Shutdown(20*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
	assert.False(t, s.Go("late", func(ctx context.Context) {}))
}
