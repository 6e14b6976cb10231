package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Spawner runs background operations on behalf of the UI loop. It is created once
// and handed to whoever needs to start work; there is no package level instance
type Spawner struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	running atomic.Int64
}

func NewSpawner(parent context.Context, logger *slog.Logger) *Spawner {
	ctx, cancel := context.WithCancel(parent)
	return &Spawner{
		ctx:    ctx,
		cancel: cancel,
		group:  &errgroup.Group{},
		logger: logger.With("component", "spawner"),
	}
}

// Go starts fn in the background and returns immediately. fn must report its result itself;
// a panic is recovered and logged so it never takes the process down.
// It returns false once Shutdown has begun
func (s *Spawner) Go(name string, fn func(ctx context.Context)) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("Task rejected after shutdown", "task", name)
		return false
	}

	s.running.Add(1)
	s.group.Go(func() error {
		defer s.running.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Task panicked", "task", name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			}
		}()
		fn(s.ctx)
		return nil
	})
	return true
}

// Running returns the number of tasks that have not finished yet
func (s *Spawner) Running() int {
	return int(s.running.Load())
}

// Shutdown stops accepting tasks and gives in-flight ones up to grace to finish.
// After that their context is cancelled and Shutdown returns without waiting further.
// It reports whether every task finished in time
func (s *Spawner) Shutdown(grace time.Duration) bool {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		s.cancel()
		return true
	case <-timer.C:
		s.logger.Warn("Shutdown grace period elapsed", "grace", grace, "running", s.Running())
		s.cancel()
		return false
	}
}
