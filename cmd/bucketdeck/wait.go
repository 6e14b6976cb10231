package main

import (
	"context"
	"slices"

	"bucketdeck/internal/events"
	"bucketdeck/internal/service"
	"bucketdeck/internal/transfer"
)

// eventWaiter turns the client's queues into blocking calls for the one-shot commands.
// Events drained while looking for another type are kept for later waits
type eventWaiter struct {
	client     *service.Client
	pending    []events.Event
	onProgress func(transfer.Progress)
}

func newEventWaiter(client *service.Client, onProgress func(transfer.Progress)) *eventWaiter {
	return &eventWaiter{client: client, onProgress: onProgress}
}

// waitFor blocks until an event of type T arrives or ctx ends. Progress is applied before the
// events drained with it, the same order the browser uses
func waitFor[T events.Event](ctx context.Context, w *eventWaiter) (T, error) {
	var zero T
	for {
		for i, ev := range w.pending {
			if e, ok := ev.(T); ok {
				w.pending = slices.Delete(w.pending, i, i+1)
				return e, nil
			}
		}

		evs := w.client.Events().Drain()
		for _, p := range w.client.Progress().Drain() {
			if w.onProgress != nil {
				w.onProgress(p)
			}
		}
		if len(evs) > 0 {
			w.pending = append(w.pending, evs...)
			continue
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-w.client.Events().Ready():
		case <-w.client.Progress().Ready():
		}
	}
}
