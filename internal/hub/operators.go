package hub

import (
	"context"
	"time"
)

// Batch consumes in and publishes windowed batches on the returned stream: a
// batch is emitted when the window elapses or maxSize items have accumulated,
// whichever comes first. A burst that fits within one window and under the
// cap produces exactly one batch.
func Batch[T any](ctx context.Context, in *Stream[T], window time.Duration, maxSize int, opts ...StreamOption) *Stream[[]T] {
	out := NewStream[[]T](in.Name()+".batched", opts...)
	sub := in.Subscribe()

	go func() {
		defer sub.Cancel()
		defer out.Close()

		timer := time.NewTimer(window)
		if !timer.Stop() {
			<-timer.C
		}
		timerRunning := false

		batch := make([]T, 0, maxSize)

		emit := func() {
			if len(batch) == 0 {
				return
			}
			out.Publish(batch)
			batch = make([]T, 0, maxSize)
		}

		for {
			select {
			case <-ctx.Done():
				emit()
				return

			case v, ok := <-sub.C:
				if !ok {
					emit()
					return
				}
				batch = append(batch, v)
				if len(batch) >= maxSize {
					emit()
					if timerRunning && !timer.Stop() {
						<-timer.C
					}
					timerRunning = false
					continue
				}
				if !timerRunning {
					timer.Reset(window)
					timerRunning = true
				}

			case <-timer.C:
				timerRunning = false
				emit()
			}
		}
	}()

	return out
}

// SampleByKey consumes in and publishes at most one value per key per
// interval on the returned stream. Within an interval, later values for a key
// supersede earlier ones; survivors are emitted at the interval boundary.
func SampleByKey[T any](ctx context.Context, in *Stream[T], interval time.Duration, key func(T) string, opts ...StreamOption) *Stream[T] {
	out := NewStream[T](in.Name()+".sampled", opts...)
	sub := in.Subscribe()

	go func() {
		defer sub.Cancel()
		defer out.Close()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		latest := make(map[string]T)
		// Emission follows arrival order of first sighting within the interval
		// so per-key order is stable across boundaries.
		order := make([]string, 0, 64)

		flush := func() {
			for _, k := range order {
				out.Publish(latest[k])
				delete(latest, k)
			}
			order = order[:0]
		}

		for {
			select {
			case <-ctx.Done():
				flush()
				return

			case v, ok := <-sub.C:
				if !ok {
					flush()
					return
				}
				k := key(v)
				if _, seen := latest[k]; !seen {
					order = append(order, k)
				}
				latest[k] = v

			case <-ticker.C:
				flush()
			}
		}
	}()

	return out
}
