// Package reactive serialises recomputation: whenever an input changes, the
// in-flight computation is cancelled and a new one started, and only the
// newest generation may publish its result. Stale results are discarded even
// if they resolve later.
package reactive

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Controller re-runs a computation on every trigger, publishing at most one
// result per logical input generation, in order. It runs for the lifetime of
// the owning session; there is no terminal state.
type Controller[T any] struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}

	sink   func(T)
	logger zerolog.Logger
}

// NewController constructs a controller publishing into sink. The sink is
// invoked from the computation's goroutine, never concurrently with itself,
// and must not call Trigger on the same controller.
func NewController[T any](sink func(T), logger zerolog.Logger) *Controller[T] {
	return &Controller[T]{
		sink:   sink,
		logger: logger.With().Str("component", "reactive").Logger(),
	}
}

// Trigger cancels any in-flight computation and starts a new one. The compute
// function must honour its context at every suspension point; a computation
// that returns context.Canceled is suppressed silently, as cancellation is
// not a failure.
func (c *Controller[T]) Trigger(ctx context.Context, compute func(ctx context.Context) (T, error)) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		result, err := compute(runCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				c.logger.Debug().Uint64("generation", gen).Msg("computation superseded")
			} else {
				c.logger.Error().Err(err).Uint64("generation", gen).Msg("computation failed")
			}
			return
		}

		// Publish under the lock so a stale generation can never race a
		// newer one into the sink.
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			c.logger.Debug().Uint64("generation", gen).Msg("result discarded, newer generation exists")
			return
		}
		c.sink(result)
	}()
}

// Wait blocks until the most recently triggered computation finishes, whether
// it published or was discarded. Intended for draining in tests and shutdown.
func (c *Controller[T]) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}
