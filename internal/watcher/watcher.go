package watcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// BlockSource reports the latest chain head.
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// TickFunc is invoked once per newly observed block.
type TickFunc func(ctx context.Context, blockNumber uint64) error

// Options tune watcher behaviour.
type Options struct {
	PollInterval time.Duration
	StartupDelay time.Duration
}

// Watcher polls the chain head and fires a tick whenever the block
// number advances. Reorgs that reuse a number are not re-ticked.
type Watcher struct {
	opts   Options
	source BlockSource
	logger zerolog.Logger
}

// New constructs a Watcher instance.
func New(opts Options, source BlockSource, logger zerolog.Logger) *Watcher {
	if opts.PollInterval <= 0 {
		panic("watcher poll interval must be positive")
	}
	return &Watcher{
		opts:   opts,
		source: source,
		logger: logger.With().Str("component", "watcher").Logger(),
	}
}

// Run blocks, invoking the tick function on every new block until ctx
// is cancelled. Tick errors are logged and polling continues.
func (w *Watcher) Run(ctx context.Context, tick TickFunc) error {
	if w.opts.StartupDelay > 0 {
		timer := time.NewTimer(w.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	var lastSeen uint64
	for {
		head, err := w.source.BlockNumber(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error().Err(err).Msg("failed to poll block number")
		} else if head > lastSeen {
			w.logger.Debug().Uint64("block", head).Msg("new block observed")
			if err := tick(ctx, head); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Error().Err(err).Uint64("block", head).Msg("tick execution failed")
			}
			lastSeen = head
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
