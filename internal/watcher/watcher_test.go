package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSource struct {
	mu     sync.Mutex
	blocks []uint64
	idx    int
}

func (f *fakeSource) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx < len(f.blocks)-1 {
		f.idx++
	}
	return f.blocks[f.idx], nil
}

func TestWatcherTicksOnNewBlocksOnly(t *testing.T) {
	source := &fakeSource{blocks: []uint64{0, 100, 100, 100, 101, 101, 102}}
	w := New(Options{PollInterval: time.Millisecond}, source, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var seen []uint64
	go func() {
		_ = w.Run(ctx, func(ctx context.Context, block uint64) error {
			mu.Lock()
			seen = append(seen, block)
			if block == 102 {
				cancel()
			}
			mu.Unlock()
			return nil
		})
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := len(seen) >= 3
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("watcher never reached block 102")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 || seen[0] != 100 || seen[1] != 101 || seen[2] != 102 {
		t.Fatalf("expected ticks [100 101 102], got %v", seen)
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	source := &fakeSource{blocks: []uint64{0, 1}}
	w := New(Options{PollInterval: time.Millisecond}, source, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx, func(ctx context.Context, block uint64) error { return nil }); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
