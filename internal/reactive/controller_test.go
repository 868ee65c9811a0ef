package reactive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func collector() (func(int), func() []int) {
	var mu sync.Mutex
	var published []int
	sink := func(v int) {
		mu.Lock()
		published = append(published, v)
		mu.Unlock()
	}
	read := func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), published...)
	}
	return sink, read
}

func TestTriggerPublishesLatest(t *testing.T) {
	sink, read := collector()
	c := NewController[int](sink, zerolog.Nop())

	c.Trigger(context.Background(), func(ctx context.Context) (int, error) {
		return 7, nil
	})
	c.Wait()

	if got := read(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected [7], got %v", got)
	}
}

func TestStaleComputationNeverPublishes(t *testing.T) {
	sink, read := collector()
	c := NewController[int](sink, zerolog.Nop())

	slowStarted := make(chan struct{})
	release := make(chan struct{})

	// P1 suspends mid-flight; P2 arrives before it resolves.
	c.Trigger(context.Background(), func(ctx context.Context) (int, error) {
		close(slowStarted)
		<-release
		// Resolve late, ignoring the cancellation on purpose: the
		// controller must still discard the result.
		return 1, nil
	})
	<-slowStarted

	c.Trigger(context.Background(), func(ctx context.Context) (int, error) {
		return 2, nil
	})
	c.Wait()
	close(release)

	// Give P1 a chance to finish and (incorrectly) try to publish.
	deadline := time.After(time.Second)
	for {
		got := read()
		if len(got) == 1 && got[0] == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected only [2] published, got %v", got)
		case <-time.After(5 * time.Millisecond):
		}
	}

	time.Sleep(20 * time.Millisecond)
	if got := read(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("stale result leaked: %v", got)
	}
}

func TestCancelledComputationIsSuppressed(t *testing.T) {
	sink, read := collector()
	c := NewController[int](sink, zerolog.Nop())

	started := make(chan struct{})
	c.Trigger(context.Background(), func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	<-started

	c.Trigger(context.Background(), func(ctx context.Context) (int, error) {
		return 9, nil
	})
	c.Wait()

	if got := read(); len(got) != 1 || got[0] != 9 {
		t.Fatalf("expected only [9], got %v", got)
	}
}
