package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"deunifi/internal/reactive"
	"deunifi/internal/vault"
)

// PlanFunc derives a plan of type T from the current vault state. It is
// called with the session's cached snapshot and must honour ctx.
type PlanFunc[T any] func(ctx context.Context, snap *vault.Snapshot) (T, error)

// PlanSession keeps one operation plan continuously up to date. Two kinds of
// input invalidate the current plan: the user editing a form field, and the
// chain producing a new block. Both routes feed the same reactive controller,
// so an edit arriving while a block-triggered recomputation is in flight
// cancels it and no stale plan is ever published.
type PlanSession[T any] struct {
	loader  SnapshotLoader
	ref     vault.Ref
	compute PlanFunc[T]
	logger  zerolog.Logger

	mu   sync.Mutex
	snap *vault.Snapshot

	controller *reactive.Controller[T]
}

// NewPlanSession constructs a session publishing recomputed plans into sink.
// The compute function typically closes over a form and reads its parsed
// values on every invocation.
func NewPlanSession[T any](loader SnapshotLoader, ref vault.Ref, compute PlanFunc[T], sink func(T), logger zerolog.Logger) *PlanSession[T] {
	s := &PlanSession[T]{
		loader:  loader,
		ref:     ref,
		compute: compute,
		logger:  logger.With().Str("component", "plan_session").Logger(),
	}
	s.controller = reactive.NewController[T](sink, logger)
	return s
}

// OnBlock schedules a recomputation against freshly reloaded vault state.
// The reload happens inside the scheduled computation so that a newer
// trigger cancels it mid-flight.
func (s *PlanSession[T]) OnBlock(ctx context.Context, blockNumber uint64) error {
	s.logger.Debug().Uint64("block", blockNumber).Msg("replanning on new block")
	s.controller.Trigger(ctx, func(ctx context.Context) (T, error) {
		snap, err := s.loader.LoadSnapshot(ctx, s.ref)
		if err != nil {
			var zero T
			return zero, err
		}
		s.setSnapshot(snap)
		return s.compute(ctx, snap)
	})
	return nil
}

// OnEdit schedules a recomputation against the cached snapshot; edits do not
// pay for a chain round-trip. Before the first block arrives the snapshot is
// loaded on demand.
func (s *PlanSession[T]) OnEdit(ctx context.Context) {
	s.controller.Trigger(ctx, func(ctx context.Context) (T, error) {
		snap := s.snapshot()
		if snap == nil {
			loaded, err := s.loader.LoadSnapshot(ctx, s.ref)
			if err != nil {
				var zero T
				return zero, err
			}
			s.setSnapshot(loaded)
			snap = loaded
		}
		return s.compute(ctx, snap)
	})
}

// Wait drains the in-flight computation, if any.
func (s *PlanSession[T]) Wait() {
	s.controller.Wait()
}

func (s *PlanSession[T]) snapshot() *vault.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *PlanSession[T]) setSnapshot(snap *vault.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}
