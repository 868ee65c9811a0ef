package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"deunifi/internal/alerting"
	"deunifi/internal/config"
	"deunifi/internal/reactive"
	"deunifi/internal/storage"
	"deunifi/internal/vault"
	"deunifi/internal/watcher"
)

// SnapshotLoader reloads the observed vault state.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, ref vault.Ref) (*vault.Snapshot, error)
}

// Service orchestrates block watching, vault sampling, persistence, and alerting.
type Service struct {
	watcher    *watcher.Watcher
	loader     SnapshotLoader
	ref        vault.Ref
	store      storage.VaultSampleStore
	alertStore storage.RiskAlertStore
	notifier   alerting.Notifier
	logger     zerolog.Logger

	minRatio  decimal.Decimal
	channels  []string
	alertsOn  bool
	cooldown  time.Duration
	lastAlert time.Time
	locker    storage.AdvisoryLocker
	lockKey   int64

	controller *reactive.Controller[*vault.Snapshot]
}

// New constructs the monitoring service.
func New(cfg *config.Config, w *watcher.Watcher, loader SnapshotLoader, ref vault.Ref, store storage.VaultSampleStore, alertStore storage.RiskAlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	minRatio := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.MinRatio > 0 {
		minRatio = decimal.NewFromFloat(cfg.Alerting.MinRatio)
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	s := &Service{
		watcher:    w,
		loader:     loader,
		ref:        ref,
		store:      store,
		alertStore: alertStore,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		minRatio:   minRatio,
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		cooldown:   cfg.Alerting.Cooldown,
		locker:     locker,
		lockKey:    cfg.Watcher.AdvisoryLockKey,
	}
	s.controller = reactive.NewController[*vault.Snapshot](s.handleSnapshot, logger)
	return s
}

// Run begins the block-driven sampling loop. The advisory lock guards
// against concurrent monitor instances sharing one database.
func (s *Service) Run(ctx context.Context) error {
	if s.watcher == nil {
		return fmt.Errorf("watcher not configured")
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		return fmt.Errorf("advisory lock held by another monitor instance")
	}
	if unlock != nil {
		defer unlock()
	}

	defer s.controller.Wait()
	return s.watcher.Run(ctx, s.ProcessBlock)
}

// ProcessBlock schedules a vault reload for a newly observed block. A
// reload still in flight for an older block is cancelled.
func (s *Service) ProcessBlock(ctx context.Context, blockNumber uint64) error {
	s.logger.Debug().Uint64("block", blockNumber).Msg("scheduling vault reload")
	s.controller.Trigger(ctx, func(ctx context.Context) (*vault.Snapshot, error) {
		return s.loader.LoadSnapshot(ctx, s.ref)
	})
	return nil
}

// handleSnapshot persists a fresh sample and dispatches a risk alert
// when the vault falls below the configured minimum ratio. Persistence
// outlives the triggering block, so it runs on its own deadline.
func (s *Service) handleSnapshot(snap *vault.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sample := sampleFromSnapshot(snap)

	if s.store != nil {
		if err := s.store.UpsertVaultSample(ctx, sample); err != nil {
			s.logger.Error().Err(err).Int64("block", sample.BlockNumber).Msg("failed to upsert sample")
		}
	}

	s.logger.Info().Int64("block", sample.BlockNumber).
		Str("ratio", sample.CollateralizationRatio.String()).
		Str("liquidation_price", sample.LiquidationPrice.String()).
		Msg("vault sampled")

	if !s.alertsOn || s.notifier == nil || s.minRatio.IsZero() {
		return
	}
	if snap.Dart.Sign() == 0 || sample.CollateralizationRatio.GreaterThanOrEqual(s.minRatio) {
		return
	}
	now := time.Now().UTC()
	if s.cooldown > 0 && now.Sub(s.lastAlert) < s.cooldown {
		s.logger.Debug().Int64("block", sample.BlockNumber).Msg("risk alert suppressed by cooldown")
		return
	}
	s.lastAlert = now

	note := alerting.Notification{
		Cdp:                    sample.Cdp,
		Ilk:                    sample.Ilk,
		BlockNumber:            sample.BlockNumber,
		CollateralizationRatio: sample.CollateralizationRatio,
		MinRatio:               s.minRatio,
		LiquidationPrice:       sample.LiquidationPrice,
		Price:                  sample.Price,
		Channels:               s.channels,
	}
	if s.alertStore != nil {
		record := storage.RiskAlert{
			Cdp:                    sample.Cdp,
			BlockNumber:            sample.BlockNumber,
			CollateralizationRatio: sample.CollateralizationRatio,
			MinRatio:               s.minRatio,
			Channels:               s.channels,
		}
		if _, err := s.alertStore.InsertRiskAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Int64("block", sample.BlockNumber).Msg("failed to persist risk alert")
		}
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Int64("block", sample.BlockNumber).Msg("failed to dispatch risk alert")
	}
}

func sampleFromSnapshot(snap *vault.Snapshot) storage.VaultSample {
	cdp := int64(0)
	if snap.Cdp != nil {
		cdp = snap.Cdp.Int64()
	}

	return storage.VaultSample{
		Cdp:                    cdp,
		Ilk:                    snap.Ilk,
		BlockNumber:            int64(snap.BlockNumber),
		Ink:                    decimal.NewFromBigInt(snap.Ink, -18),
		Art:                    decimal.NewFromBigInt(snap.Art, -18),
		Price:                  decimal.NewFromBigInt(snap.Price, -27),
		CollateralizationRatio: decimal.NewFromBigInt(snap.CollateralizationRatio(), -18),
		LiquidationPrice:       decimal.NewFromBigInt(snap.LiquidationPrice(), -27),
		Status:                 "complete",
		CreatedAt:              time.Now().UTC(),
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
