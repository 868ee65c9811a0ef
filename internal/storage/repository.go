package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertVaultSampleSQL = `INSERT INTO vault_samples (
        cdp,
        ilk,
        block_number,
        ink,
        art,
        price,
        collateralization_ratio,
        liquidation_price,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (cdp, block_number) DO UPDATE
    SET
        ilk                     = EXCLUDED.ilk,
        ink                     = EXCLUDED.ink,
        art                     = EXCLUDED.art,
        price                   = EXCLUDED.price,
        collateralization_ratio = EXCLUDED.collateralization_ratio,
        liquidation_price       = EXCLUDED.liquidation_price,
        status                  = EXCLUDED.status,
        error                   = EXCLUDED.error;`

	listSamplesBetweenSQL = `SELECT
        cdp,
        ilk,
        block_number,
        ink,
        art,
        price,
        collateralization_ratio,
        liquidation_price,
        status,
        error,
        created_at
    FROM vault_samples
    WHERE cdp = $1
      AND block_number >= $2
      AND block_number < $3
    ORDER BY block_number;`

	listRecentSamplesSQL = `SELECT
        cdp,
        ilk,
        block_number,
        ink,
        art,
        price,
        collateralization_ratio,
        liquidation_price,
        status,
        error,
        created_at
    FROM vault_samples
    WHERE cdp = $1
    ORDER BY block_number DESC
    LIMIT $2;`

	markSampleErroredSQL = `UPDATE vault_samples
    SET status = 'errored', error = $3
    WHERE cdp = $1 AND block_number = $2;`

	countSamplesSQL = `SELECT COUNT(*) FROM vault_samples WHERE cdp = $1;`

	insertRiskAlertSQL = `INSERT INTO risk_alerts (
        cdp,
        block_number,
        collateralization_ratio,
        min_ratio,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (cdp, block_number) DO UPDATE
    SET collateralization_ratio = EXCLUDED.collateralization_ratio,
        min_ratio               = EXCLUDED.min_ratio,
        channels                = EXCLUDED.channels
    RETURNING id, cdp, block_number, collateralization_ratio, min_ratio, channels, created_at;`

	listRecentRiskAlertsSQL = `SELECT
        id,
        cdp,
        block_number,
        collateralization_ratio,
        min_ratio,
        channels,
        created_at
    FROM risk_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteRiskAlertsBeforeSQL = `DELETE FROM risk_alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// VaultSampleStore defines operations for vault sample persistence.
type VaultSampleStore interface {
	UpsertVaultSample(ctx context.Context, sample VaultSample) error
	ListSamplesBetween(ctx context.Context, cdp int64, fromBlock, toBlock int64) ([]VaultSample, error)
	ListRecentSamples(ctx context.Context, cdp int64, limit int) ([]VaultSample, error)
	MarkSampleErrored(ctx context.Context, cdp, blockNumber int64, errMsg string) error
	CountSamples(ctx context.Context, cdp int64) (int64, error)
}

// RiskAlertStore defines operations for risk alert auditing.
type RiskAlertStore interface {
	InsertRiskAlert(ctx context.Context, alert RiskAlert) (RiskAlert, error)
	ListRecentRiskAlerts(ctx context.Context, limit int) ([]RiskAlert, error)
	DeleteRiskAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to vault samples and risk alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertVaultSample persists or updates a vault sample.
func (s *Store) UpsertVaultSample(ctx context.Context, sample VaultSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if sample.Error != nil {
		errMsg = *sample.Error
	}

	_, execErr := pool.Exec(ctx, upsertVaultSampleSQL,
		sample.Cdp,
		sample.Ilk,
		sample.BlockNumber,
		sample.Ink.String(),
		sample.Art.String(),
		sample.Price.String(),
		sample.CollateralizationRatio.String(),
		sample.LiquidationPrice.String(),
		sample.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("upsert vault sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples of a vault within a block window.
func (s *Store) ListSamplesBetween(ctx context.Context, cdp int64, fromBlock, toBlock int64) ([]VaultSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, cdp, fromBlock, toBlock)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]VaultSample, 0)
	for rows.Next() {
		sample, scanErr := scanVaultSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// ListRecentSamples lists the most recent samples ordered by descending block.
func (s *Store) ListRecentSamples(ctx context.Context, cdp int64, limit int) ([]VaultSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, cdp, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]VaultSample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanVaultSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// MarkSampleErrored marks a sample as errored.
func (s *Store) MarkSampleErrored(ctx context.Context, cdp, blockNumber int64, errMsg string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, markSampleErroredSQL, cdp, blockNumber, errMsg)
	if execErr != nil {
		return fmt.Errorf("mark sample errored: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountSamples counts stored samples for a vault.
func (s *Store) CountSamples(ctx context.Context, cdp int64) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL, cdp).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// InsertRiskAlert persists a risk alert emission.
func (s *Store) InsertRiskAlert(ctx context.Context, alert RiskAlert) (RiskAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return RiskAlert{}, err
	}

	row := pool.QueryRow(ctx, insertRiskAlertSQL,
		alert.Cdp,
		alert.BlockNumber,
		alert.CollateralizationRatio.String(),
		alert.MinRatio.String(),
		alert.Channels,
	)

	var rec RiskAlert
	var ratioStr, minRatioStr string
	if scanErr := row.Scan(
		&rec.ID,
		&rec.Cdp,
		&rec.BlockNumber,
		&ratioStr,
		&minRatioStr,
		&rec.Channels,
		&rec.CreatedAt,
	); scanErr != nil {
		return RiskAlert{}, fmt.Errorf("insert risk alert: %w", scanErr)
	}

	var convErr error
	rec.CollateralizationRatio, convErr = decimal.NewFromString(ratioStr)
	if convErr != nil {
		return RiskAlert{}, fmt.Errorf("parse collateralization ratio: %w", convErr)
	}
	rec.MinRatio, convErr = decimal.NewFromString(minRatioStr)
	if convErr != nil {
		return RiskAlert{}, fmt.Errorf("parse min ratio: %w", convErr)
	}

	return rec, nil
}

// ListRecentRiskAlerts lists most recent risk alerts.
func (s *Store) ListRecentRiskAlerts(ctx context.Context, limit int) ([]RiskAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRiskAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent risk alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]RiskAlert, 0, limit)
	for rows.Next() {
		var rec RiskAlert
		var ratioStr, minRatioStr string
		if err := rows.Scan(
			&rec.ID,
			&rec.Cdp,
			&rec.BlockNumber,
			&ratioStr,
			&minRatioStr,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		rec.CollateralizationRatio, convErr = decimal.NewFromString(ratioStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse collateralization ratio: %w", convErr)
		}
		rec.MinRatio, convErr = decimal.NewFromString(minRatioStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse min ratio: %w", convErr)
		}

		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteRiskAlertsBefore deletes historical risk alerts.
func (s *Store) DeleteRiskAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteRiskAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete risk alerts before: %w", execErr)
	}
	return nil
}

func scanVaultSample(rows pgx.Rows) (VaultSample, error) {
	var (
		cdp         int64
		ilk         string
		blockNumber int64
		inkStr      string
		artStr      string
		priceStr    string
		ratioStr    string
		liqStr      string
		status      string
		errMsg      sql.NullString
		createdAt   time.Time
	)

	if err := rows.Scan(
		&cdp,
		&ilk,
		&blockNumber,
		&inkStr,
		&artStr,
		&priceStr,
		&ratioStr,
		&liqStr,
		&status,
		&errMsg,
		&createdAt,
	); err != nil {
		return VaultSample{}, err
	}

	ink, err := decimal.NewFromString(inkStr)
	if err != nil {
		return VaultSample{}, fmt.Errorf("parse ink: %w", err)
	}
	art, err := decimal.NewFromString(artStr)
	if err != nil {
		return VaultSample{}, fmt.Errorf("parse art: %w", err)
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return VaultSample{}, fmt.Errorf("parse price: %w", err)
	}
	ratio, err := decimal.NewFromString(ratioStr)
	if err != nil {
		return VaultSample{}, fmt.Errorf("parse collateralization ratio: %w", err)
	}
	liq, err := decimal.NewFromString(liqStr)
	if err != nil {
		return VaultSample{}, fmt.Errorf("parse liquidation price: %w", err)
	}

	sample := VaultSample{
		Cdp:                    cdp,
		Ilk:                    ilk,
		BlockNumber:            blockNumber,
		Ink:                    ink,
		Art:                    art,
		Price:                  price,
		CollateralizationRatio: ratio,
		LiquidationPrice:       liq,
		Status:                 status,
		CreatedAt:              createdAt,
	}

	if errMsg.Valid {
		msg := errMsg.String
		sample.Error = &msg
	}

	return sample, nil
}
