package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// VaultSample represents a persisted per-block vault observation.
type VaultSample struct {
	Cdp                    int64
	Ilk                    string
	BlockNumber            int64
	Ink                    decimal.Decimal
	Art                    decimal.Decimal
	Price                  decimal.Decimal
	CollateralizationRatio decimal.Decimal
	LiquidationPrice       decimal.Decimal
	Status                 string
	Error                  *string
	CreatedAt              time.Time
}

// RiskAlert captures an emitted risk notification for de-duplication/auditing.
type RiskAlert struct {
	ID                     int64
	Cdp                    int64
	BlockNumber            int64
	CollateralizationRatio decimal.Decimal
	MinRatio               decimal.Decimal
	Channels               []string
	CreatedAt              time.Time
}
