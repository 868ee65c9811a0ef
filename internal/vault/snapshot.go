// Package vault aggregates chain reads into consistent snapshots of a CDP's
// risk state, and enumerates the vaults an address owns.
package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"deunifi/internal/chain"
	"deunifi/internal/fixedpoint"
)

// ChainReader is the read surface the aggregator needs. *chain.Reader
// implements it.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	IlkData(ctx context.Context, ilk [32]byte) (chain.IlkData, error)
	SpotIlk(ctx context.Context, ilk [32]byte) (chain.SpotIlk, error)
	JugIlk(ctx context.Context, ilk [32]byte) (chain.JugIlk, error)
	IlkInfo(ctx context.Context, ilk [32]byte) (chain.IlkInfo, error)
	Urn(ctx context.Context, ilk [32]byte, urn common.Address) (chain.Urn, error)
	VaultUrn(ctx context.Context, cdp *big.Int) (common.Address, error)
	VaultIlk(ctx context.Context, cdp *big.Int) ([32]byte, error)
	FirstVault(ctx context.Context, owner common.Address) (*big.Int, error)
	NextVault(ctx context.Context, cdp *big.Int) (*big.Int, error)
	PipPrice(ctx context.Context, pip common.Address, queued bool) (*big.Int, error)
	PairToken0(ctx context.Context, pair common.Address) (common.Address, error)
	PairToken1(ctx context.Context, pair common.Address) (common.Address, error)
	PairTotalSupply(ctx context.Context, pair common.Address) (*big.Int, error)
	PairReserves(ctx context.Context, pair common.Address) (chain.PairState, error)
	Token(ctx context.Context, addr common.Address) (*chain.TokenInfo, error)
}

// Ref identifies the vault to snapshot: a collateral type, optionally with an
// already-assigned CDP id.
type Ref struct {
	Ilk string
	Cdp *big.Int
}

// Snapshot is one immutable view of a vault's on-chain state. It is created
// whole on every recomputation trigger and superseded atomically.
type Snapshot struct {
	Ilk    string
	IlkTag [32]byte
	Cdp    *big.Int
	Urn    common.Address

	Ink  *big.Int
	Art  *big.Int
	Dart *big.Int

	Rate     *big.Int
	Spot     *big.Int
	Price    *big.Int
	Mat      *big.Int
	Line     *big.Int
	Dust     *big.Int
	TotalArt *big.Int
	Duty     *big.Int
	Rho      *big.Int

	TokenName     string
	TokenSymbol   string
	TokenDecimals uint8
	Gem           common.Address
	GemJoin       common.Address

	// Constituents of the LP collateral; nil when resolution failed or the
	// gem is not a pool token.
	Token0 *chain.TokenInfo
	Token1 *chain.TokenInfo

	PairTotalSupply *big.Int
	Reserve0        *big.Int
	Reserve1        *big.Int

	BlockNumber uint64
}

// CollateralizationRatio derives the vault's current ratio.
func (s *Snapshot) CollateralizationRatio() *big.Int {
	return fixedpoint.CollateralizationRatio(s.Ink, s.Dart, s.Price)
}

// LiquidationPrice derives the vault's current liquidation price.
func (s *Snapshot) LiquidationPrice() *big.Int {
	return fixedpoint.LiquidationPrice(s.Ink, s.Dart, s.Mat)
}

// Loader builds snapshots from a chain reader.
type Loader struct {
	reader ChainReader
	logger zerolog.Logger
}

// NewLoader constructs a snapshot loader.
func NewLoader(reader ChainReader, logger zerolog.Logger) *Loader {
	return &Loader{
		reader: reader,
		logger: logger.With().Str("component", "vault_loader").Logger(),
	}
}

// LoadSnapshot fetches every fact the planners need in one pass. Independent
// reads are fanned out and joined; the pass never proceeds past the join until
// all of them return.
func (l *Loader) LoadSnapshot(ctx context.Context, ref Ref) (*Snapshot, error) {
	snap := &Snapshot{Ilk: ref.Ilk, IlkTag: chain.IlkBytes(ref.Ilk)}

	var (
		ilkData chain.IlkData
		spotIlk chain.SpotIlk
		jugIlk  chain.JugIlk
		info    chain.IlkInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ilkData, err = l.reader.IlkData(gctx, snap.IlkTag)
		return err
	})
	g.Go(func() (err error) {
		spotIlk, err = l.reader.SpotIlk(gctx, snap.IlkTag)
		return err
	})
	g.Go(func() (err error) {
		jugIlk, err = l.reader.JugIlk(gctx, snap.IlkTag)
		return err
	})
	g.Go(func() (err error) {
		info, err = l.reader.IlkInfo(gctx, snap.IlkTag)
		return err
	})
	g.Go(func() (err error) {
		snap.BlockNumber, err = l.reader.BlockNumber(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load ilk state: %w", err)
	}

	snap.Rate = ilkData.Rate
	snap.Spot = ilkData.Spot
	snap.Line = ilkData.Line
	snap.Dust = ilkData.Dust
	snap.TotalArt = ilkData.TotalArt
	snap.Mat = spotIlk.Mat
	snap.Duty = jugIlk.Duty
	snap.Rho = jugIlk.Rho
	snap.TokenName = info.Name
	snap.TokenSymbol = info.Symbol
	snap.TokenDecimals = info.Decimals
	snap.Gem = info.Gem
	snap.GemJoin = info.Join

	snap.Price = l.loadPrice(ctx, spotIlk, ilkData)

	snap.Ink = new(big.Int)
	snap.Art = new(big.Int)
	if ref.Cdp != nil && ref.Cdp.Sign() > 0 {
		snap.Cdp = new(big.Int).Set(ref.Cdp)
		urnAddr, err := l.reader.VaultUrn(ctx, ref.Cdp)
		if err != nil {
			return nil, fmt.Errorf("resolve urn for cdp %s: %w", ref.Cdp, err)
		}
		snap.Urn = urnAddr
		urn, err := l.reader.Urn(ctx, snap.IlkTag, urnAddr)
		if err != nil {
			return nil, fmt.Errorf("load urn %s: %w", urnAddr, err)
		}
		snap.Ink = urn.Ink
		snap.Art = urn.Art
	}
	snap.Dart = fixedpoint.NormalizedDebt(snap.Art, snap.Rate)

	l.resolvePair(ctx, snap)
	return snap, nil
}

// loadPrice prefers the oracle's raw storage value and falls back to
// spot*mat/RAY for any non-cancellation failure or a zero read.
func (l *Loader) loadPrice(ctx context.Context, spotIlk chain.SpotIlk, ilkData chain.IlkData) *big.Int {
	price, err := l.reader.PipPrice(ctx, spotIlk.Pip, false)
	if err == nil && price.Sign() > 0 {
		return price
	}
	if err != nil {
		l.logger.Warn().Err(err).Str("pip", spotIlk.Pip.Hex()).Msg("pip storage read failed, deriving price from spot")
	}
	return fixedpoint.MulDiv(ilkData.Spot, spotIlk.Mat, fixedpoint.Ray)
}

// resolvePair attaches the LP collateral's constituent tokens and pool state.
// Failure degrades the snapshot (pair fields stay nil) instead of failing it:
// a vault over a non-pool gem is still a valid vault.
func (l *Loader) resolvePair(ctx context.Context, snap *Snapshot) {
	token0Addr, err := l.reader.PairToken0(ctx, snap.Gem)
	if err != nil {
		l.logger.Debug().Err(err).Msg("collateral gem is not a pool token")
		return
	}
	token1Addr, err := l.reader.PairToken1(ctx, snap.Gem)
	if err != nil {
		l.logger.Debug().Err(err).Msg("collateral gem is not a pool token")
		return
	}

	var (
		token0, token1 *chain.TokenInfo
		supply         *big.Int
		reserves       chain.PairState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		token0, err = l.reader.Token(gctx, token0Addr)
		return err
	})
	g.Go(func() (err error) {
		token1, err = l.reader.Token(gctx, token1Addr)
		return err
	})
	g.Go(func() (err error) {
		supply, err = l.reader.PairTotalSupply(gctx, snap.Gem)
		return err
	})
	g.Go(func() (err error) {
		reserves, err = l.reader.PairReserves(gctx, snap.Gem)
		return err
	})
	if err := g.Wait(); err != nil {
		l.logger.Warn().Err(err).Msg("pair resolution failed, publishing snapshot without pair state")
		return
	}

	snap.Token0 = token0
	snap.Token1 = token1
	snap.PairTotalSupply = supply
	snap.Reserve0 = reserves.Reserve0
	snap.Reserve1 = reserves.Reserve1
}
