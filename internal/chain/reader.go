// Package chain provides read-only access to the on-chain facts the planner
// consumes: vault accounting, oracle prices, AMM pools, flash-loan premiums,
// PSM fees and token metadata. It holds no business logic.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"deunifi/internal/fixedpoint"
)

// Backend is the subset of an Ethereum RPC client the reader needs. It is
// satisfied by *ethclient.Client.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Addresses collects the deployed contract addresses the reader talks to.
type Addresses struct {
	Manager        common.Address
	Vat            common.Address
	Spotter        common.Address
	Jug            common.Address
	IlkRegistry    common.Address
	UniswapFactory common.Address
	UniswapRouter  common.Address
	PoolProvider   common.Address
	Psm            common.Address
	FeeManager     common.Address
	Dai            common.Address
	DaiJoin        common.Address
	Weth           common.Address
	DsProxyActions common.Address
}

// Urn is a vault's raw accounting pair.
type Urn struct {
	Ink *big.Int
	Art *big.Int
}

// IlkData carries a collateral type's vat risk parameters.
type IlkData struct {
	TotalArt *big.Int
	Rate     *big.Int
	Spot     *big.Int
	Line     *big.Int
	Dust     *big.Int
}

// SpotIlk carries a collateral type's oracle parameters.
type SpotIlk struct {
	Pip common.Address
	Mat *big.Int
}

// JugIlk carries a collateral type's stability-fee parameters.
type JugIlk struct {
	Duty *big.Int
	Rho  *big.Int
}

// IlkInfo is the registry record for a collateral type.
type IlkInfo struct {
	Name     string
	Symbol   string
	Decimals uint8
	Gem      common.Address
	Pip      common.Address
	Join     common.Address
}

// PairState is a Uniswap pair's reserve snapshot.
type PairState struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// TokenInfo is cached ERC-20 metadata.
type TokenInfo struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// PsmParameters are the price-stability module's fixed-rate fee settings.
type PsmParameters struct {
	Tin         *big.Int
	Tout        *big.Int
	GemJoin     common.Address
	Gem         common.Address
	GemDecimals uint8
}

var (
	// Oracle value slots: current price at 0x3, queued price at 0x4. The
	// price occupies the low 16 bytes of the 32-byte word and is WAD-scaled.
	pipCurrentSlot = common.BigToHash(big.NewInt(3))
	pipQueuedSlot  = common.BigToHash(big.NewInt(4))

	// The fee manager packs its fee ratio the same way at slot 0x1.
	feeRatioSlot = common.BigToHash(big.NewInt(1))

	// WAD-to-RAY price rescale.
	priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil)
)

// ErrEmptyResult indicates a call decoded to an unexpected shape.
var ErrEmptyResult = errors.New("chain: unexpected call result")

// Reader aggregates typed contract reads over one backend. Every backend
// call runs under the reader's request timeout, so a hung RPC node fails a
// read instead of stalling the caller.
type Reader struct {
	backend Backend
	addrs   Addresses
	timeout time.Duration
	logger  zerolog.Logger

	tokenMu sync.Mutex
	tokens  map[common.Address]*TokenInfo
}

// NewReader constructs a chain reader bound to one backend and address set.
// A non-positive timeout disables the per-call deadline.
func NewReader(backend Backend, addrs Addresses, timeout time.Duration, logger zerolog.Logger) *Reader {
	return &Reader{
		backend: backend,
		addrs:   addrs,
		timeout: timeout,
		logger:  logger.With().Str("component", "chain_reader").Logger(),
		tokens:  make(map[common.Address]*TokenInfo),
	}
}

func (r *Reader) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Addresses returns the address set the reader was built with.
func (r *Reader) Addresses() Addresses {
	return r.addrs
}

// BlockNumber reports the current chain head.
func (r *Reader) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()
	return r.backend.BlockNumber(ctx)
}

// IlkBytes encodes an ilk name ("UNIV2DAIETH-A") as the protocol's bytes32 tag.
func IlkBytes(name string) [32]byte {
	var out [32]byte
	copy(out[:], name)
	return out
}

func (r *Reader) call(ctx context.Context, contract abiHolder, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	payload, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	ctx, cancel := r.callContext(ctx)
	defer cancel()
	res, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := contract.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

type abiHolder interface {
	Pack(name string, args ...interface{}) ([]byte, error)
	Unpack(name string, data []byte) ([]interface{}, error)
}

func asBig(out []interface{}, i int) (*big.Int, error) {
	if i >= len(out) {
		return nil, ErrEmptyResult
	}
	v, ok := out[i].(*big.Int)
	if !ok {
		return nil, ErrEmptyResult
	}
	return v, nil
}

func asAddress(out []interface{}, i int) (common.Address, error) {
	if i >= len(out) {
		return common.Address{}, ErrEmptyResult
	}
	v, ok := out[i].(common.Address)
	if !ok {
		return common.Address{}, ErrEmptyResult
	}
	return v, nil
}

// Urn reads a vault's raw ink/art from the vat.
func (r *Reader) Urn(ctx context.Context, ilk [32]byte, urn common.Address) (Urn, error) {
	out, err := r.call(ctx, vatABI, r.addrs.Vat, "urns", ilk, urn)
	if err != nil {
		return Urn{}, err
	}
	ink, err := asBig(out, 0)
	if err != nil {
		return Urn{}, err
	}
	art, err := asBig(out, 1)
	if err != nil {
		return Urn{}, err
	}
	return Urn{Ink: ink, Art: art}, nil
}

// IlkData reads a collateral type's vat risk parameters.
func (r *Reader) IlkData(ctx context.Context, ilk [32]byte) (IlkData, error) {
	out, err := r.call(ctx, vatABI, r.addrs.Vat, "ilks", ilk)
	if err != nil {
		return IlkData{}, err
	}
	var data IlkData
	for i, dst := range []**big.Int{&data.TotalArt, &data.Rate, &data.Spot, &data.Line, &data.Dust} {
		v, err := asBig(out, i)
		if err != nil {
			return IlkData{}, err
		}
		*dst = v
	}
	return data, nil
}

// SpotIlk reads a collateral type's oracle address and liquidation ratio.
func (r *Reader) SpotIlk(ctx context.Context, ilk [32]byte) (SpotIlk, error) {
	out, err := r.call(ctx, spotterABI, r.addrs.Spotter, "ilks", ilk)
	if err != nil {
		return SpotIlk{}, err
	}
	pip, err := asAddress(out, 0)
	if err != nil {
		return SpotIlk{}, err
	}
	mat, err := asBig(out, 1)
	if err != nil {
		return SpotIlk{}, err
	}
	return SpotIlk{Pip: pip, Mat: mat}, nil
}

// JugIlk reads a collateral type's stability-fee parameters.
func (r *Reader) JugIlk(ctx context.Context, ilk [32]byte) (JugIlk, error) {
	out, err := r.call(ctx, jugABI, r.addrs.Jug, "ilks", ilk)
	if err != nil {
		return JugIlk{}, err
	}
	duty, err := asBig(out, 0)
	if err != nil {
		return JugIlk{}, err
	}
	rho, err := asBig(out, 1)
	if err != nil {
		return JugIlk{}, err
	}
	return JugIlk{Duty: duty, Rho: rho}, nil
}

// IlkInfo reads the registry record for a collateral type.
func (r *Reader) IlkInfo(ctx context.Context, ilk [32]byte) (IlkInfo, error) {
	out, err := r.call(ctx, ilkRegistryABI, r.addrs.IlkRegistry, "info", ilk)
	if err != nil {
		return IlkInfo{}, err
	}
	if len(out) < 8 {
		return IlkInfo{}, ErrEmptyResult
	}
	name, _ := out[0].(string)
	symbol, _ := out[1].(string)
	dec, err := asBig(out, 3)
	if err != nil {
		return IlkInfo{}, err
	}
	gem, err := asAddress(out, 4)
	if err != nil {
		return IlkInfo{}, err
	}
	pip, err := asAddress(out, 5)
	if err != nil {
		return IlkInfo{}, err
	}
	join, err := asAddress(out, 6)
	if err != nil {
		return IlkInfo{}, err
	}
	return IlkInfo{Name: name, Symbol: symbol, Decimals: uint8(dec.Uint64()), Gem: gem, Pip: pip, Join: join}, nil
}

// FirstVault returns the head of an owner's vault list, zero if none.
func (r *Reader) FirstVault(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := r.call(ctx, managerABI, r.addrs.Manager, "first", owner)
	if err != nil {
		return nil, err
	}
	return asBig(out, 0)
}

// NextVault returns the successor of a vault in the owner's list, zero at the end.
func (r *Reader) NextVault(ctx context.Context, cdp *big.Int) (*big.Int, error) {
	out, err := r.call(ctx, managerABI, r.addrs.Manager, "list", cdp)
	if err != nil {
		return nil, err
	}
	return asBig(out, 1)
}

// VaultUrn resolves a vault id to its urn address.
func (r *Reader) VaultUrn(ctx context.Context, cdp *big.Int) (common.Address, error) {
	out, err := r.call(ctx, managerABI, r.addrs.Manager, "urns", cdp)
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(out, 0)
}

// VaultIlk resolves a vault id to its collateral-type tag.
func (r *Reader) VaultIlk(ctx context.Context, cdp *big.Int) ([32]byte, error) {
	out, err := r.call(ctx, managerABI, r.addrs.Manager, "ilks", cdp)
	if err != nil {
		return [32]byte{}, err
	}
	if len(out) < 1 {
		return [32]byte{}, ErrEmptyResult
	}
	ilk, ok := out[0].([32]byte)
	if !ok {
		return [32]byte{}, ErrEmptyResult
	}
	return ilk, nil
}

// PipPrice reads the oracle's current (or queued) price straight from contract
// storage and rescales it from WAD to RAY. A zero read is returned as-is; the
// aggregator decides whether to fall back.
func (r *Reader) PipPrice(ctx context.Context, pip common.Address, queued bool) (*big.Int, error) {
	slot := pipCurrentSlot
	if queued {
		slot = pipQueuedSlot
	}
	ctx, cancel := r.callContext(ctx)
	defer cancel()
	raw, err := r.backend.StorageAt(ctx, pip, slot, nil)
	if err != nil {
		return nil, fmt.Errorf("read pip storage: %w", err)
	}
	return new(big.Int).Mul(packedLowHalf(raw), priceScale), nil
}

// FeeRatio reads the fee manager's packed ratio from storage slot 0x1. The
// value is a WAD-scaled fraction of the gross amount.
func (r *Reader) FeeRatio(ctx context.Context) (*big.Int, error) {
	if r.addrs.FeeManager == (common.Address{}) {
		return new(big.Int), nil
	}
	ctx, cancel := r.callContext(ctx)
	defer cancel()
	raw, err := r.backend.StorageAt(ctx, r.addrs.FeeManager, feeRatioSlot, nil)
	if err != nil {
		return nil, fmt.Errorf("read fee ratio: %w", err)
	}
	return packedLowHalf(raw), nil
}

// packedLowHalf extracts the value packed into the low 16 bytes of a slot.
func packedLowHalf(raw []byte) *big.Int {
	if len(raw) == 32 {
		return new(big.Int).SetBytes(raw[16:])
	}
	return new(big.Int).SetBytes(raw)
}

// ServiceFee asks the fee manager for the protocol fee on a gross amount.
// An unconfigured fee manager yields zero. When the fee call fails the fee is
// derived from the raw ratio slot instead, so older manager deployments
// without the getter still price correctly.
func (r *Reader) ServiceFee(ctx context.Context, gross *big.Int) (*big.Int, error) {
	if r.addrs.FeeManager == (common.Address{}) {
		return new(big.Int), nil
	}
	out, err := r.call(ctx, feeManagerABI, r.addrs.FeeManager, "getFeeFromGrossAmount", gross)
	if err != nil {
		r.logger.Warn().Err(err).Msg("fee call failed, deriving fee from the ratio slot")
		ratio, ratioErr := r.FeeRatio(ctx)
		if ratioErr != nil {
			return nil, err
		}
		return fixedpoint.MulDiv(gross, ratio, fixedpoint.Wad), nil
	}
	return asBig(out, 0)
}

// FlashLoanPremium resolves the lending pool through its addresses provider and
// reads the flash-loan premium in basis points.
func (r *Reader) FlashLoanPremium(ctx context.Context) (*big.Int, error) {
	out, err := r.call(ctx, providerABI, r.addrs.PoolProvider, "getLendingPool")
	if err != nil {
		return nil, err
	}
	pool, err := asAddress(out, 0)
	if err != nil {
		return nil, err
	}
	out, err = r.call(ctx, lendingPoolABI, pool, "FLASHLOAN_PREMIUM_TOTAL")
	if err != nil {
		return nil, err
	}
	return asBig(out, 0)
}

// PsmParameters reads the price-stability module's fee settings and gem token.
func (r *Reader) PsmParameters(ctx context.Context) (PsmParameters, error) {
	var params PsmParameters
	if r.addrs.Psm == (common.Address{}) {
		return params, fmt.Errorf("chain: psm address not configured")
	}

	out, err := r.call(ctx, psmABI, r.addrs.Psm, "tin")
	if err != nil {
		return params, err
	}
	if params.Tin, err = asBig(out, 0); err != nil {
		return params, err
	}

	out, err = r.call(ctx, psmABI, r.addrs.Psm, "tout")
	if err != nil {
		return params, err
	}
	if params.Tout, err = asBig(out, 0); err != nil {
		return params, err
	}

	out, err = r.call(ctx, psmABI, r.addrs.Psm, "gemJoin")
	if err != nil {
		return params, err
	}
	if params.GemJoin, err = asAddress(out, 0); err != nil {
		return params, err
	}

	out, err = r.call(ctx, gemJoinABI, params.GemJoin, "gem")
	if err != nil {
		return params, err
	}
	if params.Gem, err = asAddress(out, 0); err != nil {
		return params, err
	}

	token, err := r.Token(ctx, params.Gem)
	if err != nil {
		return params, err
	}
	params.GemDecimals = token.Decimals
	return params, nil
}

// GetPair resolves the AMM pool address for a token pair, zero if none exists.
func (r *Reader) GetPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	out, err := r.call(ctx, factoryABI, r.addrs.UniswapFactory, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(out, 0)
}

// GetAmountsIn quotes the required input amounts along a path for an exact output.
func (r *Reader) GetAmountsIn(ctx context.Context, amountOut *big.Int, path []common.Address) ([]*big.Int, error) {
	out, err := r.call(ctx, routerABI, r.addrs.UniswapRouter, "getAmountsIn", amountOut, path)
	if err != nil {
		return nil, err
	}
	if len(out) < 1 {
		return nil, ErrEmptyResult
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, ErrEmptyResult
	}
	return amounts, nil
}

// PairToken0 reads a pair's first constituent token.
func (r *Reader) PairToken0(ctx context.Context, pair common.Address) (common.Address, error) {
	out, err := r.call(ctx, pairABI, pair, "token0")
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(out, 0)
}

// PairToken1 reads a pair's second constituent token.
func (r *Reader) PairToken1(ctx context.Context, pair common.Address) (common.Address, error) {
	out, err := r.call(ctx, pairABI, pair, "token1")
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(out, 0)
}

// PairTotalSupply reads a pair's LP-token total supply.
func (r *Reader) PairTotalSupply(ctx context.Context, pair common.Address) (*big.Int, error) {
	out, err := r.call(ctx, pairABI, pair, "totalSupply")
	if err != nil {
		return nil, err
	}
	return asBig(out, 0)
}

// PairReserves reads a pair's current reserves.
func (r *Reader) PairReserves(ctx context.Context, pair common.Address) (PairState, error) {
	out, err := r.call(ctx, pairABI, pair, "getReserves")
	if err != nil {
		return PairState{}, err
	}
	r0, err := asBig(out, 0)
	if err != nil {
		return PairState{}, err
	}
	r1, err := asBig(out, 1)
	if err != nil {
		return PairState{}, err
	}
	return PairState{Reserve0: r0, Reserve1: r1}, nil
}

// Token resolves ERC-20 metadata, cached for the session.
func (r *Reader) Token(ctx context.Context, addr common.Address) (*TokenInfo, error) {
	r.tokenMu.Lock()
	if cached, ok := r.tokens[addr]; ok {
		r.tokenMu.Unlock()
		return cached, nil
	}
	r.tokenMu.Unlock()

	out, err := r.call(ctx, erc20ABI, addr, "symbol")
	if err != nil {
		return nil, err
	}
	if len(out) < 1 {
		return nil, ErrEmptyResult
	}
	symbol, _ := out[0].(string)

	out, err = r.call(ctx, erc20ABI, addr, "decimals")
	if err != nil {
		return nil, err
	}
	if len(out) < 1 {
		return nil, ErrEmptyResult
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return nil, ErrEmptyResult
	}

	info := &TokenInfo{Address: addr, Symbol: symbol, Decimals: decimals}
	r.tokenMu.Lock()
	r.tokens[addr] = info
	r.tokenMu.Unlock()
	return info, nil
}

// TokenBalance reads an owner's ERC-20 balance.
func (r *Reader) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := r.call(ctx, erc20ABI, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBig(out, 0)
}

// NativeBalance reads an account's native currency balance.
func (r *Reader) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()
	return r.backend.BalanceAt(ctx, owner, nil)
}
