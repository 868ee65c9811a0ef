// Package swap finds the cheapest way to obtain an exact output amount of a
// token: direct AMM pool, AMM routes through configured high-liquidity
// intermediates, or the price-stability module's fixed-rate facility.
package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"deunifi/internal/chain"
	"deunifi/internal/fixedpoint"
)

var (
	// ErrNoRoute indicates no candidate path can produce the requested
	// output. Callers must treat this as fatal for the computation pass;
	// a silent zero would be indistinguishable from "no swap needed".
	ErrNoRoute = errors.New("swap: no route found")

	// ErrPsmInconsistent indicates the PSM rounding check failed. This is
	// a logic defect, never a user-recoverable condition.
	ErrPsmInconsistent = errors.New("swap: psm fee rounding produced an under-funded amount")
)

// ChainSource is the on-chain surface the router quotes against.
type ChainSource interface {
	GetPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error)
	GetAmountsIn(ctx context.Context, amountOut *big.Int, path []common.Address) ([]*big.Int, error)
	PsmParameters(ctx context.Context) (chain.PsmParameters, error)
}

// Plan is the router's answer for one (tokenFrom, tokenTo, amountTo) query.
type Plan struct {
	TokenFrom   common.Address
	TokenTo     common.Address
	AmountFrom  *big.Int
	AmountTo    *big.Int
	Path        []common.Address
	PathAmounts []*big.Int
	UsedPsm     bool
}

// Options tune the router.
type Options struct {
	Dai           common.Address
	Intermediates []common.Address
	DirectPath    bool
	UsePsm        bool
}

// Router selects the candidate plan with the minimum required input.
type Router struct {
	source ChainSource
	opts   Options
	logger zerolog.Logger
}

// NewRouter constructs a swap router.
func NewRouter(source ChainSource, opts Options, logger zerolog.Logger) *Router {
	return &Router{
		source: source,
		opts:   opts,
		logger: logger.With().Str("component", "swap_router").Logger(),
	}
}

// Quote computes the cheapest plan delivering exactly amountTo of tokenTo.
func (r *Router) Quote(ctx context.Context, tokenFrom, tokenTo common.Address, amountTo *big.Int) (*Plan, error) {
	if tokenFrom == tokenTo {
		return &Plan{
			TokenFrom:  tokenFrom,
			TokenTo:    tokenTo,
			AmountFrom: new(big.Int).Set(amountTo),
			AmountTo:   new(big.Int).Set(amountTo),
		}, nil
	}
	if amountTo.Sign() == 0 {
		return &Plan{
			TokenFrom:  tokenFrom,
			TokenTo:    tokenTo,
			AmountFrom: new(big.Int),
			AmountTo:   new(big.Int),
		}, nil
	}

	paths := r.candidatePaths(tokenFrom, tokenTo)

	var (
		mu    sync.Mutex
		best  *Plan
		fatal error
		wg    sync.WaitGroup
	)

	record := func(plan *Plan, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil && (errors.Is(err, ErrPsmInconsistent) || errors.Is(err, context.Canceled)):
			if fatal == nil {
				fatal = err
			}
		case err != nil:
			// No liquidity or a broken hop: the candidate is simply
			// discarded, other routes may still serve.
			r.logger.Debug().Err(err).Msg("swap candidate discarded")
		case best == nil || plan.AmountFrom.Cmp(best.AmountFrom) < 0:
			best = plan
		}
	}

	for _, path := range paths {
		wg.Add(1)
		go func(path []common.Address) {
			defer wg.Done()
			record(r.quoteAmmPath(ctx, path, amountTo))
		}(path)
	}

	if r.opts.UsePsm && (tokenFrom == r.opts.Dai || tokenTo == r.opts.Dai) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(r.quotePsm(ctx, tokenFrom, tokenTo, amountTo))
		}()
	}

	wg.Wait()

	if fatal != nil {
		return nil, fatal
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, tokenFrom, tokenTo)
	}
	return best, nil
}

func (r *Router) candidatePaths(tokenFrom, tokenTo common.Address) [][]common.Address {
	var paths [][]common.Address
	if r.opts.DirectPath {
		paths = append(paths, []common.Address{tokenFrom, tokenTo})
	}
	for _, mid := range r.opts.Intermediates {
		if mid == tokenFrom || mid == tokenTo {
			continue
		}
		paths = append(paths, []common.Address{tokenFrom, mid, tokenTo})
	}
	return paths
}

func (r *Router) quoteAmmPath(ctx context.Context, path []common.Address, amountTo *big.Int) (*Plan, error) {
	for i := 0; i+1 < len(path); i++ {
		pair, err := r.source.GetPair(ctx, path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		if pair == (common.Address{}) {
			return nil, fmt.Errorf("no pool for hop %s -> %s", path[i], path[i+1])
		}
	}

	amounts, err := r.source.GetAmountsIn(ctx, amountTo, path)
	if err != nil {
		return nil, err
	}
	if len(amounts) != len(path) {
		return nil, fmt.Errorf("router returned %d amounts for %d-token path", len(amounts), len(path))
	}

	return &Plan{
		TokenFrom:   path[0],
		TokenTo:     path[len(path)-1],
		AmountFrom:  amounts[0],
		AmountTo:    new(big.Int).Set(amountTo),
		Path:        path,
		PathAmounts: amounts,
	}, nil
}

// quotePsm prices the fixed-rate facility. Buying the gem with DAI applies the
// buy fee on top of the unit conversion; selling the gem for DAI solves for the
// gem amount whose post-fee proceeds cover amountTo, rounding up, then checks
// the rounding really did not under-fund.
func (r *Router) quotePsm(ctx context.Context, tokenFrom, tokenTo common.Address, amountTo *big.Int) (*Plan, error) {
	params, err := r.source.PsmParameters(ctx)
	if err != nil {
		return nil, err
	}
	if tokenFrom != params.Gem && tokenTo != params.Gem {
		return nil, fmt.Errorf("pair is not the psm gem")
	}
	gemUnit := fixedpoint.Exp10Unit(params.GemDecimals)

	plan := &Plan{
		TokenFrom: tokenFrom,
		TokenTo:   tokenTo,
		AmountTo:  new(big.Int).Set(amountTo),
		Path:      []common.Address{tokenFrom, tokenTo},
		UsedPsm:   true,
	}

	if tokenFrom == r.opts.Dai {
		// DAI -> gem: amountTo*WAD/gemUnit + tout*amountTo/gemUnit.
		cost := fixedpoint.MulDiv(amountTo, fixedpoint.Wad, gemUnit)
		fee := fixedpoint.MulDiv(params.Tout, amountTo, gemUnit)
		plan.AmountFrom = cost.Add(cost, fee)
	} else {
		// gem -> DAI: amountFrom = ceil(amountTo*gemUnit/(WAD-tin)).
		net := new(big.Int).Sub(fixedpoint.Wad, params.Tin)
		if net.Sign() <= 0 {
			return nil, fmt.Errorf("psm sell fee consumes the whole amount")
		}
		amountFrom := fixedpoint.CeilDiv(new(big.Int).Mul(amountTo, gemUnit), net)

		// Re-apply the fee: the derived gem amount must still cover the
		// requested DAI after truncation.
		final := fixedpoint.MulDiv(amountFrom, net, gemUnit)
		if final.Cmp(amountTo) < 0 {
			return nil, fmt.Errorf("%w: requested %s, covered %s", ErrPsmInconsistent, amountTo, final)
		}
		plan.AmountFrom = amountFrom
	}

	plan.PathAmounts = []*big.Int{plan.AmountFrom, plan.AmountTo}
	return plan, nil
}
