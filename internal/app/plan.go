package app

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"deunifi/internal/calldata"
	"deunifi/internal/chain"
	"deunifi/internal/planner"
	"deunifi/internal/vault"
)

// LockPlanOptions configure a LockAndDraw plan.
type LockPlanOptions struct {
	Signer             string
	Proxy              string
	TokenAToLock       string
	TokenBToLock       string
	TokenAFromSigner   string
	TokenBFromSigner   string
	DaiFromSigner      string
	CollateralFromUser string
	SlippagePct        float64
	DeadlineMinutes    int64
	UseEth             bool
}

// WipePlanOptions configure a WipeAndFree plan.
type WipePlanOptions struct {
	Signer                        string
	Proxy                         string
	DaiToPayback                  string
	DaiFromSigner                 string
	CollateralToFree              string
	CollateralToUseToPayFlashLoan string
	DaiFromTokenA                 string
	DaiFromTokenB                 string
	SlippagePct                   float64
	DeadlineMinutes               int64
	ReceiveEth                    bool
}

func (a *App) slippage(pct float64) *big.Int {
	if pct <= 0 {
		pct = a.Config.Planner.SlippageTolerancePct
	}
	return toleranceFromPct(pct)
}

func (a *App) deadlineMinutes(minutes int64) int64 {
	if minutes <= 0 {
		return int64(a.Config.Planner.DeadlineMinutes)
	}
	return minutes
}

// PlanLock computes the expected outcome of a LockAndDraw operation and
// prints the assembled calldata for the executing contract.
func (a *App) PlanLock(ctx context.Context, opts LockPlanOptions) error {
	signer, err := parseAddress("signer", opts.Signer)
	if err != nil {
		return err
	}
	proxy, err := parseAddress("proxy", opts.Proxy)
	if err != nil {
		return err
	}

	snap, pl, reader, closer, err := a.planningContext(ctx)
	if err != nil {
		return err
	}
	defer closer()

	form := planner.NewLockAndDrawForm(snap.Token0.Decimals, snap.Token1.Decimals)
	for _, field := range []struct{ name, text string }{
		{"tokenAToLock", opts.TokenAToLock},
		{"tokenBToLock", opts.TokenBToLock},
		{"tokenAFromSigner", opts.TokenAFromSigner},
		{"tokenBFromSigner", opts.TokenBFromSigner},
		{"daiFromSigner", opts.DaiFromSigner},
		{"collateralFromUser", opts.CollateralFromUser},
	} {
		form.Set(field.name, field.text)
	}
	if errs := form.ParseErrors(); len(errs) > 0 {
		printFieldErrors(errs)
		return fmt.Errorf("%d amount flag(s) failed to parse", len(errs))
	}

	params := form.Params(a.slippage(opts.SlippagePct), a.deadlineMinutes(opts.DeadlineMinutes), opts.UseEth)
	res, err := pl.PlanLockAndDraw(ctx, snap, signer, params)
	if err != nil {
		return err
	}

	printLockResult(res)

	if len(res.Errors) > 0 {
		return fmt.Errorf("plan has %d validation error(s); calldata not assembled", len(res.Errors))
	}

	data, err := calldata.EncodeLockAndDraw(lockData(snap, reader.Addresses(), signer, proxy, params, res))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\ncalldata: %s\n", hexutil.Encode(data))
	return nil
}

// PlanWipe computes the expected outcome of a WipeAndFree operation and
// prints the assembled calldata for the executing contract.
func (a *App) PlanWipe(ctx context.Context, opts WipePlanOptions) error {
	signer, err := parseAddress("signer", opts.Signer)
	if err != nil {
		return err
	}
	proxy, err := parseAddress("proxy", opts.Proxy)
	if err != nil {
		return err
	}

	snap, pl, reader, closer, err := a.planningContext(ctx)
	if err != nil {
		return err
	}
	defer closer()

	form := planner.NewWipeAndFreeForm()
	for _, field := range []struct{ name, text string }{
		{"daiToPayback", opts.DaiToPayback},
		{"daiFromSigner", opts.DaiFromSigner},
		{"collateralToFree", opts.CollateralToFree},
		{"collateralToUseToPayFlashLoan", opts.CollateralToUseToPayFlashLoan},
		{"daiFromTokenA", opts.DaiFromTokenA},
		{"daiFromTokenB", opts.DaiFromTokenB},
	} {
		form.Set(field.name, field.text)
	}
	if errs := form.ParseErrors(); len(errs) > 0 {
		printFieldErrors(errs)
		return fmt.Errorf("%d amount flag(s) failed to parse", len(errs))
	}

	tolerance := a.slippage(opts.SlippagePct)
	deadline := a.deadlineMinutes(opts.DeadlineMinutes)

	params := form.Params(tolerance, deadline, opts.ReceiveEth)
	res, err := pl.PlanWipeAndFree(ctx, snap, signer, params)
	if err != nil {
		return err
	}

	// When the repayment split is not fully specified, derive the missing
	// side from the now-known loan-plus-fees total and replan. The form's
	// linked fields keep the split summing to the total.
	if opts.DaiFromTokenA == "" || opts.DaiFromTokenB == "" {
		form.SetTotal(res.DaiLoanPlusFees)
		if opts.DaiFromTokenA == "" && opts.DaiFromTokenB != "" {
			form.Set("daiFromTokenB", opts.DaiFromTokenB)
		}
		params = form.Params(tolerance, deadline, opts.ReceiveEth)
		res, err = pl.PlanWipeAndFree(ctx, snap, signer, params)
		if err != nil {
			return err
		}
	}

	printWipeResult(res)

	if len(res.Errors) > 0 {
		return fmt.Errorf("plan has %d validation error(s); calldata not assembled", len(res.Errors))
	}

	data, err := calldata.EncodeWipeAndFree(wipeData(snap, reader.Addresses(), signer, proxy, params, res))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\ncalldata: %s\n", hexutil.Encode(data))
	return nil
}

// planningContext loads a fresh snapshot and the planner bound to it.
func (a *App) planningContext(ctx context.Context) (*vault.Snapshot, *planner.Planner, *chain.Reader, func(), error) {
	ref, err := a.vaultRef()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	client, err := a.dial(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	reader, err := a.newReader(client)
	if err != nil {
		client.Close()
		return nil, nil, nil, nil, err
	}

	loader := vault.NewLoader(reader, a.Logger)
	snap, err := loader.LoadSnapshot(ctx, ref)
	if err != nil {
		client.Close()
		return nil, nil, nil, nil, err
	}
	if snap.Token0 == nil || snap.Token1 == nil {
		client.Close()
		return nil, nil, nil, nil, fmt.Errorf("collateral %s is not a resolvable pool token", snap.TokenSymbol)
	}

	pl, err := a.newPlanner(reader)
	if err != nil {
		client.Close()
		return nil, nil, nil, nil, err
	}

	return snap, pl, reader, func() { client.Close() }, nil
}

func lockData(snap *vault.Snapshot, addrs chain.Addresses, signer, proxy common.Address, p planner.LockAndDrawParams, res *planner.LockAndDrawResult) calldata.LockAndDrawData {
	transferFrom := p.TokenAFromSigner.Sign() > 0 || p.TokenBFromSigner.Sign() > 0 ||
		p.DaiFromSigner.Sign() > 0 || p.CollateralFromUser.Sign() > 0

	return calldata.LockAndDrawData{
		Sender:                    signer,
		DebtToken:                 addrs.Dai,
		Router:                    addrs.UniswapRouter,
		Psm:                       addrs.Psm,
		Token0:                    snap.Token0.Address,
		DebtTokenForToken0:        res.DaiForTokenA,
		PathFromDebtTokenToToken0: res.PlanTokenA.Path,
		PsmBuyToken0:              res.PlanTokenA.UsedPsm,
		Token0FromUser:            p.TokenAFromSigner,
		Token1:                    snap.Token1.Address,
		DebtTokenForToken1:        res.DaiForTokenB,
		PathFromDebtTokenToToken1: res.PlanTokenB.Path,
		PsmBuyToken1:              res.PlanTokenB.UsedPsm,
		Token1FromUser:            p.TokenBFromSigner,
		MinCollateralToBuy:        res.MinCollateralToBuy,
		CollateralFromUser:        p.CollateralFromUser,
		GemToken:                  snap.Gem,
		DsProxy:                   proxy,
		DsProxyActions:            addrs.DsProxyActions,
		Manager:                   addrs.Manager,
		Jug:                       addrs.Jug,
		GemJoin:                   snap.GemJoin,
		DaiJoin:                   addrs.DaiJoin,
		Cdp:                       cdpOrZero(snap),
		DebtTokenToDraw:           res.DaiToDraw,
		TransferFrom:              transferFrom,
		Deadline:                  res.Deadline,
		Weth:                      addrs.Weth,
		UseEth:                    p.UseEth,
	}
}

func wipeData(snap *vault.Snapshot, addrs chain.Addresses, signer, proxy common.Address, p planner.WipeAndFreeParams, res *planner.WipeAndFreeResult) calldata.WipeAndFreeData {
	isWholeDebt := snap.Dart.Sign() > 0 && p.DaiToPayback.Cmp(snap.Dart) >= 0

	return calldata.WipeAndFreeData{
		Sender:                   signer,
		DebtToken:                addrs.Dai,
		Router:                   addrs.UniswapRouter,
		Psm:                      addrs.Psm,
		TokenA:                   snap.Token0.Address,
		DebtToCoverWithTokenA:    p.DaiFromTokenA,
		PathTokenAToDebtToken:    res.PlanTokenA.Path,
		PsmSellTokenA:            res.UsedPsmA,
		TokenB:                   snap.Token1.Address,
		DebtToCoverWithTokenB:    p.DaiFromTokenB,
		PathTokenBToDebtToken:    res.PlanTokenB.Path,
		PsmSellTokenB:            res.UsedPsmB,
		DebtTokenFromSigner:      p.DaiFromSigner,
		CollateralToFree:         p.CollateralToFree,
		CollateralToUseToPayDebt: p.CollateralToUseToPayFlashLoan,
		MinTokenAToReceive:       res.MinTokenAToReceive,
		MinTokenBToReceive:       res.MinTokenBToReceive,
		GemToken:                 snap.Gem,
		DsProxy:                  proxy,
		DsProxyActions:           addrs.DsProxyActions,
		Manager:                  addrs.Manager,
		GemJoin:                  snap.GemJoin,
		DaiJoin:                  addrs.DaiJoin,
		Cdp:                      cdpOrZero(snap),
		DebtTokenToPayback:       p.DaiToPayback,
		IsPayingWholeDebt:        isWholeDebt,
		Deadline:                 res.Deadline,
		Weth:                     addrs.Weth,
		ReceiveEth:               p.ReceiveEth,
	}
}

func cdpOrZero(snap *vault.Snapshot) *big.Int {
	if snap.Cdp != nil {
		return snap.Cdp
	}
	return new(big.Int)
}

func printLockResult(res *planner.LockAndDrawResult) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Token A to buy\t%s\n", formatWad(res.TokenAToBuy))
	fmt.Fprintf(writer, "Token B to buy\t%s\n", formatWad(res.TokenBToBuy))
	fmt.Fprintf(writer, "DAI for token A\t%s\n", formatWad(res.DaiForTokenA))
	fmt.Fprintf(writer, "DAI for token B\t%s\n", formatWad(res.DaiForTokenB))
	fmt.Fprintf(writer, "Flash loan\t%s\n", formatWad(res.DaiFromFlashLoan))
	fmt.Fprintf(writer, "Flash loan fee\t%s\n", formatWad(res.FlashLoanFee))
	fmt.Fprintf(writer, "Service fee\t%s\n", formatWad(res.ServiceFee))
	fmt.Fprintf(writer, "DAI to draw\t%s\n", formatWad(res.DaiToDraw))
	fmt.Fprintf(writer, "Collateral to lock\t%s (min %s)\n", formatWad(res.CollateralToLock), formatWad(res.MinCollateralToLock))
	fmt.Fprintf(writer, "Collateralization\t%s (min %s)\n", formatWad(res.CollateralizationRatio), formatWad(res.MinCollateralizationRatio))
	fmt.Fprintf(writer, "Liquidation price\t%s (max %s)\n", formatRay(res.LiquidationPrice), formatRay(res.MaxLiquidationPrice))
	writer.Flush()
	printFieldErrors(res.Errors)
}

func printWipeResult(res *planner.WipeAndFreeResult) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Flash loan\t%s\n", formatWad(res.DaiFromFlashLoan))
	fmt.Fprintf(writer, "Flash loan fee\t%s\n", formatWad(res.FlashLoanFee))
	fmt.Fprintf(writer, "Service fee\t%s\n", formatWad(res.ServiceFee))
	fmt.Fprintf(writer, "Loan plus fees\t%s\n", formatWad(res.DaiLoanPlusFees))
	fmt.Fprintf(writer, "Token A to sell\t%s\n", formatWad(res.TokenAToSell))
	fmt.Fprintf(writer, "Token B to sell\t%s\n", formatWad(res.TokenBToSell))
	fmt.Fprintf(writer, "Collateral to remove\t%s (max %s)\n", formatWad(res.CollateralToRemove), formatWad(res.MinCollateralToRemove))
	fmt.Fprintf(writer, "Token A to receive\t%s (min %s)\n", formatWad(res.TokenAToReceive), formatWad(res.MinTokenAToReceive))
	fmt.Fprintf(writer, "Token B to receive\t%s (min %s)\n", formatWad(res.TokenBToReceive), formatWad(res.MinTokenBToReceive))
	if res.Projection != nil {
		fmt.Fprintf(writer, "Projected collateralization\t%s\n", formatWad(res.Projection.CollateralizationRatio))
		fmt.Fprintf(writer, "Projected liquidation price\t%s\n", formatRay(res.Projection.LiquidationPrice))
	}
	writer.Flush()
	printFieldErrors(res.Errors)
}

func printFieldErrors(errs planner.FieldErrors) {
	for field, msg := range errs {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", field, msg)
	}
}
