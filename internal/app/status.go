package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"deunifi/internal/vault"
)

// Status prints the configured vault's current on-chain state.
func (a *App) Status(ctx context.Context) error {
	ref, err := a.vaultRef()
	if err != nil {
		return err
	}

	client, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	reader, err := a.newReader(client)
	if err != nil {
		return err
	}

	loader := vault.NewLoader(reader, a.Logger)
	snap, err := loader.LoadSnapshot(ctx, ref)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Ilk\t%s\n", snap.Ilk)
	if snap.Cdp != nil {
		fmt.Fprintf(writer, "CDP\t%s\n", snap.Cdp)
		fmt.Fprintf(writer, "Urn\t%s\n", snap.Urn.Hex())
	}
	fmt.Fprintf(writer, "Block\t%d\n", snap.BlockNumber)
	fmt.Fprintf(writer, "Collateral locked\t%s\n", formatWad(snap.Ink))
	fmt.Fprintf(writer, "Debt\t%s\n", formatWad(snap.Dart))
	fmt.Fprintf(writer, "Collateral price\t%s\n", formatRay(snap.Price))
	fmt.Fprintf(writer, "Liquidation ratio\t%s\n", formatRay(snap.Mat))
	fmt.Fprintf(writer, "Stability duty\t%s\n", formatRay(snap.Duty))
	fmt.Fprintf(writer, "Debt floor\t%s\n", formatRad(snap.Dust))
	fmt.Fprintf(writer, "Debt ceiling\t%s\n", formatRad(snap.Line))
	if snap.Dart.Sign() > 0 {
		fmt.Fprintf(writer, "Collateralization\t%s\n", formatWad(snap.CollateralizationRatio()))
		fmt.Fprintf(writer, "Liquidation price\t%s\n", formatRay(snap.LiquidationPrice()))
	}
	if snap.Token0 != nil && snap.Token1 != nil {
		fmt.Fprintf(writer, "Pool\t%s/%s\n", snap.Token0.Symbol, snap.Token1.Symbol)
		fmt.Fprintf(writer, "Reserve %s\t%s\n", snap.Token0.Symbol, formatWad(snap.Reserve0))
		fmt.Fprintf(writer, "Reserve %s\t%s\n", snap.Token1.Symbol, formatWad(snap.Reserve1))
	}
	writer.Flush()
	return nil
}
