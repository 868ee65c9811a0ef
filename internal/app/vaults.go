package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"deunifi/internal/vault"
)

// Vaults lists every vault the owner address holds through the manager.
func (a *App) Vaults(ctx context.Context, opts VaultsOptions) error {
	owner := opts.Owner
	if owner == "" {
		owner = a.Config.Vault.Owner
	}
	ownerAddr, err := parseAddress("owner", owner)
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

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "CDP\tIlk\tUrn")

	count := 0
	it := loader.OwnedVaults(ownerAddr)
	for {
		summary, ok, err := it.Next(ctx)
		if err != nil {
			return fmt.Errorf("walk vault list: %w", err)
		}
		if !ok {
			break
		}
		count++
		fmt.Fprintf(writer, "%s\t%s\t%s\n", summary.Cdp, summary.Ilk, summary.Urn.Hex())
	}
	writer.Flush()

	if count == 0 {
		fmt.Fprintln(os.Stdout, "no vaults found")
	}
	return nil
}
