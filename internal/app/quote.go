package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// Quote prices an exact-output swap across the configured venues and prints
// the cheapest route.
func (a *App) Quote(ctx context.Context, opts QuoteOptions) error {
	tokenFrom, err := parseAddress("from", opts.TokenFrom)
	if err != nil {
		return err
	}
	tokenTo, err := parseAddress("to", opts.TokenTo)
	if err != nil {
		return err
	}
	amountTo, err := parseWad(opts.AmountTo)
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
	quoter, err := a.newQuoter(reader)
	if err != nil {
		return err
	}

	plan, err := quoter.Quote(ctx, tokenFrom, tokenTo, amountTo)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Amount in\t%s\n", formatWad(plan.AmountFrom))
	fmt.Fprintf(writer, "Amount out\t%s\n", formatWad(plan.AmountTo))
	venue := "amm"
	if plan.UsedPsm {
		venue = "psm"
	}
	fmt.Fprintf(writer, "Venue\t%s\n", venue)
	if len(plan.Path) > 0 {
		hops := make([]string, 0, len(plan.Path))
		for _, hop := range plan.Path {
			hops = append(hops, hop.Hex())
		}
		fmt.Fprintf(writer, "Path\t%s\n", strings.Join(hops, " -> "))
	}
	return writer.Flush()
}
