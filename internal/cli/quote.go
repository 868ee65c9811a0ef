package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"deunifi/internal/app"
)

var (
	quoteFrom   string
	quoteTo     string
	quoteAmount string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price an exact-output swap across the configured venues",
	RunE: func(cmd *cobra.Command, args []string) error {
		if quoteFrom == "" || quoteTo == "" || quoteAmount == "" {
			return errors.New("--from, --to and --amount are required")
		}
		return getApp().Quote(cmd.Context(), app.QuoteOptions{
			TokenFrom: quoteFrom,
			TokenTo:   quoteTo,
			AmountTo:  quoteAmount,
		})
	},
}

func init() {
	quoteCmd.Flags().StringVar(&quoteFrom, "from", "", "Token to pay with")
	quoteCmd.Flags().StringVar(&quoteTo, "to", "", "Token to receive")
	quoteCmd.Flags().StringVar(&quoteAmount, "amount", "", "Exact output amount to receive")
}
