package cli

import (
	"github.com/spf13/cobra"

	"deunifi/internal/app"
)

var (
	exportFromBlock int64
	exportToBlock   int64
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sampled vault history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), app.ExportOptions{
			FromBlock: exportFromBlock,
			ToBlock:   exportToBlock,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		})
	},
}

func init() {
	exportCmd.Flags().Int64Var(&exportFromBlock, "from-block", 0, "Start block (inclusive)")
	exportCmd.Flags().Int64Var(&exportToBlock, "to-block", 0, "End block (exclusive, defaults to latest)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
