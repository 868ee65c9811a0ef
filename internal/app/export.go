package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"

	"deunifi/internal/storage"
)

// Export renders the sampled vault history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.ToBlock > 0 && opts.FromBlock >= opts.ToBlock {
		return errors.New("--from-block must be below --to-block")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	toBlock := opts.ToBlock
	if toBlock <= 0 {
		toBlock = math.MaxInt64
	}

	samples, err := store.ListSamplesBetween(ctx, a.Config.Vault.Cdp, opts.FromBlock, toBlock)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.VaultSample, max int) []storage.VaultSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	result := make([]storage.VaultSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.VaultSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"block_number", "ilk", "ink", "art", "price", "collateralization_ratio", "liquidation_price", "status", "error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		errMsg := ""
		if sample.Error != nil {
			errMsg = *sample.Error
		}
		record := []string{
			strconv.FormatInt(sample.BlockNumber, 10),
			sample.Ilk,
			sample.Ink.String(),
			sample.Art.String(),
			sample.Price.String(),
			sample.CollateralizationRatio.String(),
			sample.LiquidationPrice.String(),
			sample.Status,
			errMsg,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path string, samples []storage.VaultSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]float64, len(samples))
	price := make([]float64, len(samples))
	liquidation := make([]float64, len(samples))
	ratio := make([]float64, len(samples))

	for i, sample := range samples {
		x[i] = float64(sample.BlockNumber)
		price[i] = sample.Price.InexactFloat64()
		liquidation[i] = sample.LiquidationPrice.InexactFloat64()
		ratio[i] = sample.CollateralizationRatio.InexactFloat64()
	}

	formatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name:           "Block",
			ValueFormatter: chart.IntValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (DAI)",
			ValueFormatter: formatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Collateralization",
			ValueFormatter: formatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Collateral price",
				XValues: x,
				YValues: price,
			},
			chart.ContinuousSeries{
				Name:    "Liquidation price",
				XValues: x,
				YValues: liquidation,
			},
			chart.ContinuousSeries{
				Name:    "Ratio",
				XValues: x,
				YValues: ratio,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
