package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/realKyawSwar/igfx-bot-timescale-update/backtest"
	"github.com/realKyawSwar/igfx-bot-timescale-update/config"
	"github.com/realKyawSwar/igfx-bot-timescale-update/journal"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
	"github.com/realKyawSwar/igfx-bot-timescale-update/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a candle CSV through the trading engine",
	Long: `Replay historical candles bar-by-bar through the configured strategy,
risk limits and execution path, and print the result.

The CSV needs a header and the columns: time, open, high, low, close, volume,
with RFC3339 timestamps.

Example:
  igfx backtest --config config.yaml --candles eurusd_m5.csv --symbol EURUSD`,
	RunE: runBacktest,
}

var (
	backtestConfigPath  string
	backtestCandlesPath string
	backtestSymbol      string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&backtestConfigPath, "config", "f", "", "path to YAML config file (required)")
	backtestCmd.Flags().StringVar(&backtestCandlesPath, "candles", "", "path to candle CSV (required)")
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "instrument symbol from the config (default: first)")
	backtestCmd.MarkFlagRequired("config")
	backtestCmd.MarkFlagRequired("candles")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(backtestConfigPath)
	if err != nil {
		return err
	}

	metas, err := cfg.Metas()
	if err != nil {
		return err
	}
	meta := metas[0]
	if backtestSymbol != "" {
		found := false
		for _, m := range metas {
			if m.Symbol == backtestSymbol {
				meta, found = m, true
				break
			}
		}
		if !found {
			return fmt.Errorf("symbol %s is not in the config", backtestSymbol)
		}
	}

	series, err := loadCandleCSV(backtestCandlesPath, meta.Symbol, meta.Timeframe)
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}
	log.WithField("bars", series.Len()).Info("candles loaded")

	strategy, err := strategies.Build(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return err
	}

	var jnl journal.Journal = journal.Nop{}
	if cfg.Journal.CSVTradesFile != "" {
		jnl, err = journal.NewCSV(cfg.Journal.CSVBarsFile, cfg.Journal.CSVTradesFile, cfg.Journal.CSVEquityFile)
		if err != nil {
			return err
		}
		defer jnl.Close()
	}

	runner := backtest.NewRunner(strategy, cfg.Risk, meta, jnl, log)
	result, err := runner.Run(context.Background(), series, cfg.Account.StartEquity)
	if err != nil {
		return err
	}

	fmt.Println(result.String())
	return nil
}

func loadCandleCSV(path, symbol string, tf market.Timeframe) (*market.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no candle rows in %s", path)
	}

	series := &market.Series{Symbol: symbol, Timeframe: tf}
	for i, row := range rows[1:] {
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d: expected 6 columns, got %d", i+2, len(row))
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		vals := make([]float64, 5)
		for j := 1; j <= 5; j++ {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", i+2, j+1, err)
			}
			vals[j-1] = v
		}
		if err := series.Append(market.Candle{
			Symbol: symbol,
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		}); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	return series, nil
}
