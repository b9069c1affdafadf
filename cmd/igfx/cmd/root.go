package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "igfx",
	Short: "An FX trading bot for IG markets with TimescaleDB persistence",
	Long: `igfx evaluates configurable strategies over live or historical FX
candles, sizes trades under strict risk limits, and drives orders through
the IG REST API with retry and idempotent submission.

It provides:
  - Strategy variants: SMA/EMA crossover, RSI reversal, Alligator confluence
  - Fixed fractional position sizing with daily loss and drawdown breakers
  - Order execution with transport retry and duplicate-fill protection
  - Bar, trade and equity persistence to SQLite, CSV or TimescaleDB
  - Optional Telegram trade confirmation and a websocket dashboard`,
}

var (
	logLevel string
	log      = logrus.New()
)

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	cobra.OnInitialize(func() {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			level = logrus.InfoLevel
		}
		log.SetLevel(level)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	})
}
