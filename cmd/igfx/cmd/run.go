package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/realKyawSwar/igfx-bot-timescale-update/broker"
	"github.com/realKyawSwar/igfx-bot-timescale-update/broker/ig"
	"github.com/realKyawSwar/igfx-bot-timescale-update/broker/sim"
	"github.com/realKyawSwar/igfx-bot-timescale-update/config"
	"github.com/realKyawSwar/igfx-bot-timescale-update/dashboard"
	"github.com/realKyawSwar/igfx-bot-timescale-update/engine"
	"github.com/realKyawSwar/igfx-bot-timescale-update/execution"
	"github.com/realKyawSwar/igfx-bot-timescale-update/journal"
	"github.com/realKyawSwar/igfx-bot-timescale-update/notify"
	"github.com/realKyawSwar/igfx-bot-timescale-update/risk"
	"github.com/realKyawSwar/igfx-bot-timescale-update/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loop from a config file",
	Long: `Run the live trading loop using settings from a configuration file.

The config selects the broker mode (demo, live or paper), the instruments,
the strategy variant, risk limits and persistence sinks.

Example:
  igfx run --config config.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to YAML config file (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jnl, err := buildJournal(ctx, cfg)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer jnl.Close()

	b, cleanup, err := buildBroker(ctx, cfg)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	defer cleanup()

	strategy, err := strategies.Build(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return err
	}

	metas, err := cfg.Metas()
	if err != nil {
		return err
	}

	manager := risk.NewManager(cfg.Risk, cfg.Account.StartEquity, log)
	exec := execution.NewExecutor(b, cfg.Execution.Build(), log)

	var notifier engine.Notifier
	if cfg.Telegram != nil {
		tcfg, err := cfg.Telegram.Build()
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		notifier = notify.NewTelegram(tcfg, log)
	}

	var cast engine.Broadcaster
	if cfg.Dashboard.Enabled {
		hub := dashboard.NewHub(log)
		srv := dashboard.NewServer(cfg.Dashboard.Addr, hub, manager, log)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		cast = hub
	}

	eng := engine.New(engine.Options{
		Broker:        b,
		Strategy:      strategy,
		Risk:          manager,
		Executor:      exec,
		Journal:       jnl,
		Notifier:      notifier,
		Broadcaster:   cast,
		Instruments:   metas,
		Session:       cfg.Scheduler.Session,
		Interval:      cfg.Scheduler.Interval.Std(),
		HistoryPoints: cfg.Scheduler.HistoryPoints,
		Log:           log,
	})

	log.WithFields(map[string]interface{}{
		"mode":     cfg.Mode,
		"strategy": cfg.Strategy.Name,
		"symbols":  len(metas),
	}).Info("starting")

	return eng.Run(ctx)
}

func buildJournal(ctx context.Context, cfg *config.Config) (journal.Journal, error) {
	var sinks []journal.Journal
	if cfg.Journal.SQLitePath != "" {
		j, err := journal.NewSQLite(cfg.Journal.SQLitePath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, j)
	}
	if cfg.Journal.TimescaleDSN != "" {
		j, err := journal.NewTimescale(ctx, cfg.Journal.TimescaleDSN)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, j)
	}
	if cfg.Journal.CSVTradesFile != "" {
		j, err := journal.NewCSV(cfg.Journal.CSVBarsFile, cfg.Journal.CSVTradesFile, cfg.Journal.CSVEquityFile)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, j)
	}
	switch len(sinks) {
	case 0:
		return journal.Nop{}, nil
	case 1:
		return sinks[0], nil
	default:
		return journal.NewMulti(sinks...), nil
	}
}

func buildBroker(ctx context.Context, cfg *config.Config) (broker.Broker, func(), error) {
	if cfg.Mode == config.ModePaper {
		return sim.New(), func() {}, nil
	}

	apiKey, identifier, password, accountID, err := cfg.IGCredentials()
	if err != nil {
		return nil, nil, err
	}

	client := ig.NewClient(ig.Credentials{
		APIKey:     apiKey,
		Identifier: identifier,
		Password:   password,
		AccountID:  accountID,
	}, cfg.Mode == config.ModeDemo, log)

	if err := client.Login(ctx); err != nil {
		return nil, nil, fmt.Errorf("IG login: %w", err)
	}
	cleanup := func() {
		logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Logout(logoutCtx)
	}
	return client, cleanup, nil
}
