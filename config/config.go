// Package config loads the bot's YAML configuration and resolves broker
// credentials from the environment. Secrets never live in the file, only
// the names of the variables that hold them.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/realKyawSwar/igfx-bot-timescale-update/execution"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
	"github.com/realKyawSwar/igfx-bot-timescale-update/notify"
	"github.com/realKyawSwar/igfx-bot-timescale-update/risk"
	"github.com/realKyawSwar/igfx-bot-timescale-update/strategies"
)

// Duration parses YAML values like "5m" or "45s"; a bare integer is
// taken as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Mode selects which broker backs the engine.
type Mode string

const (
	ModeDemo  Mode = "demo"  // IG demo endpoint
	ModeLive  Mode = "live"  // IG live endpoint
	ModePaper Mode = "paper" // in-memory simulator
)

type Config struct {
	Mode        Mode                   `yaml:"mode"`
	Account     AccountConfig          `yaml:"account"`
	Credentials CredentialConfig       `yaml:"credentials"`
	Instruments []InstrumentConfig     `yaml:"instruments"`
	Strategy    StrategyConfig         `yaml:"strategy"`
	Risk        risk.Policy            `yaml:"risk"`
	Execution   ExecutionConfig        `yaml:"execution"`
	Scheduler   SchedulerConfig        `yaml:"scheduler"`
	Journal     JournalConfig          `yaml:"journal"`
	Telegram    *TelegramConfig        `yaml:"telegram,omitempty"`
	Dashboard   DashboardConfig        `yaml:"dashboard"`
}

// TelegramConfig enables chat alerts. The bot token is resolved from the
// named environment variable, never stored in the file.
type TelegramConfig struct {
	BotTokenEnv         string   `yaml:"bot_token_env"`
	ChatID              string   `yaml:"chat_id"`
	RequireConfirmation bool     `yaml:"require_confirmation"`
	ConfirmationTimeout Duration `yaml:"confirmation_timeout"`
	PollInterval        Duration `yaml:"poll_interval"`
}

// Build resolves the token and converts to the notify package's config.
func (t TelegramConfig) Build() (notify.TelegramConfig, error) {
	token := os.Getenv(t.BotTokenEnv)
	if token == "" {
		return notify.TelegramConfig{}, fmt.Errorf("environment variable %s is not set", t.BotTokenEnv)
	}
	return notify.TelegramConfig{
		BotToken:            token,
		ChatID:              t.ChatID,
		RequireConfirmation: t.RequireConfirmation,
		ConfirmationTimeout: t.ConfirmationTimeout.Std(),
		PollInterval:        t.PollInterval.Std(),
	}, nil
}

type AccountConfig struct {
	Currency    string  `yaml:"currency"`
	StartEquity float64 `yaml:"start_equity"`
}

// CredentialConfig names the environment variables holding IG secrets.
type CredentialConfig struct {
	APIKeyEnv     string `yaml:"api_key_env"`
	IdentifierEnv string `yaml:"identifier_env"`
	PasswordEnv   string `yaml:"password_env"`
	AccountIDEnv  string `yaml:"account_id_env"`
}

type InstrumentConfig struct {
	Symbol           string  `yaml:"symbol"`
	Epic             string  `yaml:"epic"`
	PipSize          float64 `yaml:"pip_size"`
	PipValue         float64 `yaml:"pip_value"`
	LotStep          float64 `yaml:"lot_step"`
	StopDistancePips float64 `yaml:"stop_distance_pips"`
	Timeframe        string  `yaml:"timeframe"`
}

type StrategyConfig struct {
	Name   string            `yaml:"name"`
	Params strategies.Params `yaml:"params"`
}

// ExecutionConfig mirrors the retry settings in YAML-friendly form.
type ExecutionConfig struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	BackoffBase    Duration `yaml:"backoff_base"`
	BackoffCap     Duration `yaml:"backoff_cap"`
	AttemptTimeout Duration `yaml:"attempt_timeout"`
}

// Build converts to the execution package's config.
func (e ExecutionConfig) Build() execution.Config {
	return execution.Config{
		MaxAttempts:    e.MaxAttempts,
		BackoffBase:    e.BackoffBase.Std(),
		BackoffCap:     e.BackoffCap.Std(),
		AttemptTimeout: e.AttemptTimeout.Std(),
	}
}

type SchedulerConfig struct {
	Interval      Duration      `yaml:"interval"`
	HistoryPoints int           `yaml:"history_points"`
	Session       SessionConfig `yaml:"session"`
}

// SessionConfig bounds trading to UTC hours [StartHour, EndHour). A
// window that wraps midnight (start > end) is allowed.
type SessionConfig struct {
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
}

type JournalConfig struct {
	SQLitePath    string `yaml:"sqlite_path,omitempty"`
	TimescaleDSN  string `yaml:"timescale_dsn,omitempty"`
	CSVBarsFile   string `yaml:"csv_bars_file,omitempty"`
	CSVTradesFile string `yaml:"csv_trades_file,omitempty"`
	CSVEquityFile string `yaml:"csv_equity_file,omitempty"`
}

type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns a paper-trading configuration that runs out of the box.
func Default() *Config {
	return &Config{
		Mode: ModePaper,
		Account: AccountConfig{
			Currency:    "USD",
			StartEquity: 10000,
		},
		Credentials: CredentialConfig{
			APIKeyEnv:     "IG_API_KEY",
			IdentifierEnv: "IG_IDENTIFIER",
			PasswordEnv:   "IG_PASSWORD",
			AccountIDEnv:  "IG_ACCOUNT_ID",
		},
		Instruments: []InstrumentConfig{
			{Symbol: "EURUSD", Epic: "CS.D.EURUSD.MINI.IP", PipSize: 0.0001, PipValue: 10, LotStep: 0.01, StopDistancePips: 10, Timeframe: "M5"},
		},
		Strategy: StrategyConfig{
			Name:   "sma_ema_crossover",
			Params: strategies.DefaultParams(),
		},
		Risk: risk.DefaultPolicy(),
		Execution: ExecutionConfig{
			MaxAttempts:    3,
			BackoffBase:    Duration(time.Second),
			BackoffCap:     Duration(8 * time.Second),
			AttemptTimeout: Duration(10 * time.Second),
		},
		Scheduler: SchedulerConfig{
			Interval:      Duration(time.Minute),
			HistoryPoints: 400,
			Session:       SessionConfig{StartHour: 0, EndHour: 24},
		},
		Journal: JournalConfig{
			SQLitePath: "igfx.db",
		},
		Dashboard: DashboardConfig{Addr: ":8099"},
	}
}

// Load reads the YAML file at path on top of the defaults. A .env file
// next to the process, if present, is folded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks everything that would otherwise surface mid-session.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeDemo, ModeLive, ModePaper:
	default:
		return fmt.Errorf("mode must be demo, live or paper, got %q", c.Mode)
	}
	if c.Account.StartEquity <= 0 {
		return fmt.Errorf("account.start_equity must be positive")
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	for i, inst := range c.Instruments {
		if inst.Symbol == "" || inst.Epic == "" {
			return fmt.Errorf("instruments[%d]: symbol and epic are required", i)
		}
		if inst.PipSize <= 0 || inst.PipValue <= 0 {
			return fmt.Errorf("instruments[%d]: pip_size and pip_value must be positive", i)
		}
		if _, err := market.ParseTimeframe(inst.Timeframe); err != nil {
			return fmt.Errorf("instruments[%d]: %w", i, err)
		}
	}
	if _, err := strategies.Build(c.Strategy.Name, c.Strategy.Params); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if c.Risk.RiskFraction <= 0 || c.Risk.RiskFraction > 1 {
		return fmt.Errorf("risk.risk_fraction must be in (0, 1]")
	}
	if c.Scheduler.Interval.Std() <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if h := c.Scheduler.Session.StartHour; h < 0 || h > 23 {
		return fmt.Errorf("scheduler.session.start_hour must be 0..23")
	}
	if h := c.Scheduler.Session.EndHour; h < 0 || h > 24 {
		return fmt.Errorf("scheduler.session.end_hour must be 0..24")
	}
	if c.Dashboard.Enabled && c.Dashboard.Addr == "" {
		return fmt.Errorf("dashboard.addr is required when the dashboard is enabled")
	}
	return nil
}

// IGCredentials resolves the broker secrets from the environment.
func (c *Config) IGCredentials() (apiKey, identifier, password, accountID string, err error) {
	lookup := func(name string) (string, error) {
		v := os.Getenv(name)
		if v == "" {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return v, nil
	}
	if apiKey, err = lookup(c.Credentials.APIKeyEnv); err != nil {
		return
	}
	if identifier, err = lookup(c.Credentials.IdentifierEnv); err != nil {
		return
	}
	if password, err = lookup(c.Credentials.PasswordEnv); err != nil {
		return
	}
	accountID, err = lookup(c.Credentials.AccountIDEnv)
	return
}

// Metas converts the instrument list into the market package's form.
func (c *Config) Metas() ([]market.InstrumentMeta, error) {
	metas := make([]market.InstrumentMeta, 0, len(c.Instruments))
	for _, inst := range c.Instruments {
		tf, err := market.ParseTimeframe(inst.Timeframe)
		if err != nil {
			return nil, err
		}
		metas = append(metas, market.InstrumentMeta{
			Symbol:           inst.Symbol,
			Epic:             inst.Epic,
			PipSize:          inst.PipSize,
			PipValue:         inst.PipValue,
			LotStep:          inst.LotStep,
			StopDistancePips: inst.StopDistancePips,
			Timeframe:        tf,
		})
	}
	return metas, nil
}

// InSession reports whether the hour of t falls inside the configured
// trading window. Wrapping windows (22 to 6) are supported.
func (s SessionConfig) InSession(t time.Time) bool {
	if s.StartHour == s.EndHour {
		return true
	}
	hour := t.UTC().Hour()
	if s.StartHour < s.EndHour {
		return hour >= s.StartHour && hour < s.EndHour
	}
	return hour >= s.StartHour || hour < s.EndHour
}
