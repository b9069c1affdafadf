// Package notify pushes trade alerts to a Telegram chat and can hold an
// order until a human replies "yes" or "no".
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const telegramAPI = "https://api.telegram.org/bot"

type TelegramConfig struct {
	BotToken            string
	ChatID              string
	RequireConfirmation bool
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
}

// Telegram sends messages through the Bot API. Send failures are logged
// and swallowed: a broken notifier must never block a trading cycle.
// Safe for concurrent use; cycles for different symbols may await
// confirmation at the same time.
type Telegram struct {
	client       *http.Client
	baseURL      string
	chatID       string
	confirm      bool
	confirmAfter time.Duration
	pollEvery    time.Duration
	log          *logrus.Logger

	mu           sync.Mutex
	lastUpdateID int64
	pending      []string // decision replies fetched but not yet claimed
}

func NewTelegram(cfg TelegramConfig, log *logrus.Logger) *Telegram {
	if log == nil {
		log = logrus.New()
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = 45 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Telegram{
		client:       &http.Client{Timeout: 10 * time.Second},
		baseURL:      telegramAPI + cfg.BotToken,
		chatID:       cfg.ChatID,
		confirm:      cfg.RequireConfirmation,
		confirmAfter: cfg.ConfirmationTimeout,
		pollEvery:    cfg.PollInterval,
		log:          log,
	}
}

// SendMessage posts plain text to the configured chat.
func (t *Telegram) SendMessage(ctx context.Context, text string) {
	payload, _ := json.Marshal(map[string]string{"chat_id": t.chatID, "text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		t.log.WithError(err).Warn("telegram send failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		t.log.WithError(err).Warn("telegram send failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		t.log.WithField("status", resp.StatusCode).Warn("telegram send rejected")
	}
}

// TradeAlert announces a trade setup. With confirmation enabled it blocks
// until the chat replies "yes <symbol>" / "no <symbol>", or the window
// closes; the answer decides whether the order goes out.
func (t *Telegram) TradeAlert(ctx context.Context, symbol, direction string, price, stop, target, size float64) bool {
	summary := strings.Join([]string{
		"Trade setup detected",
		"Symbol: " + symbol,
		"Direction: " + direction,
		fmt.Sprintf("Entry: %.5f", price),
		fmt.Sprintf("Stop Loss: %.5f", stop),
		fmt.Sprintf("Take Profit: %.5f", target),
		fmt.Sprintf("Size: %g", size),
	}, "\n")

	if !t.confirm {
		t.SendMessage(ctx, summary+"\n\nAuto-trading enabled, executing without confirmation.")
		return true
	}

	t.SendMessage(ctx, fmt.Sprintf("%s\n\nReply 'yes %s' to approve or 'no %s' to cancel within %s.",
		summary, strings.ToUpper(symbol), strings.ToUpper(symbol), t.confirmAfter))
	return t.awaitConfirmation(ctx, symbol)
}

// ExecutionNotice reports a fill after the fact.
func (t *Telegram) ExecutionNotice(ctx context.Context, symbol, direction string, price, size float64, dealRef string) {
	parts := []string{
		"Trade executed",
		"Symbol: " + symbol,
		"Direction: " + direction,
		fmt.Sprintf("Fill: %.5f", price),
		fmt.Sprintf("Size: %g", size),
	}
	if dealRef != "" {
		parts = append(parts, "Deal ref: "+dealRef)
	}
	t.SendMessage(ctx, strings.Join(parts, "\n"))
}

func (t *Telegram) awaitConfirmation(ctx context.Context, symbol string) bool {
	deadline := time.NewTimer(t.confirmAfter)
	defer deadline.Stop()
	tick := time.NewTicker(t.pollEvery)
	defer tick.Stop()

	token := strings.ToLower(symbol)
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			t.SendMessage(ctx, "Trade request for "+symbol+" timed out.")
			return false
		case <-tick.C:
			if decision, ok := t.pollDecision(ctx, token); ok {
				return decision
			}
		}
	}
}

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
	} `json:"message"`
	EditedMessage *struct {
		Text string `json:"text"`
	} `json:"edited_message"`
}

// pollDecision looks for a reply addressed to the symbol. The lock covers
// both the update offset and the pending queue: concurrent symbol cycles
// share one getUpdates cursor, and a reply fetched by one cycle but
// addressed to another stays queued until its own cycle claims it.
func (t *Telegram) pollDecision(ctx context.Context, symbolToken string) (bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if decision, ok := t.claimPending(symbolToken); ok {
		return decision, true
	}

	url := t.baseURL + "/getUpdates"
	if t.lastUpdateID != 0 {
		url = fmt.Sprintf("%s?offset=%d", url, t.lastUpdateID+1)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		t.log.WithError(err).Warn("telegram getUpdates failed")
		return false, false
	}
	defer resp.Body.Close()

	var payload struct {
		Result []telegramUpdate `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.log.WithError(err).Warn("telegram getUpdates decode failed")
		return false, false
	}

	for _, u := range payload.Result {
		if u.UpdateID > t.lastUpdateID {
			t.lastUpdateID = u.UpdateID
		}
		msg := u.Message
		if msg == nil {
			msg = u.EditedMessage
		}
		if msg == nil || !looksLikeDecision(msg.Text) {
			continue
		}
		t.pending = append(t.pending, msg.Text)
	}
	if len(t.pending) > maxPendingReplies {
		t.pending = t.pending[len(t.pending)-maxPendingReplies:]
	}

	return t.claimPending(symbolToken)
}

// maxPendingReplies bounds the queue against stale unclaimed replies.
const maxPendingReplies = 16

// claimPending consumes the first queued reply that decides this symbol.
func (t *Telegram) claimPending(symbolToken string) (bool, bool) {
	for i, text := range t.pending {
		if decision, ok := parseDecision(text, symbolToken); ok {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return decision, true
		}
	}
	return false, false
}

// looksLikeDecision filters chat noise out of the pending queue.
func looksLikeDecision(text string) bool {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(tokens) == 0 {
		return false
	}
	switch tokens[0] {
	case "yes", "y", "buy", "long", "+", "no", "n", "sell", "short", "-":
		return true
	}
	return false
}

// parseDecision understands "yes", "no", and "yes eurusd" style replies.
func parseDecision(text, symbolToken string) (bool, bool) {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(tokens) == 0 {
		return false, false
	}

	if len(tokens) == 1 {
		switch tokens[0] {
		case "yes", "y":
			return true, true
		case "no", "n":
			return false, true
		}
		return false, false
	}

	if tokens[1] != symbolToken {
		return false, false
	}
	switch tokens[0] {
	case "yes", "y", "buy", "long", "+":
		return true, true
	case "no", "n", "sell", "short", "-":
		return false, true
	}
	return false, false
}
