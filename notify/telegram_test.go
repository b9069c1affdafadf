package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// botServer fakes the two Bot API routes the notifier uses. getUpdates
// honors the offset parameter the way Telegram does: updates below the
// offset are considered acknowledged and are not served again.
type botServer struct {
	srv *httptest.Server

	mu      sync.Mutex
	updates []map[string]any
	sent    []string
}

func newBotServer(t *testing.T, updates []map[string]any) *botServer {
	t.Helper()
	b := &botServer{updates: updates}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var msg struct {
				Text string `json:"text"`
			}
			json.NewDecoder(r.Body).Decode(&msg)
			b.mu.Lock()
			b.sent = append(b.sent, msg.Text)
			b.mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			offset, _ := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)
			b.mu.Lock()
			var result []map[string]any
			for _, u := range b.updates {
				if id, ok := u["update_id"].(int); ok && int64(id) >= offset {
					result = append(result, u)
				}
			}
			b.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
		default:
			t.Errorf("unexpected bot API call: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *botServer) sentContaining(substr string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sent {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func update(id int, text string) map[string]any {
	return map[string]any{"update_id": id, "message": map[string]any{"text": text}}
}

func testTelegram(t *testing.T, bot *botServer, timeout time.Duration) *Telegram {
	t.Helper()
	tg := NewTelegram(TelegramConfig{
		BotToken:            "token",
		ChatID:              "42",
		RequireConfirmation: true,
		ConfirmationTimeout: timeout,
		PollInterval:        2 * time.Millisecond,
	}, nil)
	tg.baseURL = bot.srv.URL
	return tg
}

func TestTradeAlertApprovedByReply(t *testing.T) {
	t.Parallel()

	bot := newBotServer(t, []map[string]any{update(1, "yes eurusd")})
	tg := testTelegram(t, bot, time.Second)

	ok := tg.TradeAlert(context.Background(), "EURUSD", "BUY", 1.1000, 1.0950, 1.1100, 0.5)
	assert.True(t, ok)
	assert.True(t, bot.sentContaining("EURUSD"))
	assert.False(t, bot.sentContaining("timed out"))
}

func TestTradeAlertDeclinedByReply(t *testing.T) {
	t.Parallel()

	bot := newBotServer(t, []map[string]any{update(1, "no eurusd")})
	tg := testTelegram(t, bot, time.Second)

	ok := tg.TradeAlert(context.Background(), "EURUSD", "BUY", 1.1000, 1.0950, 1.1100, 0.5)
	assert.False(t, ok)
	assert.False(t, bot.sentContaining("timed out"))
}

func TestTradeAlertTimesOutWithoutReply(t *testing.T) {
	t.Parallel()

	bot := newBotServer(t, nil)
	tg := testTelegram(t, bot, 30*time.Millisecond)

	ok := tg.TradeAlert(context.Background(), "EURUSD", "BUY", 1.1000, 1.0950, 1.1100, 0.5)
	assert.False(t, ok)
	assert.True(t, bot.sentContaining("timed out"))
}

// Two symbols await confirmation at once. Whichever cycle fetches the
// batch first must not swallow the other symbol's reply: each decision
// has to reach the cycle it is addressed to.
func TestConcurrentConfirmationsRouteBySymbol(t *testing.T) {
	t.Parallel()

	bot := newBotServer(t, []map[string]any{
		update(1, "yes eurusd"),
		update(2, "no gbpusd"),
	})
	tg := testTelegram(t, bot, time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make(map[string]bool, 2)
	for _, sym := range []string{"EURUSD", "GBPUSD"} {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			ok := tg.TradeAlert(context.Background(), sym, "BUY", 1.1, 1.09, 1.12, 0.5)
			mu.Lock()
			results[sym] = ok
			mu.Unlock()
		}(sym)
	}
	wg.Wait()

	require.Len(t, results, 2)
	assert.True(t, results["EURUSD"])
	assert.False(t, results["GBPUSD"])
	assert.False(t, bot.sentContaining("timed out"))
}

func TestParseDecision(t *testing.T) {
	cases := []struct {
		text     string
		approved bool
		ok       bool
	}{
		{"yes", true, true},
		{"y", true, true},
		{"no", false, true},
		{"n", false, true},
		{"maybe", false, false},
		{"yes eurusd", true, true},
		{"YES EURUSD", true, true},
		{"no eurusd", false, true},
		{"long eurusd", true, true},
		{"short eurusd", false, true},
		{"yes gbpusd", false, false}, // wrong symbol is not a decision
		{"", false, false},
		{"   ", false, false},
	}

	for _, c := range cases {
		approved, ok := parseDecision(c.text, "eurusd")
		assert.Equal(t, c.ok, ok, "text=%q", c.text)
		if c.ok {
			assert.Equal(t, c.approved, approved, "text=%q", c.text)
		}
	}
}
