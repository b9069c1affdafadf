package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/realKyawSwar/igfx-bot-timescale-update/risk"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AccountSource is the read-only view the dashboard needs. The risk
// manager satisfies it.
type AccountSource interface {
	Snapshot() risk.AccountState
	Drawdown() float64
}

type Server struct {
	hub    *Hub
	source AccountSource
	srv    *http.Server
	log    *logrus.Logger
}

func NewServer(addr string, hub *Hub, source AccountSource, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	s := &Server{hub: hub, source: source, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/account", s.handleAccount)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start runs the hub pump and the HTTP listener. Non-blocking.
func (s *Server) Start() {
	go s.hub.Run()
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("dashboard listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("dashboard server stopped")
		}
	}()
}

// Shutdown drains the listener and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.hub.Stop()
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	s.hub.add(conn)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.source.Snapshot()
	out := accountView{
		Equity:           snap.Equity,
		PeakEquity:       snap.PeakEquity,
		DailyRealizedPnL: snap.DailyRealizedPnL,
		TradeCountToday:  snap.TradeCountToday,
		Drawdown:         s.source.Drawdown(),
		Halted:           snap.Halted,
	}
	for _, pos := range snap.Positions {
		out.Positions = append(out.Positions, positionView{
			Symbol:     pos.Symbol,
			Side:       pos.Side,
			Size:       pos.Size,
			EntryPrice: pos.EntryPrice,
			StopLoss:   pos.StopLoss,
			TakeProfit: pos.TakeProfit,
			OpenedAt:   pos.OpenedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.WithError(err).Warn("account encode failed")
	}
}

type accountView struct {
	Equity           float64        `json:"equity"`
	PeakEquity       float64        `json:"peak_equity"`
	DailyRealizedPnL float64        `json:"daily_realized_pnl"`
	TradeCountToday  int            `json:"trade_count_today"`
	Drawdown         float64        `json:"drawdown"`
	Halted           bool           `json:"halted"`
	Positions        []positionView `json:"positions,omitempty"`
}

type positionView struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Size       float64   `json:"size"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	OpenedAt   time.Time `json:"opened_at"`
}
