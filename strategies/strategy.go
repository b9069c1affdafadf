// Package strategies turns a price series into a directional trade signal.
// Each variant is stateless across calls: all lookback comes from the
// series itself, which keeps evaluation deterministic and replayable.
package strategies

import (
	"fmt"
	"time"

	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
)

// Direction is the trade intent of a signal.
type Direction int

const (
	Flat Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Signal is the output of one strategy evaluation. It lives for one cycle
// only. StopHint and TargetHint are optional supporting levels; zero means
// the risk manager derives them from instrument defaults.
type Signal struct {
	Symbol     string
	Time       time.Time
	Direction  Direction
	Price      float64 // close of the signal bar
	Strength   float64 // 0..1, optional
	Reason     string
	StopHint   float64
	TargetHint float64
}

func flat(s *market.Series, reason string) Signal {
	sig := Signal{Symbol: s.Symbol, Direction: Flat, Reason: reason}
	if last, ok := s.Last(); ok {
		sig.Time = last.Time
		sig.Price = last.Close
	}
	return sig
}

// Strategy evaluates a series into a signal. A malformed or too-short
// series yields Flat with a diagnostic reason, never an error.
type Strategy interface {
	Name() string
	Evaluate(s *market.Series) Signal
}

// Params carries every variant's tunables; Build picks the relevant ones.
// The zero value of any field falls back to the variant default.
type Params struct {
	Fast int `yaml:"fast"`
	Slow int `yaml:"slow"`

	RSILength     int     `yaml:"rsi_len"`
	RSIOverbought float64 `yaml:"rsi_ob"`
	RSIOversold   float64 `yaml:"rsi_os"`

	Jaw          int       `yaml:"jaw"`
	Teeth        int       `yaml:"teeth"`
	Lips         int       `yaml:"lips"`
	Smooth       int       `yaml:"smooth"`
	ZigzagPct    float64   `yaml:"zigzag_pct"`
	FibLevels    []float64 `yaml:"fib_levels"`
	FibTolerance float64   `yaml:"fib_tolerance"`
}

// DefaultParams returns the tunables the variants fall back to anyway,
// spelled out so a generated config file is self-describing.
func DefaultParams() Params {
	return Params{
		Fast:          50,
		Slow:          200,
		RSILength:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
		Jaw:           13,
		Teeth:         8,
		Lips:          5,
		Smooth:        5,
		ZigzagPct:     2.0,
		FibLevels:     []float64{0.382, 0.5, 0.618},
		FibTolerance:  0.0015,
	}
}

// Build constructs the named strategy variant.
func Build(name string, p Params) (Strategy, error) {
	switch name {
	case "sma_ema_crossover":
		return NewSMAEMACross(p.Fast, p.Slow), nil
	case "rsi_reversal":
		return NewRSIReversal(p.RSILength, p.RSIOverbought, p.RSIOversold), nil
	case "alligator_confluence":
		return NewAlligatorConfluence(p), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
