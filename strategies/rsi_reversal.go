package strategies

import (
	"fmt"

	"github.com/realKyawSwar/igfx-bot-timescale-update/indicators"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
)

// RSIReversal signals once per threshold crossing: long when the RSI
// re-crosses upward out of the oversold zone, short when it re-crosses
// downward out of the overbought zone. Bars where the oscillator merely
// stays beyond a threshold do not fire.
type RSIReversal struct {
	length     int
	overbought float64
	oversold   float64
	name       string
}

func NewRSIReversal(length int, overbought, oversold float64) *RSIReversal {
	if length <= 0 {
		length = 14
	}
	if overbought <= 0 {
		overbought = 70
	}
	if oversold <= 0 {
		oversold = 30
	}
	return &RSIReversal{
		length:     length,
		overbought: overbought,
		oversold:   oversold,
		name:       fmt.Sprintf("RSI_REVERSAL(%d,%g/%g)", length, overbought, oversold),
	}
}

func (r *RSIReversal) Name() string { return r.name }

func (r *RSIReversal) Evaluate(s *market.Series) Signal {
	closes := s.Closes()
	need := r.length + 2 // previous-bar RSI needs one extra observation
	if len(closes) < need {
		return flat(s, fmt.Sprintf("need %d bars for %s, got %d", need, r.name, len(closes)))
	}

	now, err := indicators.RSI(closes, r.length)
	if err != nil {
		return flat(s, err.Error())
	}
	prev, err := indicators.RSI(closes[:len(closes)-1], r.length)
	if err != nil {
		return flat(s, err.Error())
	}

	last, _ := s.Last()
	sig := Signal{Symbol: s.Symbol, Time: last.Time, Price: last.Close}

	switch {
	case prev < r.oversold && now >= r.oversold:
		sig.Direction = Long
		sig.Reason = fmt.Sprintf("RSI re-crossed above oversold (%.1f -> %.1f)", prev, now)
	case prev > r.overbought && now <= r.overbought:
		sig.Direction = Short
		sig.Reason = fmt.Sprintf("RSI re-crossed below overbought (%.1f -> %.1f)", prev, now)
	default:
		sig.Direction = Flat
		sig.Reason = fmt.Sprintf("RSI %.1f, no threshold re-cross", now)
	}
	return sig
}
