package strategies

import (
	"fmt"

	"github.com/realKyawSwar/igfx-bot-timescale-update/indicators"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
)

// SMAEMACross signals on the bar where SMA(fast) crosses EMA(slow).
// Equal values do not count as a cross: the previous bar must be strictly
// on the other side, so a persisting cross never re-fires.
type SMAEMACross struct {
	fast int
	slow int
	name string
}

func NewSMAEMACross(fast, slow int) *SMAEMACross {
	if fast <= 0 {
		fast = 50
	}
	if slow <= 0 {
		slow = 200
	}
	return &SMAEMACross{
		fast: fast,
		slow: slow,
		name: fmt.Sprintf("SMA_EMA_CROSS(%d,%d)", fast, slow),
	}
}

func (x *SMAEMACross) Name() string { return x.name }

func (x *SMAEMACross) Evaluate(s *market.Series) Signal {
	need := x.slow
	if x.fast > need {
		need = x.fast
	}
	need += 2 // cross detection compares the last two bars
	closes := s.Closes()
	if len(closes) < need {
		return flat(s, fmt.Sprintf("need %d bars for %s, got %d", need, x.name, len(closes)))
	}

	prev := closes[:len(closes)-1]
	smaNow, err := indicators.SMA(closes, x.fast)
	if err != nil {
		return flat(s, err.Error())
	}
	smaPrev, _ := indicators.SMA(prev, x.fast)
	emaNow, err := indicators.EMA(closes, x.slow)
	if err != nil {
		return flat(s, err.Error())
	}
	emaPrev, _ := indicators.EMA(prev, x.slow)

	last, _ := s.Last()
	sig := Signal{Symbol: s.Symbol, Time: last.Time, Price: last.Close}

	switch {
	case smaPrev < emaPrev && smaNow > emaNow:
		sig.Direction = Long
		sig.Reason = "fast SMA crossed above slow EMA"
	case smaPrev > emaPrev && smaNow < emaNow:
		sig.Direction = Short
		sig.Reason = "fast SMA crossed below slow EMA"
	default:
		sig.Direction = Flat
		sig.Reason = "no cross"
	}
	return sig
}
