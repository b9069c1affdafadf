package strategies

import (
	"fmt"

	"github.com/realKyawSwar/igfx-bot-timescale-update/indicators"
	"github.com/realKyawSwar/igfx-bot-timescale-update/market"
)

// AlligatorConfluence fires only when three independent reads agree on a
// direction:
//
//  1. trend — the three smoothed lines are ordered lips/teeth/jaw with the
//     lips sloping the same way,
//  2. structure — the last confirmed zigzag swing points the same way,
//  3. level — the current price sits within a tolerance band of a
//     retracement of that swing.
//
// Anything short of full agreement, or a series too short for any
// constituent, yields Flat with the blocking reason.
type AlligatorConfluence struct {
	jaw, teeth, lips int
	smooth           int
	zigzagPct        float64
	fibLevels        []float64
	tolerance        float64
	name             string
}

func NewAlligatorConfluence(p Params) *AlligatorConfluence {
	a := &AlligatorConfluence{
		jaw:       p.Jaw,
		teeth:     p.Teeth,
		lips:      p.Lips,
		smooth:    p.Smooth,
		zigzagPct: p.ZigzagPct,
		fibLevels: p.FibLevels,
		tolerance: p.FibTolerance,
	}
	if a.jaw <= 0 {
		a.jaw = 13
	}
	if a.teeth <= 0 {
		a.teeth = 8
	}
	if a.lips <= 0 {
		a.lips = 5
	}
	if a.smooth <= 0 {
		a.smooth = 5
	}
	if a.zigzagPct <= 0 {
		a.zigzagPct = 2.0
	}
	if len(a.fibLevels) == 0 {
		a.fibLevels = []float64{0.382, 0.5, 0.618}
	}
	if a.tolerance <= 0 {
		a.tolerance = 0.0015
	}
	a.name = fmt.Sprintf("ALLIGATOR_CONFLUENCE(%d,%d,%d)", a.jaw, a.teeth, a.lips)
	return a
}

func (a *AlligatorConfluence) Name() string { return a.name }

// minBars is the warmup for the longest smoothed line plus room for swing
// structure to form.
func (a *AlligatorConfluence) minBars() int {
	longest := a.jaw
	if a.teeth > longest {
		longest = a.teeth
	}
	if a.lips > longest {
		longest = a.lips
	}
	return longest + 30
}

func (a *AlligatorConfluence) Evaluate(s *market.Series) Signal {
	closes := s.Closes()
	if len(closes) < a.minBars() {
		return flat(s, fmt.Sprintf("need %d bars for %s, got %d", a.minBars(), a.name, len(closes)))
	}

	jaw, err := indicators.SMMASeries(closes, a.jaw, a.smooth)
	if err != nil {
		return flat(s, err.Error())
	}
	teeth, err := indicators.SMMASeries(closes, a.teeth, a.smooth)
	if err != nil {
		return flat(s, err.Error())
	}
	lips, err := indicators.SMMASeries(closes, a.lips, a.smooth)
	if err != nil {
		return flat(s, err.Error())
	}

	n := len(closes) - 1
	up := lips[n] > teeth[n] && teeth[n] > jaw[n] && lips[n] > lips[n-1]
	down := lips[n] < teeth[n] && teeth[n] < jaw[n] && lips[n] < lips[n-1]
	if !up && !down {
		return flat(s, "smoothed lines not aligned")
	}

	pivots := indicators.Swings(closes, a.zigzagPct)
	if len(pivots) < 2 {
		return flat(s, "no confirmed swing pair")
	}
	last := pivots[len(pivots)-1]
	prev := pivots[len(pivots)-2]
	swingHigh, swingLow := indicators.SwingRange(closes, prev.Index, last.Index)
	if swingHigh <= swingLow {
		return flat(s, "degenerate swing range")
	}
	swingUp := closes[last.Index] > closes[prev.Index]

	price := closes[n]
	lastBar, _ := s.Last()
	sig := Signal{Symbol: s.Symbol, Time: lastBar.Time, Price: price, Strength: 1}

	if up && swingUp {
		levels := indicators.Retracements(swingHigh, swingLow, a.fibLevels, true)
		if indicators.NearLevel(price, levels, a.tolerance) {
			sig.Direction = Long
			sig.Reason = "uptrend + upswing + price at retracement"
			sig.StopHint = swingLow
			return sig
		}
		return flat(s, "price not at a retracement level")
	}
	if down && !swingUp {
		levels := indicators.Retracements(swingHigh, swingLow, a.fibLevels, false)
		if indicators.NearLevel(price, levels, a.tolerance) {
			sig.Direction = Short
			sig.Reason = "downtrend + downswing + price at retracement"
			sig.StopHint = swingHigh
			return sig
		}
		return flat(s, "price not at a retracement level")
	}
	return flat(s, "trend and swing disagree")
}
