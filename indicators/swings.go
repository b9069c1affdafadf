package indicators

import "math"

// Pivot marks a confirmed swing point: the bar where price had retraced
// more than the reversal threshold from the running extreme.
type Pivot struct {
	Index int
	Price float64
}

// Swings runs a percentage-threshold zigzag over the values. A pivot is
// confirmed when price moves reversalPct percent against the prior
// direction; until then the swing is still extending and nothing is
// emitted for it.
func Swings(values []float64, reversalPct float64) []Pivot {
	if len(values) < 3 || reversalPct <= 0 {
		return nil
	}

	var pivots []Pivot
	lastPivotPrice := values[0]
	// lastDir: +1 looking for a swing high, -1 looking for a swing low,
	// 0 undecided.
	lastDir := 0

	for i := 1; i < len(values); i++ {
		change := (values[i] - lastPivotPrice) / lastPivotPrice * 100.0
		switch {
		case lastDir >= 0 && change >= reversalPct:
			pivots = append(pivots, Pivot{Index: i, Price: values[i]})
			lastPivotPrice = values[i]
			lastDir = -1
		case lastDir <= 0 && change <= -reversalPct:
			pivots = append(pivots, Pivot{Index: i, Price: values[i]})
			lastPivotPrice = values[i]
			lastDir = 1
		}
	}
	return pivots
}

// SwingRange returns the high and low of the values between two pivot
// indexes, inclusive.
func SwingRange(values []float64, from, to int) (high, low float64) {
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := from; i <= to && i < len(values); i++ {
		if values[i] > high {
			high = values[i]
		}
		if values[i] < low {
			low = values[i]
		}
	}
	return high, low
}

// Retracements builds the retracement price grid for a swing.
// fromHigh=true gives pullback levels below the swing high (long setups);
// fromHigh=false gives bounce levels above the swing low (short setups).
func Retracements(swingHigh, swingLow float64, levels []float64, fromHigh bool) []float64 {
	diff := swingHigh - swingLow
	out := make([]float64, len(levels))
	for i, lvl := range levels {
		if fromHigh {
			out[i] = swingHigh - lvl*diff
		} else {
			out[i] = swingLow + lvl*diff
		}
	}
	return out
}

// NearLevel reports whether price is within tolerance (relative to price)
// of any of the given levels.
func NearLevel(price float64, levels []float64, tolerance float64) bool {
	if price == 0 {
		return false
	}
	for _, lvl := range levels {
		if math.Abs(price-lvl)/price <= tolerance {
			return true
		}
	}
	return false
}
