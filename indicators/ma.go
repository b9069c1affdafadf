// Package indicators provides the pure numeric transforms the strategies
// are built from. Every function takes a fixed lookback and returns
// ErrInsufficientData when the input is shorter than it, never a
// fabricated value.
package indicators

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when a series is shorter than the
// indicator lookback. Strategies treat it as "no signal", not a failure.
var ErrInsufficientData = errors.New("insufficient data")

func insufficient(need, got int) error {
	return fmt.Errorf("%w: need %d values, got %d", ErrInsufficientData, need, got)
}

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(values) < period {
		return 0, insufficient(period, len(values))
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// EMA returns the exponential moving average over the whole series.
//
// Seed convention: the first period values are averaged (SMA seed) and
// smoothing starts from value period. The same convention is used
// everywhere in this repo; mixing seeds changes signal timing on short
// histories.
func EMA(values []float64, period int) (float64, error) {
	s, err := emaSeries(values, period)
	if err != nil {
		return 0, err
	}
	return s[len(s)-1], nil
}

// emaSeries computes the EMA at every bar from the seed onward. Entries
// before the seed repeat the seed value so the slice aligns with the input.
func emaSeries(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(values) < period {
		return nil, insufficient(period, len(values))
	}

	out := make([]float64, len(values))
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	for i := 0; i < period; i++ {
		out[i] = seed
	}

	k := 2.0 / float64(period+1)
	ema := seed
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*k + ema
		out[i] = ema
	}
	return out, nil
}

// SMMA returns a smoothed moving average built from repeated EMA passes,
// the convention used by the Alligator lines. passes <= 1 degenerates to a
// single EMA.
func SMMA(values []float64, period, passes int) (float64, error) {
	s, err := SMMASeries(values, period, passes)
	if err != nil {
		return 0, err
	}
	return s[len(s)-1], nil
}

// SMMASeries is the bar-aligned form of SMMA.
func SMMASeries(values []float64, period, passes int) ([]float64, error) {
	out, err := emaSeries(values, period)
	if err != nil {
		return nil, err
	}
	for i := 1; i < passes; i++ {
		out, err = emaSeries(out, period)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
