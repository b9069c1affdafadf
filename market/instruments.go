package market

import "fmt"

// Timeframe identifies the candle interval for a series.
type Timeframe string

const (
	M1  Timeframe = "1min"
	M5  Timeframe = "5min"
	M15 Timeframe = "15min"
	H1  Timeframe = "1h"
	D1  Timeframe = "1d"
)

// ParseTimeframe accepts both the wire form ("5min") and the short form
// ("M5") used in config files.
func ParseTimeframe(s string) (Timeframe, error) {
	switch s {
	case "1min", "M1":
		return M1, nil
	case "5min", "M5", "":
		return M5, nil
	case "15min", "M15":
		return M15, nil
	case "1h", "H1":
		return H1, nil
	case "1d", "D1":
		return D1, nil
	default:
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
}

// IGResolution maps a timeframe to the IG history API resolution name.
func (tf Timeframe) IGResolution() string {
	switch tf {
	case M1:
		return "MINUTE"
	case M5:
		return "MINUTE_5"
	case M15:
		return "MINUTE_15"
	case H1:
		return "HOUR"
	case D1:
		return "DAY"
	default:
		return "MINUTE_5"
	}
}

// InstrumentMeta describes how a tradeable instrument is quoted and sized.
// PipValue is the account-currency value of one pip per lot.
type InstrumentMeta struct {
	Symbol           string
	Epic             string
	PipSize          float64
	PipValue         float64
	LotStep          float64
	StopDistancePips float64
	Timeframe        Timeframe
}

// Instruments holds defaults for common FX pairs; configured instruments
// override these.
var Instruments = map[string]InstrumentMeta{
	"EURUSD": {
		Symbol:           "EURUSD",
		Epic:             "CS.D.EURUSD.MINI.IP",
		PipSize:          0.0001,
		PipValue:         10,
		LotStep:          0.01,
		StopDistancePips: 10,
		Timeframe:        M5,
	},
	"GBPUSD": {
		Symbol:           "GBPUSD",
		Epic:             "CS.D.GBPUSD.MINI.IP",
		PipSize:          0.0001,
		PipValue:         10,
		LotStep:          0.01,
		StopDistancePips: 10,
		Timeframe:        M5,
	},
	"USDJPY": {
		Symbol:           "USDJPY",
		Epic:             "CS.D.USDJPY.MINI.IP",
		PipSize:          0.01,
		PipValue:         10,
		LotStep:          0.01,
		StopDistancePips: 10,
		Timeframe:        M5,
	},
}
