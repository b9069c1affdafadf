package journal

import "errors"

// Multi fans every record out to all sinks. A failing sink does not stop
// the others; errors are joined and returned.
type Multi struct {
	sinks []Journal
}

func NewMulti(sinks ...Journal) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) RecordBar(b BarRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordBar(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) RecordTrade(t TradeRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordTrade(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) RecordEquity(e EquitySnapshot) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordEquity(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
