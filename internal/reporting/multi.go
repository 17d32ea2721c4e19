// Package reporting provides strategy event sinks: console output, structured logs and fan-out.
package reporting

import (
	"go.uber.org/multierr"

	"github.com/vadiminshakov/smabot/internal/domain"
)

// Sink receives trade events and profit reports.
type Sink interface {
	RecordTrade(event domain.TradeEvent) error
	RecordReport(report domain.ProfitReport) error
}

// Multi forwards every record to all sinks, even when some of them fail.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) RecordTrade(event domain.TradeEvent) error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.RecordTrade(event))
	}
	return err
}

func (m *Multi) RecordReport(report domain.ProfitReport) error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.RecordReport(report))
	}
	return err
}
