package reporting

import (
	"go.uber.org/zap"

	"github.com/vadiminshakov/smabot/internal/domain"
)

// Log writes records as structured log lines.
type Log struct {
	l *zap.Logger
}

func NewLog(l *zap.Logger) *Log {
	return &Log{l: l}
}

func (s *Log) RecordTrade(event domain.TradeEvent) error {
	fields := []zap.Field{
		zap.String("unit", event.UnitID),
		zap.Int("window", event.Window),
		zap.String("kind", event.Kind.String()),
		zap.String("price", event.Price.String()),
		zap.String("reference", event.Reference.String()),
		zap.Time("ts", event.Time),
	}
	if event.ProfitDelta != nil {
		fields = append(fields, zap.String("profit", event.ProfitDelta.String()))
	}

	s.l.Info("trade", fields...)
	return nil
}

func (s *Log) RecordReport(report domain.ProfitReport) error {
	s.l.Info("profit report",
		zap.String("unit", report.UnitID),
		zap.Int("window", report.Window),
		zap.String("profit", report.Profit.String()),
		zap.Time("ts", report.Time))
	return nil
}
