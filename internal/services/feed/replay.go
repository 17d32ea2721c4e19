// Package feed replays historical intraday prices day by day for evaluation sessions.
package feed

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/smabot/internal/domain"
	"github.com/vadiminshakov/smabot/internal/services/market/collector"
)

const day = 24 * time.Hour

// maxCandlesPerRequest is the per-request kline limit shared by Binance and Bybit.
const maxCandlesPerRequest = 1000

// Tick a price observed at a point in time.
type Tick struct {
	Time  time.Time
	Price decimal.Decimal
}

type klineSource interface {
	GetKlines(ctx context.Context, pair domain.Pair, interval string, end time.Time, limit int) ([]domain.MarketCandle, error)
}

// Replay serves the closes of the intraday candles of day i out of days,
// where the last day is the one before anchor.
type Replay struct {
	source   klineSource
	pair     domain.Pair
	interval string
	step     time.Duration
	days     int
	anchor   time.Time
}

// NewReplay builds a replay of the days full days ending before anchor's UTC day.
func NewReplay(source klineSource, pair domain.Pair, interval string, days int, anchor time.Time) (*Replay, error) {
	if source == nil {
		return nil, errors.New("kline source is required")
	}
	if days < 1 {
		return nil, errors.Errorf("days must be positive, got %d", days)
	}

	step, err := collector.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	if step > day {
		return nil, errors.Errorf("interval %s is longer than a day", interval)
	}
	if int(day/step) > maxCandlesPerRequest {
		return nil, errors.Errorf("interval %s yields more than %d candles per day", interval, maxCandlesPerRequest)
	}

	return &Replay{
		source:   source,
		pair:     pair,
		interval: interval,
		step:     step,
		days:     days,
		anchor:   anchor.UTC().Truncate(day),
	}, nil
}

// Days total number of days in the replay.
func (r *Replay) Days() int {
	return r.days
}

// DayStart returns the UTC midnight that opens day i.
func (r *Replay) DayStart(i int) time.Time {
	return r.anchor.Add(-time.Duration(r.days-i) * day)
}

// Prices returns the closes of day i in ascending time order, stamped with the candle close time.
// A day with no candles yields an empty slice.
func (r *Replay) Prices(ctx context.Context, i int) ([]Tick, error) {
	if i < 0 || i >= r.days {
		return nil, errors.Errorf("day %d out of range [0, %d)", i, r.days)
	}

	start := r.DayStart(i)
	end := start.Add(day)
	limit := int(day / r.step)

	candles, err := r.source.GetKlines(ctx, r.pair, r.interval, end.Add(-time.Millisecond), limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load prices for %s", start.Format(time.DateOnly))
	}

	prices := make([]Tick, 0, len(candles))
	for _, c := range candles {
		if c.OpenTime.Before(start) || !c.OpenTime.Before(end) {
			continue
		}
		prices = append(prices, Tick{Time: c.OpenTime.Add(r.step), Price: c.Close})
	}

	return prices, nil
}
