package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/smabot/internal/clients"
	"github.com/vadiminshakov/smabot/internal/domain"
)

var bybitIntervals = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"6h":  "360",
	"12h": "720",
	"1d":  "D",
}

// BybitKlineProvider reads klines from the Bybit V5 market API.
type BybitKlineProvider struct {
	client *bybit.Client
}

// NewBybitKlineProvider creates a new Bybit kline provider.
func NewBybitKlineProvider(client *bybit.Client) *BybitKlineProvider {
	return &BybitKlineProvider{client: client}
}

// BybitInterval maps "5m"/"1h"/"1d" notation to the Bybit interval code.
func BybitInterval(interval string) (bybit.Interval, error) {
	code, ok := bybitIntervals[interval]
	if !ok {
		return "", errors.Errorf("interval %q is not supported by bybit", interval)
	}
	return bybit.Interval(code), nil
}

// GetKlines returns up to limit candles opened at or before end, oldest first.
func (p *BybitKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, end time.Time, limit int) ([]domain.MarketCandle, error) {
	code, err := BybitInterval(interval)
	if err != nil {
		return nil, err
	}
	step, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	endMs := end.UnixMilli()
	resp, err := clients.Call(ctx, func() (*bybit.V5GetKlineResponse, error) {
		return p.client.V5().Market().GetKline(bybit.V5GetKlineParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   bybit.SymbolV5(pair.Symbol()),
			Interval: code,
			End:      &endMs,
			Limit:    &limit,
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", pair.String())
	}

	return convertBybitKlines(resp.Result.List, step)
}

// convertBybitKlines converts the newest-first Bybit list into ascending candles.
func convertBybitKlines(list bybit.V5GetKlineList, step time.Duration) ([]domain.MarketCandle, error) {
	result := make([]domain.MarketCandle, 0, len(list))
	for i, k := range list {
		openTime, err := parseTimestamp(k.StartTime)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time at index %d", i)
		}
		candle, err := parseCandle(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "kline at index %d", i)
		}
		candle.OpenTime = openTime
		candle.CloseTime = candle.OpenTime.Add(step - time.Millisecond)
		result = append(result, candle)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime.Before(result[j].OpenTime)
	})

	return result, nil
}

// parseTimestamp converts Bybit timestamp string (milliseconds) to time.Time.
func parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	var msec int64
	if _, err := fmt.Sscanf(ts, "%d", &msec); err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse timestamp: %s", ts)
	}

	return time.UnixMilli(msec).UTC(), nil
}
