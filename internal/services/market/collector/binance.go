// Package collector fetches candlestick data from exchanges' public market APIs.
package collector

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/smabot/internal/domain"
)

// BinanceKlineProvider reads klines from the Binance spot API.
type BinanceKlineProvider struct {
	client *binance.Client
}

// NewBinanceKlineProvider creates a new Binance kline provider.
func NewBinanceKlineProvider(client *binance.Client) *BinanceKlineProvider {
	return &BinanceKlineProvider{client: client}
}

// GetKlines returns up to limit candles opened at or before end, oldest first.
func (p *BinanceKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, end time.Time, limit int) ([]domain.MarketCandle, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(pair.Symbol()).
		Interval(interval).
		EndTime(end.UnixMilli()).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", pair.String())
	}

	result := make([]domain.MarketCandle, len(klines))
	for i, k := range klines {
		candle, err := parseCandle(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "kline at index %d", i)
		}
		candle.OpenTime = time.UnixMilli(k.OpenTime).UTC()
		candle.CloseTime = time.UnixMilli(k.CloseTime).UTC()
		result[i] = candle
	}

	return result, nil
}

func parseCandle(open, high, low, closeP, volume string) (domain.MarketCandle, error) {
	var (
		c   domain.MarketCandle
		err error
	)
	if c.Open, err = decimal.NewFromString(open); err != nil {
		return c, errors.Wrap(err, "failed to parse open price")
	}
	if c.High, err = decimal.NewFromString(high); err != nil {
		return c, errors.Wrap(err, "failed to parse high price")
	}
	if c.Low, err = decimal.NewFromString(low); err != nil {
		return c, errors.Wrap(err, "failed to parse low price")
	}
	if c.Close, err = decimal.NewFromString(closeP); err != nil {
		return c, errors.Wrap(err, "failed to parse close price")
	}
	if c.Volume, err = decimal.NewFromString(volume); err != nil {
		return c, errors.Wrap(err, "failed to parse volume")
	}
	return c, nil
}
