package internal

import (
	"context"
	"fmt"
	"time"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/smabot/internal/domain"
	"github.com/vadiminshakov/smabot/internal/services/market/collector"
	"github.com/vadiminshakov/smabot/internal/services/pricer"
)

// Pricer reads the latest price of a pair.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// KlineProvider reads candles opened at or before end, oldest first.
type KlineProvider interface {
	GetKlines(ctx context.Context, pair domain.Pair, interval string, end time.Time, limit int) ([]domain.MarketCandle, error)
}

// ServiceProvider creates platform-specific market data services.
type ServiceProvider interface {
	Pricer() Pricer
	KlineProvider() KlineProvider
}

// NewServiceProvider dispatches on the concrete exchange client type.
func NewServiceProvider(client any) (ServiceProvider, error) {
	switch c := client.(type) {
	case *binance.Client:
		return &binanceProvider{client: c}, nil
	case *bybit.Client:
		return &bybitProvider{client: c}, nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

type binanceProvider struct {
	client *binance.Client
}

func (p *binanceProvider) Pricer() Pricer {
	return pricer.NewBinancePricer(p.client)
}

func (p *binanceProvider) KlineProvider() KlineProvider {
	return collector.NewBinanceKlineProvider(p.client)
}

type bybitProvider struct {
	client *bybit.Client
}

func (p *bybitProvider) Pricer() Pricer {
	return pricer.NewBybitPricer(p.client)
}

func (p *bybitProvider) KlineProvider() KlineProvider {
	return collector.NewBybitKlineProvider(p.client)
}
