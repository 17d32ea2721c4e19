package pricer

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/smabot/internal/clients"
	"github.com/vadiminshakov/smabot/internal/domain"
)

type BybitPricer struct {
	client *bybit.Client
}

func NewBybitPricer(client *bybit.Client) *BybitPricer {
	return &BybitPricer{client: client}
}

func (p *BybitPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(pair.Symbol())

	result, err := clients.Call(ctx, func() (*bybit.V5GetTickersResponse, error) {
		return p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   &symbol,
		})
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "failed to fetch %s ticker from Bybit", pair.String())
	}

	return lastSpotPrice(result.Result.Spot, pair)
}

func lastSpotPrice(spot *bybit.V5GetTickersSpotResult, pair domain.Pair) (decimal.Decimal, error) {
	if spot == nil || len(spot.List) == 0 {
		return decimal.Decimal{}, errors.Errorf("bybit API returned empty prices for %s", pair.String())
	}

	price, err := decimal.NewFromString(spot.List[0].LastPrice)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "failed to parse %s price %q", pair.String(), spot.List[0].LastPrice)
	}
	return price, nil
}
