// Package reference computes the moving-average reference values that strategy units trade against.
package reference

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/vadiminshakov/smabot/internal/domain"
	"github.com/vadiminshakov/smabot/pkg/indicators"
	"github.com/vadiminshakov/smabot/pkg/retrier"
)

const day = 24 * time.Hour

var (
	// ErrInsufficientData fewer completed closes than the requested window.
	ErrInsufficientData = errors.New("insufficient close data")
	// ErrInvalidWindow window outside 1..depth.
	ErrInvalidWindow = errors.New("invalid window")
)

type klineSource interface {
	GetKlines(ctx context.Context, pair domain.Pair, interval string, end time.Time, limit int) ([]domain.MarketCandle, error)
}

// KlineProvider serves SMA values over daily closes of the days completed before "today".
// Closes are fetched once per UTC day and shared across windows.
type KlineProvider struct {
	source   klineSource
	pair     domain.Pair
	interval string
	depth    int
	retrier  *retrier.Retrier
	clock    func() time.Time
	l        *zap.Logger

	// guards day and closes; acquired with the caller's context
	sem    *semaphore.Weighted
	day    time.Time
	closes []decimal.Decimal
}

type KlineOption func(*KlineProvider)

// WithClock sets the source of "today". Evaluation replays move it day by day.
func WithClock(clock func() time.Time) KlineOption {
	return func(p *KlineProvider) {
		p.clock = clock
	}
}

// WithRetrier overrides the fetch retry policy.
func WithRetrier(r *retrier.Retrier) KlineOption {
	return func(p *KlineProvider) {
		p.retrier = r
	}
}

// WithInterval overrides the candle interval used for closes, "1d" by default.
func WithInterval(interval string) KlineOption {
	return func(p *KlineProvider) {
		p.interval = interval
	}
}

// NewKlineProvider creates a provider able to serve windows 1..depth.
func NewKlineProvider(l *zap.Logger, source klineSource, pair domain.Pair, depth int, opts ...KlineOption) (*KlineProvider, error) {
	if source == nil {
		return nil, errors.New("kline source is required")
	}
	if depth < 1 {
		return nil, errors.Errorf("depth must be positive, got %d", depth)
	}

	p := &KlineProvider{
		source:   source,
		pair:     pair,
		interval: "1d",
		depth:    depth,
		retrier:  retrier.New(),
		clock:    time.Now,
		l:        l,
		sem:      semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// FetchReference returns the SMA of the last window completed daily closes.
func (p *KlineProvider) FetchReference(ctx context.Context, window int) (decimal.Decimal, error) {
	if window < 1 || window > p.depth {
		return decimal.Decimal{}, errors.Wrapf(ErrInvalidWindow, "window %d, depth %d", window, p.depth)
	}

	closes, err := p.Closes(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(closes) < window {
		return decimal.Decimal{}, errors.Wrapf(ErrInsufficientData, "window %d needs %d closes, have %d", window, window, len(closes))
	}

	return indicators.LatestSMA(closes, window)
}

// Closes returns the cached daily closes for the current day, fetching them on first use.
// Callers waiting behind an in-flight fetch give up when ctx is done, and a fetch
// that completes after ctx is done is neither returned nor cached.
func (p *KlineProvider) Closes(ctx context.Context) ([]decimal.Decimal, error) {
	today := p.clock().UTC().Truncate(day)

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrapf(err, "wait for daily closes of %s", p.pair.String())
	}
	defer p.sem.Release(1)

	if p.closes != nil && p.day.Equal(today) {
		return p.closes, nil
	}

	candles, err := retrier.DoWithData(p.retrier, ctx, func(ctx context.Context) ([]domain.MarketCandle, error) {
		return p.source.GetKlines(ctx, p.pair, p.interval, today.Add(-time.Millisecond), p.depth)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch daily closes for %s", p.pair.String())
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "daily closes for %s arrived after the deadline", p.pair.String())
	}

	completed := make([]domain.MarketCandle, 0, len(candles))
	for _, c := range candles {
		if c.CloseTime.Before(today) {
			completed = append(completed, c)
		}
	}

	p.day = today
	p.closes = domain.Closes(completed)
	p.l.Debug("daily closes loaded",
		zap.String("pair", p.pair.String()),
		zap.Time("day", today),
		zap.Int("closes", len(p.closes)))

	return p.closes, nil
}
