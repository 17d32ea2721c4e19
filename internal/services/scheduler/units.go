// Package scheduler drives a set of SMA strategy units through trading days,
// either replaying history or polling live prices.
package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/smabot/internal/domain"
	"github.com/vadiminshakov/smabot/internal/reporting"
	"github.com/vadiminshakov/smabot/internal/services/strategy/sma"
)

const (
	defaultRefreshTimeout = 30 * time.Second
	defaultConcurrency    = 8
)

// Fetcher provides the reference value of a window.
type Fetcher interface {
	FetchReference(ctx context.Context, window int) (decimal.Decimal, error)
}

// Totals provides previously reported profit per window.
type Totals interface {
	Total(window int) decimal.Decimal
}

// UnitsConfig describes the set of windows to trade.
type UnitsConfig struct {
	MinWindow      int
	MaxWindow      int
	Step           int
	Policy         domain.Policy
	RefreshTimeout time.Duration
	Concurrency    int
}

// Windows returns MinWindow..MaxWindow stepping by Step.
func (c UnitsConfig) Windows() []int {
	step := c.Step
	if step < 1 {
		step = 1
	}
	var windows []int
	for w := c.MinWindow; w <= c.MaxWindow; w += step {
		windows = append(windows, w)
	}
	return windows
}

// Units is the collection of strategy units of one session.
// Units are not safe for concurrent use; Refresh parallelizes internally.
type Units struct {
	l              *zap.Logger
	units          []*sma.Unit
	active         []bool
	refreshTimeout time.Duration
	concurrency    int
}

// NewUnits builds one unit per window. totals may be nil for a fresh session.
func NewUnits(l *zap.Logger, cfg UnitsConfig, fetcher Fetcher, sink reporting.Sink, totals Totals, clock func() time.Time) (*Units, error) {
	windows := cfg.Windows()
	if len(windows) == 0 {
		return nil, errors.Errorf("no windows in range [%d, %d]", cfg.MinWindow, cfg.MaxWindow)
	}

	us := &Units{
		l:              l,
		units:          make([]*sma.Unit, 0, len(windows)),
		active:         make([]bool, len(windows)),
		refreshTimeout: cfg.RefreshTimeout,
		concurrency:    cfg.Concurrency,
	}
	if us.refreshTimeout <= 0 {
		us.refreshTimeout = defaultRefreshTimeout
	}
	if us.concurrency <= 0 {
		us.concurrency = defaultConcurrency
	}

	for _, w := range windows {
		opts := []sma.Option{sma.WithPolicy(cfg.Policy)}
		if totals != nil {
			opts = append(opts, sma.WithProfit(totals.Total(w)))
		}
		if clock != nil {
			opts = append(opts, sma.WithClock(clock))
		}

		u, err := sma.NewUnit(l, w, fetcher, sink, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "create unit for window %d", w)
		}
		us.units = append(us.units, u)
	}

	return us, nil
}

// Len number of units.
func (us *Units) Len() int {
	return len(us.units)
}

// Refresh refreshes every unit's reference concurrently. Units whose refresh
// fails are inactive until the next successful refresh. The returned error
// combines all refresh failures.
func (us *Units) Refresh(ctx context.Context) error {
	errs := make([]error, len(us.units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(us.concurrency)
	for i, u := range us.units {
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(gctx, us.refreshTimeout)
			defer cancel()

			errs[i] = u.RefreshReference(rctx)
			us.active[i] = errs[i] == nil
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for i, err := range errs {
		if err != nil {
			failed++
			us.l.Warn("reference refresh failed, unit sits out the day",
				zap.String("unit", us.units[i].ID()),
				zap.Int("window", us.units[i].Window()),
				zap.Error(err))
		}
	}
	if failed > 0 {
		us.l.Warn("reference refresh incomplete", zap.Int("failed", failed), zap.Int("units", len(us.units)))
	}

	return multierr.Combine(errs...)
}

// Active number of units that will trade on the next ticks.
func (us *Units) Active() int {
	var n int
	for _, a := range us.active {
		if a {
			n++
		}
	}
	return n
}

// AdvanceCooldown advances the cooldown of every unit by one day.
func (us *Units) AdvanceCooldown() {
	for _, u := range us.units {
		u.AdvanceCooldown()
	}
}

// Evaluate feeds price to every active unit and returns the produced events.
func (us *Units) Evaluate(price decimal.Decimal) []domain.TradeEvent {
	var events []domain.TradeEvent
	for i, u := range us.units {
		if !us.active[i] {
			continue
		}

		event, err := u.Evaluate(price)
		if err != nil {
			us.l.Error("evaluate failed",
				zap.String("unit", u.ID()),
				zap.Int("window", u.Window()),
				zap.String("price", price.String()),
				zap.Error(err))
		}
		if event != nil {
			events = append(events, *event)
		}
	}
	return events
}

// Report pushes the profit snapshot of every unit to the sink.
func (us *Units) Report() error {
	var errs error
	for _, u := range us.units {
		if _, err := u.Report(); err != nil {
			us.l.Error("report failed", zap.String("unit", u.ID()), zap.Int("window", u.Window()), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Snapshots returns the state of every unit, ordered by window.
func (us *Units) Snapshots() []sma.State {
	states := make([]sma.State, len(us.units))
	for i, u := range us.units {
		states[i] = u.Snapshot()
	}
	return states
}
