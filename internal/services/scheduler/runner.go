package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/smabot/internal/domain"
)

type priceSource interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// Runner trades live prices polled at a fixed interval.
type Runner struct {
	l        *zap.Logger
	units    *Units
	pricer   priceSource
	pair     domain.Pair
	poll     time.Duration
	days     int
	progress progress
	clock    func() time.Time
}

// NewRunner creates a live runner that stops after days completed trading days.
func NewRunner(l *zap.Logger, units *Units, pricer priceSource, pair domain.Pair, poll time.Duration, days int, p progress, clock func() time.Time) (*Runner, error) {
	if poll <= 0 {
		return nil, errors.Errorf("poll interval must be positive, got %s", poll)
	}
	if clock == nil {
		clock = time.Now
	}

	return &Runner{
		l:        l,
		units:    units,
		pricer:   pricer,
		pair:     pair,
		poll:     poll,
		days:     days,
		progress: p,
		clock:    clock,
	}, nil
}

// Run trades until the configured number of days is complete or ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if r.progress.NextDay() >= r.days {
		r.l.Info("run already complete", zap.Int("days", r.days))
		return nil
	}

	day := r.clock().UTC().Truncate(24 * time.Hour)
	if err := r.progress.BeginDay(r.progress.NextDay()); err != nil {
		return errors.Wrap(err, "persist start of day")
	}
	if err := r.units.Refresh(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	r.l.Info("starting trading loop",
		zap.String("pair", r.pair.String()),
		zap.Duration("poll_interval", r.poll),
		zap.Int("day", r.progress.NextDay()+1))

	for {
		select {
		case <-ctx.Done():
			r.l.Info("context done, stopping run loop", zap.String("pair", r.pair.String()))
			return ctx.Err()
		case <-ticker.C:
			today := r.clock().UTC().Truncate(24 * time.Hour)
			if today.After(day) {
				done, err := r.finishDay()
				if err != nil {
					return err
				}
				if done {
					r.l.Info("run complete", zap.Int("days", r.days))
					return nil
				}

				day = today
				r.units.AdvanceCooldown()
				if err := r.units.Refresh(ctx); err != nil && ctx.Err() != nil {
					return ctx.Err()
				}
			}

			price, err := r.pricer.GetPrice(ctx, r.pair)
			if err != nil {
				r.l.Error("failed to get price", zap.String("pair", r.pair.String()), zap.Error(err))
				continue
			}

			for _, event := range r.units.Evaluate(price) {
				r.l.Debug("trade event occurred", zap.String("pair", r.pair.String()), zap.Stringer("event", event))
			}
		}
	}
}

func (r *Runner) finishDay() (bool, error) {
	if err := r.units.Report(); err != nil {
		r.l.Warn("day report incomplete", zap.Error(err))
	}

	next := r.progress.NextDay() + 1
	if err := r.progress.SetNextDay(next); err != nil {
		return false, errors.Wrapf(err, "persist progress after day %d", next)
	}
	if next >= r.days {
		return true, nil
	}

	return false, errors.Wrapf(r.progress.BeginDay(next), "persist start of day %d", next+1)
}
