package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/smabot/internal/services/feed"
)

type dayFeed interface {
	Days() int
	DayStart(i int) time.Time
	Prices(ctx context.Context, i int) ([]feed.Tick, error)
}

type progress interface {
	NextDay() int
	// BeginDay marks day as started; a day that is begun but never finished
	// is discarded on resume.
	BeginDay(day int) error
	SetNextDay(day int) error
}

// Evaluator replays historical days through the units.
type Evaluator struct {
	l        *zap.Logger
	units    *Units
	feed     dayFeed
	progress progress
	clock    *SimClock
}

// NewEvaluator creates an evaluator. clock must be the clock the units and
// the reference provider were built with.
func NewEvaluator(l *zap.Logger, units *Units, f dayFeed, p progress, clock *SimClock) *Evaluator {
	return &Evaluator{l: l, units: units, feed: f, progress: p, clock: clock}
}

// Run processes every remaining day. Progress is persisted after each day, so
// an interrupted evaluation resumes at the first unfinished day.
func (e *Evaluator) Run(ctx context.Context) error {
	first := true
	for day := e.progress.NextDay(); day < e.feed.Days(); day++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := e.feed.DayStart(day)
		e.clock.Set(start)
		log := e.l.With(zap.Int("day", day+1), zap.String("date", start.Format(time.DateOnly)))
		log.Info("evaluating day", zap.Int("of", e.feed.Days()))

		if err := e.progress.BeginDay(day); err != nil {
			return errors.Wrapf(err, "persist start of day %d", day+1)
		}

		if !first {
			e.units.AdvanceCooldown()
		}
		first = false

		if err := e.units.Refresh(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		ticks, err := e.feed.Prices(ctx, day)
		if err != nil {
			return errors.Wrapf(err, "load prices for day %d", day+1)
		}

		var trades int
		for _, tick := range ticks {
			e.clock.Set(tick.Time)
			trades += len(e.units.Evaluate(tick.Price))
		}

		e.clock.Set(start.Add(24 * time.Hour))
		if err := e.units.Report(); err != nil {
			log.Warn("day report incomplete", zap.Error(err))
		}

		if err := e.progress.SetNextDay(day + 1); err != nil {
			return errors.Wrapf(err, "persist progress after day %d", day+1)
		}
		log.Info("day finished",
			zap.Int("ticks", len(ticks)),
			zap.Int("trades", trades),
			zap.Int("active_units", e.units.Active()))
	}

	e.l.Info("evaluation complete", zap.Int("days", e.feed.Days()))
	return nil
}
