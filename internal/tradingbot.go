package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/smabot/config"
	"github.com/vadiminshakov/smabot/internal/analysis"
	"github.com/vadiminshakov/smabot/internal/domain"
	"github.com/vadiminshakov/smabot/internal/reporting"
	"github.com/vadiminshakov/smabot/internal/services/feed"
	"github.com/vadiminshakov/smabot/internal/services/reference"
	"github.com/vadiminshakov/smabot/internal/services/scheduler"
	"github.com/vadiminshakov/smabot/internal/storage/session"
	"github.com/vadiminshakov/smabot/internal/storage/trades"
	"github.com/vadiminshakov/smabot/pkg/retrier"
)

// ErrModeMismatch the saved session was started in a different mode.
var ErrModeMismatch = errors.New("saved session mode differs from the requested mode")

// TradingBot wires one session: market data, reference values, units, sinks and storage.
type TradingBot struct {
	l        *zap.Logger
	opts     config.Options
	provider ServiceProvider
	out      io.Writer
	now      func() time.Time
}

// NewTradingBot creates a bot for the parsed options and exchange client.
func NewTradingBot(l *zap.Logger, opts config.Options, client any, out io.Writer) (*TradingBot, error) {
	provider, err := NewServiceProvider(client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create service provider")
	}

	return &TradingBot{l: l, opts: opts, provider: provider, out: out, now: time.Now}, nil
}

func journalDir(cfg config.Config) string {
	return filepath.Join(cfg.Storage.Dir, "trades")
}

func (b *TradingBot) csvPath() string {
	if b.opts.CSVPath != "" {
		return b.opts.CSVPath
	}
	return filepath.Join(b.opts.Config.Storage.Dir, fmt.Sprintf("%s_analysis.csv", b.opts.Config.Pair.String()))
}

// Clean deletes the saved session, the trade journal and the analysis CSV.
func Clean(l *zap.Logger, cfg config.Config, csvPath string) error {
	store, err := session.NewStore(cfg.Storage.StateFile)
	if err != nil {
		return err
	}
	if err := store.Remove(); err != nil {
		return err
	}
	if err := os.RemoveAll(journalDir(cfg)); err != nil {
		return errors.Wrap(err, "remove trade journal")
	}
	if err := os.Remove(csvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove analysis csv")
	}

	l.Info("session cleaned",
		zap.String("state_file", cfg.Storage.StateFile),
		zap.String("journal", journalDir(cfg)),
		zap.String("csv", csvPath))
	return nil
}

// Run executes the selected action and mode until it completes or ctx is done.
func (b *TradingBot) Run(ctx context.Context) error {
	cfg := b.opts.Config
	if b.opts.Action == config.SessionClean {
		return Clean(b.l, cfg, b.csvPath())
	}

	journal, err := trades.NewWALStore(journalDir(cfg))
	if err != nil {
		return err
	}
	defer journal.Close()

	store, err := session.NewStore(cfg.Storage.StateFile, session.WithJournal(journal))
	if err != nil {
		return err
	}

	state, err := b.openSession(store, journal)
	if err != nil {
		return err
	}
	// a resumed session keeps its pair for the whole run
	if state.Pair != cfg.Pair.String() {
		b.l.Info("using pair of the saved session", zap.String("pair", state.Pair))
		b.opts.Config.Pair, err = domain.ParsePair(state.Pair)
		if err != nil {
			return err
		}
		cfg = b.opts.Config
	}

	var clock func() time.Time
	sim := scheduler.NewSimClock(b.now())
	if b.opts.Mode == config.ModeEval {
		clock = sim.Now
	} else {
		clock = b.now
	}

	fetcher, err := b.newFetcher(cfg, clock)
	if err != nil {
		return err
	}

	sink := reporting.NewMulti(
		reporting.NewConsole(b.out, true),
		reporting.NewLog(b.l.Named("journal")),
		journal,
		store,
	)

	var totals scheduler.Totals
	if b.opts.Action == config.SessionResume {
		totals = state
	}

	units, err := scheduler.NewUnits(b.l, scheduler.UnitsConfig{
		MinWindow:      cfg.Windows.Min,
		MaxWindow:      cfg.Windows.Max,
		Step:           cfg.Windows.Step,
		Policy:         cfg.Policy,
		RefreshTimeout: cfg.Reference.Timeout,
	}, fetcher, sink, totals, clock)
	if err != nil {
		return err
	}

	if b.opts.Mode == config.ModeEval {
		replay, err := feed.NewReplay(b.provider.KlineProvider(), cfg.Pair, cfg.Eval.Interval, state.TotalDays, state.StartedAt)
		if err != nil {
			return err
		}

		if err := scheduler.NewEvaluator(b.l, units, replay, store, sim).Run(ctx); err != nil {
			return err
		}

		if b.opts.Analyze {
			return b.analyze(journal, store.State())
		}
		return nil
	}

	if kp, ok := fetcher.(*reference.KlineProvider); ok {
		if err := reference.WriteSnapshotFile(ctx, cfg.Reference.File, kp, cfg.Windows.Max); err != nil {
			b.l.Warn("failed to write reference snapshot", zap.String("file", cfg.Reference.File), zap.Error(err))
		}
	}

	runner, err := scheduler.NewRunner(b.l, units, b.provider.Pricer(), cfg.Pair, cfg.Run.PollPriceInterval, state.TotalDays, store, clock)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}

func (b *TradingBot) openSession(store *session.Store, journal *trades.WALStore) (session.State, error) {
	mode := session.Mode(b.opts.Mode)

	if b.opts.Action == config.SessionNew {
		state, err := store.Start(b.opts.Config.Pair, mode, b.opts.Days(), b.now(), journal.CurrentIndex())
		if err != nil {
			return session.State{}, err
		}
		b.l.Info("new session", zap.String("pair", state.Pair), zap.String("mode", string(mode)), zap.Int("days", state.TotalDays))
		return state, nil
	}

	state, err := store.Load()
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return session.State{}, errors.Wrap(err, "cannot resume without a previous session, start one with --new")
		}
		return session.State{}, err
	}
	if state.Mode != mode {
		return session.State{}, errors.Wrapf(ErrModeMismatch, "saved %s, requested %s", state.Mode, mode)
	}

	discarded, err := store.DiscardOpenDay()
	if err != nil {
		return session.State{}, errors.Wrap(err, "discard interrupted day")
	}
	if discarded {
		b.l.Info("interrupted day will be replayed", zap.Int("day", state.NextDay+1))
		state = store.State()
	}

	b.l.Info("resuming session",
		zap.String("pair", state.Pair),
		zap.Int("day", state.NextDay+1),
		zap.Int("days", state.TotalDays))
	return state, nil
}

func (b *TradingBot) newFetcher(cfg config.Config, clock func() time.Time) (scheduler.Fetcher, error) {
	if cfg.Reference.Source == config.ReferenceFile {
		return reference.NewFileProvider(cfg.Reference.File), nil
	}

	return reference.NewKlineProvider(b.l.Named("reference"), b.provider.KlineProvider(), cfg.Pair, cfg.Windows.Max,
		reference.WithClock(clock),
		reference.WithInterval(cfg.Reference.Interval),
		reference.WithRetrier(retrier.New(retrier.WithMaxRetries(cfg.Reference.Retries))))
}

func (b *TradingBot) analyze(journal *trades.WALStore, state session.State) error {
	all, err := journal.RecordsAfter(state.JournalStart)
	if err != nil {
		return errors.Wrap(err, "read trade journal")
	}
	records := make([]trades.Record, 0, len(all))
	for _, rec := range all {
		if !state.Discards(rec.Index) {
			records = append(records, rec)
		}
	}

	result := analysis.Aggregate(records)
	if err := analysis.Summarize(b.out, result, b.opts.Top); err != nil {
		return err
	}

	f, err := os.Create(b.csvPath())
	if err != nil {
		return errors.Wrap(err, "create analysis csv")
	}
	defer f.Close()
	if err := analysis.WriteCSV(f, result); err != nil {
		return err
	}
	fmt.Fprintf(b.out, "Wrote CSV to %s\n", b.csvPath())

	return analysis.WriteDiscrepancies(b.out, analysis.CompareTotals(result, state.TotalsByWindow()))
}
