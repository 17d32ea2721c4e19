// Package analysis aggregates realized sell trades from the trade journal per window.
package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/smabot/internal/domain"
	"github.com/vadiminshakov/smabot/internal/storage/trades"
)

// WindowStats aggregate of the sells of one window.
type WindowStats struct {
	Window   int
	Trades   int
	Total    decimal.Decimal
	Positive int
}

// Avg average profit per sell, zero when there were none.
func (s WindowStats) Avg() decimal.Decimal {
	if s.Trades == 0 {
		return decimal.Zero
	}
	return s.Total.Div(decimal.NewFromInt(int64(s.Trades)))
}

func (s *WindowStats) add(profit decimal.Decimal) {
	s.Trades++
	s.Total = s.Total.Add(profit)
	if profit.IsPositive() {
		s.Positive++
	}
}

// Result per-window and overall aggregates.
type Result struct {
	PerWindow map[int]WindowStats
	Overall   WindowStats
}

// Aggregate folds the sell events of records. Buys and reports are ignored.
func Aggregate(records []trades.Record) Result {
	res := Result{PerWindow: map[int]WindowStats{}}
	for _, rec := range records {
		ev := rec.Trade
		if ev == nil || ev.Kind != domain.TradeSell || ev.ProfitDelta == nil {
			continue
		}

		s := res.PerWindow[ev.Window]
		s.Window = ev.Window
		s.add(*ev.ProfitDelta)
		res.PerWindow[ev.Window] = s
		res.Overall.add(*ev.ProfitDelta)
	}
	return res
}

// Ranked returns every window sorted by total profit ascending, ties by window.
func (r Result) Ranked() []WindowStats {
	ranked := make([]WindowStats, 0, len(r.PerWindow))
	for _, s := range r.PerWindow {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].Total.Cmp(ranked[j].Total); c != 0 {
			return c < 0
		}
		return ranked[i].Window < ranked[j].Window
	})
	return ranked
}

// Worst up to n windows with the lowest total, worst first.
func (r Result) Worst(n int) []WindowStats {
	ranked := r.Ranked()
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// Best up to n windows with the highest total, best first.
func (r Result) Best(n int) []WindowStats {
	ranked := r.Ranked()
	if n < len(ranked) {
		ranked = ranked[len(ranked)-n:]
	}
	for i, j := 0, len(ranked)-1; i < j; i, j = i+1, j-1 {
		ranked[i], ranked[j] = ranked[j], ranked[i]
	}
	return ranked
}

// Summarize writes a human-readable summary with the top n worst and best windows.
func Summarize(w io.Writer, r Result, n int) error {
	lines := []string{
		fmt.Sprintf("Parsed sells: %d", r.Overall.Trades),
		fmt.Sprintf("Overall total profit from sells: %s", r.Overall.Total.StringFixed(6)),
		fmt.Sprintf("Overall average profit per sell: %s", r.Overall.Avg().StringFixed(6)),
		fmt.Sprintf("Overall positive sells: %d", r.Overall.Positive),
		"",
		fmt.Sprintf("Top %d worst SMAs (by total profit):", n),
	}
	for _, s := range r.Worst(n) {
		lines = append(lines, formatStats(s))
	}
	lines = append(lines, "", fmt.Sprintf("Top %d best SMAs (by total profit):", n))
	for _, s := range r.Best(n) {
		lines = append(lines, formatStats(s))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return errors.Wrap(err, "write summary")
		}
	}
	return nil
}

func formatStats(s WindowStats) string {
	return fmt.Sprintf("  SMA %d: trades=%d, total=%s, avg=%s, positive=%d",
		s.Window, s.Trades, s.Total.StringFixed(6), s.Avg().StringFixed(6), s.Positive)
}

// WriteCSV writes per-window aggregates ordered by window.
func WriteCSV(w io.Writer, r Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"sma", "trades", "total_profit", "avg_profit", "positive_trades"}); err != nil {
		return errors.Wrap(err, "write csv header")
	}

	windows := make([]int, 0, len(r.PerWindow))
	for win := range r.PerWindow {
		windows = append(windows, win)
	}
	sort.Ints(windows)

	for _, win := range windows {
		s := r.PerWindow[win]
		row := []string{
			strconv.Itoa(s.Window),
			strconv.Itoa(s.Trades),
			s.Total.StringFixed(6),
			s.Avg().StringFixed(6),
			strconv.Itoa(s.Positive),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write csv row for window %d", win)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
