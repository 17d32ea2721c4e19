package analysis

import (
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DiscrepancyKind classifies a mismatch between reported totals and realized sells.
type DiscrepancyKind string

const (
	ReportedOnly  DiscrepancyKind = "reported_only"
	SignMismatch  DiscrepancyKind = "sign_mismatch"
	ValueMismatch DiscrepancyKind = "value_mismatch"
)

var tolerance = decimal.New(1, -6)

// Discrepancy between a window's reported total and the sum of its journaled sells.
type Discrepancy struct {
	Window   int
	Kind     DiscrepancyKind
	Reported decimal.Decimal
	Realized decimal.Decimal
}

// CompareTotals checks reported totals against realized aggregates, ordered by window.
func CompareTotals(r Result, totals map[int]decimal.Decimal) []Discrepancy {
	var out []Discrepancy
	for win, reported := range totals {
		agg, ok := r.PerWindow[win]
		if !ok {
			if !reported.IsZero() {
				out = append(out, Discrepancy{Window: win, Kind: ReportedOnly, Reported: reported, Realized: decimal.Zero})
			}
			continue
		}

		realized := agg.Total
		switch {
		case realized.IsNegative() && !reported.IsNegative(),
			realized.IsPositive() && !reported.IsPositive():
			out = append(out, Discrepancy{Window: win, Kind: SignMismatch, Reported: reported, Realized: realized})
		case reported.Sub(realized).Abs().GreaterThan(tolerance):
			out = append(out, Discrepancy{Window: win, Kind: ValueMismatch, Reported: reported, Realized: realized})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Window < out[j].Window })
	return out
}

// WriteDiscrepancies prints the comparison outcome.
func WriteDiscrepancies(w io.Writer, ds []Discrepancy) error {
	lines := []string{"Comparing realized sell aggregates to totals..."}
	if len(ds) == 0 {
		lines = append(lines, "No discrepancies found between realized sells and totals.")
	} else {
		lines = append(lines, fmt.Sprintf("Found %d discrepancies:", len(ds)))
		for _, d := range ds {
			lines = append(lines, fmt.Sprintf("  SMA %d: %s -> reported=%s, realized=%s",
				d.Window, d.Kind, d.Reported.StringFixed(6), d.Realized.StringFixed(6)))
		}
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return errors.Wrap(err, "write discrepancies")
		}
	}
	return nil
}
