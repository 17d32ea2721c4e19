// Package sma implements a single-instrument moving-average strategy unit.
//
// A unit is driven from outside: the host refreshes its reference once per
// trading day, advances the cooldown once per day before trading begins and
// feeds intraday prices to Evaluate. A unit has no internal locking, calls on
// one unit must be serialized by the host.
package sma

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/smabot/internal/domain"
)

var (
	// ErrReferenceUnavailable the reference collaborator failed, timed out or returned unusable data.
	ErrReferenceUnavailable = errors.New("reference unavailable")
	// ErrNotReady evaluate was called before any successful refresh.
	ErrNotReady = errors.New("unit is not ready: no reference value")
	// ErrReportingUnavailable the event sink rejected a write.
	ErrReportingUnavailable = errors.New("reporting unavailable")
)

type referenceFetcher interface {
	// FetchReference returns the moving-average value for the lookback window.
	FetchReference(ctx context.Context, window int) (decimal.Decimal, error)
}

type eventSink interface {
	RecordTrade(event domain.TradeEvent) error
	RecordReport(report domain.ProfitReport) error
}

// Unit strategy unit tracking one lookback window.
type Unit struct {
	id      string
	window  int
	policy  domain.Policy
	fetcher referenceFetcher
	sink    eventSink
	l       *zap.Logger
	clock   func() time.Time

	position   domain.PositionState
	entryPrice decimal.Decimal
	profit     decimal.Decimal
	cooldown   int
	reference  decimal.Decimal
	ready      bool
}

// Option configures a Unit.
type Option func(*Unit)

// WithID overrides the default sma_<window> identifier.
func WithID(id string) Option {
	return func(u *Unit) {
		u.id = id
	}
}

// WithPolicy overrides the default policy.
func WithPolicy(p domain.Policy) Option {
	return func(u *Unit) {
		u.policy = p
	}
}

// WithProfit injects cumulative profit from a prior run.
func WithProfit(profit decimal.Decimal) Option {
	return func(u *Unit) {
		u.profit = profit
	}
}

// WithClock sets the time source used to stamp events.
func WithClock(clock func() time.Time) Option {
	return func(u *Unit) {
		u.clock = clock
	}
}

// NewUnit returns a FLAT unit with zero cooldown.
func NewUnit(l *zap.Logger, window int, fetcher referenceFetcher, sink eventSink, opts ...Option) (*Unit, error) {
	if window < 1 {
		return nil, fmt.Errorf("lookback window must be positive, got %d", window)
	}
	if fetcher == nil {
		return nil, errors.New("reference fetcher is required")
	}
	if sink == nil {
		return nil, errors.New("event sink is required")
	}
	if l == nil {
		l = zap.NewNop()
	}

	u := &Unit{
		id:       UnitID(window),
		window:   window,
		policy:   domain.DefaultPolicy(),
		fetcher:  fetcher,
		sink:     sink,
		clock:    time.Now,
		position: domain.PositionFlat,
		profit:   decimal.Zero,
	}
	for _, opt := range opts {
		opt(u)
	}

	if err := u.policy.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid policy")
	}
	u.l = l.With(zap.String("unit", u.id), zap.Int("window", window))

	return u, nil
}

// UnitID default identifier for a window.
func UnitID(window int) string {
	return fmt.Sprintf("sma_%d", window)
}

// ID returns the unit identifier.
func (u *Unit) ID() string {
	return u.id
}

// Window returns the lookback window.
func (u *Unit) Window() int {
	return u.window
}

// RefreshReference fetches a fresh reference value. On failure the previous
// value is kept and the returned error matches ErrReferenceUnavailable.
func (u *Unit) RefreshReference(ctx context.Context) error {
	ref, err := u.fetcher.FetchReference(ctx, u.window)
	if err != nil {
		return fmt.Errorf("%w: window %d: %w", ErrReferenceUnavailable, u.window, err)
	}
	// a value that arrives after the deadline is stale
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: window %d: %w", ErrReferenceUnavailable, u.window, err)
	}

	u.reference = ref
	u.ready = true
	u.l.Debug("reference refreshed", zap.String("reference", ref.String()))

	return nil
}

// AdvanceCooldown decrements the cooldown counter, never below zero.
// Must be called once per trading day.
func (u *Unit) AdvanceCooldown() {
	if u.cooldown > 0 {
		u.cooldown--
	}
}

// Evaluate applies the decision rule to price. It returns the emitted event,
// if any. A sink failure is returned wrapped in ErrReportingUnavailable
// together with the event; the transition itself is not rolled back.
func (u *Unit) Evaluate(price decimal.Decimal) (*domain.TradeEvent, error) {
	if !u.ready {
		return nil, ErrNotReady
	}

	switch u.position {
	case domain.PositionFlat:
		return u.tryBuy(price)
	case domain.PositionHolding:
		return u.trySell(price)
	default:
		return nil, fmt.Errorf("unknown position state %d", u.position)
	}
}

func (u *Unit) tryBuy(price decimal.Decimal) (*domain.TradeEvent, error) {
	if u.cooldown > 0 {
		return nil, nil
	}
	if !u.policy.ShouldBuy(u.reference, price).Should {
		return nil, nil
	}

	u.position = domain.PositionHolding
	u.entryPrice = price

	event := domain.TradeEvent{
		UnitID:    u.id,
		Window:    u.window,
		Kind:      domain.TradeBuy,
		Price:     price,
		Reference: u.reference,
		Time:      u.clock(),
	}

	return &event, u.emit(event)
}

func (u *Unit) trySell(price decimal.Decimal) (*domain.TradeEvent, error) {
	if !u.policy.ShouldSell(u.reference, price).Should {
		return nil, nil
	}

	delta := u.policy.RoundTripProfit(u.entryPrice, price)

	u.position = domain.PositionFlat
	u.entryPrice = decimal.Zero
	u.cooldown += u.policy.CooldownDays
	u.profit = u.profit.Add(delta)

	event := domain.TradeEvent{
		UnitID:      u.id,
		Window:      u.window,
		Kind:        domain.TradeSell,
		Price:       price,
		Reference:   u.reference,
		ProfitDelta: &delta,
		Time:        u.clock(),
	}

	return &event, u.emit(event)
}

func (u *Unit) emit(event domain.TradeEvent) error {
	if err := u.sink.RecordTrade(event); err != nil {
		return fmt.Errorf("%w: record %s for %s: %w", ErrReportingUnavailable, event.Kind, u.id, err)
	}
	return nil
}

// Report pushes the cumulative profit snapshot to the sink and returns it.
// The snapshot is returned even when the sink fails.
func (u *Unit) Report() (domain.ProfitReport, error) {
	report := domain.ProfitReport{
		UnitID: u.id,
		Window: u.window,
		Profit: u.profit,
		Time:   u.clock(),
	}

	if err := u.sink.RecordReport(report); err != nil {
		return report, fmt.Errorf("%w: report for %s: %w", ErrReportingUnavailable, u.id, err)
	}

	return report, nil
}

// SetProfit overrides the cumulative profit, used when resuming a session.
func (u *Unit) SetProfit(profit decimal.Decimal) {
	u.profit = profit
}

// Profit returns the cumulative realized profit.
func (u *Unit) Profit() decimal.Decimal {
	return u.profit
}

// EntryPrice returns the entry price of the open position; ok is false when flat.
func (u *Unit) EntryPrice() (decimal.Decimal, bool) {
	if u.position != domain.PositionHolding {
		return decimal.Zero, false
	}
	return u.entryPrice, true
}

// State read-only view of a unit.
type State struct {
	ID           string
	Window       int
	Position     domain.PositionState
	EntryPrice   *decimal.Decimal
	Profit       decimal.Decimal
	CooldownDays int
	Reference    decimal.Decimal
	Ready        bool
}

// Snapshot returns the current state.
func (u *Unit) Snapshot() State {
	s := State{
		ID:           u.id,
		Window:       u.window,
		Position:     u.position,
		Profit:       u.profit,
		CooldownDays: u.cooldown,
		Reference:    u.reference,
		Ready:        u.ready,
	}
	if entry, ok := u.EntryPrice(); ok {
		s.EntryPrice = &entry
	}
	return s
}
