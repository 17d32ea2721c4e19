package sma

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/smabot/internal/domain"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchReference(ctx context.Context, window int) (decimal.Decimal, error) {
	args := m.Called(ctx, window)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// recordingSink keeps every event; failing makes the next writes fail.
type recordingSink struct {
	trades  []domain.TradeEvent
	reports []domain.ProfitReport
	failing bool
}

func (s *recordingSink) RecordTrade(event domain.TradeEvent) error {
	if s.failing {
		return errors.New("sink down")
	}
	s.trades = append(s.trades, event)
	return nil
}

func (s *recordingSink) RecordReport(report domain.ProfitReport) error {
	if s.failing {
		return errors.New("sink down")
	}
	s.reports = append(s.reports, report)
	return nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newReadyUnit(t *testing.T, window int, ref string, opts ...Option) (*Unit, *recordingSink) {
	t.Helper()

	fetcher := &mockFetcher{}
	fetcher.On("FetchReference", mock.Anything, window).Return(d(ref), nil)
	sink := &recordingSink{}

	u, err := NewUnit(zap.NewNop(), window, fetcher, sink, opts...)
	require.NoError(t, err)
	require.NoError(t, u.RefreshReference(context.Background()))

	return u, sink
}

func requireEntryInvariant(t *testing.T, u *Unit) {
	t.Helper()
	s := u.Snapshot()
	if s.Position == domain.PositionHolding {
		require.NotNil(t, s.EntryPrice, "holding unit must have entry price")
	} else {
		require.Nil(t, s.EntryPrice, "flat unit must not have entry price")
	}
}

func TestNewUnit_Validation(t *testing.T) {
	fetcher := &mockFetcher{}
	sink := &recordingSink{}

	_, err := NewUnit(zap.NewNop(), 0, fetcher, sink)
	require.Error(t, err)

	_, err = NewUnit(zap.NewNop(), 5, nil, sink)
	require.Error(t, err)

	_, err = NewUnit(zap.NewNop(), 5, fetcher, nil)
	require.Error(t, err)

	bad := domain.DefaultPolicy()
	bad.CooldownDays = -1
	_, err = NewUnit(zap.NewNop(), 5, fetcher, sink, WithPolicy(bad))
	require.Error(t, err)
}

func TestNewUnit_InitialState(t *testing.T) {
	u, err := NewUnit(zap.NewNop(), 20, &mockFetcher{}, &recordingSink{})
	require.NoError(t, err)

	s := u.Snapshot()
	require.Equal(t, "sma_20", s.ID)
	require.Equal(t, 20, s.Window)
	require.Equal(t, domain.PositionFlat, s.Position)
	require.Nil(t, s.EntryPrice)
	require.True(t, s.Profit.IsZero())
	require.Zero(t, s.CooldownDays)
	require.False(t, s.Ready)
}

func TestUnit_EvaluateBeforeRefresh(t *testing.T) {
	u, err := NewUnit(zap.NewNop(), 3, &mockFetcher{}, &recordingSink{})
	require.NoError(t, err)

	event, err := u.Evaluate(d("100"))
	require.ErrorIs(t, err, ErrNotReady)
	require.Nil(t, event)
}

func TestUnit_RefreshFailureKeepsState(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("FetchReference", mock.Anything, 7).Return(d("50"), nil).Once()
	fetcher.On("FetchReference", mock.Anything, 7).Return(decimal.Zero, errors.New("script crashed")).Once()

	u, err := NewUnit(zap.NewNop(), 7, fetcher, &recordingSink{})
	require.NoError(t, err)
	require.NoError(t, u.RefreshReference(context.Background()))

	_, err = u.Evaluate(d("50.10"))
	require.NoError(t, err)
	before := u.Snapshot()

	err = u.RefreshReference(context.Background())
	require.ErrorIs(t, err, ErrReferenceUnavailable)
	require.ErrorContains(t, err, "script crashed")
	require.Equal(t, before, u.Snapshot())
	fetcher.AssertExpectations(t)
}

func TestUnit_RefreshFailureBeforeFirstSuccessStaysNotReady(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("FetchReference", mock.Anything, 4).Return(decimal.Zero, context.DeadlineExceeded)

	u, err := NewUnit(zap.NewNop(), 4, fetcher, &recordingSink{})
	require.NoError(t, err)

	err = u.RefreshReference(context.Background())
	require.ErrorIs(t, err, ErrReferenceUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = u.Evaluate(d("1"))
	require.ErrorIs(t, err, ErrNotReady)
}

func TestUnit_LateReferenceIsRejected(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("FetchReference", mock.Anything, 3).Return(d("60"), nil).Once()
	fetcher.On("FetchReference", mock.Anything, 3).
		Run(func(mock.Arguments) { time.Sleep(50 * time.Millisecond) }).
		Return(d("10"), nil).Once()

	u, err := NewUnit(zap.NewNop(), 3, fetcher, &recordingSink{})
	require.NoError(t, err)
	require.NoError(t, u.RefreshReference(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err = u.RefreshReference(ctx)
	require.ErrorIs(t, err, ErrReferenceUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, u.Snapshot().Reference.Equal(d("60")))
	fetcher.AssertExpectations(t)
}

func TestUnit_BuyBoundary(t *testing.T) {
	u, sink := newReadyUnit(t, 10, "100")

	event, err := u.Evaluate(d("100.05"))
	require.NoError(t, err)
	require.Nil(t, event)
	require.Equal(t, domain.PositionFlat, u.Snapshot().Position)

	event, err = u.Evaluate(d("100.0501"))
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, domain.TradeBuy, event.Kind)
	require.Equal(t, "sma_10", event.UnitID)
	require.True(t, event.Price.Equal(d("100.0501")))
	require.True(t, event.Reference.Equal(d("100")))
	require.Nil(t, event.ProfitDelta)

	entry, ok := u.EntryPrice()
	require.True(t, ok)
	require.True(t, entry.Equal(d("100.0501")))
	require.Len(t, sink.trades, 1)
}

func TestUnit_SellBoundary(t *testing.T) {
	u, sink := newReadyUnit(t, 10, "100")

	_, err := u.Evaluate(d("101"))
	require.NoError(t, err)
	require.Equal(t, domain.PositionHolding, u.Snapshot().Position)

	event, err := u.Evaluate(d("99.95"))
	require.NoError(t, err)
	require.Nil(t, event)
	require.Equal(t, domain.PositionHolding, u.Snapshot().Position)

	event, err = u.Evaluate(d("99.9499"))
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, domain.TradeSell, event.Kind)
	require.NotNil(t, event.ProfitDelta)
	require.True(t, event.ProfitDelta.Equal(d("-1.1001")))
	require.Len(t, sink.trades, 2)
}

func TestUnit_ProfitAccounting(t *testing.T) {
	tests := []struct {
		name   string
		buy    string
		sell   string
		profit string
	}{
		{name: "gain", buy: "100", sell: "101", profit: "0.95"},
		{name: "loss", buy: "100", sell: "98", profit: "-2.05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &mockFetcher{}
			fetcher.On("FetchReference", mock.Anything, 2).Return(d("99"), nil).Once()
			fetcher.On("FetchReference", mock.Anything, 2).Return(d("110"), nil).Once()

			u, err := NewUnit(zap.NewNop(), 2, fetcher, &recordingSink{})
			require.NoError(t, err)

			require.NoError(t, u.RefreshReference(context.Background()))
			event, err := u.Evaluate(d(tt.buy))
			require.NoError(t, err)
			require.Equal(t, domain.TradeBuy, event.Kind)

			// reference moves above the position so the sell fires at any test price
			require.NoError(t, u.RefreshReference(context.Background()))
			event, err = u.Evaluate(d(tt.sell))
			require.NoError(t, err)
			require.Equal(t, domain.TradeSell, event.Kind)
			require.True(t, event.ProfitDelta.Equal(d(tt.profit)))
			require.True(t, u.Profit().Equal(d(tt.profit)))
			require.Equal(t, 2, u.Snapshot().CooldownDays)
		})
	}
}

func TestUnit_CooldownBlocksBuys(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("FetchReference", mock.Anything, 5).Return(d("100"), nil)
	u, err := NewUnit(zap.NewNop(), 5, fetcher, &recordingSink{})
	require.NoError(t, err)
	require.NoError(t, u.RefreshReference(context.Background()))

	_, err = u.Evaluate(d("101"))
	require.NoError(t, err)
	_, err = u.Evaluate(d("99"))
	require.NoError(t, err)
	require.Equal(t, 2, u.Snapshot().CooldownDays)

	for day := 0; day < 2; day++ {
		for i := 0; i < 3; i++ {
			event, err := u.Evaluate(d("150"))
			require.NoError(t, err)
			require.Nil(t, event, "no buy during cooldown")
			require.Equal(t, domain.PositionFlat, u.Snapshot().Position)
		}
		u.AdvanceCooldown()
	}

	require.Zero(t, u.Snapshot().CooldownDays)
	event, err := u.Evaluate(d("150"))
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, domain.TradeBuy, event.Kind)
}

func TestUnit_CooldownAccumulates(t *testing.T) {
	u, _ := newReadyUnit(t, 5, "100")

	_, err := u.Evaluate(d("101"))
	require.NoError(t, err)
	_, err = u.Evaluate(d("99"))
	require.NoError(t, err)
	u.AdvanceCooldown()
	u.AdvanceCooldown()

	_, err = u.Evaluate(d("101"))
	require.NoError(t, err)
	u.AdvanceCooldown()
	require.Zero(t, u.Snapshot().CooldownDays)

	before := u.Snapshot().CooldownDays
	_, err = u.Evaluate(d("99"))
	require.NoError(t, err)
	require.Equal(t, before+2, u.Snapshot().CooldownDays)
}

func TestUnit_AdvanceCooldownNeverNegative(t *testing.T) {
	u, _ := newReadyUnit(t, 1, "10")

	u.AdvanceCooldown()
	u.AdvanceCooldown()
	require.Zero(t, u.Snapshot().CooldownDays)
}

func TestUnit_Alternation(t *testing.T) {
	u, sink := newReadyUnit(t, 3, "100")

	prices := []string{"101", "102", "99", "101", "98", "97", "103", "100", "99.9", "99.94", "101", "99"}
	for i, p := range prices {
		_, err := u.Evaluate(d(p))
		require.NoError(t, err)
		requireEntryInvariant(t, u)
		if i%4 == 3 {
			u.AdvanceCooldown()
		}
	}

	require.NotEmpty(t, sink.trades)
	for i, event := range sink.trades {
		if i%2 == 0 {
			require.Equal(t, domain.TradeBuy, event.Kind, "event %d", i)
		} else {
			require.Equal(t, domain.TradeSell, event.Kind, "event %d", i)
		}
	}
}

func TestUnit_ProfitChangesOnlyOnSell(t *testing.T) {
	u, sink := newReadyUnit(t, 3, "100", WithProfit(d("12.5")))

	_, err := u.Evaluate(d("100.01"))
	require.NoError(t, err)
	require.True(t, u.Profit().Equal(d("12.5")))

	_, err = u.Evaluate(d("105"))
	require.NoError(t, err)
	require.True(t, u.Profit().Equal(d("12.5")), "buy must not change profit")

	event, err := u.Evaluate(d("90"))
	require.NoError(t, err)
	require.True(t, u.Profit().Equal(d("12.5").Add(*event.ProfitDelta)))
	require.True(t, event.ProfitDelta.Equal(d("-15.05")))
	require.Len(t, sink.trades, 2)
}

func TestUnit_SinkFailureDoesNotRollBack(t *testing.T) {
	u, sink := newReadyUnit(t, 8, "100")
	sink.failing = true

	event, err := u.Evaluate(d("101"))
	require.ErrorIs(t, err, ErrReportingUnavailable)
	require.NotNil(t, event)
	require.Equal(t, domain.PositionHolding, u.Snapshot().Position)

	event, err = u.Evaluate(d("98"))
	require.ErrorIs(t, err, ErrReportingUnavailable)
	require.NotNil(t, event)
	require.Equal(t, domain.PositionFlat, u.Snapshot().Position)
	require.True(t, u.Profit().Equal(d("-3.05")))
}

func TestUnit_Report(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	u, sink := newReadyUnit(t, 9, "100", WithProfit(d("1.5")), WithClock(func() time.Time { return now }))

	report, err := u.Report()
	require.NoError(t, err)
	require.Equal(t, domain.ProfitReport{UnitID: "sma_9", Window: 9, Profit: d("1.5"), Time: now}, report)
	require.Len(t, sink.reports, 1)

	sink.failing = true
	before := u.Snapshot()
	report, err = u.Report()
	require.ErrorIs(t, err, ErrReportingUnavailable)
	require.True(t, report.Profit.Equal(d("1.5")))
	require.Equal(t, before, u.Snapshot())
}

func TestUnit_SetProfit(t *testing.T) {
	u, _ := newReadyUnit(t, 9, "100")
	u.SetProfit(d("-4.2"))
	require.True(t, u.Profit().Equal(d("-4.2")))
}

func TestUnit_EndToEndScenario(t *testing.T) {
	u, sink := newReadyUnit(t, 20, "50.00")

	// day 1
	event, err := u.Evaluate(d("50.05"))
	require.NoError(t, err)
	require.Nil(t, event, "within band")

	event, err = u.Evaluate(d("50.06"))
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, domain.TradeBuy, event.Kind)
	entry, ok := u.EntryPrice()
	require.True(t, ok)
	require.True(t, entry.Equal(d("50.06")))

	event, err = u.Evaluate(d("49.94"))
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, domain.TradeSell, event.Kind)
	require.True(t, u.Profit().Equal(d("-0.17")))
	require.Equal(t, 2, u.Snapshot().CooldownDays)

	event, err = u.Evaluate(d("50.10"))
	require.NoError(t, err)
	require.Nil(t, event, "cooldown")

	u.AdvanceCooldown()
	u.AdvanceCooldown()
	require.Zero(t, u.Snapshot().CooldownDays)

	event, err = u.Evaluate(d("50.10"))
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, domain.TradeBuy, event.Kind)
	require.Len(t, sink.trades, 3)
}

func TestUnit_MeanReversionMode(t *testing.T) {
	p := domain.DefaultPolicy()
	p.Mode = domain.TradeModeMeanReversion
	u, _ := newReadyUnit(t, 6, "100", WithPolicy(p))

	event, err := u.Evaluate(d("101"))
	require.NoError(t, err)
	require.Nil(t, event)

	event, err = u.Evaluate(d("99"))
	require.NoError(t, err)
	require.Equal(t, domain.TradeBuy, event.Kind)

	event, err = u.Evaluate(d("101"))
	require.NoError(t, err)
	require.Equal(t, domain.TradeSell, event.Kind)
	require.True(t, event.ProfitDelta.Equal(d("1.95")))
}
