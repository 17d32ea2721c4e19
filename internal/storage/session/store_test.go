package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/smabot/internal/domain"
)

var pair = domain.Pair{From: "BTC", To: "USDT"}

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "session.json")
	s, err := NewStore(path)
	require.NoError(t, err)
	return s, path
}

func TestStoreLoadMissing(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStoreStartAndReload(t *testing.T) {
	s, path := newStore(t)
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	state, err := s.Start(pair, ModeEval, 59, now, 7)
	require.NoError(t, err)
	assert.Equal(t, "BTC_USDT", state.Pair)
	assert.False(t, state.Done())

	require.NoError(t, s.RecordReport(domain.ProfitReport{UnitID: "sma_5", Window: 5, Profit: decimal.RequireFromString("1.25")}))
	require.NoError(t, s.RecordReport(domain.ProfitReport{UnitID: "sma_2", Window: 2, Profit: decimal.RequireFromString("-0.5")}))
	require.NoError(t, s.RecordReport(domain.ProfitReport{UnitID: "sma_5", Window: 5, Profit: decimal.RequireFromString("2")}))
	require.NoError(t, s.SetNextDay(3))
	assert.Equal(t, 3, s.NextDay())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	loaded, err := reopened.Load()
	require.NoError(t, err)

	assert.Equal(t, ModeEval, loaded.Mode)
	assert.Equal(t, 59, loaded.TotalDays)
	assert.Equal(t, 3, loaded.NextDay)
	assert.True(t, loaded.StartedAt.Equal(now))
	assert.Equal(t, uint64(7), loaded.JournalStart)
	assert.Equal(t, []int{2, 5}, loaded.Windows())
	assert.True(t, loaded.Total(5).Equal(decimal.NewFromInt(2)))
	assert.True(t, loaded.Total(2).Equal(decimal.RequireFromString("-0.5")))
	assert.True(t, loaded.Total(100).IsZero())
	assert.Len(t, loaded.TotalsByWindow(), 2)
}

func TestStoreStartResetsTotals(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Start(pair, ModeEval, 5, time.Now(), 0)
	require.NoError(t, err)
	require.NoError(t, s.RecordReport(domain.ProfitReport{Window: 1, Profit: decimal.NewFromInt(1)}))

	state, err := s.Start(pair, ModeRun, 2, time.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, state.Totals)
	assert.Equal(t, ModeRun, state.Mode)
}

func TestStoreStateIsCopy(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Start(pair, ModeEval, 5, time.Now(), 0)
	require.NoError(t, err)

	st := s.State()
	st.Totals["1"] = decimal.NewFromInt(42)

	assert.True(t, s.State().Total(1).IsZero())
}

func TestStoreDone(t *testing.T) {
	assert.True(t, State{TotalDays: 2, NextDay: 2}.Done())
	assert.False(t, State{TotalDays: 2, NextDay: 1}.Done())
}

func TestStoreRemove(t *testing.T) {
	s, path := newStore(t)
	_, err := s.Start(pair, ModeEval, 5, time.Now(), 0)
	require.NoError(t, err)

	require.NoError(t, s.Remove())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// removing twice is fine
	require.NoError(t, s.Remove())
}

func TestStoreLoadCorrupt(t *testing.T) {
	s, path := newStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := s.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

type fixedIndex struct{ index uint64 }

func (f *fixedIndex) CurrentIndex() uint64 { return f.index }

func TestStoreOpenDayCommitsOnFinish(t *testing.T) {
	journal := &fixedIndex{index: 4}
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := NewStore(path, WithJournal(journal))
	require.NoError(t, err)

	_, err = s.Start(pair, ModeEval, 3, time.Now(), 4)
	require.NoError(t, err)

	require.NoError(t, s.BeginDay(0))
	require.NoError(t, s.RecordReport(domain.ProfitReport{Window: 2, Profit: decimal.RequireFromString("1.5")}))
	assert.True(t, s.State().Total(2).IsZero(), "open day reports stay pending")

	require.NoError(t, s.SetNextDay(1))
	state := s.State()
	assert.True(t, state.Total(2).Equal(decimal.RequireFromString("1.5")))
	assert.Nil(t, state.OpenDay)
	assert.Empty(t, state.Pending)
}

func TestStoreDiscardOpenDay(t *testing.T) {
	journal := &fixedIndex{index: 10}
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := NewStore(path, WithJournal(journal))
	require.NoError(t, err)

	_, err = s.Start(pair, ModeEval, 3, time.Now(), 10)
	require.NoError(t, err)
	require.NoError(t, s.RecordReport(domain.ProfitReport{Window: 1, Profit: decimal.NewFromInt(2)}))

	require.NoError(t, s.BeginDay(1))
	journal.index = 13
	require.NoError(t, s.RecordReport(domain.ProfitReport{Window: 1, Profit: decimal.NewFromInt(5)}))

	// interrupted: reload from disk the way a resumed process does
	reloaded, err := NewStore(path, WithJournal(journal))
	require.NoError(t, err)
	_, err = reloaded.Load()
	require.NoError(t, err)

	discarded, err := reloaded.DiscardOpenDay()
	require.NoError(t, err)
	assert.True(t, discarded)

	state := reloaded.State()
	assert.True(t, state.Total(1).Equal(decimal.NewFromInt(2)))
	assert.Equal(t, []IndexRange{{After: 10, Through: 13}}, state.Discarded)
	assert.False(t, state.Discards(10))
	assert.True(t, state.Discards(11))
	assert.True(t, state.Discards(13))
	assert.False(t, state.Discards(14))

	discarded, err = reloaded.DiscardOpenDay()
	require.NoError(t, err)
	assert.False(t, discarded)
}
