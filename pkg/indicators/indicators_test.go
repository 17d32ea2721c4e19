package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func closes(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func TestCalculateSMA(t *testing.T) {
	series, err := CalculateSMA(closes(1, 2, 3, 4, 5), 2)
	require.NoError(t, err)
	require.Len(t, series, 4)

	want := []string{"1.5", "2.5", "3.5", "4.5"}
	for i, w := range want {
		require.True(t, series[i].Equal(decimal.RequireFromString(w)), "index %d: got %s", i, series[i])
	}
}

func TestCalculateSMA_PeriodOne(t *testing.T) {
	series, err := CalculateSMA(closes(7, 8, 9), 1)
	require.NoError(t, err)
	require.Len(t, series, 3)
	require.True(t, series[2].Equal(decimal.NewFromInt(9)))
}

func TestCalculateSMA_NotEnoughData(t *testing.T) {
	_, err := CalculateSMA(closes(1, 2), 3)
	require.Error(t, err)

	_, err = CalculateSMA(closes(1, 2), 0)
	require.Error(t, err)
}

func TestLatestSMA(t *testing.T) {
	v, err := LatestSMA(closes(10, 20, 30, 40), 4)
	require.NoError(t, err)
	require.True(t, v.Equal(decimal.NewFromInt(25)))

	v, err = LatestSMA(closes(10, 20, 30, 40), 2)
	require.NoError(t, err)
	require.True(t, v.Equal(decimal.NewFromInt(35)))
}
