package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePair(t *testing.T) {
	p, err := ParsePair("btc_usdt")
	require.NoError(t, err)
	require.Equal(t, Pair{From: "BTC", To: "USDT"}, p)
	require.Equal(t, "BTC_USDT", p.String())
	require.Equal(t, "BTCUSDT", p.Symbol())

	for _, bad := range []string{"", "BTCUSDT", "BTC_", "_USDT", "A_B_C"} {
		_, err := ParsePair(bad)
		require.Error(t, err, bad)
	}
}

func TestTradeKind_JSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Kind TradeKind `json:"kind"`
	}{Kind: TradeSell})
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"SELL"}`, string(payload))

	var decoded struct {
		Kind TradeKind `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"buy"}`), &decoded))
	require.Equal(t, TradeBuy, decoded.Kind)

	require.Error(t, json.Unmarshal([]byte(`{"kind":"hold"}`), &decoded))
}

func TestPositionState_String(t *testing.T) {
	require.Equal(t, "FLAT", PositionFlat.String())
	require.Equal(t, "HOLDING", PositionHolding.String())
}
