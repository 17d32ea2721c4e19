package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TradeKind represents the side of a trade event.
type TradeKind int

const (
	TradeBuy TradeKind = iota
	TradeSell
)

const (
	tradeKindStringBuy  = "BUY"
	tradeKindStringSell = "SELL"
)

// String returns BUY or SELL.
func (k TradeKind) String() string {
	switch k {
	case TradeBuy:
		return tradeKindStringBuy
	case TradeSell:
		return tradeKindStringSell
	default:
		return "UNKNOWN"
	}
}

// ParseTradeKind converts BUY/SELL (any case) into a TradeKind.
func ParseTradeKind(s string) (TradeKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case tradeKindStringBuy:
		return TradeBuy, nil
	case tradeKindStringSell:
		return TradeSell, nil
	}
	return 0, fmt.Errorf("invalid trade kind: %q", s)
}

// MarshalJSON encodes the kind as its string form.
func (k TradeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes BUY/SELL.
func (k *TradeKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTradeKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
