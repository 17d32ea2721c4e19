package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeEvent emitted by a strategy unit on a buy or sell transition.
type TradeEvent struct {
	// UnitID identifier of the emitting unit.
	UnitID string `json:"unit_id"`
	// Window lookback window of the emitting unit.
	Window int `json:"window"`
	// Kind BUY or SELL.
	Kind TradeKind `json:"kind"`
	// Price market price the transition happened at.
	Price decimal.Decimal `json:"price"`
	// Reference moving-average value used by the decision.
	Reference decimal.Decimal `json:"reference"`
	// ProfitDelta realized profit net of fee, set on SELL only.
	ProfitDelta *decimal.Decimal `json:"profit_delta,omitempty"`
	// Time when the event was produced.
	Time time.Time `json:"ts"`
}

// String returns a human-readable string representation.
func (t TradeEvent) String() string {
	if t.ProfitDelta != nil {
		return fmt.Sprintf("%s %s price: %s profit: %s ref: %s",
			t.UnitID, t.Kind, t.Price, t.ProfitDelta, t.Reference)
	}
	return fmt.Sprintf("%s %s price: %s ref: %s", t.UnitID, t.Kind, t.Price, t.Reference)
}

// ProfitReport cumulative profit snapshot of one unit.
type ProfitReport struct {
	UnitID string          `json:"unit_id"`
	Window int             `json:"window"`
	Profit decimal.Decimal `json:"profit"`
	Time   time.Time       `json:"ts"`
}
