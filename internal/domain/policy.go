package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeMode direction of the decision rule.
type TradeMode string

const (
	// TradeModeMomentum buys above the reference and sells below it.
	TradeModeMomentum TradeMode = "momentum"
	// TradeModeMeanReversion buys below the reference and sells above it.
	TradeModeMeanReversion TradeMode = "mean_reversion"
)

const (
	defaultBandCents    = 5
	defaultFeeCents     = 5
	DefaultCooldownDays = 2
)

// Policy decision rule parameters of a strategy unit.
type Policy struct {
	// BuyBand how far past the reference the price must be to buy.
	BuyBand decimal.Decimal
	// SellBand how far past the reference the price must be to sell.
	SellBand decimal.Decimal
	// Fee per round trip, charged on sell.
	Fee decimal.Decimal
	// CooldownDays added to the cooldown counter after each sell.
	CooldownDays int
	Mode         TradeMode
}

// DefaultPolicy band 0.05 on both sides, fee 0.05, two days cooldown, momentum.
func DefaultPolicy() Policy {
	return Policy{
		BuyBand:      decimal.New(defaultBandCents, -2),
		SellBand:     decimal.New(defaultBandCents, -2),
		Fee:          decimal.New(defaultFeeCents, -2),
		CooldownDays: DefaultCooldownDays,
		Mode:         TradeModeMomentum,
	}
}

// Validate rejects negative bands, fees and cooldowns and unknown modes.
func (p Policy) Validate() error {
	if p.BuyBand.IsNegative() {
		return fmt.Errorf("buy band must be >= 0, got %s", p.BuyBand.String())
	}
	if p.SellBand.IsNegative() {
		return fmt.Errorf("sell band must be >= 0, got %s", p.SellBand.String())
	}
	if p.Fee.IsNegative() {
		return fmt.Errorf("fee must be >= 0, got %s", p.Fee.String())
	}
	if p.CooldownDays < 0 {
		return fmt.Errorf("cooldown days must be >= 0, got %d", p.CooldownDays)
	}
	switch p.Mode {
	case TradeModeMomentum, TradeModeMeanReversion:
	default:
		return fmt.Errorf("unsupported trade mode: %q", p.Mode)
	}

	return nil
}

// Decision result of a guard check.
type Decision struct {
	Should bool
	Reason string
}

// ShouldBuy reports whether price has crossed the buy band of reference.
// Cooldown is not part of the price rule and is checked by the unit.
func (p Policy) ShouldBuy(reference, price decimal.Decimal) Decision {
	if p.Mode == TradeModeMeanReversion {
		if price.Add(p.BuyBand).LessThan(reference) {
			return Decision{Should: true, Reason: "price_below_reference_band"}
		}
		return Decision{Reason: "price_within_band"}
	}

	if reference.Add(p.BuyBand).LessThan(price) {
		return Decision{Should: true, Reason: "price_above_reference_band"}
	}
	return Decision{Reason: "price_within_band"}
}

// ShouldSell reports whether price has crossed the sell band of reference.
func (p Policy) ShouldSell(reference, price decimal.Decimal) Decision {
	if p.Mode == TradeModeMeanReversion {
		if price.GreaterThan(reference.Add(p.SellBand)) {
			return Decision{Should: true, Reason: "price_above_reference_band"}
		}
		return Decision{Reason: "price_within_band"}
	}

	if reference.GreaterThan(price.Add(p.SellBand)) {
		return Decision{Should: true, Reason: "price_below_reference_band"}
	}
	return Decision{Reason: "price_within_band"}
}

// RoundTripProfit (exit - entry) - fee.
func (p Policy) RoundTripProfit(entry, exit decimal.Decimal) decimal.Decimal {
	return exit.Sub(entry).Sub(p.Fee)
}
