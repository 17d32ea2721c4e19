package domain

// PositionState whether a unit holds an open position.
type PositionState int

const (
	// PositionFlat no open position.
	PositionFlat PositionState = iota
	// PositionHolding a position was bought and not yet sold.
	PositionHolding
)

// String returns FLAT or HOLDING.
func (s PositionState) String() string {
	switch s {
	case PositionFlat:
		return "FLAT"
	case PositionHolding:
		return "HOLDING"
	default:
		return "UNKNOWN"
	}
}
