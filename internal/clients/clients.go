// Package clients constructs exchange API clients.
package clients

import (
	"os"

	"github.com/pkg/errors"
)

const (
	PlatformBinance = "binance"
	PlatformBybit   = "bybit"
)

// NewClient builds the public market-data client of platform.
// Credentials are read from <PLATFORM>_API_KEY and <PLATFORM>_API_SECRET when set.
func NewClient(platform string) (any, error) {
	switch platform {
	case PlatformBinance:
		return NewBinanceClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET")), nil
	case PlatformBybit:
		return NewBybitClient(os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET")), nil
	default:
		return nil, errors.Errorf("unsupported platform: %s", platform)
	}
}
