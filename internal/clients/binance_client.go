package clients

import (
	"net/http"

	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient creates a Binance client. Empty credentials are enough for public market data.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	client := binance.NewClient(apiKey, apiSecret)
	client.HTTPClient = &http.Client{Timeout: HTTPTimeout}
	return client
}
